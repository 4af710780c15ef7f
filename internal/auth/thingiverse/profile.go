package thingiverse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
)

// ErrUnexpectedResponse reports a /users/me body that parsed but lacks the expected fields.
var ErrUnexpectedResponse = errors.New("thingiverse: unexpected response shape")

// parseProfile builds a profile from a /users/me body shaped
// {"user": {"id": ..., "name": ..., "email": ...}}.
func parseProfile(body []byte) (*auth.Profile, error) {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	doc, ok := parsed.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: body is not an object", ErrUnexpectedResponse)
	}
	user, ok := doc["user"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing user object", ErrUnexpectedResponse)
	}

	id, err := userID(user)
	if err != nil {
		return nil, err
	}
	name, err := stringField(user, "name")
	if err != nil {
		return nil, err
	}
	email, err := stringField(user, "email")
	if err != nil {
		return nil, err
	}

	return &auth.Profile{
		Provider: Name,
		ID:       id,
		Name:     name,
		Email:    email,
		Raw:      string(body),
		JSON:     doc,
	}, nil
}

// userID accepts string and numeric ids; numbers keep their integer form.
func userID(user map[string]any) (string, error) {
	switch v := user["id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return "", fmt.Errorf("%w: user.id missing or invalid", ErrUnexpectedResponse)
}

// stringField requires key to be present; null reads as empty.
func stringField(user map[string]any, key string) (string, error) {
	value, present := user[key]
	if !present {
		return "", fmt.Errorf("%w: user.%s missing", ErrUnexpectedResponse, key)
	}
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("%w: user.%s is not a string", ErrUnexpectedResponse, key)
	}
}
