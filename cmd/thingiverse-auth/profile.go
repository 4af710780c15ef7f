package main

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gwlsn/thingiverse-auth/internal/auth"
	"github.com/gwlsn/thingiverse-auth/internal/auth/bearer"
	"github.com/gwlsn/thingiverse-auth/internal/auth/thingiverse"
	"github.com/spf13/cobra"
)

type profileOptions struct {
	token  string
	secret string
	bearer bool
	raw    bool
}

func newProfileCmd(root *rootOptions) *cobra.Command {
	opts := &profileOptions{}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Fetch the normalized profile for an access token",
		Long: `Fetch /users/me with an access token and print the normalized profile.

By default the request is signed with OAuth 1.0a using the configured client
credentials and --secret. With --bearer the token is sent as an OAuth 2 bearer
token and no client credentials are needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.token == "" {
				return errors.New("--token is required")
			}
			cfg, err := root.load()
			if err != nil {
				return err
			}

			var profile *auth.Profile
			if opts.bearer {
				profile, err = thingiverse.FetchProfile(cmd.Context(), &bearer.Client{}, opts.token, "")
			} else {
				profile, err = signedProfile(cmd.Context(), cfg.Thingiverse.ClientID, cfg.Thingiverse.ClientSecret, cfg.CallbackURL(), opts)
			}
			if err != nil {
				return err
			}
			return printProfile(cmd, profile, opts.raw)
		},
	}

	cmd.Flags().StringVar(&opts.token, "token", "", "access token")
	cmd.Flags().StringVar(&opts.secret, "secret", "", "access token secret (OAuth 1.0a)")
	cmd.Flags().BoolVar(&opts.bearer, "bearer", false, "send the token as an OAuth 2 bearer token")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "print the provider response body instead")
	return cmd
}

func signedProfile(ctx context.Context, clientID, clientSecret, callbackURL string, opts *profileOptions) (*auth.Profile, error) {
	strategy, err := thingiverse.New(thingiverse.Options{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		CallbackURL:  callbackURL,
	}, func(context.Context, string, string, *auth.Profile) (*auth.User, error) {
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return strategy.UserProfile(ctx, opts.token, opts.secret, nil)
}

func printProfile(cmd *cobra.Command, profile *auth.Profile, raw bool) error {
	out := cmd.OutOrStdout()
	if raw {
		_, err := out.Write([]byte(profile.Raw + "\n"))
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]string{
		"provider": profile.Provider,
		"id":       profile.ID,
		"name":     profile.Name,
		"email":    profile.Email,
	})
}
