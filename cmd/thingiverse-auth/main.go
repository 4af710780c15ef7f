// Command thingiverse-auth serves a Thingiverse login site and fetches
// normalized Thingiverse profiles from the command line.
package main

import (
	"os"

	"github.com/gwlsn/thingiverse-auth/internal/logger"
)

func main() {
	logger.Init("info", "text")
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
