package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/yieldbook/internal/auth/app"
	"github.com/aussiebroadwan/yieldbook/pkg/cryptox"
)

// NewSecretCmd creates the secret subcommand.
func NewSecretCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Print a random value suitable for AUTH_SECRET_KEY",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < app.MinSecretKeyLength {
				return oops.Code("SECRET_TOO_SHORT").
					With("bytes", size).
					Errorf("secret must be at least %d bytes", app.MinSecretKeyLength)
			}

			secret, err := cryptox.GenerateToken(size)
			if err != nil {
				return oops.Code("SECRET_FAILED").Wrap(err)
			}
			cmd.Println(secret)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", 48, "random bytes before encoding")
	return cmd
}
