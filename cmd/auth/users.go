package main

import (
	"context"
	"errors"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/yieldbook/internal/auth/service"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
)

// NewUsersCmd creates the users subcommand.
func NewUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Administer accounts",
	}

	cmd.AddCommand(newSetActiveCmd("activate", true))
	cmd.AddCommand(newSetActiveCmd("deactivate", false))

	return cmd
}

func newSetActiveCmd(use string, active bool) *cobra.Command {
	short := "Allow an account to log in again"
	if !active {
		short = "Stop an account from logging in, refreshing or authenticating"
	}

	return &cobra.Command{
		Use:   use + " <username|email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st store.Store) error {
				users := &service.UserService{Store: st}

				user, err := users.SetActive(ctx, args[0], active)
				if errors.Is(err, service.ErrUserNotFound) {
					return oops.Code("USER_NOT_FOUND").With("identifier", args[0]).Errorf("no such user")
				}
				if err != nil {
					return oops.Code("USER_UPDATE_FAILED").With("identifier", args[0]).Wrap(err)
				}

				cmd.Printf("%s %s (is_active=%t)\n", user.Username, user.ID, user.IsActive)
				return nil
			})
		},
	}
}
