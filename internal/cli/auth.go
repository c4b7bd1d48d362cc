package cli

import (
	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/spf13/cobra"
)

func (a *App) authCommand() *cobra.Command {
	login := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Sign in to the identity provider and print the token pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := getPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer common.WipeByteArray(pw)

			pair, err := a.backend.SignIn(cmd.Context(), args[0], string(pw))
			if err != nil {
				return err
			}
			return a.print(pair)
		},
	}

	verify := &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Check an access token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := a.backend.VerifyToken(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(claims)
		},
	}

	return group("auth", "Identity provider sessions", login, verify)
}
