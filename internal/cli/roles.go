package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type invalidateResult struct {
	UserName string `json:"username"`
	Revoked  bool   `json:"revoked"`
}

func (a *App) rolesCommand() *cobra.Command {
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Compare stored roles with identity provider claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := a.backend.Service().VerifyRoles(cmd.Context(), actor)
			return printResult(a, rep, err)
		},
	}

	sync := &cobra.Command{
		Use:   "sync USERNAME",
		Short: "Write the stored role of one user into their claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			claims, err := a.backend.Service().SyncOneRole(cmd.Context(), actor, args[0])
			return printResult(a, claims, err)
		},
	}

	syncAll := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync claims of every user whose claims differ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			rep, err := a.backend.Service().SyncAllRoles(cmd.Context(), actor)
			return printResult(a, rep, err)
		},
	}

	var yes bool
	invalidate := &cobra.Command{
		Use:   "invalidate USERNAME",
		Short: "Revoke every session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}

			confirmed := yes
			if !confirmed && isTerminal(stdinFd()) {
				prompt := fmt.Sprintf("Revoke all sessions of %s?", args[0])
				confirmed = Confirm(a.in, prompt, cmd.ErrOrStderr())
			}

			if err := a.backend.Service().ForceInvalidate(cmd.Context(), actor, args[0], confirmed); err != nil {
				return err
			}
			return a.print(invalidateResult{UserName: args[0], Revoked: true})
		},
	}
	invalidate.Flags().BoolVarP(&yes, "yes", "y", false, "confirm without prompting")

	return group("roles", "Verify and sync role claims", verify, sync, syncAll, invalidate)
}
