package cli

import (
	"github.com/spf13/cobra"
)

func (a *App) dbCommand() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply document store migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.backend.Migrate(cmd.Context()); err != nil {
				return err
			}
			return a.print(map[string]string{"status": "migrated"})
		},
	}
	return group("db", "Document store maintenance", migrate)
}
