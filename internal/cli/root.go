package cli

import (
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/spf13/cobra"
)

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "staffctl",
		Short:   "Staff directory reconciliation console",
		Version: a.version,
		Long: `staffctl keeps the staff document store and the identity provider in step.

It imports staff from spreadsheets and keeps role claims in sync with the
stored roles. Deleting a referenced category moves its entries first. Every
command except "db" and "auth" runs on behalf of --as <username>, whose role
is read from the stored user record.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	// Parsed ahead of time by flagx.ConfigPath; declared so cobra accepts it.
	pf.StringP("config", "c", "", "path to JSON config file")
	pf.StringVar(&a.as, "as", "", "username of the acting user")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	config.BindFlags(pf, a.config)

	root.AddCommand(
		a.dbCommand(),
		a.authCommand(),
		a.categoriesCommand(),
		a.rolesCommand(),
		a.importCommand(),
	)
	return root
}

func group(use, short string, children ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(children...)
	return cmd
}
