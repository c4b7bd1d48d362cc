package cli

import (
	"encoding/json"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/spf13/cobra"
)

type usageResult struct {
	CategoryID string `json:"categoryId"`
	Usage      int    `json:"usage"`
}

func (a *App) categoriesCommand() *cobra.Command {
	list := &cobra.Command{
		Use:   "list",
		Short: "List categories in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			cats, err := a.backend.Service().GetAllCategories(cmd.Context(), actor)
			if err != nil {
				return err
			}
			return a.print(cats)
		},
	}

	var (
		id, name, formConfig string
		order                int
	)
	save := &cobra.Command{
		Use:   "save",
		Short: "Create a category, or replace one when --id is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			c := &models.Category{ID: id, Name: name, DisplayOrder: order}
			if formConfig != "" {
				c.FormConfig = json.RawMessage(formConfig)
			}
			saved, err := a.backend.Service().SaveCategory(cmd.Context(), actor, c)
			if err != nil {
				return err
			}
			return a.print(saved)
		},
	}
	save.Flags().StringVar(&id, "id", "", "id of the category to replace")
	save.Flags().StringVar(&name, "name", "", "category name")
	save.Flags().IntVar(&order, "order", 0, "display order")
	save.Flags().StringVar(&formConfig, "form-config", "", "form configuration as JSON")
	_ = save.MarkFlagRequired("name")

	var target string
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category, moving its entries to --target first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			o, err := a.backend.Service().DeleteCategory(cmd.Context(), actor, args[0], target)
			return printResult(a, o, err)
		},
	}
	del.Flags().StringVar(&target, "target", "", "category receiving the entries")

	usage := &cobra.Command{
		Use:   "usage ID",
		Short: "Count entries referencing a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			n, err := a.backend.Service().CheckUsage(cmd.Context(), actor, args[0])
			if err != nil {
				return err
			}
			return a.print(usageResult{CategoryID: args[0], Usage: n})
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate FROM TO",
		Short: "Move every entry of one category to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			o, err := a.backend.Service().MigrateEntries(cmd.Context(), actor, args[0], args[1])
			return printResult(a, o, err)
		},
	}

	return group("categories", "Manage entry categories", list, save, del, usage, migrate)
}
