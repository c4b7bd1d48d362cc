package cli

import (
	"context"
	"path"
	"path/filepath"

	"github.com/dmitrijs2005/staffkeeper/internal/filex"
	"github.com/dmitrijs2005/staffkeeper/internal/objstore"
	"github.com/dmitrijs2005/staffkeeper/internal/server/importer"
	"github.com/spf13/cobra"
)

type importSource struct {
	file  string
	s3Key string
}

func (s *importSource) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.file, "file", "", "local .xlsx or .csv file")
	cmd.Flags().StringVar(&s.s3Key, "s3-key", "", "object key in the import bucket")
	cmd.MarkFlagsMutuallyExclusive("file", "s3-key")
	cmd.MarkFlagsOneRequired("file", "s3-key")
}

func (a *App) load(ctx context.Context, s importSource) (importer.File, error) {
	if s.s3Key != "" {
		b, err := a.backend.FetchImport(ctx, s.s3Key)
		if err != nil {
			return importer.File{}, err
		}
		return importer.File{Name: path.Base(s.s3Key), Data: b}, nil
	}

	b, err := filex.ReadLimited(s.file, objstore.MaxObjectSize)
	if err != nil {
		return importer.File{}, err
	}
	return importer.File{Name: filepath.Base(s.file), Data: b}, nil
}

func (a *App) importCommand() *cobra.Command {
	var previewSrc, applySrc importSource

	preview := &cobra.Command{
		Use:   "preview",
		Short: "Classify every row of an import file without writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			f, err := a.load(cmd.Context(), previewSrc)
			if err != nil {
				return err
			}
			rep, err := a.backend.Service().PreviewImport(cmd.Context(), actor, f)
			return printResult(a, rep, err)
		},
	}
	previewSrc.bind(preview)

	apply := &cobra.Command{
		Use:   "apply",
		Short: "Import users from a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.actor(cmd.Context())
			if err != nil {
				return err
			}
			f, err := a.load(cmd.Context(), applySrc)
			if err != nil {
				return err
			}
			rep, err := a.backend.Service().ApplyImport(cmd.Context(), actor, f)
			return printResult(a, rep, err)
		},
	}
	applySrc.bind(apply)

	return group("import", "Bulk import users", preview, apply)
}
