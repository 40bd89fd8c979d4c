package cmd

import (
	"fmt"

	"github.com/lehigh-university-libraries/aidalocal/internal/catalog"
	"github.com/lehigh-university-libraries/aidalocal/internal/storage"
	"github.com/spf13/cobra"
)

func newCatalogCmd(s *settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Image catalog maintenance",
		Long: `Builds the catalog of annotatable images found under <data>/images.

Deep zoom tile directories (*_files) and .DS_Store files are never listed.`,
	}

	cmd.AddCommand(newCatalogRefreshCmd(s))
	cmd.AddCommand(newCatalogExportCmd(s))

	return cmd
}

func newCatalogRefreshCmd(s *settings) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild images.json from the images directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := storage.New(s.cfg.DataDir)
			builder, err := catalog.NewBuilder(layout.ImagesDir(), s.cfg.Catalog.Exclude)
			if err != nil {
				return err
			}

			nodes, err := builder.Refresh(layout.CatalogPath())
			if err != nil {
				return fmt.Errorf("failed to refresh catalog: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Catalog written to %s (%d entries)\n", layout.CatalogPath(), catalog.Count(nodes))
			return nil
		},
	}
}

func newCatalogExportCmd(s *settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the catalog as a flat Parquet index",
		Example: `  # Export the current images directory
  aidalocal catalog export --output catalog.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := storage.New(s.cfg.DataDir)
			builder, err := catalog.NewBuilder(layout.ImagesDir(), s.cfg.Catalog.Exclude)
			if err != nil {
				return err
			}

			nodes, err := builder.Build()
			if err != nil {
				return fmt.Errorf("failed to build catalog: %w", err)
			}
			if err := catalog.Export(nodes, output); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Catalog index written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "catalog.parquet", "Output Parquet file")

	return cmd
}
