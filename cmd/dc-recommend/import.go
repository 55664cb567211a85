// cmd/dc-recommend/import.go
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MereWhiplash/decision-cogitator/internal/catalog"
)

var catalogFile string

var importCmd = &cobra.Command{
	Use:   "import-patterns",
	Short: "Seed architectural patterns from a YAML catalog",
	Long: `Seed architectural patterns from a YAML catalog. Without --file the
built-in catalog of common patterns is imported.

Examples:
  dc-recommend import-patterns --file catalog.yaml`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runImport,
}

func init() {
	importCmd.Flags().StringVar(&catalogFile, "file", "", "Catalog YAML file (defaults to the built-in catalog)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var (
		c   *catalog.Catalog
		err error
	)
	if catalogFile != "" {
		c, err = catalog.Load(catalogFile)
	} else {
		c, err = catalog.Default()
	}
	if err != nil {
		return err
	}

	svc, _, err := setup(ctx, cmd, v, storageFlags)
	if err != nil {
		return err
	}
	defer svc.Close()

	stored, err := catalog.Import(ctx, svc, c)
	if err != nil {
		return err
	}

	type imported struct {
		ID   string `json:"id"`
		Name string `json:"pattern_name"`
	}
	out := struct {
		Source   string     `json:"source"`
		Imported []imported `json:"imported"`
	}{Source: c.Source, Imported: make([]imported, 0, len(stored))}
	for _, p := range stored {
		out.Imported = append(out.Imported, imported{ID: p.ID, Name: p.PatternName})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
