package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/ifg-pair-selector/internal/aoi"
)

func newAOICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aoi",
		Short: "Manage the AOI catalog",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Load AOI documents from a JSON file into the catalog",
		Long: `Load a JSON array of AOI documents (or a single document) into the catalog.
Invalid documents are reported and skipped; valid ones are upserted together.`,
		Args: cobra.ExactArgs(1),
		RunE: importAOIs,
	}
	importCmd.Flags().Bool("strict", false, "fail without importing anything when any document is invalid")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print every AOI in the catalog as JSON",
		Args:  cobra.NoArgs,
		RunE:  listAOIs,
	}

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}

func openStore(cmd *cobra.Command) (*aoi.Store, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := cliLogger(cmd, cfg)
	store, err := aoi.Open(cfg.AOI.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return store.WithLogger(logger), logger, nil
}

func importAOIs(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	aois, errs := aoi.ParseRecords(data)

	strict, _ := cmd.Flags().GetBool("strict")
	if strict && len(errs) > 0 {
		return errors.Join(errs...)
	}

	store, logger, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, e := range errs {
		logger.Warn("skipping aoi document", slog.String("error", e.Error()))
	}
	if len(aois) == 0 {
		return fmt.Errorf("%w: no valid documents in %s", aoi.ErrInvalidAOI, args[0])
	}
	if err := store.Upsert(cmd.Context(), aois...); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d aois (%d skipped)\n", len(aois), len(errs))
	return nil
}

func listAOIs(cmd *cobra.Command, args []string) error {
	store, _, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	aois, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if aois == nil {
		aois = []*aoi.AOI{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(aois)
}
