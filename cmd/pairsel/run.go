package main

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/ifg-pair-selector/internal/config"
	"github.com/robert-malhotra/ifg-pair-selector/internal/jobctx"
	"github.com/robert-malhotra/ifg-pair-selector/internal/pipeline"
	"github.com/robert-malhotra/ifg-pair-selector/internal/selector"
	"github.com/robert-malhotra/ifg-pair-selector/internal/submit"
	"github.com/robert-malhotra/ifg-pair-selector/pkg/server"
)

// runOutput is what `pairsel run` prints.
type runOutput struct {
	ID              string                    `json:"id"`
	NothingSelected bool                      `json:"nothing_selected"`
	Pairs           []*selector.CandidatePair `json:"pairs"`
	Skipped         []string                  `json:"skipped,omitempty"`
	Failures        map[string]string         `json:"failures,omitempty"`
	Jobs            []submit.Outcome          `json:"jobs,omitempty"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one selection from a job context and print the candidate pairs",
		Long: `Run one selection over the window, AOIs and tracks named in a job context
file. Candidate pairs are printed to stdout as JSON.

The command exits 0 when nothing is selected and 1 when any AOI failed.`,
		Args: cobra.NoArgs,
		RunE: runSelection,
	}
	cmd.Flags().StringP("context", "c", "_context.json", "job context file")
	cmd.Flags().String("records", "", "read acquisitions from this records file instead of the configured catalog")
	cmd.Flags().Bool("submit", false, "submit a job for every candidate pair")
	return cmd
}

func runSelection(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cliLogger(cmd, cfg)

	contextFile, _ := cmd.Flags().GetString("context")
	jc, err := jobctx.Load(contextFile, logger)
	if err != nil {
		return err
	}
	applyContext(cfg, jc)
	if records, _ := cmd.Flags().GetString("records"); records != "" {
		cfg.Catalog.Backend = config.BackendRecords
		cfg.Catalog.RecordsPath = records
	}

	srv, err := server.New(server.Options{
		Config:     cfg,
		OrbitFile:  jc.OrbitFile,
		Registerer: prometheus.NewRegistry(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	doSubmit, _ := cmd.Flags().GetBool("submit")
	res, err := srv.Pipeline().Run(cmd.Context(), pipeline.Request{
		Start:    jc.Start,
		End:      jc.End,
		Platform: jc.Platform,
		AOIIDs:   jc.AOIs,
		Tracks:   jc.Tracks,
		Submit:   doSubmit,
		Trigger:  pipeline.TriggerCLI,
	})
	if res != nil && res.Selection != nil {
		if perr := printResult(cmd, res); perr != nil {
			return perr
		}
	}
	if err != nil {
		return err
	}

	if res.NothingSelected() {
		logger.Info("no candidate pairs selected", slog.String("run", res.ID))
		return nil
	}
	return res.Selection.Err()
}

// applyContext lets the job context override the configured job metadata.
// The temporal baseline bounds pair separation unless a bound is configured.
func applyContext(cfg *config.Config, jc *jobctx.Context) {
	if jc.Project != "" {
		cfg.Submit.Project = jc.Project
	}
	if jc.JobType != "" {
		cfg.Submit.JobType = jc.JobType
		cfg.Submit.JobVersion = jc.JobVersion
	}
	if jc.AcquisitionVersion != "" {
		cfg.Submit.AcquisitionVersion = jc.AcquisitionVersion
	}
	if jc.MinMatch > 0 {
		cfg.Submit.MinMatch = jc.MinMatch
	}
	if jc.ThresholdPixel > 0 {
		cfg.Submit.ThresholdPixel = jc.ThresholdPixel
	}
	cfg.Submit.Priority = jc.Priority

	if jc.Platform != "" {
		cfg.Selector.Platform = jc.Platform
	}
	if cfg.Selector.MaxSeparation == 0 && jc.TemporalBaseline > 0 {
		cfg.Selector.MaxSeparation = time.Duration(jc.TemporalBaseline) * 24 * time.Hour
	}
}

func printResult(cmd *cobra.Command, res *pipeline.Result) error {
	out := runOutput{
		ID:              res.ID,
		NothingSelected: res.NothingSelected(),
		Pairs:           res.Selection.Pairs,
		Skipped:         res.Selection.Skipped,
		Jobs:            res.Jobs,
	}
	if out.Pairs == nil {
		out.Pairs = []*selector.CandidatePair{}
	}
	for _, f := range res.Selection.Failures {
		if out.Failures == nil {
			out.Failures = make(map[string]string)
		}
		out.Failures[f.AOIID] = f.Err.Error()
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
