package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/oem-scout/internal/extract"
	"github.com/sells-group/oem-scout/internal/feed"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/pipeline"
	"github.com/sells-group/oem-scout/internal/scorer"
	"github.com/sells-group/oem-scout/internal/validate"
)

var validateLimit int

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Inspect validation results",
}

var validateReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the most recent validation runs with per-layer verdicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "validate")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Store.ListValidationLogs(ctx, validateLimit)
		if err != nil {
			return err
		}
		log := validate.NewAuditLog(max(len(entries), 1))
		for _, e := range entries {
			log.Add(e)
		}
		fmt.Fprint(cmd.OutOrStdout(), log.Report(validateLimit))
		return nil
	},
}

var validateListingCmd = &cobra.Command{
	Use:   "listing <path>",
	Short: "Extract, validate and score listings without saving them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		listings, err := feed.Load(ctx, args[0], "")
		if err != nil {
			return err
		}
		return dryRun(ctx, cmd.OutOrStdout(), env, listings)
	},
}

// dryRun prints each listing's validation and score against the stored
// history without touching the store.
func dryRun(ctx context.Context, w io.Writer, env *appEnv, listings []feed.Listing) error {
	sc, err := scorer.New(cfg.Scoring, cfg.Requirements)
	if err != nil {
		return err
	}
	history, err := pipeline.LoadHistory(ctx, env.Store, 0)
	if err != nil {
		return err
	}
	ex := extract.NewExtractor(newOracle(cfg), cfg.Pipeline)
	v := validate.New(cfg.Validation, cfg.Requirements)

	for i, l := range listings {
		raw, err := ex.Extract(ctx, extract.Input{Text: l.Text, Platform: l.Platform, Keyword: l.Keyword})
		if err != nil {
			fmt.Fprintf(w, "[%d] extraction failed: %v\n", i+1, err)
			continue
		}
		admitted, vr := v.Validate(raw, history.Snapshot())
		name, _ := raw.Fields[model.FieldVendorName].(string)
		fmt.Fprintf(w, "[%d] %s\n", i+1, orUnnamed(name))
		for _, layer := range vr.Layers {
			mark := "✓"
			if !layer.Passed {
				mark = "✗"
			}
			fmt.Fprintf(w, "  %s %s: %s (confidence %.2f)\n", mark, layer.Layer, layer.Reason, layer.Confidence)
		}
		if !admitted.OK() {
			continue
		}
		learned, err := env.Learner.ScoringBoost(ctx, admitted.Candidate())
		if err != nil {
			learned = 0
		}
		b, err := sc.Score(admitted, learned)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  score %d (%d/%d points, learned %+d)\n", b.Score, b.Points, b.MaxPoints, b.Learned)
		if c := admitted.Candidate(); len(c.Quality.Issues) > 0 {
			fmt.Fprintf(w, "  quality %.2f: %v\n", c.Quality.Confidence, c.Quality.Issues)
		}
	}
	return nil
}

func orUnnamed(s string) string {
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func init() {
	validateReportCmd.Flags().IntVar(&validateLimit, "limit", 20, "number of recent validations to show (0 for all)")
	validateCmd.AddCommand(validateReportCmd, validateListingCmd)
	rootCmd.AddCommand(validateCmd)
}
