package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/feed"
	"github.com/sells-group/oem-scout/internal/pipeline"
)

var (
	runFeed    string
	runKeyword string
	runJSON    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run discovery over a listing feed",
	Long:  "Reads listings from a JSON, JSONL, HTML or text file (or a directory of them), runs each through extraction, validation and scoring, and saves the candidates that pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := pipeline.NewTracker()
		s, err := runFeedOnce(ctx, env, tracker, runFeed, runKeyword)
		if err != nil && s.Processed == 0 {
			return err
		}

		out := cmd.OutOrStdout()
		if runJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(s); encErr != nil {
				return eris.Wrap(encErr, "encode summary")
			}
			return err
		}
		printSummary(out, s)
		fmt.Fprintln(out)
		fmt.Fprint(out, tracker.Report())
		return err
	},
}

// runFeedOnce loads the feed at path and runs every listing through a fresh
// pipeline.
func runFeedOnce(ctx context.Context, env *appEnv, tracker *pipeline.Tracker, path, keyword string) (pipeline.Summary, error) {
	listings, err := feed.Load(ctx, path, keyword)
	if err != nil {
		return pipeline.Summary{}, err
	}
	zap.L().Info("feed loaded", zap.String("path", path), zap.Int("listings", len(listings)))

	p, _, err := newPipeline(ctx, env, tracker)
	if err != nil {
		return pipeline.Summary{}, err
	}
	return pipeline.NewRunner(p).Run(ctx, listings)
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "Run %s: %d listings in %s\n", s.RunID, s.Processed, s.Duration.Round(time.Millisecond))
	for _, st := range []pipeline.Status{
		pipeline.StatusSaved,
		pipeline.StatusSaveSkipped,
		pipeline.StatusValidationFailed,
		pipeline.StatusScoringFailed,
		pipeline.StatusExtractionFailed,
		pipeline.StatusSkipped,
		pipeline.StatusSaveFailed,
	} {
		if n := s.ByStatus[st]; n > 0 {
			fmt.Fprintf(w, "  %-18s %d\n", st, n)
		}
	}

	saved := s.Saved()
	if len(saved) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tVENDOR\tPRICE\tMOQ\tID")
	for _, c := range saved {
		price, moq := "-", "-"
		if c.Price != nil {
			price = fmt.Sprintf("$%g", *c.Price)
		}
		if c.MOQ != nil {
			moq = fmt.Sprintf("%d", *c.MOQ)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.Score, c.VendorName, price, moq, c.ID)
	}
	_ = tw.Flush()
}

func init() {
	runCmd.Flags().StringVar(&runFeed, "feed", "", "listing file or directory (required)")
	runCmd.Flags().StringVar(&runKeyword, "keyword", "", "search keyword applied to listings without one")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run summary as JSON")
	_ = runCmd.MarkFlagRequired("feed")
	rootCmd.AddCommand(runCmd)
}
