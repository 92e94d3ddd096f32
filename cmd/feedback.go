package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/oem-scout/internal/feedback"
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record human judgments and inspect learned patterns",
}

var feedbackRecordCmd = &cobra.Command{
	Use:   "record <candidate-id> <verdict> [reason...]",
	Short: `Record a judgment such as "relevant - good price" or "not relevant: has battery"`,
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sent, reason, err := feedback.ParseFeedback(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		env, err := initEnv(ctx, "feedback")
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.Learner.RecordFeedback(ctx, args[0], sent, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s feedback for %s (%d patterns updated)\n", sent, args[0], n)
		return nil
	},
}

var feedbackPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List learned feature patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "feedback")
		if err != nil {
			return err
		}
		defer env.Close()

		patterns, err := env.Learner.LearnedPatterns(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(patterns) == 0 {
			fmt.Fprintln(out, "No patterns learned yet.")
			return nil
		}
		for _, p := range patterns {
			fmt.Fprintf(out, "%-8s %-16s %-24s x%d\n", p.Sentiment, p.FeatureType, p.FeatureValue, p.Count)
		}
		return nil
	},
}

var feedbackRequestCmd = &cobra.Command{
	Use:   "request <candidate-id>",
	Short: "Render a candidate for human review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "feedback")
		if err != nil {
			return err
		}
		defer env.Close()

		text, err := env.Learner.RequestFeedback(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	},
}

var feedbackSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show feedback totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "feedback")
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Learner.Summary(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func init() {
	feedbackCmd.AddCommand(feedbackRecordCmd, feedbackPatternsCmd, feedbackRequestCmd, feedbackSummaryCmd)
	rootCmd.AddCommand(feedbackCmd)
}
