package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	outreachScore    int
	outreachResponse string
)

var outreachCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Track vendor contact history",
}

var outreachLogCmd = &cobra.Command{
	Use:   "log <vendor-name>",
	Short: "Record that a vendor was contacted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "outreach")
		if err != nil {
			return err
		}
		defer env.Close()

		var score *int
		if cmd.Flags().Changed("score") {
			score = &outreachScore
		}
		if err := env.Store.RecordInteraction(ctx, args[0], score, outreachResponse, time.Now()); err != nil {
			return err
		}
		in, err := env.Store.GetInteraction(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d contact(s) recorded\n", args[0], in.EmailsSent)
		return nil
	},
}

var outreachCheckCmd = &cobra.Command{
	Use:   "check <vendor-name>",
	Short: "Report whether a vendor may be contacted again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "outreach")
		if err != nil {
			return err
		}
		defer env.Close()

		ok, err := env.Learner.ShouldRetry(ctx, args[0])
		if err != nil {
			return err
		}
		verdict := "may be contacted"
		if !ok {
			verdict = "should not be contacted again"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[0], verdict)
		return nil
	},
}

func init() {
	outreachLogCmd.Flags().IntVar(&outreachScore, "score", 0, "candidate score at the time of contact")
	outreachLogCmd.Flags().StringVar(&outreachResponse, "response", "", "vendor's reply, if any")
	outreachCmd.AddCommand(outreachLogCmd, outreachCheckCmd)
	rootCmd.AddCommand(outreachCmd)
}
