package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/oem-scout/internal/store"
)

var (
	candidatesMinScore int
	candidatesLimit    int
	candidatesVendor   string
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List saved candidates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "candidates")
		if err != nil {
			return err
		}
		defer env.Close()

		list, err := env.Store.ListCandidates(ctx, store.CandidateFilter{
			VendorName: candidatesVendor,
			MinScore:   candidatesMinScore,
			Limit:      candidatesLimit,
		})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tVENDOR\tPLATFORM\tFEEDBACK\tID")
		for _, c := range list {
			fb := string(c.Feedback)
			if fb == "" {
				fb = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.Score, c.VendorName, orDash(c.Platform), fb, c.ID)
		}
		return tw.Flush()
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	candidatesCmd.Flags().IntVar(&candidatesMinScore, "min-score", 0, "minimum score")
	candidatesCmd.Flags().IntVar(&candidatesLimit, "limit", 50, "maximum rows")
	candidatesCmd.Flags().StringVar(&candidatesVendor, "vendor", "", "exact vendor name")
	rootCmd.AddCommand(candidatesCmd)
}
