package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/scorer"
)

var (
	cfg         *config.Config
	profilePath string
)

var rootCmd = &cobra.Command{
	Use:   "oem-scout",
	Short: "OEM/ODM vendor discovery with validated extraction",
	Long:  "Extracts vendor attributes from marketplace listings, rejects hallucinated or off-spec candidates through layered validation, scores the rest and learns from human feedback.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if profilePath != "" {
			p, err := config.LoadProfile(profilePath)
			if err != nil {
				return err
			}
			c.ApplyProfile(p)
		}
		if err := scorer.ValidateConfig(c.Scoring); err != nil {
			return err
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "product profile YAML overriding requirements and weights")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
