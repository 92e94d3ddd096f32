package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/monitoring"
	"github.com/sells-group/oem-scout/internal/pipeline"
	"github.com/sells-group/oem-scout/internal/server"
)

// discoveryRunning is set while a scheduled run is in flight.
var discoveryRunning atomic.Bool

var (
	servePort    int
	serveFeed    string
	serveKeyword string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the feedback webhook and the scheduled discovery run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := pipeline.NewTracker()

		feedPath := serveFeed
		if feedPath == "" {
			feedPath = cfg.Schedule.FeedPath
		}
		if feedPath != "" && cfg.Schedule.Cron != "" {
			c, err := newScheduler(ctx, env, tracker, cfg.Schedule.Cron, feedPath, serveKeyword)
			if err != nil {
				return err
			}
			c.Start()
			defer func() { <-c.Stop().Done() }()
		} else {
			zap.L().Info("no feed configured, scheduled discovery disabled")
		}

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Store, tracker),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		).SkipWhile(discoveryRunning.Load)
		go checker.Run(ctx)

		srv := server.New(cfg.Server, server.Deps{
			Store:    env.Store,
			Learner:  env.Learner,
			Tracker:  tracker,
			Metrics:  env.Metrics,
			Gatherer: env.Registry,
		})
		return srv.ListenAndServe(ctx, port)
	},
}

// newScheduler registers the discovery run on a standard five-field cron
// spec. Overlapping runs are skipped.
func newScheduler(ctx context.Context, env *appEnv, tracker *pipeline.Tracker, spec, feedPath, keyword string) (*cron.Cron, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		log := zap.L().With(zap.String("phase", "schedule"), zap.String("feed", feedPath))
		log.Info("scheduled run starting")
		discoveryRunning.Store(true)
		defer discoveryRunning.Store(false)
		s, err := runFeedOnce(ctx, env, tracker, feedPath, keyword)
		if err != nil {
			log.Error("scheduled run failed", zap.Error(err))
			return
		}
		log.Info("scheduled run complete",
			zap.String("run_id", s.RunID),
			zap.Int("processed", s.Processed),
			zap.Int("saved", len(s.Saved())),
		)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: parse cron %q", spec)
	}
	zap.L().Info("scheduled discovery enabled", zap.String("cron", spec), zap.String("feed", feedPath))
	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveFeed, "feed", "", "listing file or directory for scheduled runs (default from config)")
	serveCmd.Flags().StringVar(&serveKeyword, "keyword", "", "search keyword applied to scheduled listings")
	rootCmd.AddCommand(serveCmd)
}
