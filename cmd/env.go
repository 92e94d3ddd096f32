package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/extract"
	"github.com/sells-group/oem-scout/internal/feedback"
	"github.com/sells-group/oem-scout/internal/metrics"
	"github.com/sells-group/oem-scout/internal/pipeline"
	"github.com/sells-group/oem-scout/internal/scorer"
	"github.com/sells-group/oem-scout/internal/store"
	"github.com/sells-group/oem-scout/internal/validate"
	anthropicpkg "github.com/sells-group/oem-scout/pkg/anthropic"
)

// newOracle builds the extraction oracle. Tests replace it.
var newOracle = func(c *config.Config) extract.Oracle {
	return extract.NewAnthropicOracle(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic)
}

// appEnv holds the store and shared collaborators for one command.
type appEnv struct {
	Store    store.Store
	Learner  *feedback.Learner
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates the configuration for mode, opens and migrates the
// store. Callers should defer env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &appEnv{
		Store:    st,
		Learner:  feedback.New(cfg.Feedback, st),
		Metrics:  metrics.New(reg),
		Registry: reg,
	}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "oem_vendors.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newPipeline builds a Pipeline for one run. History is seeded from the
// store so duplicates of earlier runs are caught.
func newPipeline(ctx context.Context, env *appEnv, tracker *pipeline.Tracker) (*pipeline.Pipeline, string, error) {
	sc, err := scorer.New(cfg.Scoring, cfg.Requirements)
	if err != nil {
		return nil, "", err
	}
	history, err := pipeline.LoadHistory(ctx, env.Store, 0)
	if err != nil {
		return nil, "", err
	}

	runID := pipeline.NewRunID()
	p := pipeline.New(cfg, pipeline.Deps{
		Store:     env.Store,
		Extractor: extract.NewExtractor(newOracle(cfg), cfg.Pipeline),
		Validator: validate.New(cfg.Validation, cfg.Requirements),
		Scorer:    sc,
		Learner:   env.Learner,
		History:   history,
		Metrics:   env.Metrics,
		Tracker:   tracker,
	}, runID)

	zap.L().Info("pipeline ready",
		zap.String("run_id", runID),
		zap.Int("history", history.Len()),
		zap.String("store", cfg.Store.Driver),
	)
	return p, runID, nil
}
