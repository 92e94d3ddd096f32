package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/oem-scout/internal/db"
	"github.com/sells-group/oem-scout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	insertCandidateSQL = mustUpsert(db.UpsertConfig{
		Table:        "candidates",
		Columns:      []string{"id", "vendor_name", "product_url", "platform", "score", "data", "created_at"},
		ConflictKeys: []string{"vendor_name", "product_url"},
	})
	upsertPatternSQL = mustUpsert(db.UpsertConfig{
		Table:        "feedback_patterns",
		Columns:      []string{"feature_type", "feature_value", "sentiment", "count", "last_seen"},
		ConflictKeys: []string{"feature_type", "feature_value", "sentiment"},
		Set: map[string]string{
			"count":     `"feedback_patterns"."count" + 1`,
			"last_seen": db.Excluded,
		},
		SetOrder: []string{"count", "last_seen"},
	})
	upsertInteractionSQL = mustUpsert(db.UpsertConfig{
		Table:        "interactions",
		Columns:      []string{"vendor_name", "emails_sent", "last_email_at", "last_score", "last_response"},
		ConflictKeys: []string{"vendor_name"},
		Set: map[string]string{
			"emails_sent":   `"interactions"."emails_sent" + 1`,
			"last_email_at": db.Excluded,
			"last_score":    `COALESCE(EXCLUDED."last_score", "interactions"."last_score")`,
			"last_response": db.Excluded,
		},
		SetOrder: []string{"emails_sent", "last_email_at", "last_score", "last_response"},
	})
)

const selectCandidateSQL = `SELECT data, feedback, feedback_reason, feedback_at FROM candidates`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_candidate":   insertCandidateSQL,
	"get_candidate":      selectCandidateSQL + ` WHERE id = $1`,
	"upsert_pattern":     upsertPatternSQL,
	"upsert_interaction": upsertInteractionSQL,
}

func mustUpsert(cfg db.UpsertConfig) string {
	q, err := db.UpsertSQL(cfg)
	if err != nil {
		panic(err)
	}
	return q
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	vendor_name     TEXT NOT NULL,
	product_url     TEXT NOT NULL DEFAULT '',
	platform        TEXT NOT NULL DEFAULT '',
	score           INTEGER NOT NULL DEFAULT 0,
	data            JSONB NOT NULL,
	feedback        TEXT NOT NULL DEFAULT '',
	feedback_reason TEXT NOT NULL DEFAULT '',
	feedback_at     TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (vendor_name, product_url)
);

CREATE TABLE IF NOT EXISTS validation_logs (
	id           TEXT PRIMARY KEY,
	vendor_name  TEXT NOT NULL,
	passed       BOOLEAN NOT NULL,
	failed_layer TEXT NOT NULL DEFAULT '',
	result       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS feedback_patterns (
	feature_type  TEXT NOT NULL,
	feature_value TEXT NOT NULL,
	sentiment     TEXT NOT NULL,
	count         INTEGER NOT NULL DEFAULT 1,
	last_seen     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (feature_type, feature_value, sentiment)
);

CREATE TABLE IF NOT EXISTS interactions (
	vendor_name   TEXT PRIMARY KEY,
	emails_sent   INTEGER NOT NULL DEFAULT 0,
	last_email_at TIMESTAMPTZ,
	last_score    INTEGER,
	last_response TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_candidates_vendor ON candidates(vendor_name);
CREATE INDEX IF NOT EXISTS idx_candidates_score ON candidates(score);
CREATE INDEX IF NOT EXISTS idx_validation_logs_created_at ON validation_logs(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveCandidate(ctx context.Context, c *model.Candidate) (bool, error) {
	prepareCandidate(c)
	data, err := json.Marshal(c)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal candidate")
	}

	tag, err := s.pool.Exec(ctx, insertCandidateSQL,
		c.ID, c.VendorName, model.Deref(c.ProductURL), c.Platform, c.Score, data, c.CreatedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert candidate %s", c.VendorName)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.pool.QueryRow(ctx, selectCandidateSQL+` WHERE id = $1`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: candidate %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get candidate %s", id)
	}
	return c, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := selectCandidateSQL + ` WHERE score >= $1`
	args := []any{filter.MinScore}
	if filter.VendorName != "" {
		args = append(args, filter.VendorName)
		query += ` AND vendor_name = $2`
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func (s *PostgresStore) SetFeedback(ctx context.Context, id string, sent model.Sentiment, reason string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidates SET feedback = $1, feedback_reason = $2, feedback_at = $3 WHERE id = $4`,
		string(sent), reason, at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set feedback %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "candidate %s", id)
	}
	return nil
}

func (s *PostgresStore) UpsertPattern(ctx context.Context, featureType, featureValue string, sent model.Sentiment, at time.Time) error {
	_, err := s.pool.Exec(ctx, upsertPatternSQL, featureType, featureValue, string(sent), 1, at.UTC())
	return eris.Wrapf(err, "postgres: upsert pattern %s=%s", featureType, featureValue)
}

func (s *PostgresStore) ListPatterns(ctx context.Context, minSupport int) ([]model.Pattern, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT feature_type, feature_value, sentiment, count, last_seen FROM feedback_patterns
		 WHERE count >= $1
		 ORDER BY count DESC, feature_type, feature_value`,
		minSupport,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list patterns")
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var p model.Pattern
		var sent string
		if err := rows.Scan(&p.FeatureType, &p.FeatureValue, &sent, &p.Count, &p.LastSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pattern")
		}
		p.Sentiment = model.Sentiment(sent)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate patterns")
}

func (s *PostgresStore) FeedbackStats(ctx context.Context) (model.FeedbackStats, error) {
	var st model.FeedbackStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE feedback = 'positive'),
		        COUNT(*) FILTER (WHERE feedback = 'negative'),
		        COUNT(*) FILTER (WHERE feedback = 'neutral'),
		        (SELECT COUNT(*) FROM feedback_patterns)
		 FROM candidates WHERE feedback <> ''`,
	).Scan(&st.Total, &st.Positive, &st.Negative, &st.Neutral, &st.Patterns)
	if err != nil {
		return st, eris.Wrap(err, "postgres: feedback stats")
	}
	return st, nil
}

func (s *PostgresStore) RecordInteraction(ctx context.Context, vendorName string, score *int, response string, at time.Time) error {
	_, err := s.pool.Exec(ctx, upsertInteractionSQL, vendorName, 1, at.UTC(), nullInt(score), response)
	return eris.Wrapf(err, "postgres: record interaction %s", vendorName)
}

func (s *PostgresStore) GetInteraction(ctx context.Context, vendorName string) (*model.Interaction, error) {
	var (
		in        = model.Interaction{VendorName: vendorName}
		found     bool
		lastEmail sql.NullTime
		lastScore sql.NullInt64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT emails_sent, last_email_at, last_score, last_response FROM interactions WHERE vendor_name = $1`,
		vendorName,
	).Scan(&in.EmailsSent, &lastEmail, &lastScore, &in.LastResponse)
	switch {
	case err == nil:
		found = true
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, eris.Wrapf(err, "postgres: get interaction %s", vendorName)
	}

	if !lastScore.Valid {
		err = s.pool.QueryRow(ctx,
			`SELECT score FROM candidates WHERE vendor_name = $1 ORDER BY created_at DESC LIMIT 1`,
			vendorName,
		).Scan(&lastScore)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, eris.Wrapf(err, "postgres: last score %s", vendorName)
		}
	}

	if !found {
		return nil, nil
	}
	in.LastEmailAt = timePtr(lastEmail)
	in.LastScore = intPtr(lastScore)
	return &in, nil
}

var validationLogColumns = []string{"id", "vendor_name", "passed", "failed_layer", "result", "created_at"}

func (s *PostgresStore) SaveValidationLogs(ctx context.Context, entries []model.AuditEntry) error {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		result, err := json.Marshal(e.Result)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal validation result")
		}
		rows = append(rows, []any{e.ID, e.VendorName, e.Result.Passed, failedLayer(e.Result), result, e.At.UTC()})
	}
	_, err := db.CopyFrom(ctx, s.pool, "validation_logs", validationLogColumns, rows)
	return eris.Wrap(err, "postgres: save validation logs")
}

func (s *PostgresStore) ListValidationLogs(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	query := `SELECT id, vendor_name, result, created_at FROM validation_logs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list validation logs")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var result []byte
		if err := rows.Scan(&e.ID, &e.VendorName, &result, &e.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan validation log")
		}
		if err := json.Unmarshal(result, &e.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal validation result")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate validation logs")
	}
	slices.Reverse(out)
	return out, nil
}
