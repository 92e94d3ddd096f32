package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/oem-scout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One writer connection; pragmas below apply per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS candidates (
	id              TEXT PRIMARY KEY,
	vendor_name     TEXT NOT NULL,
	product_url     TEXT NOT NULL DEFAULT '',
	platform        TEXT NOT NULL DEFAULT '',
	score           INTEGER NOT NULL DEFAULT 0,
	data            TEXT NOT NULL,
	feedback        TEXT NOT NULL DEFAULT '',
	feedback_reason TEXT NOT NULL DEFAULT '',
	feedback_at     DATETIME,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (vendor_name, product_url)
);

CREATE TABLE IF NOT EXISTS validation_logs (
	id           TEXT PRIMARY KEY,
	vendor_name  TEXT NOT NULL,
	passed       INTEGER NOT NULL,
	failed_layer TEXT NOT NULL DEFAULT '',
	result       TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS feedback_patterns (
	feature_type  TEXT NOT NULL,
	feature_value TEXT NOT NULL,
	sentiment     TEXT NOT NULL,
	count         INTEGER NOT NULL DEFAULT 1,
	last_seen     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (feature_type, feature_value, sentiment)
);

CREATE TABLE IF NOT EXISTS interactions (
	vendor_name   TEXT PRIMARY KEY,
	emails_sent   INTEGER NOT NULL DEFAULT 0,
	last_email_at DATETIME,
	last_score    INTEGER,
	last_response TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_candidates_vendor ON candidates(vendor_name);
CREATE INDEX IF NOT EXISTS idx_candidates_score ON candidates(score);
CREATE INDEX IF NOT EXISTS idx_validation_logs_created_at ON validation_logs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveCandidate(ctx context.Context, c *model.Candidate) (bool, error) {
	prepareCandidate(c)
	data, err := json.Marshal(c)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal candidate")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO candidates (id, vendor_name, product_url, platform, score, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.VendorName, model.Deref(c.ProductURL), c.Platform, c.Score, string(data), c.CreatedAt.UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert candidate %s", c.VendorName)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data, feedback, feedback_reason, feedback_at FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: candidate %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get candidate %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, filter CandidateFilter) ([]model.Candidate, error) {
	query := `SELECT data, feedback, feedback_reason, feedback_at FROM candidates WHERE score >= ?`
	args := []any{filter.MinScore}
	if filter.VendorName != "" {
		query += ` AND vendor_name = ?`
		args = append(args, filter.VendorName)
	}
	query += ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list candidates")
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) SetFeedback(ctx context.Context, id string, sent model.Sentiment, reason string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidates SET feedback = ?, feedback_reason = ?, feedback_at = ? WHERE id = ?`,
		string(sent), reason, at.UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set feedback %s", id)
	}
	return checkRowsAffected(res, "candidate", id)
}

func (s *SQLiteStore) UpsertPattern(ctx context.Context, featureType, featureValue string, sent model.Sentiment, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback_patterns (feature_type, feature_value, sentiment, count, last_seen)
		 VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT(feature_type, feature_value, sentiment) DO UPDATE SET
		 	count = count + 1,
		 	last_seen = excluded.last_seen`,
		featureType, featureValue, string(sent), at.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert pattern %s=%s", featureType, featureValue)
}

func (s *SQLiteStore) ListPatterns(ctx context.Context, minSupport int) ([]model.Pattern, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature_type, feature_value, sentiment, count, last_seen FROM feedback_patterns
		 WHERE count >= ?
		 ORDER BY count DESC, feature_type, feature_value`,
		minSupport,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patterns")
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var p model.Pattern
		var sent string
		if err := rows.Scan(&p.FeatureType, &p.FeatureValue, &sent, &p.Count, &p.LastSeen); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		p.Sentiment = model.Sentiment(sent)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate patterns")
}

func (s *SQLiteStore) FeedbackStats(ctx context.Context) (model.FeedbackStats, error) {
	var st model.FeedbackStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN feedback = 'positive' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN feedback = 'negative' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN feedback = 'neutral' THEN 1 ELSE 0 END), 0)
		 FROM candidates WHERE feedback <> ''`,
	).Scan(&st.Total, &st.Positive, &st.Negative, &st.Neutral)
	if err != nil {
		return st, eris.Wrap(err, "sqlite: feedback stats")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_patterns`).Scan(&st.Patterns); err != nil {
		return st, eris.Wrap(err, "sqlite: count patterns")
	}
	return st, nil
}

func (s *SQLiteStore) RecordInteraction(ctx context.Context, vendorName string, score *int, response string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (vendor_name, emails_sent, last_email_at, last_score, last_response)
		 VALUES (?, 1, ?, ?, ?)
		 ON CONFLICT(vendor_name) DO UPDATE SET
		 	emails_sent = emails_sent + 1,
		 	last_email_at = excluded.last_email_at,
		 	last_score = COALESCE(excluded.last_score, last_score),
		 	last_response = excluded.last_response`,
		vendorName, at.UTC(), nullInt(score), response,
	)
	return eris.Wrapf(err, "sqlite: record interaction %s", vendorName)
}

func (s *SQLiteStore) GetInteraction(ctx context.Context, vendorName string) (*model.Interaction, error) {
	var (
		in        = model.Interaction{VendorName: vendorName}
		found     bool
		lastEmail sql.NullTime
		lastScore sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT emails_sent, last_email_at, last_score, last_response FROM interactions WHERE vendor_name = ?`,
		vendorName,
	).Scan(&in.EmailsSent, &lastEmail, &lastScore, &in.LastResponse)
	switch {
	case err == nil:
		found = true
	case !errors.Is(err, sql.ErrNoRows):
		return nil, eris.Wrapf(err, "sqlite: get interaction %s", vendorName)
	}

	if !lastScore.Valid {
		err = s.db.QueryRowContext(ctx,
			`SELECT score FROM candidates WHERE vendor_name = ? ORDER BY created_at DESC LIMIT 1`,
			vendorName,
		).Scan(&lastScore)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, sql.ErrNoRows):
			return nil, eris.Wrapf(err, "sqlite: last score %s", vendorName)
		}
	}

	if !found {
		return nil, nil
	}
	in.LastEmailAt = timePtr(lastEmail)
	in.LastScore = intPtr(lastScore)
	return &in, nil
}

func (s *SQLiteStore) SaveValidationLogs(ctx context.Context, entries []model.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO validation_logs (id, vendor_name, passed, failed_layer, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare validation log insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, e := range entries {
		result, err := json.Marshal(e.Result)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal validation result")
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.VendorName, e.Result.Passed, failedLayer(e.Result), string(result), e.At.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: insert validation log %s", e.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit validation logs")
}

func (s *SQLiteStore) ListValidationLogs(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, vendor_name, result, created_at FROM validation_logs
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validation logs")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var result string
		if err := rows.Scan(&e.ID, &e.VendorName, &result, &e.At); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation log")
		}
		if err := json.Unmarshal([]byte(result), &e.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal validation result")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate validation logs")
	}
	slices.Reverse(out)
	return out, nil
}

// scannable is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type scannable interface {
	Scan(dest ...any) error
}

func scanCandidate(row scannable) (*model.Candidate, error) {
	var (
		data     string
		feedback string
		reason   string
		at       sql.NullTime
	)
	if err := row.Scan(&data, &feedback, &reason, &at); err != nil {
		return nil, err
	}
	var c model.Candidate
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, eris.Wrap(err, "unmarshal candidate")
	}
	c.Feedback = model.Sentiment(feedback)
	c.FeedbackReason = reason
	c.FeedbackAt = timePtr(at)
	return &c, nil
}

// prepareCandidate assigns an ID and creation time when missing.
func prepareCandidate(c *model.Candidate) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
