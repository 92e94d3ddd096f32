package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/oem-scout/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testCandidate(name, url string, score int) *model.Candidate {
	c := &model.Candidate{
		VendorName:  name,
		Platform:    "alibaba",
		OS:          model.Str("Android 11"),
		WallMount:   model.Bool(true),
		Price:       model.Float(85),
		Score:       score,
		Description: "wall mount signage",
	}
	if url != "" {
		c.ProductURL = model.Str(url)
	}
	return c
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("SaveAndGetCandidate", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		c := testCandidate("Shenzhen TechDisplay Co., Ltd.", "https://techdisplay.cn/product/156", 92)
		inserted, err := s.SaveCandidate(ctx, c)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())

		got, err := s.GetCandidate(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, c.VendorName, got.VendorName)
		assert.Equal(t, 92, got.Score)
		assert.Equal(t, "Android 11", model.Deref(got.OS))
		require.NotNil(t, got.Price)
		assert.InDelta(t, 85.0, *got.Price, 0.001)
		assert.Nil(t, got.HasBattery)
		assert.Nil(t, got.FeedbackAt)
	})

	t.Run("DuplicateSilentlyIgnored", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first := testCandidate("Acme Displays Ltd", "https://acme.example.cn/item/1", 70)
		inserted, err := s.SaveCandidate(ctx, first)
		require.NoError(t, err)
		assert.True(t, inserted)

		dup := testCandidate("Acme Displays Ltd", "https://acme.example.cn/item/1", 80)
		inserted, err = s.SaveCandidate(ctx, dup)
		require.NoError(t, err)
		assert.False(t, inserted)

		// Missing product URLs share the same key.
		_, err = s.SaveCandidate(ctx, testCandidate("Acme Displays Ltd", "", 60))
		require.NoError(t, err)
		inserted, err = s.SaveCandidate(ctx, testCandidate("Acme Displays Ltd", "", 61))
		require.NoError(t, err)
		assert.False(t, inserted)

		all, err := s.ListCandidates(ctx, CandidateFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("GetCandidateNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetCandidate(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListCandidatesFilter", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for i, score := range []int{40, 60, 90} {
			c := testCandidate("Vendor Number Co", "https://v.example.cn/product/"+string(rune('a'+i)), score)
			c.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
			_, err := s.SaveCandidate(ctx, c)
			require.NoError(t, err)
		}

		got, err := s.ListCandidates(ctx, CandidateFilter{MinScore: 50})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 60, got[0].Score)
		assert.Equal(t, 90, got[1].Score)

		got, err = s.ListCandidates(ctx, CandidateFilter{Limit: 1, VendorName: "Vendor Number Co"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 40, got[0].Score)
	})

	t.Run("Feedback", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		c := testCandidate("Acme Displays Ltd", "", 70)
		_, err := s.SaveCandidate(ctx, c)
		require.NoError(t, err)

		at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
		require.NoError(t, s.SetFeedback(ctx, c.ID, model.SentimentPositive, "good price", at))

		got, err := s.GetCandidate(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, model.SentimentPositive, got.Feedback)
		assert.Equal(t, "good price", got.FeedbackReason)
		require.NotNil(t, got.FeedbackAt)
		assert.True(t, at.Equal(*got.FeedbackAt))

		err = s.SetFeedback(ctx, "missing", model.SentimentNegative, "", at)
		assert.ErrorIs(t, err, ErrNotFound)

		st, err := s.FeedbackStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Total)
		assert.Equal(t, 1, st.Positive)
	})

	t.Run("PatternUpsertIncrements", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now().UTC()

		for range 3 {
			require.NoError(t, s.UpsertPattern(ctx, "wall_mount", "yes", model.SentimentPositive, now))
		}
		require.NoError(t, s.UpsertPattern(ctx, "wall_mount", "yes", model.SentimentNegative, now))

		patterns, err := s.ListPatterns(ctx, 1)
		require.NoError(t, err)
		require.Len(t, patterns, 2)
		assert.Equal(t, model.SentimentPositive, patterns[0].Sentiment)
		assert.Equal(t, 3, patterns[0].Count)
		assert.Equal(t, 1, patterns[1].Count)

		patterns, err = s.ListPatterns(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, patterns, 1)

		st, err := s.FeedbackStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Patterns)
	})

	t.Run("Interactions", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in, err := s.GetInteraction(ctx, "Nobody Ltd")
		require.NoError(t, err)
		assert.Nil(t, in)

		at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.RecordInteraction(ctx, "Acme Displays Ltd", model.Int(75), "", at))
		require.NoError(t, s.RecordInteraction(ctx, "Acme Displays Ltd", nil, "not interested", at.Add(48*time.Hour)))

		in, err = s.GetInteraction(ctx, "Acme Displays Ltd")
		require.NoError(t, err)
		require.NotNil(t, in)
		assert.Equal(t, 2, in.EmailsSent)
		require.NotNil(t, in.LastScore)
		assert.Equal(t, 75, *in.LastScore)
		assert.Equal(t, "not interested", in.LastResponse)
		require.NotNil(t, in.LastEmailAt)
		assert.True(t, at.Add(48*time.Hour).Equal(*in.LastEmailAt))
	})

	t.Run("InteractionFallsBackToCandidateScore", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, err := s.SaveCandidate(ctx, testCandidate("Lowball Screens Co", "", 20))
		require.NoError(t, err)

		in, err := s.GetInteraction(ctx, "Lowball Screens Co")
		require.NoError(t, err)
		require.NotNil(t, in)
		assert.Zero(t, in.EmailsSent)
		require.NotNil(t, in.LastScore)
		assert.Equal(t, 20, *in.LastScore)
	})

	t.Run("ValidationLogs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

		var entries []model.AuditEntry
		for i, name := range []string{"A Vendor Ltd", "B Vendor Ltd", "C Vendor Ltd"} {
			entries = append(entries, model.AuditEntry{
				ID:         name,
				VendorName: name,
				At:         base.Add(time.Duration(i) * time.Minute),
				Result: model.ValidationResult{
					Passed: i != 1,
					Layers: []model.LayerResult{{Layer: model.LayerFormat, Passed: i != 1, Reason: "r", Confidence: 1}},
				},
			})
		}
		require.NoError(t, s.SaveValidationLogs(ctx, entries))
		require.NoError(t, s.SaveValidationLogs(ctx, nil))

		got, err := s.ListValidationLogs(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "B Vendor Ltd", got[0].VendorName)
		assert.False(t, got[0].Result.Passed)
		assert.Equal(t, "C Vendor Ltd", got[1].VendorName)

		got, err = s.ListValidationLogs(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}

func TestSQLite_ConcurrentPatternUpserts(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.UpsertPattern(ctx, "city", "shenzhen", model.SentimentPositive, time.Now()))
		}()
	}
	wg.Wait()

	patterns, err := s.ListPatterns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 20, patterns[0].Count)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	s := newTestSQLiteStore(t)
	assert.NoError(t, s.Migrate(context.Background()))
}
