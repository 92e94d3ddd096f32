package feedback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/model"
)

// memStore is an in-memory Store.
type memStore struct {
	mu           sync.Mutex
	candidates   map[string]*model.Candidate
	patterns     map[string]*model.Pattern
	interactions map[string]*model.Interaction
}

func newMemStore(cs ...*model.Candidate) *memStore {
	s := &memStore{
		candidates:   make(map[string]*model.Candidate),
		patterns:     make(map[string]*model.Pattern),
		interactions: make(map[string]*model.Interaction),
	}
	for _, c := range cs {
		s.candidates[c.ID] = c
	}
	return s
}

func (s *memStore) GetCandidate(_ context.Context, id string) (*model.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (s *memStore) SetFeedback(_ context.Context, id string, sent model.Sentiment, reason string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.candidates[id]
	c.Feedback, c.FeedbackReason, c.FeedbackAt = sent, reason, &at
	return nil
}

func (s *memStore) UpsertPattern(_ context.Context, typ, val string, sent model.Sentiment, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s", typ, val, sent)
	if p, ok := s.patterns[key]; ok {
		p.Count++
		p.LastSeen = at
		return nil
	}
	s.patterns[key] = &model.Pattern{FeatureType: typ, FeatureValue: val, Sentiment: sent, Count: 1, LastSeen: at}
	return nil
}

func (s *memStore) ListPatterns(_ context.Context, minSupport int) ([]model.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Pattern
	for _, p := range s.patterns {
		if p.Count >= minSupport {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (s *memStore) GetInteraction(_ context.Context, name string) (*model.Interaction, error) {
	return s.interactions[name], nil
}

func (s *memStore) FeedbackStats(_ context.Context) (model.FeedbackStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.FeedbackStats
	for _, c := range s.candidates {
		switch c.Feedback {
		case model.SentimentPositive:
			st.Positive++
		case model.SentimentNegative:
			st.Negative++
		case model.SentimentNeutral:
			st.Neutral++
		default:
			continue
		}
		st.Total++
	}
	st.Patterns = len(s.patterns)
	return st, nil
}

func (s *memStore) count(typ, val string, sent model.Sentiment) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.patterns[fmt.Sprintf("%s|%s|%s", typ, val, sent)]; ok {
		return p.Count
	}
	return 0
}

func wallCandidate(id, name string) *model.Candidate {
	return &model.Candidate{
		ID:         id,
		VendorName: name,
		Platform:   "alibaba",
		WallMount:  model.Bool(true),
	}
}

func defaultFeedbackConfig() config.FeedbackConfig {
	return config.Defaults().Feedback
}

func TestRecordFeedback_LearnsFeatures(t *testing.T) {
	c := &model.Candidate{
		ID:          "c1",
		VendorName:  "Shenzhen TechDisplay Co., Ltd.",
		Platform:    "alibaba",
		ProductType: model.Str("Digital Signage"),
		OS:          model.Str("Android 11"),
		WallMount:   model.Bool(true),
		HasBattery:  model.Bool(false),
		Price:       model.Float(85),
		MOQ:         model.Int(100),
	}
	st := newMemStore(c)
	l := New(defaultFeedbackConfig(), st)

	n, err := l.RecordFeedback(context.Background(), "c1", model.SentimentPositive, "great price, VESA mounting")
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	pos := model.SentimentPositive
	assert.Equal(t, 1, st.count(FeatureProductType, "digital signage", pos))
	assert.Equal(t, 1, st.count(FeatureOS, "android 11", pos))
	assert.Equal(t, 1, st.count(FeatureWallMount, "yes", pos))
	assert.Equal(t, 1, st.count(FeatureHasBattery, "no", pos))
	assert.Equal(t, 1, st.count(FeaturePlatform, "alibaba", pos))
	assert.Equal(t, 1, st.count(FeaturePriceBucket, "70_to_90", pos))
	assert.Equal(t, 1, st.count(FeatureMOQBucket, "under_100", pos))
	assert.Equal(t, 1, st.count(FeatureCity, "shenzhen", pos))
	assert.Equal(t, 1, st.count(FeatureReasonKeyword, "price", pos))
	assert.Equal(t, 1, st.count(FeatureReasonKeyword, "mounting", pos))

	assert.Equal(t, model.SentimentPositive, c.Feedback)
	assert.NotNil(t, c.FeedbackAt)

	_, err = l.RecordFeedback(context.Background(), "c1", model.SentimentPositive, "")
	require.NoError(t, err)
	assert.Equal(t, 2, st.count(FeatureWallMount, "yes", pos))
}

func TestRecordFeedback_NeutralNotLearned(t *testing.T) {
	st := newMemStore(wallCandidate("c1", "Acme Displays Ltd"))
	l := New(defaultFeedbackConfig(), st)

	n, err := l.RecordFeedback(context.Background(), "c1", model.SentimentNeutral, "maybe later")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, st.patterns)

	sum, err := l.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackStats{Total: 1, Neutral: 1}, sum)
}

func TestRecordFeedback_UnknownFieldsNotLearned(t *testing.T) {
	st := newMemStore(&model.Candidate{ID: "c1", VendorName: "Acme Displays Ltd"})
	l := New(defaultFeedbackConfig(), st)

	n, err := l.RecordFeedback(context.Background(), "c1", model.SentimentNegative, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

// Three positive judgments on wall-mount candidates must lift an unrelated
// wall-mount candidate; negative judgments must lower it.
func TestScoringBoost_LearnsFromJudgments(t *testing.T) {
	for _, tc := range []struct {
		name string
		sent model.Sentiment
		sign int
	}{
		{"positive", model.SentimentPositive, 1},
		{"negative", model.SentimentNegative, -1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			st := newMemStore(
				wallCandidate("a", "Alpha Signage Ltd"),
				wallCandidate("b", "Beta Kiosk Co"),
				wallCandidate("c", "Gamma Panels Inc"),
			)
			l := New(defaultFeedbackConfig(), st)
			ctx := context.Background()

			fresh := &model.Candidate{VendorName: "Unrelated Vendor Co", WallMount: model.Bool(true)}
			before, err := l.ScoringBoost(ctx, fresh)
			require.NoError(t, err)
			assert.Zero(t, before)

			for _, id := range []string{"a", "b", "c"} {
				_, err := l.RecordFeedback(ctx, id, tc.sent, "")
				require.NoError(t, err)
			}

			after, err := l.ScoringBoost(ctx, fresh)
			require.NoError(t, err)
			assert.Equal(t, tc.sign*9, after)
		})
	}
}

func TestBoost(t *testing.T) {
	cfg := defaultFeedbackConfig()
	c := &model.Candidate{
		VendorName: "Shenzhen Vision Ltd",
		OS:         model.Str("Android 11"),
		WallMount:  model.Bool(true),
		Price:      model.Float(150),
	}
	pat := func(typ, val string, s model.Sentiment, n int) model.Pattern {
		return model.Pattern{FeatureType: typ, FeatureValue: val, Sentiment: s, Count: n}
	}

	tests := []struct {
		name     string
		patterns []model.Pattern
		want     int
	}{
		{"no data", nil, 0},
		{"substring match", []model.Pattern{pat(FeatureOS, "android", model.SentimentPositive, 2)}, 6},
		{"case insensitive", []model.Pattern{pat("OS", "ANDROID 11", model.SentimentPositive, 1)}, 3},
		{"per feature cap", []model.Pattern{pat(FeatureWallMount, "yes", model.SentimentPositive, 50)}, 15},
		{"type must match", []model.Pattern{pat(FeatureProductType, "android", model.SentimentPositive, 3)}, 0},
		{"negative", []model.Pattern{pat(FeaturePriceBucket, "over_130", model.SentimentNegative, 4)}, -12},
		{"mixed", []model.Pattern{
			pat(FeatureCity, "shenzhen", model.SentimentPositive, 2),
			pat(FeatureWallMount, "yes", model.SentimentNegative, 1),
		}, 3},
		{"clamped high", []model.Pattern{
			pat(FeatureOS, "android", model.SentimentPositive, 10),
			pat(FeatureWallMount, "yes", model.SentimentPositive, 10),
			pat(FeatureCity, "shenzhen", model.SentimentPositive, 10),
		}, 30},
		{"clamped low", []model.Pattern{
			pat(FeatureOS, "android", model.SentimentNegative, 10),
			pat(FeatureWallMount, "yes", model.SentimentNegative, 10),
			pat(FeatureCity, "shenzhen", model.SentimentNegative, 10),
		}, -30},
		{"reason keywords never match fields", []model.Pattern{pat(FeatureReasonKeyword, "price", model.SentimentPositive, 5)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Boost(cfg, tt.patterns, c))
		})
	}
}

func TestLearnedPatterns_LimitPerSentiment(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	for i := range 5 {
		for range i + 1 {
			require.NoError(t, st.UpsertPattern(ctx, FeatureOS, fmt.Sprintf("os-%d", i), model.SentimentPositive, time.Now()))
			require.NoError(t, st.UpsertPattern(ctx, FeatureOS, fmt.Sprintf("os-%d", i), model.SentimentNegative, time.Now()))
		}
	}
	cfg := defaultFeedbackConfig()
	cfg.PatternLimit = 2
	cfg.MinSupport = 2
	l := New(cfg, st)

	got, err := l.LearnedPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, p := range got {
		assert.GreaterOrEqual(t, p.Count, 4)
	}
}

func TestRetryAllowed(t *testing.T) {
	cfg := defaultFeedbackConfig()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		at := now.Add(-time.Duration(d) * 24 * time.Hour)
		return &at
	}

	tests := []struct {
		name string
		in   *model.Interaction
		want bool
	}{
		{"no history", nil, true},
		{"clean history", &model.Interaction{EmailsSent: 1, LastEmailAt: daysAgo(10), LastScore: model.Int(70)}, true},
		{"three attempts", &model.Interaction{EmailsSent: 3}, false},
		{"cool-down", &model.Interaction{EmailsSent: 1, LastEmailAt: daysAgo(2)}, false},
		{"low score", &model.Interaction{LastScore: model.Int(20)}, false},
		{"explicit no", &model.Interaction{LastResponse: "Sorry, no."}, false},
		{"not interested", &model.Interaction{LastResponse: "We are Not Interested at this time"}, false},
		{"unable", &model.Interaction{LastResponse: "unable to supply"}, false},
		{"word boundary", &model.Interaction{LastResponse: "Noted, sending a quote"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryAllowed(cfg, tt.in, now))
		})
	}
}

func TestShouldRetry_UsesStore(t *testing.T) {
	st := newMemStore()
	st.interactions["Known Vendor Ltd"] = &model.Interaction{EmailsSent: 5}
	l := New(defaultFeedbackConfig(), st)

	ok, err := l.ShouldRetry(context.Background(), "Known Vendor Ltd")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.ShouldRetry(context.Background(), "New Vendor Ltd")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequestFeedback(t *testing.T) {
	c := &model.Candidate{
		ID:          "c9",
		VendorName:  "Shenzhen TechDisplay Co., Ltd.",
		ProductType: model.Str("digital signage"),
		OS:          model.Str("Android 11"),
		WallMount:   model.Bool(true),
		Price:       model.Float(135),
		Score:       92,
		Description: "15.6 inch wall mount display",
	}
	l := New(defaultFeedbackConfig(), newMemStore(c))

	out, err := l.RequestFeedback(context.Background(), "c9")
	require.NoError(t, err)
	assert.Contains(t, out, "Vendor: Shenzhen TechDisplay Co., Ltd.")
	assert.Contains(t, out, "Score: 92/100")
	assert.Contains(t, out, "Wall mount: yes")
	assert.Contains(t, out, "Battery: unknown")
	assert.Contains(t, out, "Price: $135.00/unit")
	assert.Contains(t, out, "MOQ: Unknown")
	assert.Contains(t, out, "Email: not found")

	_, err = l.RequestFeedback(context.Background(), "missing")
	assert.Error(t, err)
}

type mockStore struct {
	mock.Mock
	Store
}

func (m *mockStore) GetCandidate(ctx context.Context, id string) (*model.Candidate, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*model.Candidate)
	return c, args.Error(1)
}

func (m *mockStore) SetFeedback(ctx context.Context, id string, s model.Sentiment, reason string, at time.Time) error {
	return m.Called(ctx, id, s, reason, at).Error(0)
}

func TestRecordFeedback_StoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	ms := &mockStore{}
	ms.On("GetCandidate", ctx, "x").Return(nil, boom)
	_, err := New(defaultFeedbackConfig(), ms).RecordFeedback(ctx, "x", model.SentimentPositive, "")
	require.ErrorIs(t, err, boom)
	ms.AssertExpectations(t)

	ms = &mockStore{}
	ms.On("GetCandidate", ctx, "y").Return(wallCandidate("y", "Acme Displays Ltd"), nil)
	ms.On("SetFeedback", ctx, "y", model.SentimentNegative, "too pricey", mock.AnythingOfType("time.Time")).Return(boom)
	_, err = New(defaultFeedbackConfig(), ms).RecordFeedback(ctx, "y", model.SentimentNegative, "too pricey")
	require.ErrorIs(t, err, boom)
	ms.AssertExpectations(t)
}
