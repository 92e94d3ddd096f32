package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/oem-scout/internal/config"
	"github.com/sells-group/oem-scout/internal/extract"
	"github.com/sells-group/oem-scout/internal/model"
	"github.com/sells-group/oem-scout/internal/pipeline"
	"github.com/sells-group/oem-scout/internal/store"
)

const signageListing = `Shenzhen TechDisplay Co., Ltd.
15.6 inch Android 11 wall mount digital signage display, IPS touch screen, OEM/ODM customizable.
Price: $135 per unit
MOQ: 100 pieces
Power: DC 12V, no battery`

type oracleFunc func(ctx context.Context, prompt string) (string, error)

func (f oracleFunc) Extract(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

func signageAnswer(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		model.FieldVendorName:   "Shenzhen TechDisplay Co., Ltd.",
		model.FieldPlatform:     "alibaba",
		model.FieldProductType:  "digital signage display",
		model.FieldOS:           "Android 11",
		model.FieldScreenSize:   "15.6 inch",
		model.FieldWallMount:    true,
		model.FieldHasBattery:   false,
		model.FieldTouchscreen:  true,
		model.FieldCameraFront:  nil,
		model.FieldCustomizable: true,
		model.FieldIPSPanel:     true,
		model.FieldMOQ:          100,
		model.FieldPrice:        135,
		model.FieldEmail:        nil,
		model.FieldProductURL:   nil,
		model.FieldVendorURL:    nil,
		model.FieldDescription:  "wall mount digital signage display",
	})
	require.NoError(t, err)
	return string(b)
}

// setupCLI points the CLI at a temp SQLite database and a stub oracle.
func setupCLI(t *testing.T) (dir, dbPath string) {
	t.Helper()
	dir = t.TempDir()
	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(orig) }) //nolint:errcheck

	dbPath = filepath.Join(dir, "oem.db")
	t.Setenv("OEMSCOUT_STORE_DATABASE_URL", dbPath)
	t.Setenv("OEMSCOUT_ANTHROPIC_KEY", "sk-ant-test")
	t.Setenv("OEMSCOUT_PIPELINE_RATE_PER_MINUTE", "0")
	t.Setenv("OEMSCOUT_LOG_LEVEL", "error")

	answer := signageAnswer(t)
	prev := newOracle
	newOracle = func(*config.Config) extract.Oracle {
		return oracleFunc(func(context.Context, string) (string, error) { return answer, nil })
	}
	t.Cleanup(func() { newOracle = prev })
	return dir, dbPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		runJSON, runFeed, runKeyword = false, "", ""
		profilePath = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"run", "validate", "feedback", "outreach", "candidates", "serve", "migrate"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "oem-scout", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("profile"))
}

func TestCommand_Flags(t *testing.T) {
	require.NotNil(t, runCmd.Flags().Lookup("feed"))
	require.NotNil(t, runCmd.Flags().Lookup("keyword"))
	port := serveCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "0", port.DefValue)
	assert.Equal(t, "20", validateReportCmd.Flags().Lookup("limit").DefValue)
	assert.Equal(t, "50", candidatesCmd.Flags().Lookup("limit").DefValue)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = config.Defaults()
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	assert.ErrorContains(t, err, "unsupported store driver: mysql")
}

func TestRunCommand_EndToEnd(t *testing.T) {
	dir, dbPath := setupCLI(t)
	feedPath := filepath.Join(dir, "listings.txt")
	require.NoError(t, os.WriteFile(feedPath, []byte(signageListing), 0o644))

	out, err := execute(t, "run", "--feed", feedPath, "--keyword", "android signage")
	require.NoError(t, err, out)
	assert.Contains(t, out, "saved")
	assert.Contains(t, out, "Shenzhen TechDisplay Co., Ltd.")
	assert.Contains(t, out, "Points:")

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	list, err := st.ListCandidates(context.Background(), store.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 92, list[0].Score)
	assert.Equal(t, "android signage", list[0].Keyword)

	logs, err := st.ListValidationLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestFeedbackAndOutreachCommands(t *testing.T) {
	dir, dbPath := setupCLI(t)
	feedPath := filepath.Join(dir, "listings.txt")
	require.NoError(t, os.WriteFile(feedPath, []byte(signageListing), 0o644))
	_, err := execute(t, "run", "--feed", feedPath)
	require.NoError(t, err)

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	list, err := st.ListCandidates(context.Background(), store.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID
	require.NoError(t, st.Close())

	out, err := execute(t, "feedback", "record", id, "relevant", "-", "good", "price")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Recorded positive feedback for "+id)

	out, err = execute(t, "feedback", "patterns")
	require.NoError(t, err, out)
	assert.Contains(t, out, "wall_mount")

	out, err = execute(t, "feedback", "request", id)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Vendor: Shenzhen TechDisplay Co., Ltd.")

	out, err = execute(t, "feedback", "summary")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"positive": 1`)

	_, err = execute(t, "feedback", "record", id, "awesome")
	assert.Error(t, err)

	out, err = execute(t, "candidates", "--min-score", "90")
	require.NoError(t, err, out)
	assert.Contains(t, out, "positive")
	assert.Contains(t, out, id)

	out, err = execute(t, "outreach", "log", "Shenzhen TechDisplay Co., Ltd.", "--response", "Sorry, not interested")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 contact(s) recorded")

	out, err = execute(t, "outreach", "check", "Shenzhen TechDisplay Co., Ltd.")
	require.NoError(t, err, out)
	assert.Contains(t, out, "should not be contacted again")

	out, err = execute(t, "validate", "report")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Shenzhen TechDisplay Co., Ltd.  PASSED")
}

func TestValidateListing_DryRun(t *testing.T) {
	dir, dbPath := setupCLI(t)
	feedPath := filepath.Join(dir, "listings.txt")
	require.NoError(t, os.WriteFile(feedPath, []byte(signageListing), 0o644))

	out, err := execute(t, "validate", "listing", feedPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "[1] Shenzhen TechDisplay Co., Ltd.")
	assert.Contains(t, out, "✓ factual_grounding")
	assert.Contains(t, out, "score 92")

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	list, err := st.ListCandidates(context.Background(), store.CandidateFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMigrateCommand(t *testing.T) {
	setupCLI(t)
	out, err := execute(t, "migrate")
	require.NoError(t, err, out)
	assert.Contains(t, out, "sqlite store migrated")
}

func TestProfileFlag(t *testing.T) {
	dir, _ := setupCLI(t)
	profile := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("profile:\n  name: kiosk\n  requirements:\n    moq_max: 50\n"), 0o644))

	_, err := execute(t, "--profile", profile, "migrate")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Requirements.MOQMax)

	_, err = execute(t, "--profile", filepath.Join(dir, "missing.yaml"), "migrate")
	assert.ErrorContains(t, err, "config: read profile")
}

func TestNewScheduler(t *testing.T) {
	_, err := newScheduler(context.Background(), &appEnv{}, pipeline.NewTracker(), "not a cron", "feed.json", "")
	assert.ErrorContains(t, err, "schedule: parse cron")

	c, err := newScheduler(context.Background(), &appEnv{}, pipeline.NewTracker(), "0 9 * * *", "feed.json", "")
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)
}

func TestPrintSummary(t *testing.T) {
	s := pipeline.Summary{
		RunID:     "run-42",
		Processed: 3,
		Duration:  1500 * time.Millisecond,
		ByStatus: map[pipeline.Status]int{
			pipeline.StatusSaved:            1,
			pipeline.StatusValidationFailed: 2,
		},
		Results: []pipeline.Result{{
			Status: pipeline.StatusSaved,
			Candidate: &model.Candidate{
				ID: "c1", VendorName: "Shenzhen HYY Technology", Score: 100,
				Price: model.Float(85), MOQ: model.Int(200),
			},
		}},
	}

	var b bytes.Buffer
	printSummary(&b, s)
	out := b.String()
	assert.Contains(t, out, "Run run-42: 3 listings in 1.5s")
	assert.Contains(t, out, "validation_failed")
	assert.NotContains(t, out, "extraction_failed")
	lines := strings.Split(out, "\n")
	var row string
	for _, l := range lines {
		if strings.Contains(l, "Shenzhen HYY") {
			row = l
		}
	}
	require.NotEmpty(t, row)
	assert.Contains(t, row, "$85")
	assert.Contains(t, row, "200")
}
