package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline     PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Validation   ValidationConfig   `yaml:"validation" mapstructure:"validation"`
	Requirements RequirementsConfig `yaml:"requirements" mapstructure:"requirements"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Feedback     FeedbackConfig     `yaml:"feedback" mapstructure:"feedback"`
	Schedule     ScheduleConfig     `yaml:"schedule" mapstructure:"schedule"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Monitoring   MonitoringConfig   `yaml:"monitoring" mapstructure:"monitoring"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds the extraction model settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures the per-candidate state machine and the runner.
type PipelineConfig struct {
	ExtractRetries       int  `yaml:"extract_retries" mapstructure:"extract_retries"`
	MinSaveScore         int  `yaml:"min_save_score" mapstructure:"min_save_score"`
	QualityGate          bool `yaml:"quality_gate" mapstructure:"quality_gate"`
	CandidateTimeoutSecs int  `yaml:"candidate_timeout_secs" mapstructure:"candidate_timeout_secs"`
	Workers              int  `yaml:"workers" mapstructure:"workers"`
	RatePerMinute        int  `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxSourceChars       int  `yaml:"max_source_chars" mapstructure:"max_source_chars"`
	MinSourceChars       int  `yaml:"min_source_chars" mapstructure:"min_source_chars"`
	RetryBackoffMs       int  `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// ValidationConfig tunes the validation layers.
type ValidationConfig struct {
	GroundingThreshold  float64 `yaml:"grounding_threshold" mapstructure:"grounding_threshold"`
	PriceTolerance      float64 `yaml:"price_tolerance" mapstructure:"price_tolerance"`
	DuplicateSimilarity float64 `yaml:"duplicate_similarity" mapstructure:"duplicate_similarity"`
	OutlierFactor       float64 `yaml:"outlier_factor" mapstructure:"outlier_factor"`
	MinHistoryPrices    int     `yaml:"min_history_prices" mapstructure:"min_history_prices"`
	AuditSize           int     `yaml:"audit_size" mapstructure:"audit_size"`
	// Relaxed turns the battery, mount and tablet rules into scoring-only penalties.
	Relaxed          bool `yaml:"relaxed" mapstructure:"relaxed"`
	StrictCrossField bool `yaml:"strict_cross_field" mapstructure:"strict_cross_field"`
}

// RequirementsConfig describes the product being sourced.
type RequirementsConfig struct {
	MOQMax         int      `yaml:"moq_max" mapstructure:"moq_max"`
	TargetPriceMin float64  `yaml:"target_price_min" mapstructure:"target_price_min"`
	TargetPriceMax float64  `yaml:"target_price_max" mapstructure:"target_price_max"`
	TargetOS       string   `yaml:"target_os" mapstructure:"target_os"`
	TargetScreen   string   `yaml:"target_screen" mapstructure:"target_screen"`
	RedFlags       []string `yaml:"red_flags" mapstructure:"red_flags"`
}

// ScoringConfig holds the rubric weights and fixed penalties.
type ScoringConfig struct {
	Weights        map[string]int `yaml:"weights" mapstructure:"weights"`
	BatteryPenalty int            `yaml:"battery_penalty" mapstructure:"battery_penalty"`
	TabletPenalty  int            `yaml:"tablet_penalty" mapstructure:"tablet_penalty"`
	LearnedCap     int            `yaml:"learned_cap" mapstructure:"learned_cap"`
}

// FeedbackConfig tunes pattern learning and outreach retry rules.
type FeedbackConfig struct {
	WeightPerObservation int `yaml:"weight_per_observation" mapstructure:"weight_per_observation"`
	FeatureCap           int `yaml:"feature_cap" mapstructure:"feature_cap"`
	MinSupport           int `yaml:"min_support" mapstructure:"min_support"`
	PatternLimit         int `yaml:"pattern_limit" mapstructure:"pattern_limit"`
	MaxAttempts          int `yaml:"max_attempts" mapstructure:"max_attempts"`
	CooldownDays         int `yaml:"cooldown_days" mapstructure:"cooldown_days"`
	MinScore             int `yaml:"min_score" mapstructure:"min_score"`
}

// ScheduleConfig configures the recurring discovery run in serve mode.
type ScheduleConfig struct {
	Cron     string `yaml:"cron" mapstructure:"cron"`
	FeedPath string `yaml:"feed_path" mapstructure:"feed_path"`
}

// ServerConfig configures the feedback webhook server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the validation health checker in serve mode.
// An empty WebhookURL disables alert delivery.
type MonitoringConfig struct {
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	MinSample              int     `yaml:"min_sample" mapstructure:"min_sample"`
	RejectionRateThreshold float64 `yaml:"rejection_rate_threshold" mapstructure:"rejection_rate_threshold"`
	GroundingFailureLimit  int     `yaml:"grounding_failure_limit" mapstructure:"grounding_failure_limit"`
	MinAccuracyPoints      int     `yaml:"min_accuracy_points" mapstructure:"min_accuracy_points"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultRedFlags are phrases that disqualify a listing outright.
var DefaultRedFlags = []string{
	"loop video player only",
	"no customization",
	"MOQ > 1000",
	"battery required",
	"Windows only",
	"no Android support",
	"tablet pc",
	"portable tablet",
	"gaming tablet",
	"education tablet",
	"battery operated",
	"rechargeable battery",
	"built-in battery",
}

// DefaultWeights is the rubric for a wall-mounted Android signage display.
var DefaultWeights = map[string]int{
	"android_os":     25,
	"wall_mount":     20,
	"no_battery":     15,
	"correct_size":   15,
	"touchscreen":    10,
	"price_in_range": 20,
	"moq_acceptable": 10,
	"customizable":   10,
	"ips_panel":      5,
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OEMSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Defaults returns the configuration with only built-in defaults applied.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(eris.Wrap(err, "config: unmarshal defaults"))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "oem_vendors.db")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("pipeline.extract_retries", 2)
	v.SetDefault("pipeline.min_save_score", 50)
	v.SetDefault("pipeline.quality_gate", false)
	v.SetDefault("pipeline.candidate_timeout_secs", 120)
	v.SetDefault("pipeline.workers", 1)
	v.SetDefault("pipeline.rate_per_minute", 30)
	v.SetDefault("pipeline.max_source_chars", 5000)
	v.SetDefault("pipeline.min_source_chars", 50)
	v.SetDefault("pipeline.retry_backoff_ms", 500)

	v.SetDefault("validation.grounding_threshold", 0.4)
	v.SetDefault("validation.price_tolerance", 3.0)
	v.SetDefault("validation.duplicate_similarity", 0.8)
	v.SetDefault("validation.outlier_factor", 3.0)
	v.SetDefault("validation.min_history_prices", 3)
	v.SetDefault("validation.audit_size", 50)

	v.SetDefault("requirements.moq_max", 500)
	v.SetDefault("requirements.target_price_min", 70.0)
	v.SetDefault("requirements.target_price_max", 90.0)
	v.SetDefault("requirements.target_os", "android")
	v.SetDefault("requirements.target_screen", "15.6")
	v.SetDefault("requirements.red_flags", DefaultRedFlags)

	v.SetDefault("scoring.weights", DefaultWeights)
	v.SetDefault("scoring.battery_penalty", 20)
	v.SetDefault("scoring.tablet_penalty", 30)
	v.SetDefault("scoring.learned_cap", 30)

	v.SetDefault("feedback.weight_per_observation", 3)
	v.SetDefault("feedback.feature_cap", 15)
	v.SetDefault("feedback.min_support", 1)
	v.SetDefault("feedback.pattern_limit", 20)
	v.SetDefault("feedback.max_attempts", 3)
	v.SetDefault("feedback.cooldown_days", 7)
	v.SetDefault("feedback.min_score", 30)

	v.SetDefault("schedule.cron", "0 9 * * *")
	v.SetDefault("schedule.feed_path", "")

	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.min_sample", 5)
	v.SetDefault("monitoring.rejection_rate_threshold", 0.8)
	v.SetDefault("monitoring.grounding_failure_limit", 5)
	v.SetDefault("monitoring.min_accuracy_points", 80)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
