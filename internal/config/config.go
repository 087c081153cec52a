package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Answering AnsweringConfig `yaml:"answering" mapstructure:"answering"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Process   ProcessConfig   `yaml:"process" mapstructure:"process"`
	Prompt    PromptConfig    `yaml:"prompt" mapstructure:"prompt"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnsweringConfig configures the external Answering Service.
type AnsweringConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	URL         string `yaml:"url" mapstructure:"url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	Structured  bool   `yaml:"structured" mapstructure:"structured"`
}

// Timeout returns the per-request timeout.
func (a AnsweringConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// BatchConfig configures batching and dispatch.
type BatchConfig struct {
	QuestionNumber    int     `yaml:"question_number" mapstructure:"question_number"`
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	TableTokenBudget  int     `yaml:"table_token_budget" mapstructure:"table_token_budget"`
	BytesPerToken     int     `yaml:"bytes_per_token" mapstructure:"bytes_per_token"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	JobTimeoutSecs    int     `yaml:"job_timeout_secs" mapstructure:"job_timeout_secs"`
}

// JobTimeout returns the per-file deadline, or 0 when unbounded.
func (b BatchConfig) JobTimeout() time.Duration {
	return time.Duration(b.JobTimeoutSecs) * time.Second
}

// ProcessConfig configures which files are processed and how.
type ProcessConfig struct {
	BothSteps    bool     `yaml:"both_steps" mapstructure:"both_steps"`
	ConfigMode   bool     `yaml:"config_mode" mapstructure:"config_mode"`
	Files        []string `yaml:"files" mapstructure:"files"`
	FilesFile    string   `yaml:"files_file" mapstructure:"files_file"`
	MarkerSearch string   `yaml:"marker_search" mapstructure:"marker_search"`
	Checkpoint   bool     `yaml:"checkpoint" mapstructure:"checkpoint"`
	Selectors    []string `yaml:"selectors" mapstructure:"selectors"`
}

// PromptConfig configures the instruction text sent with every batch.
type PromptConfig struct {
	Subject string `yaml:"subject" mapstructure:"subject"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from ./config.yaml (optional) and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path and environment. An empty path
// falls back to an optional config.yaml in the working directory; an
// explicit path must exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	v.SetConfigType("yaml")

	// Environment
	v.SetEnvPrefix("DDQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("answering.provider", "fastgpt")
	v.SetDefault("answering.url", "")
	v.SetDefault("answering.api_key", "")
	v.SetDefault("answering.model", "")
	v.SetDefault("answering.max_tokens", 4096)
	v.SetDefault("answering.timeout_secs", 120)
	v.SetDefault("answering.max_attempts", 3)
	v.SetDefault("answering.structured", false)
	v.SetDefault("batch.question_number", 10)
	v.SetDefault("batch.max_concurrent", 10)
	v.SetDefault("batch.requests_per_second", 0)
	v.SetDefault("batch.table_token_budget", 6000)
	v.SetDefault("batch.bytes_per_token", 4)
	v.SetDefault("batch.breaker_threshold", 5)
	v.SetDefault("batch.job_timeout_secs", 1800)
	v.SetDefault("process.both_steps", true)
	v.SetDefault("process.config_mode", false)
	v.SetDefault("process.files", []string{})
	v.SetDefault("process.files_file", "")
	v.SetDefault("process.marker_search", "inclusive")
	v.SetDefault("process.checkpoint", false)
	v.SetDefault("process.selectors", []string{})
	v.SetDefault("prompt.subject", "本公司")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a fill run depends on. Tag-only and
// reduce-only runs never call the Answering Service and skip the
// answering checks.
func (c *Config) Validate(needsAnswering bool) error {
	var errs []string

	if needsAnswering {
		switch c.Answering.Provider {
		case "fastgpt":
			if c.Answering.URL == "" {
				errs = append(errs, "answering.url is required for provider fastgpt")
			}
		case "anthropic":
		default:
			errs = append(errs, "answering.provider must be fastgpt or anthropic")
		}
		if c.Answering.APIKey == "" {
			errs = append(errs, "answering.api_key is required")
		}
	}

	if c.Batch.QuestionNumber < 1 {
		errs = append(errs, "batch.question_number must be >= 1")
	}
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 100 {
		errs = append(errs, "batch.max_concurrent must be between 1 and 100")
	}
	if c.Batch.BytesPerToken < 1 {
		errs = append(errs, "batch.bytes_per_token must be >= 1")
	}
	if c.Batch.RequestsPerSecond < 0 {
		errs = append(errs, "batch.requests_per_second must be >= 0")
	}
	switch c.Process.MarkerSearch {
	case "inclusive", "exclusive":
	default:
		errs = append(errs, "process.marker_search must be inclusive or exclusive")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadFileList reads a YAML list of input paths, either a bare sequence or a
// mapping with a "files" key.
func LoadFileList(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read file list %s", path)
	}

	var list []string
	if err := yaml.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Files []string `yaml:"files"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, eris.Wrapf(err, "config: parse file list %s", path)
	}
	return doc.Files, nil
}

// ConfiguredFiles returns the file list used in config mode: process.files
// followed by the entries of process.files_file.
func (c *Config) ConfiguredFiles() ([]string, error) {
	files := append([]string(nil), c.Process.Files...)
	if c.Process.FilesFile != "" {
		more, err := LoadFileList(c.Process.FilesFile)
		if err != nil {
			return nil, err
		}
		files = append(files, more...)
	}
	return files, nil
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
