package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/solar-data-pipeline/internal/csvstore"
	"github.com/i474232898/solar-data-pipeline/internal/dataset"
	"github.com/i474232898/solar-data-pipeline/internal/publish"
	"github.com/i474232898/solar-data-pipeline/internal/solar/power"
)

var validate = validator.New()

// FetchConfig configures solar-fetch.
type FetchConfig struct {
	LocationsFile string `validate:"required"`
	FailuresFile  string `validate:"required"`
	CSVFile       string `validate:"required"`
	BatchSize     int    `validate:"gte=1"`

	APIURL    string `validate:"required,url"`
	Parameter string `validate:"required"`
	Community string `validate:"required"`
	StartYear int    `validate:"gte=1981"`
	EndYear   int    `validate:"gtefield=StartYear"`

	// Attempts is the number of tries per location; AttemptDelay is slept
	// after every attempt.
	Attempts         int           `validate:"gte=1"`
	AttemptDelay     time.Duration `validate:"gte=0"`
	HTTPTimeout      time.Duration `validate:"gt=0"`
	BreakerThreshold int           `validate:"gte=1"`

	LogLevel string
}

// PublishConfig configures solar-publish.
type PublishConfig struct {
	CSVFile    string `validate:"required"`
	OutputFile string `validate:"required"`
	BackupFile string
	VarName    string `validate:"required"`

	PollInterval   time.Duration `validate:"gt=0"`
	BackupInterval time.Duration `validate:"gt=0"`
	MaxBackoff     time.Duration `validate:"gtefield=PollInterval"`
	WatchEvents    bool

	Port         string
	HTTPDisabled bool

	LogLevel string
}

// LoadFetch reads the fetch configuration from environment with sensible
// defaults.
func LoadFetch() (*FetchConfig, error) {
	loadDotEnv()

	cfg := &FetchConfig{
		LocationsFile: getenvDefault("SOLAR_LOCATIONS_FILE", "Korea_Localities"),
		FailuresFile:  getenvDefault("SOLAR_FAILURES_FILE", "failed_requests"),
		CSVFile:       getenvDefault("SOLAR_CSV_FILE", "korea_solar_data.csv"),
		APIURL:        getenvDefault("SOLAR_API_URL", power.DefaultBaseURL),
		Parameter:     getenvDefault("SOLAR_PARAMETER", power.DefaultParameter),
		Community:     getenvDefault("SOLAR_COMMUNITY", power.DefaultCommunity),
		LogLevel:      getenvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.BatchSize, err = getenvInt("SOLAR_BATCH_SIZE", csvstore.DefaultBatchSize); err != nil {
		return nil, err
	}
	if cfg.StartYear, err = getenvInt("SOLAR_START_YEAR", power.DefaultYear); err != nil {
		return nil, err
	}
	if cfg.EndYear, err = getenvInt("SOLAR_END_YEAR", cfg.StartYear); err != nil {
		return nil, err
	}
	if cfg.Attempts, err = getenvInt("SOLAR_ATTEMPTS", power.DefaultAttempts); err != nil {
		return nil, err
	}
	if cfg.AttemptDelay, err = getenvDuration("SOLAR_ATTEMPT_DELAY", power.DefaultDelay); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getenvDuration("SOLAR_HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.BreakerThreshold, err = getenvInt("SOLAR_BREAKER_THRESHOLD", power.DefaultBreakerThreshold); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration after flags have been applied.
func (c *FetchConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid fetch config: %w", err)
	}
	return nil
}

// LoadPublish reads the publish configuration from environment with
// sensible defaults.
func LoadPublish() (*PublishConfig, error) {
	loadDotEnv()

	cfg := &PublishConfig{
		CSVFile:    getenvDefault("SOLAR_CSV_FILE", "korea_solar_data.csv"),
		OutputFile: getenvDefault("PUBLISH_OUTPUT_FILE", "solar-data.js"),
		BackupFile: getenvDefault("PUBLISH_BACKUP_FILE", "../solar-data.js"),
		VarName:    getenvDefault("PUBLISH_VAR_NAME", dataset.DefaultVarName),
		Port:       getenvDefault("PORT", "8080"),
		LogLevel:   getenvDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.PollInterval, err = getenvDuration("PUBLISH_POLL_INTERVAL", publish.DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.BackupInterval, err = getenvDuration("PUBLISH_BACKUP_INTERVAL", publish.DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.MaxBackoff, err = getenvDuration("PUBLISH_MAX_BACKOFF", publish.DefaultMaxBackoff); err != nil {
		return nil, err
	}
	if cfg.WatchEvents, err = getenvBool("PUBLISH_WATCH_EVENTS", true); err != nil {
		return nil, err
	}
	if cfg.HTTPDisabled, err = getenvBool("PUBLISH_HTTP_DISABLED", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration after flags have been applied.
func (c *PublishConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid publish config: %w", err)
	}
	return nil
}

// loadDotEnv loads .env if present. A missing file is not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
