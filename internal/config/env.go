package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// EmptyRangePolicy decides what happens to a range with no content pages
// (two adjacent markers, or a marker on the first or last page).
type EmptyRangePolicy string

const (
	// EmptySkip drops empty ranges; output indexes stay contiguous.
	EmptySkip EmptyRangePolicy = "skip"
	// EmptyEmit keeps one output index per range, empty or not.
	EmptyEmit EmptyRangePolicy = "emit"
)

// SplitConfig controls marker detection and splitting.
type SplitConfig struct {
	MarkerPayload string
	RenderDPI     int
	RenderTimeout time.Duration
	DecodeTimeout time.Duration
	QRMaxDim      int
	EmptyRanges   EmptyRangePolicy
	Parallelism   int
}

// PathsConfig holds filesystem and object-store locations.
type PathsConfig struct {
	OutputDir   string // finished documents land here
	OutgoingDir string // local relocation target
	OutgoingURL string // s3://bucket/prefix; takes precedence over OutgoingDir
}

// AWSConfig overrides the default AWS credential chain for S3 relocation.
// Empty keys fall back to the SDK's environment and shared-config lookup.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// StoreConfig configures the optional Redis run ledger.
type StoreConfig struct {
	RedisURL  string
	LockTTL   time.Duration
	LedgerTTL time.Duration
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	Textfile string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Split   SplitConfig
	Paths   PathsConfig
	AWS     AWSConfig
	Store   StoreConfig
	Metrics MetricsConfig
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables already set win. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	// Logging defaults
	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/scansplit.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	// Axiom defaults
	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_scansplit",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// Split defaults
	cfg.Split = SplitConfig{
		MarkerPayload: getEnv("MARKER_PAYLOAD", "foobar"),
		RenderDPI:     parseInt(getEnv("RENDER_DPI", "72"), 72),
		RenderTimeout: parseDuration(getEnv("RENDER_TIMEOUT", "60s"), 60*time.Second),
		DecodeTimeout: parseDuration(getEnv("DECODE_TIMEOUT", "10s"), 10*time.Second),
		QRMaxDim:      parseInt(getEnv("QR_MAX_DIM", "2000"), 2000),
		EmptyRanges:   parseEmptyPolicy(getEnv("EMPTY_RANGES", string(EmptySkip))),
		Parallelism:   parseInt(getEnv("SPLIT_PARALLELISM", "1"), 1),
	}
	if cfg.Split.RenderDPI <= 0 {
		cfg.Split.RenderDPI = 72
	}
	if cfg.Split.Parallelism <= 0 {
		cfg.Split.Parallelism = 1
	}

	// Paths defaults
	cfg.Paths = PathsConfig{
		OutputDir:   absOrSelf(getEnv("OUTPUT_DIR", ".")),
		OutgoingDir: absOrSelf(getEnv("OUTGOING_DIR", "scans-out")),
		OutgoingURL: getEnv("OUTGOING_URL", ""),
	}

	cfg.AWS = AWSConfig{
		Region:          getEnv("S3_REGION", ""),
		AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		SessionToken:    getEnv("S3_SESSION_TOKEN", ""),
	}

	// Store defaults (empty REDIS_URL disables the ledger)
	cfg.Store = StoreConfig{
		RedisURL:  getEnv("REDIS_URL", ""),
		LockTTL:   parseDuration(getEnv("RUN_LOCK_TTL", "30m"), 30*time.Minute),
		LedgerTTL: parseDuration(getEnv("RUN_LEDGER_TTL", "168h"), 7*24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{
		Textfile: getEnv("METRICS_TEXTFILE", ""),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func parseEmptyPolicy(s string) EmptyRangePolicy {
	switch EmptyRangePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case EmptyEmit:
		return EmptyEmit
	default:
		return EmptySkip
	}
}

// absOrSelf makes destination paths absolute so renames never depend on
// the working directory.
func absOrSelf(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return p
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
