package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Classifier backends.
const (
	ClassifierGemini = "gemini"
	ClassifierClaude = "claude"
)

// Storage backends.
const (
	StorageS3  = "s3"
	StorageDir = "dir"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int

	Classifier   string
	GeminiAPIKey string
	GeminiModel  string
	ClaudeAPIKey string
	ClaudeModel  string

	DatabaseURL string
	SQLitePath  string

	StorageBackend    string
	S3Bucket          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Prefix          string
	StorageDir        string

	MaxUploadMB       int
	CriticalThreshold float64
	SlackWebhookURL   string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")

	fs.StringVar(&c.Classifier, "classifier", ClassifierGemini, "image classifier backend (gemini|claude)")
	fs.StringVar(&c.GeminiAPIKey, "gemini-api-key", "", "API key for the Gemini classifier")
	fs.StringVar(&c.GeminiModel, "gemini-model", "gemini-1.5-flash", "Gemini model to use")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude classifier")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL")
	fs.StringVar(&c.SQLitePath, "sqlite-path", "", "SQLite database file (used when database-url is empty; both empty = in-memory store)")

	fs.StringVar(&c.StorageBackend, "storage-backend", StorageS3, "image storage backend (s3|dir)")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "S3 bucket holding imaging studies")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "custom S3 endpoint for S3-compatible stores (enables path-style)")
	fs.StringVar(&c.S3Region, "s3-region", "us-east-1", "S3 region")
	fs.StringVar(&c.S3AccessKeyID, "s3-access-key-id", "", "S3 access key ID (empty = default credential chain)")
	fs.StringVar(&c.S3SecretAccessKey, "s3-secret-access-key", "", "S3 secret access key")
	fs.StringVar(&c.S3Prefix, "s3-prefix", "", "key prefix for images inside the bucket")
	fs.StringVar(&c.StorageDir, "storage-dir", "", "local directory holding imaging studies (storage-backend=dir)")

	fs.IntVar(&c.MaxUploadMB, "max-upload-mb", 32, "maximum upload request size in MiB (1..1024)")
	fs.Float64Var(&c.CriticalThreshold, "critical-threshold", 9.0, "severity at or above which a Slack notification is sent (0 < t <= 10)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for critical-finding notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	switch c.Classifier {
	case ClassifierGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required when CLASSIFIER=gemini"))
		}
		if c.GeminiModel == "" {
			errs = append(errs, errors.New("GEMINI_MODEL is required when CLASSIFIER=gemini"))
		}
	case ClassifierClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when CLASSIFIER=claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when CLASSIFIER=claude"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER %q (must be gemini or claude)", c.Classifier))
	}

	if c.DatabaseURL != "" && c.SQLitePath != "" {
		errs = append(errs, errors.New("DATABASE_URL and SQLITE_PATH are mutually exclusive"))
	}

	switch c.StorageBackend {
	case StorageS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3"))
		}
		if c.S3Region == "" {
			errs = append(errs, errors.New("S3_REGION is required when STORAGE_BACKEND=s3"))
		}
		if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
			errs = append(errs, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together"))
		}
	case StorageDir:
		if c.StorageDir == "" {
			errs = append(errs, errors.New("STORAGE_DIR is required when STORAGE_BACKEND=dir"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORAGE_BACKEND %q (must be s3 or dir)", c.StorageBackend))
	}

	if c.MaxUploadMB <= 0 || c.MaxUploadMB > 1024 {
		errs = append(errs, fmt.Errorf("invalid MAX_UPLOAD_MB %d (must be 1..1024)", c.MaxUploadMB))
	}

	// NaN fails both comparisons
	if !(c.CriticalThreshold > 0 && c.CriticalThreshold <= 10) {
		errs = append(errs, fmt.Errorf("invalid CRITICAL_THRESHOLD %v (must be > 0 and <= 10)", c.CriticalThreshold))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}
