package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          60,
		ShutdownBudgetSeconds: 90,
		APIPort:               8080,
		Classifier:            ClassifierGemini,
		GeminiAPIKey:          "gm-test-key",
		GeminiModel:           "gemini-1.5-flash",
		StorageBackend:        StorageS3,
		S3Bucket:              "mri-scans",
		S3Region:              "us-east-1",
		MaxUploadMB:           32,
		CriticalThreshold:     9.0,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.Classifier != ClassifierGemini {
		t.Errorf("Classifier = %q, want %q", c.Classifier, ClassifierGemini)
	}
	if c.GeminiModel != "gemini-1.5-flash" {
		t.Errorf("GeminiModel = %q, want %q", c.GeminiModel, "gemini-1.5-flash")
	}
	if c.StorageBackend != StorageS3 {
		t.Errorf("StorageBackend = %q, want %q", c.StorageBackend, StorageS3)
	}
	if c.MaxUploadMB != 32 {
		t.Errorf("MaxUploadMB = %d, want 32", c.MaxUploadMB)
	}
	if c.CriticalThreshold != 9.0 {
		t.Errorf("CriticalThreshold = %v, want 9", c.CriticalThreshold)
	}
	if c.DatabaseURL != "" || c.SQLitePath != "" {
		t.Errorf("store flags default to %q/%q, want empty (in-memory)", c.DatabaseURL, c.SQLitePath)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "30",
		"-shutdown-budget-seconds", "120",
		"-http-port", "9090",
		"-classifier", "claude",
		"-claude-api-key", "sk-override",
		"-claude-model", "claude-opus-4-20250514",
		"-sqlite-path", "/var/lib/radtriage/db.sqlite",
		"-storage-backend", "dir",
		"-storage-dir", "/srv/scans",
		"-max-upload-mb", "64",
		"-critical-threshold", "8.5",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 30 {
		t.Errorf("DrainSeconds = %d, want 30", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 120 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 120", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", c.APIPort)
	}
	if c.Classifier != ClassifierClaude || c.ClaudeAPIKey != "sk-override" || c.ClaudeModel != "claude-opus-4-20250514" {
		t.Errorf("classifier = %q/%q/%q", c.Classifier, c.ClaudeAPIKey, c.ClaudeModel)
	}
	if c.SQLitePath != "/var/lib/radtriage/db.sqlite" {
		t.Errorf("SQLitePath = %q", c.SQLitePath)
	}
	if c.StorageBackend != StorageDir || c.StorageDir != "/srv/scans" {
		t.Errorf("storage = %q/%q", c.StorageBackend, c.StorageDir)
	}
	if c.MaxUploadMB != 64 || c.MaxUploadBytes() != 64<<20 {
		t.Errorf("MaxUploadMB = %d, bytes = %d", c.MaxUploadMB, c.MaxUploadBytes())
	}
	if c.CriticalThreshold != 8.5 {
		t.Errorf("CriticalThreshold = %v, want 8.5", c.CriticalThreshold)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	with := func(mut func(*Config)) Config {
		c := validBase()
		mut(&c)
		return c
	}

	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		errSubstr []string // substrings that must appear in error message
	}{
		{
			name:    "defaults are valid",
			cfg:     validBase(),
			wantErr: false,
		},
		{
			name: "minimum valid values",
			cfg: with(func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.MaxUploadMB = 1, 2, 1, 1
				c.CriticalThreshold = 0.01
			}),
			wantErr: false,
		},
		{
			name: "maximum valid values",
			cfg: with(func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort, c.MaxUploadMB = 299, 300, 65535, 1024
				c.CriticalThreshold = 10
			}),
			wantErr: false,
		},
		// DrainSeconds boundaries
		{
			name:      "drain zero",
			cfg:       with(func(c *Config) { c.DrainSeconds = 0 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:      "drain above max",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS"},
		},
		{
			name:    "drain at upper bound",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 300, 300 }),
			wantErr: true, // budget must be greater than drain
		},
		// ShutdownBudgetSeconds boundaries
		{
			name:      "budget negative",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = -1 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		{
			name:      "budget above max",
			cfg:       with(func(c *Config) { c.ShutdownBudgetSeconds = 301 }),
			wantErr:   true,
			errSubstr: []string{"SHUTDOWN_BUDGET_SECONDS"},
		},
		// Cross-field: budget vs drain
		{
			name:      "budget equals drain",
			cfg:       with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 60, 60 }),
			wantErr:   true,
			errSubstr: []string{"must be greater than"},
		},
		{
			name:    "budget is drain plus one",
			cfg:     with(func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 60, 61 }),
			wantErr: false,
		},
		// APIPort boundaries
		{
			name:      "port zero",
			cfg:       with(func(c *Config) { c.APIPort = 0 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		{
			name:      "port above max",
			cfg:       with(func(c *Config) { c.APIPort = 65536 }),
			wantErr:   true,
			errSubstr: []string{"HTTP_PORT"},
		},
		// Classifier
		{
			name:      "unknown classifier",
			cfg:       with(func(c *Config) { c.Classifier = "gpt" }),
			wantErr:   true,
			errSubstr: []string{"CLASSIFIER"},
		},
		{
			name:      "gemini without key",
			cfg:       with(func(c *Config) { c.GeminiAPIKey = "" }),
			wantErr:   true,
			errSubstr: []string{"GEMINI_API_KEY"},
		},
		{
			name: "claude without key or model",
			cfg: with(func(c *Config) {
				c.Classifier, c.ClaudeAPIKey, c.ClaudeModel = ClassifierClaude, "", ""
			}),
			wantErr:   true,
			errSubstr: []string{"CLAUDE_API_KEY", "CLAUDE_MODEL"},
		},
		{
			name: "claude ignores missing gemini key",
			cfg: with(func(c *Config) {
				c.Classifier, c.ClaudeAPIKey, c.ClaudeModel, c.GeminiAPIKey = ClassifierClaude, "k", "m", ""
			}),
			wantErr: false,
		},
		// Stores
		{
			name: "postgres and sqlite together",
			cfg: with(func(c *Config) {
				c.DatabaseURL, c.SQLitePath = "postgres://localhost/radtriage", "/tmp/radtriage.db"
			}),
			wantErr:   true,
			errSubstr: []string{"mutually exclusive"},
		},
		{
			name:      "s3 without bucket",
			cfg:       with(func(c *Config) { c.S3Bucket = "" }),
			wantErr:   true,
			errSubstr: []string{"S3_BUCKET"},
		},
		{
			name:      "s3 half credentials",
			cfg:       with(func(c *Config) { c.S3AccessKeyID = "AKIA" }),
			wantErr:   true,
			errSubstr: []string{"S3_ACCESS_KEY_ID"},
		},
		{
			name:      "dir without path",
			cfg:       with(func(c *Config) { c.StorageBackend, c.S3Bucket = StorageDir, "" }),
			wantErr:   true,
			errSubstr: []string{"STORAGE_DIR"},
		},
		{
			name:    "dir with path",
			cfg:     with(func(c *Config) { c.StorageBackend, c.S3Bucket, c.StorageDir = StorageDir, "", "/srv/scans" }),
			wantErr: false,
		},
		{
			name:      "unknown storage backend",
			cfg:       with(func(c *Config) { c.StorageBackend = "azure" }),
			wantErr:   true,
			errSubstr: []string{"STORAGE_BACKEND"},
		},
		// Limits
		{
			name:      "upload limit zero",
			cfg:       with(func(c *Config) { c.MaxUploadMB = 0 }),
			wantErr:   true,
			errSubstr: []string{"MAX_UPLOAD_MB"},
		},
		{
			name:      "threshold zero",
			cfg:       with(func(c *Config) { c.CriticalThreshold = 0 }),
			wantErr:   true,
			errSubstr: []string{"CRITICAL_THRESHOLD"},
		},
		{
			name:      "threshold NaN",
			cfg:       with(func(c *Config) { c.CriticalThreshold = math.NaN() }),
			wantErr:   true,
			errSubstr: []string{"CRITICAL_THRESHOLD"},
		},
		// Error accumulation: all fields invalid
		{
			name:      "all fields invalid",
			cfg:       Config{},
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT", "CLASSIFIER", "STORAGE_BACKEND", "MAX_UPLOAD_MB", "CRITICAL_THRESHOLD"},
		},
		// Extreme values
		{
			name: "extreme negative values",
			cfg: with(func(c *Config) {
				c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = math.MinInt32, math.MinInt32, math.MinInt32
			}),
			wantErr:   true,
			errSubstr: []string{"DRAIN_SECONDS", "SHUTDOWN_BUDGET_SECONDS", "HTTP_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				errMsg := err.Error()
				for _, sub := range tt.errSubstr {
					if !strings.Contains(errMsg, sub) {
						t.Errorf("error %q does not contain %q", errMsg, sub)
					}
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port int
		classifier, key     string
		threshold           float64
	}{
		{60, 90, 8080, "gemini", "gm-test", 9},
		{1, 2, 1, "claude", "k", 0.5},
		{299, 300, 65535, "gemini", "k", 10},
		{0, 0, 0, "", "", 0},
		{-1, -1, -1, "gpt", "", -1},
		{300, 300, 65535, "gemini", "k", 9},
		{301, 302, 65536, "", "", 11},
		{150, 100, 8080, "claude", "k", 9},
		{math.MinInt32, math.MinInt32, math.MinInt32, "", "", math.Inf(-1)},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", math.Inf(1)},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.classifier, s.key, s.threshold)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port int, classifier, key string, threshold float64) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.Classifier = classifier
		c.GeminiAPIKey = key
		c.ClaudeAPIKey = key
		c.ClaudeModel = "claude-sonnet-4-20250514"
		c.CriticalThreshold = threshold
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		classifierOK := (classifier == ClassifierGemini || classifier == ClassifierClaude) && key != ""
		thresholdOK := threshold > 0 && threshold <= 10

		allValid := drainOK && budgetOK && portOK && crossOK && classifierOK && thresholdOK

		if allValid && err != nil {
			t.Errorf("expected no error for valid config %+v, got: %v", c, err)
		}
		if !allValid && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
	})
}
