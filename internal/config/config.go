package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"smtp-forensics/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// envFileVar names the variable pointing at an optional dotenv file (default ".env")
const envFileVar = "SMTPFX_ENV_FILE"

// Default returns the configuration used when no file is given
func Default() *models.Config {
	return &models.Config{
		Input: models.InputConfig{
			MinObjectSize: 50,
			Workers:       1,
			MaxPartDepth:  32,
		},
		Decoder: models.DecoderConfig{
			Binary:        "tshark",
			DisplayFilter: "smtp && ip",
			Protocol:      "SMTP",
			Timeout:       10 * time.Minute,
		},
		IMAP: models.IMAPConfig{
			MailBox: "INBOX",
			Timeout: 30 * time.Second,
		},
		Correlation: models.CorrelationConfig{
			Strategy: "positional",
		},
		Output: models.OutputConfig{
			Dir:         "output",
			EmailsFile:  "emails.json",
			FlowsFile:   "network_flows.json",
			FinalFile:   "final_emails.json",
			SummaryFile: "summary.json",
		},
		Index: models.IndexConfig{
			EmailIndex:    "email-data",
			FlowIndex:     "email-traffic",
			IDMode:        "sequence",
			BatchSize:     500,
			MaxBatchBytes: 10 << 20,
			Timeout:       60 * time.Second,
			CreateIndex:   true,
		},
		Logging: models.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration from the specified YAML file and returns a Config struct.
// Defaults come first, then the file (if filepath is not empty), then environment overrides.
func Load(filepath string) (*models.Config, error) {
	config := Default()

	if filepath != "" {
		configFile, err := os.ReadFile(filepath)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(configFile, config); err != nil {
			return nil, err
		}
	}

	if err := loadEnvFile(); err != nil {
		return nil, err
	}
	applyEnv(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// loadEnvFile loads a dotenv file into the process environment when one exists.
// Variables already set in the environment win.
func loadEnvFile() error {
	path := os.Getenv(envFileVar)
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides configuration values with non-empty SMTPFX_* variables
func applyEnv(c *models.Config) {
	setString(&c.Input.Pcap, "SMTPFX_PCAP")
	setString(&c.Input.ObjectsDir, "SMTPFX_OBJECTS_DIR")
	setString(&c.Input.FieldsFile, "SMTPFX_FIELDS_FILE")
	setInt(&c.Input.Workers, "SMTPFX_WORKERS")
	setString(&c.Decoder.Binary, "SMTPFX_TSHARK")
	setString(&c.IMAP.Server, "SMTPFX_IMAP_SERVER")
	setString(&c.IMAP.Login, "SMTPFX_IMAP_LOGIN")
	setString(&c.IMAP.Password, "SMTPFX_IMAP_PASSWORD")
	setString(&c.Output.Dir, "SMTPFX_OUTPUT_DIR")
	setString(&c.Index.URL, "SMTPFX_INDEX_URL")
	setString(&c.Index.EmailIndex, "SMTPFX_EMAIL_INDEX")
	setString(&c.Index.FlowIndex, "SMTPFX_FLOW_INDEX")
	setInt(&c.Index.BatchSize, "SMTPFX_BATCH_SIZE")
	setString(&c.Metrics.Textfile, "SMTPFX_METRICS_TEXTFILE")
	setString(&c.Logging.Level, "SMTPFX_LOG_LEVEL")
	setString(&c.Logging.Format, "SMTPFX_LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks the values the pipeline cannot recover from at run time
func Validate(c *models.Config) error {
	if c.Input.MinObjectSize < 0 {
		return fmt.Errorf("%w: input.minObjectSize must not be negative", ErrInvalid)
	}
	if c.Input.Workers < 1 {
		return fmt.Errorf("%w: input.workers must be at least 1", ErrInvalid)
	}
	if c.Input.MaxPartDepth < 1 {
		return fmt.Errorf("%w: input.maxPartDepth must be at least 1", ErrInvalid)
	}
	if strings.ToLower(c.Correlation.Strategy) != "positional" {
		return fmt.Errorf("%w: unknown correlation strategy %q", ErrInvalid, c.Correlation.Strategy)
	}
	switch c.Index.IDMode {
	case "sequence", "hash":
	default:
		return fmt.Errorf("%w: unknown index.idMode %q", ErrInvalid, c.Index.IDMode)
	}
	if c.Index.BatchSize < 1 {
		return fmt.Errorf("%w: index.batchSize must be at least 1", ErrInvalid)
	}
	if c.Index.MaxRetries < 0 {
		return fmt.Errorf("%w: index.maxRetries must not be negative", ErrInvalid)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("%w: unknown logging.format %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}
