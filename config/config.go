package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration parameters read from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`

	// Admin endpoints (access logs, user management) check this password
	// against the X-Admin-Password header. Empty disables the check.
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	ArxivBaseURL       string `envconfig:"ARXIV_BASE_URL" default:"https://export.arxiv.org/api/query"`
	SemanticBaseURL    string `envconfig:"SEMANTIC_SCHOLAR_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	OpenAlexBaseURL    string `envconfig:"OPENALEX_BASE_URL" default:"https://api.openalex.org"`
	OpenAlexMailto     string `envconfig:"OPENALEX_MAILTO" default:"contact@example.com"`
	Ar5ivBaseURL       string `envconfig:"AR5IV_BASE_URL" default:"https://ar5iv.labs.arxiv.org"`
	HuggingFaceBaseURL string `envconfig:"HUGGINGFACE_BASE_URL" default:"https://huggingface.co/api/daily_papers"`

	// Claude CLI settings for abstract summaries and deep analysis.
	ClaudeBinary         string `envconfig:"CLAUDE_BINARY" default:"claude"`
	ClaudeTimeoutSeconds int    `envconfig:"CLAUDE_TIMEOUT_SECONDS" default:"300"`
	ClaudeMaxRetries     int    `envconfig:"CLAUDE_MAX_RETRIES" default:"3"`

	// Document store backend: "file" (local JSON directory) or "s3".
	DocStoreBackend string `envconfig:"DOC_STORE" default:"file"`
	PapersDir       string `envconfig:"PAPERS_DIR" default:"./papers"`

	DocS3Key    string `envconfig:"DOC_S3_KEY"`
	DocS3Secret string `envconfig:"DOC_S3_SECRET"`
	DocS3URL    string `envconfig:"DOC_S3_URL"`
	DocS3Region string `envconfig:"DOC_S3_REGION"`
	DocS3Bucket string `envconfig:"DOC_S3_BUCKET"`

	// Schedule for the citation refresh sweep.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 4 * * *"`
}

// DSN returns the Data Source Name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if c.DocStoreBackend == "s3" {
		if c.DocS3Key == "" || c.DocS3Secret == "" || c.DocS3URL == "" || c.DocS3Region == "" || c.DocS3Bucket == "" {
			return nil, fmt.Errorf("DOC_STORE=s3 requires DOC_S3_KEY, DOC_S3_SECRET, DOC_S3_URL, DOC_S3_REGION and DOC_S3_BUCKET")
		}
	}
	return &c, nil
}
