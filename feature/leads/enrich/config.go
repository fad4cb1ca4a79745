package enrich

// Config holds configuration for the job-board detail fetcher.
type Config struct {
	// BaseURL is the job-board detail API root.
	BaseURL string `mapstructure:"base_url" default:""`
	// Tokens is a comma-separated pool of access tokens rotated on
	// rate-limit or auth failures.
	Tokens string `mapstructure:"tokens" default:""`
	// MaxRetries bounds detail-fetch retries per record.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// BackoffMillis is the fixed pause between retries.
	BackoffMillis int `mapstructure:"backoff_millis" default:"2000"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}
