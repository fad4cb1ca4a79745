package remote

// Config holds configuration for the remote table-service client.
type Config struct {
	// BaseURL is the root URL of the remote service API.
	BaseURL string `mapstructure:"base_url" default:"https://api.example.com/v0"`
	// Token is the bearer token used for every request.
	Token string `mapstructure:"token" default:""`
	// BaseID identifies the remote base holding the lead tables.
	BaseID string `mapstructure:"base_id" default:""`
	// MaxRetries bounds retries for each outbound call.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// RetryBackoffMillis is the fixed pause between retries.
	RetryBackoffMillis int `mapstructure:"retry_backoff_millis" default:"300"`
	// RequestsPerSecond caps the outbound request rate.
	RequestsPerSecond int `mapstructure:"requests_per_second" default:"5"`
	// TimeoutSeconds is the per-request timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// BatchSize is the service's cap on records per batch request.
	BatchSize int `mapstructure:"batch_size" default:"10"`
}
