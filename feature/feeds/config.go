package feeds

// Config holds configuration for feed discovery.
type Config struct {
	// Enabled toggles the feature.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// FeedURL is the job-board atom feed endpoint.
	FeedURL string `mapstructure:"feed_url" default:""`
	// Keywords is a comma-separated list of search keywords, one feed
	// fetch per keyword.
	Keywords string `mapstructure:"keywords" default:""`
	// AllowedHost restricts posting links to one host; anything else is
	// dropped with a warning. Empty disables the check.
	AllowedHost string `mapstructure:"allowed_host" default:""`
	// Timezone is the IANA zone used to bucket posting times into shifts.
	Timezone string `mapstructure:"timezone" default:"UTC"`
	// Table is the discovery table new postings are saved to.
	Table string `mapstructure:"table" default:"Projects"`
	// MaxRetries bounds feed-fetch retries.
	MaxRetries int `mapstructure:"max_retries" default:"3"`
	// TimeoutSeconds is the per-fetch timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// IntervalMinutes is the pause between scheduled discovery passes.
	IntervalMinutes int `mapstructure:"interval_minutes" default:"15"`
}
