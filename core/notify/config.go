package notify

// Config holds configuration for the notification sink.
type Config struct {
	// WebhookURL is the chat-service webhook messages are posted to.
	WebhookURL string `mapstructure:"webhook_url" default:""`
	// TimeoutSeconds is the per-post timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"10"`
}
