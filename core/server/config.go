package server

// Config holds configuration for the HTTP server.
type Config struct {
	// Port is the port where the server will listen.
	Port string `mapstructure:"port" default:"8080"`
	// ApiKey is the secret key required to access the admin API.
	ApiKey string `mapstructure:"api_key" default:""`
	// PublicURL is the externally reachable base URL, used when registering
	// change webhooks with the remote service.
	PublicURL string `mapstructure:"public_url" default:"http://localhost:8080"`
}
