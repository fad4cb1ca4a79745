package cache

// Config holds configuration for the shared Redis key-value store.
type Config struct {
	// Host is the Redis host.
	Host string `mapstructure:"host" default:"localhost"`
	// Port is the Redis port.
	Port int `mapstructure:"port" default:"6379"`
	// Password is the Redis password.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis database index.
	DB int `mapstructure:"db" default:"0"`
	// TimeoutSeconds is the dial/ping timeout in seconds.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"2"`
}
