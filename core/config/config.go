package config

import (
	"reflect"
	"strings"

	"leadsync/core/cache"
	"leadsync/core/database"
	"leadsync/core/logger"
	"leadsync/core/notify"
	"leadsync/core/remote"
	"leadsync/core/server"
	"leadsync/core/storage"
	"leadsync/feature/feeds"
	"leadsync/feature/leads/enrich"
	"leadsync/feature/leads/sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Database holds configuration for the database connection.
	Database database.Config `mapstructure:"database"`
	// Cache holds configuration for the shared key-value store.
	Cache cache.Config `mapstructure:"cache"`
	// Remote holds configuration for the remote table-service client.
	Remote remote.Config `mapstructure:"remote"`
	// Enrich holds configuration for the job-board detail fetcher.
	Enrich enrich.Config `mapstructure:"enrich"`
	// Feeds holds configuration for feed discovery.
	Feeds feeds.Config `mapstructure:"feeds"`
	// Sync holds configuration for the reconciliation cycle.
	Sync sync.Config `mapstructure:"sync"`
	// Notify holds configuration for the notification sink.
	Notify notify.Config `mapstructure:"notify"`
	// Storage holds configuration for the cycle-report archive.
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. SERVER_PORT -> server.port)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
