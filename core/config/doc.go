// Package config provides configuration management for the lead sync engine.
//
// It utilizes Viper for loading configuration from environment variables and
// an optional .env file. Each subsystem owns its partial Config struct; this
// package aggregates them and binds defaults from struct tags.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
