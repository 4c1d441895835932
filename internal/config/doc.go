// Package config provides centralized configuration management for csvpulse.
// It handles loading configuration from multiple sources, validation, and provides
// a type-safe API for accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// The file is read from $CSVPULSE_CONFIG, or config.yaml or configs/config.yaml
// in the working directory.
//
// # Environment Variables
//
// All environment variables follow the pattern CSVPULSE_<SECTION>_<FIELD>:
//
//	CSVPULSE_SERVER_PORT=8080
//	CSVPULSE_SESSIONS_TTL=30m
//	CSVPULSE_PIPELINE_DEFAULT_TOP_N=10
//	CSVPULSE_SECURITY_ALLOWED_ORIGINS=http://localhost:3000,http://localhost:8080
//	CSVPULSE_LOGGING_LEVEL=debug
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := session.NewStore(cfg.Sessions.TTL, cfg.Sessions.MaxSessions)
package config
