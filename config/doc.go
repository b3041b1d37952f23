// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment.
//
// Files are searched in the conventional locations (./cmd/<service>/config.yml,
// ./config/config.yml, ./config.yml and the matching .env files). Every
// mapstructure key of the target struct is bound to the environment variable
// formed by upper-casing the dotted path and replacing dots with underscores,
// so RESOLVER_MATCH_THRESHOLD overrides resolver.match_threshold.
//
//	var cfg AppConfig
//	if err := config.LoadConfig("speakerhub", &cfg); err != nil { ... }
package config
