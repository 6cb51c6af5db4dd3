// Package config loads ipocket configuration and builds the logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// When configPath is empty, ipocket.yaml is searched in the working
// directory, ./configs, and /etc/ipocket.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("database.path", "./data/ipocket.db")
	v.SetDefault("auth.access_token_ttl", "12h")
	v.SetDefault("auth.bootstrap_admin", "admin")
	v.SetDefault("server.rate_limit.rps", 100)
	v.SetDefault("server.rate_limit.burst", 200)

	// Connector defaults
	v.SetDefault("connectors.elasticsearch.timeout", "30s")
	v.SetDefault("connectors.elasticsearch.asset_type", "OTHER")
	v.SetDefault("connectors.prometheus.timeout", "30s")
	v.SetDefault("connectors.prometheus.ip_label", "instance")
	v.SetDefault("connectors.prometheus.asset_type", "OTHER")
	v.SetDefault("connectors.vcenter.timeout", "60s")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ipocket")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/ipocket")
	}

	// Environment variable support: IPOCKET_SERVER_PORT=9090
	v.SetEnvPrefix("IPOCKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
