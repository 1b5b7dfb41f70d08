// Package config loads the YAML configuration shared by the sample
// czrpc server/client binaries, in the same style as the teacher's
// config/server_config.go: a flat struct tree decoded with yaml.v3 and
// exposed through a lazily-initialized singleton.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RedisConfig configures the optional shared auth-token store.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// MongoConfig configures the optional call-audit log.
type MongoConfig struct {
	URI        string `yaml:"uri,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// ConsulConfig configures service registration/discovery for the sample
// echo server and client.
type ConsulConfig struct {
	Addr        string `yaml:"addr,omitempty"`
	ServiceName string `yaml:"service_name,omitempty"`
}

// NSQConfig configures the connection-lifecycle event bus.
type NSQConfig struct {
	NSQDAddr                string `yaml:"nsqd_addr,omitempty"`
	NSQLookupdHTTPAddress   string `yaml:"nsqlookupd_http_address,omitempty"`
	Topic                   string `yaml:"topic,omitempty"`
	Channel                 string `yaml:"channel,omitempty"`
}

// ServerConfig is the sample echo server's full configuration.
type ServerConfig struct {
	ListenAddr string       `yaml:"listen_addr"`
	AuthToken  string       `yaml:"auth_token,omitempty"`
	Redis      RedisConfig  `yaml:"redis"`
	Mongo      MongoConfig  `yaml:"mongo"`
	Consul     ConsulConfig `yaml:"consul"`
	NSQ        NSQConfig    `yaml:"nsq"`
}

var serverConfigInstance *ServerConfig

// GetServerConfig lazily loads config/server.yaml, panicking on failure —
// matching the teacher's GetServerConfig, which treats a broken config as
// unrecoverable at startup.
func GetServerConfig() *ServerConfig {
	if serverConfigInstance == nil {
		cfg, err := loadServerConfig("config/server.yaml")
		if err != nil {
			panic(fmt.Sprintf("failed to load server config: %v", err))
		}
		serverConfigInstance = cfg
	}
	return serverConfigInstance
}

func loadServerConfig(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config data from %s: %w", path, err)
	}
	return &cfg, nil
}

// ClientConfig is the sample echo client's configuration.
type ClientConfig struct {
	ServerAddr string       `yaml:"server_addr,omitempty"`
	Consul     ConsulConfig `yaml:"consul"`
	NSQ        NSQConfig    `yaml:"nsq"`
	AuthToken  string       `yaml:"auth_token,omitempty"`
}

// LoadClientConfig loads a client config file, returning an error rather
// than panicking — the client binary can fall back to flags if this fails.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config data from %s: %w", path, err)
	}
	return &cfg, nil
}
