/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Package config provides structures and functions for loading and managing server configurations.
package config

import (
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/asgardeo/stageflow/internal/system/log"
)

// ServerConfig holds the server configuration details.
type ServerConfig struct {
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"`
	HTTPOnly bool   `yaml:"http_only"`
}

// SecurityConfig holds the TLS certificate of the server.
type SecurityConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// DataSource holds the individual database connection details.
type DataSource struct {
	Type            string `yaml:"type"`
	Hostname        string `yaml:"hostname"`
	Port            int    `yaml:"port"`
	Name            string `yaml:"name"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SSLMode         string `yaml:"sslmode"`
	Path            string `yaml:"path"`
	Options         string `yaml:"options"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
}

// DatabaseConfig holds the different database configuration details.
// The config database stores flow, stage and policy definitions, while the runtime
// database stores flow tokens.
type DatabaseConfig struct {
	Config  DataSource `yaml:"config"`
	Runtime DataSource `yaml:"runtime"`
}

// CacheProperty holds the overrides of an individual cache.
type CacheProperty struct {
	Name            string `yaml:"name"`
	Disabled        bool   `yaml:"disabled"`
	Size            int    `yaml:"size"`
	TTL             int    `yaml:"ttl"`
	EvictionPolicy  string `yaml:"eviction_policy"`
	CleanupInterval int    `yaml:"cleanup_interval"`
}

// CacheConfig holds the cache configuration details.
type CacheConfig struct {
	Disabled        bool            `yaml:"disabled"`
	Type            string          `yaml:"type"`
	Size            int             `yaml:"size"`
	TTL             int             `yaml:"ttl"`
	EvictionPolicy  string          `yaml:"eviction_policy"`
	CleanupInterval int             `yaml:"cleanup_interval"`
	Properties      []CacheProperty `yaml:"properties"`
}

// RedisConfig holds the redis connection details shared by the redis backed stores.
type RedisConfig struct {
	Address   string `yaml:"address"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// SessionConfig holds the flow session store configuration.
type SessionConfig struct {
	Type       string `yaml:"type"`
	CookieName string `yaml:"cookie_name"`
	TTL        int    `yaml:"ttl"`
	Directory  string `yaml:"directory"`
	Secure     bool   `yaml:"secure"`
}

// FlowConfig holds the configuration of the flow planner and executor.
type FlowConfig struct {
	BlueprintDirectory string `yaml:"blueprint_directory"`
	DefinitionStore    string `yaml:"definition_store"`
	TokenStore         string `yaml:"token_store"`
	TokenValidity      int    `yaml:"token_validity"`
	DefaultRedirect    string `yaml:"default_redirect"`
	Debug              bool   `yaml:"debug"`
	// ReevaluateWithRequestSubject lets re-evaluated bindings fall back to the request subject
	// when the plan carries no pending user.
	ReevaluateWithRequestSubject *bool `yaml:"reevaluate_with_request_subject"`
	HistoryLimit                 int   `yaml:"history_limit"`
}

// PolicyConfig holds the policy engine configuration.
type PolicyConfig struct {
	DefaultTimeout int    `yaml:"default_timeout"`
	Mode           string `yaml:"mode"`
}

// AMQPConfig holds the connection details of the lifecycle event publisher.
type AMQPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// EventsConfig holds the lifecycle event configuration.
type EventsConfig struct {
	Log  bool       `yaml:"log"`
	AMQP AMQPConfig `yaml:"amqp"`
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CORSConfig holds the origins allowed to call the flow APIs from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Config holds the complete configuration details of the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	Flow     FlowConfig     `yaml:"flow"`
	Policy   PolicyConfig   `yaml:"policy"`
	Events   EventsConfig   `yaml:"events"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	CORS     CORSConfig     `yaml:"cors"`
}

// LoadConfig loads the configurations from the specified YAML file.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	path = filepath.Clean(path)

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if ferr := file.Close(); ferr != nil {
			log.GetLogger().Error("Failed to close config file", log.Error(ferr))
		}
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ShouldReevaluateWithRequestSubject returns whether re-evaluation may fall back to the request subject.
// Defaults to true when not configured.
func (c FlowConfig) ShouldReevaluateWithRequestSubject() bool {
	if c.ReevaluateWithRequestSubject == nil {
		return true
	}
	return *c.ReevaluateWithRequestSubject
}
