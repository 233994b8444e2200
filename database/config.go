/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over the default connection settings and
// validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{ConnectionConfig: *DefaultConnectionConfig()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	cc := &c.ConnectionConfig
	if cc.Type == "" {
		return fmt.Errorf("database type is required")
	}
	if cc.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if cc.MaxOpenConns > 0 && cc.MaxIdleConns > cc.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", cc.MaxIdleConns, cc.MaxOpenConns)
	}
	if c.DataMigrateConfig.EnableForeignKey && c.DataMigrateConfig.ForeignKeyFile == "" {
		return fmt.Errorf("foreign_key_file is required when enable_foreign_key is set")
	}
	return nil
}
