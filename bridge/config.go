/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package bridge is the §4.11 integration container: it wires the
// gptp, avtp and avdecc providers for one endpoint process into a
// single unit driven from one Run loop.
package bridge

import (
	"bytes"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// PortConfig describes one gPTP/AVB port's tunables, read from the
// bridge config file, §4.11.
type PortConfig struct {
	Name             string        `yaml:"name"`
	AnnounceInterval time.Duration `yaml:"announce_interval"`
	SyncInterval     time.Duration `yaml:"sync_interval"`
	Priority1        uint8         `yaml:"priority1"`
	Priority2        uint8         `yaml:"priority2"`
}

// EntityConfig describes the ADECC entity this endpoint advertises,
// §4.11.
type EntityConfig struct {
	Name           string `yaml:"name"`
	EntityModelID  uint64 `yaml:"entity_model_id"`
	StreamInputs   int    `yaml:"stream_inputs"`
	StreamOutputs  int    `yaml:"stream_outputs"`
	Milan          bool   `yaml:"milan"`
}

// Config is the top-level bridge configuration, §4.11.
type Config struct {
	Domain uint8        `yaml:"domain"`
	Ports  []PortConfig `yaml:"ports"`
	Entity EntityConfig `yaml:"entity"`
}

// DefaultPortConfig returns a port config using the spec's default
// intervals, §4.6: 1s announce, 125ms sync.
func DefaultPortConfig(name string) PortConfig {
	return PortConfig{
		Name:             name,
		AnnounceInterval: time.Second,
		SyncInterval:     125 * time.Millisecond,
		Priority1:        248,
		Priority2:        248,
	}
}

// ReadConfig reads and strictly unmarshals the bridge config from
// path; unknown fields are rejected rather than silently ignored.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bridge: read config: %w", err)
	}
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("bridge: parse config: %w", err)
	}
	return c, nil
}

// Validate checks the config's invariants before it is wired into a
// Bridge, §4.11.
func (c *Config) Validate() error {
	if len(c.Ports) == 0 {
		return fmt.Errorf("bridge: config must declare at least one port")
	}
	seen := make(map[string]bool, len(c.Ports))
	for _, p := range c.Ports {
		if p.Name == "" {
			return fmt.Errorf("bridge: port with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("bridge: duplicate port name %q", p.Name)
		}
		seen[p.Name] = true
		if p.AnnounceInterval <= 0 || p.SyncInterval <= 0 {
			return fmt.Errorf("bridge: port %q must set positive announce/sync intervals", p.Name)
		}
	}
	return nil
}
