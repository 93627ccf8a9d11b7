package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the process configuration read at start-up.
type Settings struct {
	Tunables Config `json:"tunables" yaml:"tunables"`

	TickMillis           int `json:"tick-ms" yaml:"tick-ms"`
	HandshakeGraceMillis int `json:"handshake-grace-ms" yaml:"handshake-grace-ms"`

	// Port is a serial device path or a glob of candidates.
	Port  string `json:"port" yaml:"port"`
	Baud  int    `json:"baud" yaml:"baud"`
	HTTP  string `json:"http" yaml:"http"`
	DB    string `json:"db" yaml:"db"`
	Trace string `json:"trace" yaml:"trace"`
}

func DefaultSettings() Settings {
	return Settings{
		Tunables:             Default(),
		TickMillis:           100,
		HandshakeGraceMillis: 5000,
		Port:                 "/dev/ttyACM*",
		Baud:                 115200,
		HTTP:                 "localhost:8080",
		DB:                   "dcatc.db",
	}
}

func (s Settings) TickPeriod() time.Duration {
	return time.Duration(s.TickMillis) * time.Millisecond
}

func (s Settings) HandshakeGrace() time.Duration {
	return time.Duration(s.HandshakeGraceMillis) * time.Millisecond
}

func (s Settings) Validate() error {
	if s.TickMillis <= 0 || 1000%s.TickMillis != 0 {
		return fmt.Errorf("tick-ms %d must divide 1000", s.TickMillis)
	}
	if s.HandshakeGraceMillis < 0 {
		return fmt.Errorf("handshake-grace-ms %d is negative", s.HandshakeGraceMillis)
	}
	if err := s.Tunables.Validate(); err != nil {
		return fmt.Errorf("tunables: %w", err)
	}
	return nil
}

// LoadSettings reads path over DefaultSettings. Files ending in .yaml or .yml
// are YAML; everything else is JSON.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}
