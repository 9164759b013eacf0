// Package config provides configuration structures for the harness.
package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Host         string    `json:"host" yaml:"host" mapstructure:"host"`
	GoodPort     uint32    `json:"goodPort" yaml:"goodPort" mapstructure:"goodPort"`
	BadPort      uint32    `json:"badPort" yaml:"badPort" mapstructure:"badPort"`
	Responder    Responder `json:"responder" yaml:"responder" mapstructure:"responder"`
	Probe        Probe     `json:"probe" yaml:"probe" mapstructure:"probe"`
	Report       Report    `json:"report" yaml:"report" mapstructure:"report"`
	Debug        bool      `json:"debug" yaml:"debug" mapstructure:"debug"`
	DebugModules []string  `json:"debugModules" yaml:"debugModules" mapstructure:"debugModules"`
	DisableANSI  bool      `json:"disableANSI" yaml:"disableANSI" mapstructure:"disableANSI"`
	ConfigPath   string    `json:"configPath" yaml:"configPath" mapstructure:"configPath"`
}

type Responder struct {
	// GraceDelay is how long a connection stays open after the response is written.
	GraceDelay time.Duration `json:"graceDelay" yaml:"graceDelay" mapstructure:"graceDelay"`
	// ReadTimeout bounds the request read, zero means no bound.
	ReadTimeout time.Duration `json:"readTimeout" yaml:"readTimeout" mapstructure:"readTimeout"`
	// MaxConns caps in-flight connections per responder, zero means no cap.
	MaxConns int `json:"maxConns" yaml:"maxConns" mapstructure:"maxConns"`
}

type Probe struct {
	Attempts          int           `json:"attempts" yaml:"attempts" mapstructure:"attempts"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	ReadBufferSize    int           `json:"readBufferSize" yaml:"readBufferSize" mapstructure:"readBufferSize"`
	DisableKeepAlives bool          `json:"disableKeepAlives" yaml:"disableKeepAlives" mapstructure:"disableKeepAlives"`
}

type Report struct {
	// Path of a YAML file the run report is written to. Empty disables it.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Validate checks the values the responders and the driver cannot work without.
func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host must not be empty"))
	}
	if c.GoodPort > 65535 || c.BadPort > 65535 {
		errs = append(errs, fmt.Errorf("ports must be below 65536, got good=%d bad=%d", c.GoodPort, c.BadPort))
	}
	if c.GoodPort != 0 && c.GoodPort == c.BadPort {
		errs = append(errs, fmt.Errorf("goodPort and badPort must differ, both are %d", c.GoodPort))
	}
	if c.Responder.GraceDelay < 0 {
		errs = append(errs, fmt.Errorf("responder.graceDelay must not be negative, got %v", c.Responder.GraceDelay))
	}
	if c.Responder.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("responder.readTimeout must not be negative, got %v", c.Responder.ReadTimeout))
	}
	if c.Responder.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("responder.maxConns must not be negative, got %d", c.Responder.MaxConns))
	}
	if c.Probe.Attempts < 1 {
		errs = append(errs, fmt.Errorf("probe.attempts must be at least 1, got %d", c.Probe.Attempts))
	}
	if c.Probe.ReadBufferSize < 1 {
		errs = append(errs, fmt.Errorf("probe.readBufferSize must be at least 1, got %d", c.Probe.ReadBufferSize))
	}
	return errors.Join(errs...)
}
