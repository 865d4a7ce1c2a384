package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/y0f/check-http-json/internal/rules"
	"github.com/y0f/check-http-json/internal/units"
)

type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Rules   RulesConfig   `yaml:"rules"`
	Logging LoggingConfig `yaml:"logging"`
	Export  ExportConfig  `yaml:"export"`
}

type TargetConfig struct {
	Host         string            `yaml:"host"`
	Port         int               `yaml:"port"`
	Path         string            `yaml:"path"`
	SSL          bool              `yaml:"ssl"`
	Insecure     bool              `yaml:"insecure"`
	Timeout      time.Duration     `yaml:"timeout"`
	Data         string            `yaml:"data"`
	Headers      map[string]string `yaml:"headers"`
	BasicAuth    string            `yaml:"basic_auth"` // "user:password"
	Proxy        string            `yaml:"proxy"`
	BlockPrivate bool              `yaml:"block_private"`
	MaxBodySize  int64             `yaml:"max_body_size"`
}

type RulesConfig struct {
	Separator         string   `yaml:"separator"`
	FieldType         string   `yaml:"field_type"`
	Warning           []string `yaml:"warning"`
	Critical          []string `yaml:"critical"`
	KeyExists         []string `yaml:"key_exists"`
	KeyExistsCritical []string `yaml:"key_exists_critical"`
	KeyEquals         []string `yaml:"key_equals"`
	KeyEqualsCritical []string `yaml:"key_equals_critical"`
	Metrics           []string `yaml:"metrics"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

type ExportConfig struct {
	// Textfile is a Prometheus textfile collector path; empty disables export.
	Textfile string `yaml:"textfile"`
}

func Defaults() *Config {
	return &Config{
		Target: TargetConfig{
			Timeout:     10 * time.Second,
			MaxBodySize: 10 << 20, // 10MB
		},
		Rules: RulesConfig{
			Separator: ".",
			FieldType: "str",
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads a YAML check definition on top of Defaults. Environment
// variables in the file are expanded. Callers validate after applying
// command line overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateTarget(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := validateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be one of: text, json")
	}
	return nil
}

func (c *Config) validateTarget() error {
	t := &c.Target
	if strings.TrimSpace(t.Host) == "" {
		return fmt.Errorf("target.host is required")
	}
	if t.Port < 0 || t.Port > 65535 {
		return fmt.Errorf("target.port must be between 0 and 65535")
	}
	if t.Timeout < 0 {
		return fmt.Errorf("target.timeout must not be negative")
	}
	if t.MaxBodySize <= 0 {
		return fmt.Errorf("target.max_body_size must be positive")
	}
	if t.BasicAuth != "" && !strings.Contains(t.BasicAuth, ":") {
		return fmt.Errorf("target.basic_auth must be in user:password form")
	}
	if t.Proxy != "" {
		u, err := url.Parse(t.Proxy)
		if err != nil || u.Host == "" {
			return fmt.Errorf("target.proxy must be an absolute URL (e.g. socks5://127.0.0.1:1080)")
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("target.proxy scheme must be http, https or socks5")
		}
	}
	if _, err := url.Parse(c.URL()); err != nil {
		return fmt.Errorf("target: invalid url: %w", err)
	}
	return nil
}

func (c *Config) validateRules() error {
	if _, err := units.ParseMode(c.Rules.FieldType); err != nil {
		return fmt.Errorf("rules.field_type: %w", err)
	}
	if strings.ContainsAny(c.Rules.Separator, "()") {
		return fmt.Errorf("rules.separator must not contain parentheses")
	}
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
}

// URL builds the endpoint address: scheme://host[:port][/path].
func (c *Config) URL() string {
	scheme := "http"
	if c.Target.SSL {
		scheme = "https"
	}
	u := scheme + "://" + c.Target.Host
	if c.Target.Port > 0 {
		u += ":" + strconv.Itoa(c.Target.Port)
	}
	if p := strings.TrimPrefix(c.Target.Path, "/"); p != "" {
		u += "/" + p
	}
	return u
}

// Credentials splits BasicAuth into user and password.
func (c *Config) Credentials() (user, password string, ok bool) {
	if c.Target.BasicAuth == "" {
		return "", "", false
	}
	return strings.Cut(c.Target.BasicAuth, ":")
}

func (c *Config) RuleSet() rules.RuleSet {
	r := c.Rules
	return rules.RuleSet{
		Separator:         r.Separator,
		FieldType:         r.FieldType,
		Warning:           r.Warning,
		Critical:          r.Critical,
		KeyExists:         r.KeyExists,
		KeyExistsCritical: r.KeyExistsCritical,
		KeyEquals:         r.KeyEquals,
		KeyEqualsCritical: r.KeyEqualsCritical,
		Metrics:           r.Metrics,
	}
}
