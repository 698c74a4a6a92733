package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL         = "http://localhost:5000/api"
	DefaultListenAddr     = ":8080"
	DefaultRequestTimeout = 30 * time.Second
	DefaultHealthTimeout  = 5 * time.Second
	DefaultTestPause      = 500 * time.Millisecond
	DefaultRefreshDelay   = 1500 * time.Millisecond
	DefaultHealthInterval = time.Minute
)

type Config struct {
	APIURL   string `yaml:"api_url"`
	APIToken string `yaml:"api_token"`
	UseMock  bool   `yaml:"use_mock"`

	ListenAddr string `yaml:"listen_addr"`
	RootDir    string `yaml:"root_dir"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	HealthTimeout  time.Duration `yaml:"health_timeout"`
	TestPause      time.Duration `yaml:"test_pause"`
	RefreshDelay   time.Duration `yaml:"refresh_delay"`
	HealthInterval time.Duration `yaml:"health_interval"`

	Database DatabaseConfig `yaml:"database"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or mysql
	URL    string `yaml:"url"`
}

func Default() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		ListenAddr:     DefaultListenAddr,
		RequestTimeout: DefaultRequestTimeout,
		HealthTimeout:  DefaultHealthTimeout,
		TestPause:      DefaultTestPause,
		RefreshDelay:   DefaultRefreshDelay,
		HealthInterval: DefaultHealthInterval,
		Database: DatabaseConfig{
			Driver: "postgres",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// DASHBOARD_CONFIG, a .env file in the working directory and finally the
// process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}

	cfg := Default()
	if file := os.Getenv("DASHBOARD_CONFIG"); file != "" {
		if err := cfg.loadFile(file); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(file string) error {
	contents, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "error reading config file %s", file)
	}
	if err := yaml.Unmarshal(contents, c); err != nil {
		return errors.Wrapf(err, "error parsing config file %s", file)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.APIURL, "API_URL")
	setString(&c.APIToken, "API_TOKEN")
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.RootDir, "DASHBOARD_ROOT")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.URL, "DATABASE_URL")

	if v := os.Getenv("USE_MOCK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid USE_MOCK %q", v)
		}
		c.UseMock = b
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REQUEST_TIMEOUT", &c.RequestTimeout},
		{"HEALTH_TIMEOUT", &c.HealthTimeout},
		{"TEST_PAUSE", &c.TestPause},
		{"REFRESH_DELAY", &c.RefreshDelay},
		{"HEALTH_INTERVAL", &c.HealthInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s %q", d.key, v)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	if c.UseMock {
		return c.validateDurations()
	}
	if c.APIURL == "" {
		return errors.New("api url is empty")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return errors.Wrapf(err, "invalid api url %q", c.APIURL)
	}
	if !u.IsAbs() || u.Host == "" {
		return errors.Errorf("api url must be an absolute URL, got=%q", c.APIURL)
	}
	return c.validateDurations()
}

func (c *Config) validateDurations() error {
	if c.RequestTimeout < 0 || c.HealthTimeout < 0 || c.TestPause < 0 || c.RefreshDelay < 0 || c.HealthInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
