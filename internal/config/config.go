package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Fallback policies applied when the audio-transcription fallback fails
const (
	PolicyDegrade = "degrade"
	PolicyStrict  = "strict"
)

// ErrMissingAPIKey is returned by Validate when no metadata API key is configured.
var ErrMissingAPIKey = errors.New("YOUTUBE_API_KEY is required")

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	YouTube struct {
		APIKey    string   `yaml:"api_key"`
		Endpoint  string   `yaml:"endpoint"`
		Languages []string `yaml:"languages"`
	} `yaml:"youtube"`

	Captions struct {
		WatchURL          string        `yaml:"watch_url"`
		ProxyURL          string        `yaml:"proxy_url"`
		RequestsPerSecond float64       `yaml:"requests_per_second"`
		Timeout           time.Duration `yaml:"timeout"`
	} `yaml:"captions"`

	Download struct {
		Binary string `yaml:"binary"`
	} `yaml:"download"`

	Storage struct {
		ScratchDir string `yaml:"scratch_dir"`
		Database   string `yaml:"database"`
		Bucket     string `yaml:"bucket"`
	} `yaml:"storage"`

	Transcribe struct {
		Region       string        `yaml:"region"`
		MediaFormat  string        `yaml:"media_format"`
		LanguageCode string        `yaml:"language_code"`
		PollInterval time.Duration `yaml:"poll_interval"`
		JobTimeout   time.Duration `yaml:"job_timeout"`
	} `yaml:"transcribe"`

	Fallback struct {
		Policy string `yaml:"policy"`
	} `yaml:"fallback"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.YouTube.Endpoint = "https://www.googleapis.com/youtube/v3/"
	cfg.YouTube.Languages = []string{"en"}
	cfg.Captions.WatchURL = "https://www.youtube.com/watch"
	cfg.Captions.RequestsPerSecond = 2
	cfg.Captions.Timeout = 15 * time.Second
	cfg.Download.Binary = "yt-dlp"
	cfg.Storage.ScratchDir = "temp"
	cfg.Storage.Database = "jobs.db"
	cfg.Storage.Bucket = "learningmodeai-transcription"
	cfg.Transcribe.Region = "us-east-2"
	cfg.Transcribe.MediaFormat = "mp3"
	cfg.Transcribe.LanguageCode = "en-US"
	cfg.Transcribe.PollInterval = 5 * time.Second
	cfg.Transcribe.JobTimeout = 30 * time.Minute
	cfg.Fallback.Policy = PolicyDegrade
	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 24
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load reads a .env file if present, then the YAML file at path (a missing
// file keeps the defaults), then applies environment overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.YouTube.APIKey, "YOUTUBE_API_KEY")
	setString(&c.YouTube.Endpoint, "YOUTUBE_API_ENDPOINT")
	setString(&c.Captions.ProxyURL, "CAPTIONS_PROXY_URL")
	setString(&c.Storage.ScratchDir, "SCRATCH_DIR")
	setString(&c.Storage.Database, "JOBS_DATABASE")
	setString(&c.Storage.Bucket, "TRANSCRIPTION_BUCKET")
	setString(&c.Transcribe.Region, "TRANSCRIBE_REGION")
	setString(&c.Fallback.Policy, "FALLBACK_POLICY")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("YOUTUBE_LANGUAGES"); v != "" {
		c.YouTube.Languages = strings.Split(v, ",")
	}
	if v := os.Getenv("TRANSCRIBE_JOB_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRANSCRIBE_JOB_TIMEOUT %q: %w", v, err)
		}
		c.Transcribe.JobTimeout = d
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate checks the fields the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.YouTube.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.Fallback.Policy {
	case PolicyDegrade, PolicyStrict:
	default:
		return fmt.Errorf("unknown fallback policy %q (want %s or %s)", c.Fallback.Policy, PolicyDegrade, PolicyStrict)
	}
	if c.Transcribe.PollInterval <= 0 {
		return fmt.Errorf("transcribe.poll_interval must be positive")
	}
	if c.Transcribe.JobTimeout <= 0 {
		return fmt.Errorf("transcribe.job_timeout must be positive")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
