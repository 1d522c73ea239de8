// Package config holds runtime settings for the quiz binaries.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Backends for the remote question store.
const (
	BackendRTDB   = "rtdb"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DefaultDatabaseURL is the classroom Firebase database.
const DefaultDatabaseURL = "https://quizflow-analytics-default-rtdb.asia-southeast1.firebasedatabase.app/"

// Config is read from a JSON file, then overridden by the environment and
// finally by command-line flags.
type Config struct {
	Backend       string `json:"backend"`
	DatabaseURL   string `json:"database_url"`
	AuthToken     string `json:"auth_token"`
	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`
	// BankFile seeds the memory or redis backend with a JSON export.
	BankFile string `json:"bank_file"`
	// QuestionsPath is where the question bank lives; empty means the root.
	QuestionsPath string `json:"questions_path"`

	StatePath string `json:"state_path"`
	LogPath   string `json:"log_path"`
	Debug     bool   `json:"debug"`

	// Camera is a V4L2 device path. When empty, FrameGlob images are scanned.
	Camera       string   `json:"camera"`
	FrameGlob    string   `json:"frame_glob"`
	ScanInterval Duration `json:"scan_interval"`
}

// Duration unmarshals from a Go duration string such as "500ms".
type Duration time.Duration

// UnmarshalJSON accepts "500ms" or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// DataDir returns the per-user directory for state and logs.
func DataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = home
	}
	return filepath.Join(dir, "QuizFlow")
}

// DefaultStatePath returns the default state database path.
func DefaultStatePath() string {
	return filepath.Join(DataDir(), "state.sqlite")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DataDir(), "quizflow.log")
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backend:      BackendRTDB,
		DatabaseURL:  DefaultDatabaseURL,
		RedisAddr:    "localhost:6379",
		StatePath:    DefaultStatePath(),
		LogPath:      DefaultLogPath(),
		ScanInterval: Duration(500 * time.Millisecond),
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from QUIZFLOW_* and REDIS_* variables.
func (c *Config) ApplyEnv() {
	setString(&c.Backend, "QUIZFLOW_BACKEND")
	setString(&c.DatabaseURL, "QUIZFLOW_DATABASE_URL")
	setString(&c.AuthToken, "QUIZFLOW_AUTH_TOKEN")
	setString(&c.BankFile, "QUIZFLOW_BANK_FILE")
	setString(&c.QuestionsPath, "QUIZFLOW_QUESTIONS_PATH")
	setString(&c.StatePath, "QUIZFLOW_STATE_PATH")
	setString(&c.LogPath, "QUIZFLOW_LOG_PATH")
	setString(&c.Camera, "QUIZFLOW_CAMERA")
	setString(&c.FrameGlob, "QUIZFLOW_FRAMES")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
	if v := os.Getenv("QUIZFLOW_DEBUG"); v != "" {
		c.Debug, _ = strconv.ParseBool(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendRTDB:
		if c.DatabaseURL == "" {
			return errors.New("rtdb backend needs database_url")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("redis backend needs redis_addr")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.StatePath == "" {
		return errors.New("state_path is empty")
	}
	return nil
}
