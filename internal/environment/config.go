package environment

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/fnjudge/internal/xdg"
)

const appName = "fnjudge"

// Duration is a time.Duration written as "90s" in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	LogLevel string `toml:"log_level"`

	Compiler struct {
		Clang     string   `toml:"clang"`
		Sysroot   string   `toml:"sysroot"`
		Workspace string   `toml:"workspace"`
		Timeout   Duration `toml:"timeout"`
		Flags     []string `toml:"flags"`
	} `toml:"compiler"`

	Governor struct {
		MemoryMiB    int64    `toml:"memory_mib"`
		MaxInstances int64    `toml:"max_instances"`
		CallTimeout  Duration `toml:"call_timeout"`
		EpochTick    Duration `toml:"epoch_tick"`
	} `toml:"governor"`

	Tester struct {
		FuelMultiplier       float64 `toml:"fuel_multiplier"`
		CustomFuelMultiplier float64 `toml:"custom_fuel_multiplier"`
	} `toml:"tester"`

	Jobs struct {
		RunTimeout      Duration `toml:"run_timeout"`
		GenerateTimeout Duration `toml:"generate_timeout"`
		CustomTimeout   Duration `toml:"custom_timeout"`
		MaxConcurrent   int64    `toml:"max_concurrent"`
	} `toml:"jobs"`

	Nats struct {
		URL     string `toml:"url"`
		Subject string `toml:"subject"`
		Queue   string `toml:"queue"`
	} `toml:"nats"`

	Sqs struct {
		Region          string `toml:"region"`
		Profile         string `toml:"profile"`
		RequestQueueUrl string `toml:"request_queue_url"`
	} `toml:"sqs"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	var c Config
	c.LogLevel = "info"

	c.Compiler.Clang = "clang++"
	if sdk := os.Getenv("WASI_SDK_PATH"); sdk != "" {
		c.Compiler.Clang = filepath.Join(sdk, "bin", "clang++")
		c.Compiler.Sysroot = filepath.Join(sdk, "share", "wasi-sysroot")
	}
	c.Compiler.Workspace = xdg.New().AppCacheDir(appName)
	c.Compiler.Timeout = Duration(30 * time.Second)

	c.Governor.MemoryMiB = 512
	c.Governor.MaxInstances = 4
	c.Governor.CallTimeout = Duration(10 * time.Second)
	c.Governor.EpochTick = Duration(10 * time.Millisecond)

	c.Tester.FuelMultiplier = 1.5
	c.Tester.CustomFuelMultiplier = 20

	c.Jobs.RunTimeout = Duration(90 * time.Second)
	c.Jobs.GenerateTimeout = Duration(120 * time.Second)
	c.Jobs.CustomTimeout = Duration(60 * time.Second)
	c.Jobs.MaxConcurrent = 2

	c.Nats.URL = "nats://127.0.0.1:4222"
	c.Nats.Subject = "fnjudge.jobs"
	c.Nats.Queue = "fnjudge"

	c.Sqs.Region = "eu-central-1"
	return c
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.New().AppConfigDir(appName), "config.toml")
}

// Load reads .env into the process environment, then the TOML file at
// path over the defaults, then FNJUDGE_* variables over both. A missing
// file at the default path is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"FNJUDGE_LOG_LEVEL":         &c.LogLevel,
		"FNJUDGE_CLANG":             &c.Compiler.Clang,
		"FNJUDGE_SYSROOT":           &c.Compiler.Sysroot,
		"FNJUDGE_WORKSPACE":         &c.Compiler.Workspace,
		"FNJUDGE_NATS_URL":          &c.Nats.URL,
		"FNJUDGE_SQS_REGION":        &c.Sqs.Region,
		"FNJUDGE_SQS_PROFILE":       &c.Sqs.Profile,
		"FNJUDGE_SQS_REQUEST_QUEUE": &c.Sqs.RequestQueueUrl,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("FNJUDGE_MEMORY_MIB"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FNJUDGE_MEMORY_MIB: %w", err)
		}
		c.Governor.MemoryMiB = n
	}
	if v, ok := os.LookupEnv("FNJUDGE_MAX_CONCURRENT"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("FNJUDGE_MAX_CONCURRENT: %w", err)
		}
		c.Jobs.MaxConcurrent = n
	}
	return nil
}
