package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otaflow/ota-agent/internal/flash"
	"github.com/otaflow/ota-agent/internal/scheduling"
	"github.com/otaflow/ota-agent/internal/transport"
)

// Build-time defaults, set with -ldflags "-X github.com/otaflow/ota-agent/internal/config.Version=...".
var (
	Version       = "dev"
	ManifestURL   = ""
	FirmwareURL   = ""
	TransportMode = "ca"
)

// DefaultPath is the location of the optional configuration file.
const DefaultPath = "/etc/ota-agent/config.yaml"

// Transport configures how the update server is reached.
type Transport struct {
	Mode        string        `yaml:"mode"`
	Fingerprint string        `yaml:"fingerprint"`
	CAFile      string        `yaml:"ca_file"`
	Timeout     time.Duration `yaml:"timeout"`
}

// NATS configures the broker connection. An empty URL disables it.
type NATS struct {
	URL             string `yaml:"url"`
	Name            string `yaml:"name"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Token           string `yaml:"token"`
	CredentialsFile string `yaml:"credentials_file"`
	TriggerSubject  string `yaml:"trigger_subject"`
	MetricsSubject  string `yaml:"metrics_subject"`
	OutcomeSubject  string `yaml:"outcome_subject"`
}

// Apply configures the flashing handoff and the restart that follows.
type Apply struct {
	Command          string        `yaml:"command"`
	Args             []string      `yaml:"args"`
	NoUpdateExitCode int           `yaml:"no_update_exit_code"`
	Restart          string        `yaml:"restart"`
	RestartUnit      string        `yaml:"restart_unit"`
	RestartDelay     time.Duration `yaml:"restart_delay"`
}

// NTP configures the optional clock offset probe.
type NTP struct {
	Server    string        `yaml:"server"`
	MaxOffset time.Duration `yaml:"max_offset"`
}

// Config is the agent configuration.
type Config struct {
	CurrentVersion string `yaml:"current_version"`
	ManifestURL    string `yaml:"manifest_url"`
	FirmwareURL    string `yaml:"firmware_url"`

	// PublicKey overrides the embedded firmware signing key (64 hex characters).
	PublicKey string `yaml:"public_key"`
	UserAgent string `yaml:"user_agent"`

	Transport Transport `yaml:"transport"`
	NATS      NATS      `yaml:"nats"`
	Apply     Apply     `yaml:"apply"`
	NTP       NTP       `yaml:"ntp"`

	CheckSchedule     string        `yaml:"check_schedule"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	BufferSize        int           `yaml:"buffer_size"`
	ProgressInterval  time.Duration `yaml:"progress_interval"`

	StagingDir string `yaml:"staging_dir"`
	StateFile  string `yaml:"state_file"`
	SocketPath string `yaml:"socket_path"`
}

// Default returns the configuration built from the build-time defaults.
func Default() *Config {
	return &Config{
		CurrentVersion: Version,
		ManifestURL:    ManifestURL,
		FirmwareURL:    FirmwareURL,
		UserAgent:      "ota-agent/" + Version,

		Transport: Transport{
			Mode:    TransportMode,
			Timeout: 30 * time.Second,
		},
		NATS: NATS{
			Name:           "ota-agent",
			TriggerSubject: "ota.update",
			MetricsSubject: "ota.metrics",
			OutcomeSubject: "ota.outcome",
		},
		Apply: Apply{
			NoUpdateExitCode: 3,
			Restart:          string(flash.RestartReboot),
			RestartDelay:     time.Second,
		},
		NTP: NTP{
			MaxOffset: 10 * time.Minute,
		},

		HeartbeatInterval: time.Minute,
		BufferSize:        4 * 1024,
		ProgressInterval:  5 * time.Second,

		StagingDir: "/var/lib/ota-agent/staging",
		StateFile:  "/var/lib/ota-agent/state.yaml",
		SocketPath: "/run/ota-agent/unix.socket",
	}
}

// Load returns the configuration from the build-time defaults, the file at path
// (skipped if missing) and the OTA_* environment variables, in that order.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		body, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		if err == nil {
			decoder := yaml.NewDecoder(bytes.NewReader(body))
			decoder.KnownFields(true)

			err = decoder.Decode(cfg)
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("failed to parse %q: %w", path, err)
			}
		}
	}

	env := envReader{lookup: lookup}

	cfg.CurrentVersion = env.getString("OTA_CURRENT_VERSION", cfg.CurrentVersion)
	cfg.ManifestURL = env.getString("OTA_MANIFEST_URL", cfg.ManifestURL)
	cfg.FirmwareURL = env.getString("OTA_FIRMWARE_URL", cfg.FirmwareURL)
	cfg.PublicKey = env.getString("OTA_PUBLIC_KEY", cfg.PublicKey)

	cfg.Transport.Mode = env.getString("OTA_TRANSPORT", cfg.Transport.Mode)
	cfg.Transport.Fingerprint = env.getString("OTA_FINGERPRINT", cfg.Transport.Fingerprint)
	cfg.Transport.CAFile = env.getString("OTA_CA_FILE", cfg.Transport.CAFile)
	cfg.Transport.Timeout = env.getDuration("OTA_HTTP_TIMEOUT", cfg.Transport.Timeout)

	cfg.NATS.URL = env.getString("OTA_NATS_URL", cfg.NATS.URL)
	cfg.NATS.User = env.getString("OTA_NATS_USER", cfg.NATS.User)
	cfg.NATS.Password = env.getString("OTA_NATS_PASSWORD", cfg.NATS.Password)
	cfg.NATS.Token = env.getString("OTA_NATS_TOKEN", cfg.NATS.Token)
	cfg.NATS.CredentialsFile = env.getString("OTA_NATS_CREDS", cfg.NATS.CredentialsFile)
	cfg.NATS.TriggerSubject = env.getString("OTA_NATS_TRIGGER_SUBJECT", cfg.NATS.TriggerSubject)

	cfg.Apply.Command = env.getString("OTA_APPLY_COMMAND", cfg.Apply.Command)
	cfg.Apply.NoUpdateExitCode = env.getInt("OTA_APPLY_NO_UPDATE_EXIT_CODE", cfg.Apply.NoUpdateExitCode)
	cfg.Apply.Restart = env.getString("OTA_RESTART", cfg.Apply.Restart)
	cfg.Apply.RestartUnit = env.getString("OTA_RESTART_UNIT", cfg.Apply.RestartUnit)

	cfg.NTP.Server = env.getString("OTA_NTP_SERVER", cfg.NTP.Server)

	cfg.CheckSchedule = env.getString("OTA_CHECK_SCHEDULE", cfg.CheckSchedule)
	cfg.HeartbeatInterval = env.getDuration("OTA_HEARTBEAT_INTERVAL", cfg.HeartbeatInterval)
	cfg.BufferSize = env.getInt("OTA_BUFFER_SIZE", cfg.BufferSize)

	cfg.StagingDir = env.getString("OTA_STAGING_DIR", cfg.StagingDir)
	cfg.StateFile = env.getString("OTA_STATE_FILE", cfg.StateFile)
	cfg.SocketPath = env.getString("OTA_SOCKET", cfg.SocketPath)

	if env.err != nil {
		return nil, env.err
	}

	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CurrentVersion) == "" {
		return errors.New("current_version cannot be empty")
	}

	mode, err := transport.ParseMode(c.Transport.Mode)
	if err != nil {
		return err
	}

	urls := []struct {
		name  string
		value string
	}{
		{name: "manifest_url", value: c.ManifestURL},
		{name: "firmware_url", value: c.FirmwareURL},
	}

	for _, u := range urls {
		if u.value == "" {
			return fmt.Errorf("%s cannot be empty", u.name)
		}

		err = transport.CheckURL(mode, u.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", u.name, err)
		}
	}

	if mode == transport.ModeFingerprint {
		_, err = transport.ParseFingerprint(c.Transport.Fingerprint)
		if err != nil {
			return fmt.Errorf("invalid fingerprint: %w", err)
		}
	}

	if c.Transport.Timeout < 0 {
		return errors.New("transport timeout cannot be negative")
	}

	if c.Apply.Command == "" {
		return errors.New("apply command cannot be empty")
	}

	switch flash.RestartMode(c.Apply.Restart) {
	case flash.RestartNone, flash.RestartReboot:
	case flash.RestartService:
		if c.Apply.RestartUnit == "" {
			return errors.New("restart mode service requires restart_unit")
		}
	default:
		return fmt.Errorf("unknown restart mode %q", c.Apply.Restart)
	}

	if c.NTP.Server != "" && c.NTP.MaxOffset <= 0 {
		return errors.New("ntp max_offset must be positive")
	}

	if c.CheckSchedule != "" {
		err = scheduling.ValidateCronTab(c.CheckSchedule)
		if err != nil {
			return fmt.Errorf("check_schedule: %w", err)
		}
	}

	if c.BufferSize <= 0 {
		return errors.New("buffer_size must be positive")
	}

	if c.StagingDir == "" || c.StateFile == "" || c.SocketPath == "" {
		return errors.New("staging_dir, state_file and socket_path cannot be empty")
	}

	return nil
}

// envReader reads typed OTA_* overrides and keeps the first parse error.
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) getString(key string, defaultValue string) string {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return defaultValue
	}

	return value
}

func (e *envReader) getInt(key string, defaultValue int) int {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, err)

		return defaultValue
	}

	return n
}

func (e *envReader) getDuration(key string, defaultValue time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, err)

		return defaultValue
	}

	return d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid value for %s: %w", key, err)
	}
}
