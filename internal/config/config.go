package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	AppName     string          `yaml:"app_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Capture     CaptureConfig   `yaml:"capture"`
	Language    LanguageConfig  `yaml:"language"`
	Notebook    NotebookConfig  `yaml:"notebook"`
	Upload      UploadConfig    `yaml:"upload"`
	Share       ShareConfig     `yaml:"share"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type CaptureConfig struct {
	Mode            string   `yaml:"mode"` // mock, portaudio, remote
	SampleRate      int      `yaml:"sample_rate"`
	Channels        int      `yaml:"channels"`
	ChunkDurationMS int      `yaml:"chunk_duration_ms"`
	Formats         []string `yaml:"formats"`
	SettleDelayMS   int      `yaml:"settle_delay_ms"`
}

type LanguageConfig struct {
	Mode            string  `yaml:"mode"` // mock, gemini, exec
	Endpoint        string  `yaml:"endpoint"`
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	Command         string  `yaml:"command"`
	TimeoutMS       int     `yaml:"timeout_ms"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float64 `yaml:"temperature"`
}

type NotebookConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	MaxSegments   int    `yaml:"max_segments"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

type ShareConfig struct {
	Command string `yaml:"command"`
}

func Default() Config {
	return Config{
		AppName:     "talk2write",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Mode:            "mock",
			SampleRate:      16000,
			Channels:        1,
			ChunkDurationMS: 200,
			Formats: []string{
				"audio/webm;codecs=opus",
				"audio/ogg;codecs=opus",
				"audio/wav",
			},
			SettleDelayMS: 150,
		},
		Language: LanguageConfig{
			Mode:            "mock",
			Endpoint:        "https://generativelanguage.googleapis.com",
			Model:           "gemini-2.0-flash",
			TimeoutMS:       60000,
			MaxOutputTokens: 8192,
			Temperature:     0.4,
		},
		Notebook: NotebookConfig{
			Path:          "./data/talk2write.db",
			RetentionMode: "persistent",
			MaxSegments:   10000,
		},
		Upload: UploadConfig{
			MaxBytes: 500 * 1024 * 1024,
		},
		Share: ShareConfig{
			Command: "",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.AppName, "T2W_APP_NAME")
	overrideString(&cfg.Environment, "T2W_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "T2W_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "T2W_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "T2W_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "T2W_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "T2W_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "T2W_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "T2W_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "T2W_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "T2W_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "T2W_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "T2W_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "T2W_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "T2W_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "T2W_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Mode, "T2W_CAPTURE_MODE")
	overrideInt(&cfg.Capture.SampleRate, "T2W_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "T2W_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.ChunkDurationMS, "T2W_CAPTURE_CHUNK_DURATION_MS")
	overrideStringSlice(&cfg.Capture.Formats, "T2W_CAPTURE_FORMATS")
	overrideInt(&cfg.Capture.SettleDelayMS, "T2W_CAPTURE_SETTLE_DELAY_MS")
	overrideString(&cfg.Language.Mode, "T2W_LANGUAGE_MODE")
	overrideString(&cfg.Language.Endpoint, "T2W_LANGUAGE_ENDPOINT")
	overrideString(&cfg.Language.APIKey, "T2W_LANGUAGE_API_KEY")
	overrideString(&cfg.Language.Model, "T2W_LANGUAGE_MODEL")
	overrideString(&cfg.Language.Command, "T2W_LANGUAGE_COMMAND")
	overrideInt(&cfg.Language.TimeoutMS, "T2W_LANGUAGE_TIMEOUT_MS")
	overrideInt(&cfg.Language.MaxOutputTokens, "T2W_LANGUAGE_MAX_OUTPUT_TOKENS")
	overrideFloat(&cfg.Language.Temperature, "T2W_LANGUAGE_TEMPERATURE")
	overrideString(&cfg.Notebook.Path, "T2W_NOTEBOOK_PATH")
	overrideString(&cfg.Notebook.RetentionMode, "T2W_NOTEBOOK_RETENTION_MODE")
	overrideInt(&cfg.Notebook.MaxSegments, "T2W_NOTEBOOK_MAX_SEGMENTS")
	overrideBool(&cfg.Notebook.VacuumOnStart, "T2W_NOTEBOOK_VACUUM_ON_START")
	overrideInt64(&cfg.Upload.MaxBytes, "T2W_UPLOAD_MAX_BYTES")
	overrideString(&cfg.Share.Command, "T2W_SHARE_COMMAND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideInt64(target *int64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.AppName == "" {
		return errors.New("app_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Mode {
	case "mock", "portaudio", "remote":
	default:
		return errors.New("capture.mode must be one of mock|portaudio|remote")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels <= 0 {
		return errors.New("capture.channels must be positive")
	}
	if cfg.Capture.ChunkDurationMS <= 0 {
		return errors.New("capture.chunk_duration_ms must be positive")
	}
	if len(cfg.Capture.Formats) == 0 {
		return errors.New("capture.formats must not be empty")
	}
	if cfg.Capture.SettleDelayMS < 0 {
		return errors.New("capture.settle_delay_ms must be >= 0")
	}
	switch cfg.Language.Mode {
	case "mock", "gemini", "exec":
	default:
		return errors.New("language.mode must be one of mock|gemini|exec")
	}
	if cfg.Language.Mode == "gemini" {
		if cfg.Language.Endpoint == "" {
			return errors.New("language.endpoint must be set when mode=gemini")
		}
		if cfg.Language.APIKey == "" {
			return errors.New("language.api_key must be set when mode=gemini")
		}
		if cfg.Language.Model == "" {
			return errors.New("language.model must be set when mode=gemini")
		}
	}
	if cfg.Language.Mode == "exec" && cfg.Language.Command == "" {
		return errors.New("language.command must be set when mode=exec")
	}
	if cfg.Language.TimeoutMS <= 0 {
		return errors.New("language.timeout_ms must be positive")
	}
	switch cfg.Notebook.RetentionMode {
	case "ephemeral", "persistent":
	default:
		return errors.New("notebook.retention_mode must be one of ephemeral|persistent")
	}
	if cfg.Notebook.RetentionMode == "persistent" && cfg.Notebook.Path == "" {
		return errors.New("notebook.path must not be empty when retention is persistent")
	}
	if cfg.Notebook.MaxSegments < 0 {
		return errors.New("notebook.max_segments must be >= 0")
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be positive")
	}
	return nil
}
