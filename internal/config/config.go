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
	LogLevel     string  `yaml:"log_level"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	OTLPInsecure bool    `yaml:"otlp_insecure"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Store       StoreConfig     `yaml:"store"`
	Segment     SegmentConfig   `yaml:"segment"`
	TTS         TTSConfig       `yaml:"tts"`
	Synthesis   SynthesisConfig `yaml:"synthesis"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// StoreConfig configures the SQLite episode repository.
type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// SegmentConfig controls how source text is chunked and timed.
type SegmentConfig struct {
	MaxChunkChars  int  `yaml:"max_chunk_chars"`
	SplitLongWords bool `yaml:"split_long_words"`
	WordsPerMinute int  `yaml:"words_per_minute"`
	MaxTextChars   int  `yaml:"max_text_chars"`
}

type TTSConfig struct {
	Mode          string `yaml:"mode"` // mock, http, exec, google
	Endpoint      string `yaml:"endpoint"`
	Command       string `yaml:"command"`
	Voice         string `yaml:"voice"`
	Lang          string `yaml:"lang"`
	Slow          bool   `yaml:"slow"`
	TimeoutMS     int    `yaml:"timeout_ms"`
	MockLatencyMS int    `yaml:"mock_latency_ms"`
}

type SynthesisConfig struct {
	Workers          int    `yaml:"workers"`
	PacingMS         int    `yaml:"pacing_ms"`
	Storage          string `yaml:"storage"` // file, nats
	OutputDir        string `yaml:"output_dir"`
	Bucket           string `yaml:"bucket"`
	Format           string `yaml:"format"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
}

func Default() Config {
	return Config{
		RuntimeName: "loqa-narrate",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
			SampleRatio:  1,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/narrate.db",
			RetentionDays: 0,
		},
		Segment: SegmentConfig{
			MaxChunkChars:  1000,
			WordsPerMinute: 150,
			MaxTextChars:   200000,
		},
		TTS: TTSConfig{
			Mode:          "mock",
			Lang:          "en",
			TimeoutMS:     30000,
			MockLatencyMS: 20,
		},
		Synthesis: SynthesisConfig{
			Workers:          1,
			PacingMS:         500,
			Storage:          "file",
			OutputDir:        "./data/audio",
			Bucket:           "NARRATE_AUDIO",
			Format:           "mp3",
			RequestTimeoutMS: 600000,
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
	overrideString(&cfg.RuntimeName, "NARRATE_RUNTIME_NAME")
	overrideString(&cfg.Environment, "NARRATE_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "NARRATE_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "NARRATE_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "NARRATE_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "NARRATE_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "NARRATE_TELEMETRY_OTLP_INSECURE")
	overrideFloat(&cfg.Telemetry.SampleRatio, "NARRATE_TELEMETRY_SAMPLE_RATIO")
	overrideBool(&cfg.Bus.Embedded, "NARRATE_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "NARRATE_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "NARRATE_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "NARRATE_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "NARRATE_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "NARRATE_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "NARRATE_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "NARRATE_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "NARRATE_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "NARRATE_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "NARRATE_STORE_RETENTION_DAYS")
	overrideBool(&cfg.Store.VacuumOnStart, "NARRATE_STORE_VACUUM_ON_START")
	overrideInt(&cfg.Segment.MaxChunkChars, "NARRATE_SEGMENT_MAX_CHUNK_CHARS")
	overrideBool(&cfg.Segment.SplitLongWords, "NARRATE_SEGMENT_SPLIT_LONG_WORDS")
	overrideInt(&cfg.Segment.WordsPerMinute, "NARRATE_SEGMENT_WORDS_PER_MINUTE")
	overrideInt(&cfg.Segment.MaxTextChars, "NARRATE_SEGMENT_MAX_TEXT_CHARS")
	overrideString(&cfg.TTS.Mode, "NARRATE_TTS_MODE")
	overrideString(&cfg.TTS.Endpoint, "NARRATE_TTS_ENDPOINT")
	overrideString(&cfg.TTS.Command, "NARRATE_TTS_COMMAND")
	overrideString(&cfg.TTS.Voice, "NARRATE_TTS_VOICE")
	overrideString(&cfg.TTS.Lang, "NARRATE_TTS_LANG")
	overrideBool(&cfg.TTS.Slow, "NARRATE_TTS_SLOW")
	overrideInt(&cfg.TTS.TimeoutMS, "NARRATE_TTS_TIMEOUT_MS")
	overrideInt(&cfg.TTS.MockLatencyMS, "NARRATE_TTS_MOCK_LATENCY_MS")
	overrideInt(&cfg.Synthesis.Workers, "NARRATE_SYNTHESIS_WORKERS")
	overrideInt(&cfg.Synthesis.PacingMS, "NARRATE_SYNTHESIS_PACING_MS")
	overrideString(&cfg.Synthesis.Storage, "NARRATE_SYNTHESIS_STORAGE")
	overrideString(&cfg.Synthesis.OutputDir, "NARRATE_SYNTHESIS_OUTPUT_DIR")
	overrideString(&cfg.Synthesis.Bucket, "NARRATE_SYNTHESIS_BUCKET")
	overrideString(&cfg.Synthesis.Format, "NARRATE_SYNTHESIS_FORMAT")
	overrideInt(&cfg.Synthesis.RequestTimeoutMS, "NARRATE_SYNTHESIS_REQUEST_TIMEOUT_MS")
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

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
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

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return errors.New("telemetry.sample_ratio must be between 0 and 1")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else if len(cfg.Bus.Servers) == 0 {
		return errors.New("bus.servers must not be empty when embedded mode is disabled")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Segment.MaxChunkChars <= 0 {
		return errors.New("segment.max_chunk_chars must be positive")
	}
	if cfg.Segment.WordsPerMinute <= 0 {
		return errors.New("segment.words_per_minute must be positive")
	}
	if cfg.Segment.MaxTextChars <= 0 {
		return errors.New("segment.max_text_chars must be positive")
	}
	switch cfg.TTS.Mode {
	case "mock", "google":
	case "http":
		if cfg.TTS.Endpoint == "" {
			return errors.New("tts.endpoint must be set when mode=http")
		}
	case "exec":
		if cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
	default:
		return errors.New("tts.mode must be one of mock|http|exec|google")
	}
	if cfg.TTS.Lang == "" {
		return errors.New("tts.lang must not be empty")
	}
	if cfg.TTS.TimeoutMS <= 0 {
		return errors.New("tts.timeout_ms must be positive")
	}
	if cfg.Synthesis.Workers <= 0 {
		return errors.New("synthesis.workers must be >= 1")
	}
	if cfg.Synthesis.PacingMS < 0 {
		return errors.New("synthesis.pacing_ms must be >= 0")
	}
	switch cfg.Synthesis.Storage {
	case "file":
		if cfg.Synthesis.OutputDir == "" {
			return errors.New("synthesis.output_dir must be set when storage=file")
		}
	case "nats":
		if cfg.Synthesis.Bucket == "" {
			return errors.New("synthesis.bucket must be set when storage=nats")
		}
	default:
		return errors.New("synthesis.storage must be one of file|nats")
	}
	if cfg.Synthesis.Format == "" {
		return errors.New("synthesis.format must not be empty")
	}
	if cfg.Synthesis.RequestTimeoutMS <= 0 {
		return errors.New("synthesis.request_timeout_ms must be positive")
	}
	return nil
}
