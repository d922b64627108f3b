package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/joho/godotenv"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TOKENX_"

// Config is the merged configuration.
type Config struct {
	Database string        `json:"database"`
	Log      LogConfig     `json:"log"`
	Metrics  MetricsConfig `json:"metrics"`
	Kafka    KafkaConfig   `json:"kafka"`
	Engine   EngineConfig  `json:"engine"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SlogLevel converts Level to a slog level. Unknown values map to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MetricsConfig controls metric export.
type MetricsConfig struct {
	Textfile string `json:"textfile"`
}

// KafkaConfig configures the Kafka notification sink. The sink is
// disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// Enabled reports whether a Kafka sink should be created.
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// EngineConfig tunes the command engine.
type EngineConfig struct {
	QueueHint int `json:"queue_hint"`
}

// Options selects the sources Load reads.
type Options struct {
	// File is a CUE config file. Empty means defaults only.
	File string

	// DotEnv is a .env file. A missing file is not an error.
	DotEnv string

	// LookupEnv reads the process environment. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
}

// Error reports an invalid configuration value.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: config: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("config %s: %s", e.Field, e.Message)
	}
	return "config: " + e.Message
}

// Default returns the schema defaults.
func Default() (*Config, error) {
	return Load(Options{LookupEnv: func(string) (string, bool) { return "", false }})
}

// Load merges the configured sources and validates the result.
func Load(opts Options) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def
	if opts.File != "" {
		data, err := os.ReadFile(opts.File)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		file := ctx.CompileBytes(data, cue.Filename(opts.File))
		if err := file.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		value = def.Unify(file)
	}

	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}

	lookup, err := envLookup(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against the schema. The cli package calls it again
// after applying flags.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	def := schema.LookupPath(cue.ParsePath("#Config"))

	norm := *c
	if norm.Kafka.Brokers == nil {
		norm.Kafka.Brokers = []string{}
	}

	merged := def.Unify(ctx.Encode(norm))
	if err := merged.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// envLookup layers the .env file under the process environment, so a
// variable already set in the environment wins.
func envLookup(opts Options) (func(string) (string, bool), error) {
	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if opts.DotEnv == "" {
		return lookup, nil
	}

	dotenv, err := godotenv.Read(opts.DotEnv)
	if err != nil {
		if os.IsNotExist(err) {
			return lookup, nil
		}
		return nil, fmt.Errorf("read %s: %w", opts.DotEnv, err)
	}

	return func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPrefix + "DATABASE"); ok {
		c.Database = v
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvPrefix + "LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}
	if v, ok := lookup(EnvPrefix + "METRICS_TEXTFILE"); ok {
		c.Metrics.Textfile = v
	}
	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = SplitList(v)
	}
	if v, ok := lookup(EnvPrefix + "KAFKA_TOPIC"); ok {
		c.Kafka.Topic = v
	}
	if v, ok := lookup(EnvPrefix + "ENGINE_QUEUE_HINT"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "engine.queue_hint", Message: fmt.Sprintf("%sENGINE_QUEUE_HINT: %v", EnvPrefix, err)}
		}
		c.Engine.QueueHint = n
	}
	return nil
}

// SplitList splits a comma-separated list, dropping empty entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// formatCUEError converts a CUE error to an *Error carrying the position
// of the first problem.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Message: err.Error()}
	}

	first := errs[0]
	out := &Error{Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		out.Field = strings.Join(path, ".")
	}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		out.Pos = positions[0]
	}
	return out
}
