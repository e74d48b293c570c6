// Package config builds the immutable run configuration. Precedence, lowest
// first: compiled-in defaults, an optional JSON config file, then
// STORESCOUT_* environment keys. The pipeline receives a Config at
// construction; nothing reads ambient state after startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"dario.cat/mergo"
)

// Config holds every tunable of a single run. Values are resolved once at
// startup and never mutated afterwards.
type Config struct {
	Headless       bool          `json:"headless"`
	BatchSize      int           `json:"batchSize"`
	OutputDir      string        `json:"outputDir"`
	LatStepDegrees float64       `json:"latStepDegrees"`
	LngStepDegrees float64       `json:"lngStepDegrees"`
	MaxEmptyCells  int           `json:"maxEmptyCells"`
	RequestTimeout time.Duration `json:"requestTimeout"`
	RetryCount     int           `json:"retryCount"`
	RetryDelay     time.Duration `json:"retryDelay"`
	RateLimitDelay time.Duration `json:"rateLimitDelay"`
	Debug          bool          `json:"debug"`
	Enhance        bool          `json:"enhance"`

	// Oracle endpoint settings. Empty endpoint means the oracles run in
	// fallback mode (conservative defaults, no API, no mapping).
	OracleEndpoint string `json:"oracleEndpoint"`
	OracleModel    string `json:"oracleModel"`
	OracleAPIKey   string `json:"oracleApiKey"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Config {
	return Config{
		Headless:       true,
		BatchSize:      10,
		OutputDir:      "out",
		LatStepDegrees: 30,
		LngStepDegrees: 30,
		MaxEmptyCells:  30,
		RequestTimeout: 15 * time.Second,
		RetryCount:     3,
		RetryDelay:     2 * time.Second,
		RateLimitDelay: 1 * time.Second,
		OracleModel:    "gpt-4o-mini",
	}
}

// Load resolves the effective configuration. path may be empty, in which
// case only defaults and the environment apply. A missing file at path is
// not an error; a malformed one is.
//
// The file layer merges non-zero values only: "headless": false or
// "retryCount": 0 in the file cannot override a non-zero default. Use the
// STORESCOUT_* environment keys to force a value to false or zero.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if len(data) > 0 {
			var file Config
			if err := json.Unmarshal(data, &file); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
			if err := mergo.Merge(&cfg, file, mergo.WithOverride); err != nil {
				return Config{}, fmt.Errorf("merging config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) error {
	var err error

	set := func(key string, apply func(string) error) {
		if err != nil {
			return
		}
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			return
		}
		if e := apply(v); e != nil {
			err = fmt.Errorf("%s: %w", key, e)
		}
	}

	set("STORESCOUT_HEADLESS", func(v string) error { return parseBool(v, &c.Headless) })
	set("STORESCOUT_BATCH_SIZE", func(v string) error { return parseInt(v, &c.BatchSize) })
	set("STORESCOUT_OUTPUT_DIR", func(v string) error { c.OutputDir = v; return nil })
	set("STORESCOUT_LAT_STEP", func(v string) error { return parseFloat(v, &c.LatStepDegrees) })
	set("STORESCOUT_LNG_STEP", func(v string) error { return parseFloat(v, &c.LngStepDegrees) })
	set("STORESCOUT_MAX_EMPTY_CELLS", func(v string) error { return parseInt(v, &c.MaxEmptyCells) })
	set("STORESCOUT_REQUEST_TIMEOUT", func(v string) error { return parseDuration(v, &c.RequestTimeout) })
	set("STORESCOUT_RETRY_COUNT", func(v string) error { return parseInt(v, &c.RetryCount) })
	set("STORESCOUT_RETRY_DELAY", func(v string) error { return parseDuration(v, &c.RetryDelay) })
	set("STORESCOUT_RATE_LIMIT_DELAY", func(v string) error { return parseDuration(v, &c.RateLimitDelay) })
	set("STORESCOUT_DEBUG", func(v string) error { return parseBool(v, &c.Debug) })
	set("STORESCOUT_ENHANCE", func(v string) error { return parseBool(v, &c.Enhance) })
	set("STORESCOUT_ORACLE_ENDPOINT", func(v string) error { c.OracleEndpoint = v; return nil })
	set("STORESCOUT_ORACLE_MODEL", func(v string) error { c.OracleModel = v; return nil })
	set("STORESCOUT_ORACLE_API_KEY", func(v string) error { c.OracleAPIKey = v; return nil })

	return err
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	*dst = f
	return nil
}

// parseDuration accepts Go duration strings ("15s") and bare integers,
// which are taken as seconds.
func parseDuration(v string, dst *time.Duration) error {
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
