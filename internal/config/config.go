package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"pulsaroutlier/domain/noise"
	"pulsaroutlier/internal/errors"
	"pulsaroutlier/internal/gibbs"
)

// Config represents the complete application configuration
type Config struct {
	Gibbs    gibbs.Config
	Run      RunConfig
	Noise    NoiseConfig
	Database DatabaseConfig
	Server   ServerConfig
	LogLevel string
}

// RunConfig holds chain-level settings
type RunConfig struct {
	NIter        int
	OutDir       string
	Seed         uint64
	Chains       int
	Parallel     int
	BurnFraction float64
	Threshold    float64
}

// NoiseConfig holds settings of the timing noise model
type NoiseConfig struct {
	RedNoiseComponents int
	ECORR              bool
	EQUAD              bool
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string
	URL    string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// Load reads configuration from a .env file, if present, and the environment, then validates it
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only
func FromEnv() (*Config, error) {
	e := &env{}
	config := &Config{
		Gibbs:    loadGibbsConfig(e),
		Run:      loadRunConfig(e),
		Noise:    loadNoiseConfig(e),
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}
	if e.err != nil {
		return nil, e.err
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadGibbsConfig(e *env) gibbs.Config {
	def := gibbs.DefaultConfig()
	return gibbs.Config{
		Model:           noise.OutlierModel(getEnvOrDefault("GIBBS_MODEL", string(def.Model))),
		OutlierFraction: e.getFloat("GIBBS_OUTLIER_FRACTION", def.OutlierFraction),
		TDF:             e.getInt("GIBBS_TDF", def.TDF),
		VaryDF:          e.getBool("GIBBS_VARY_DF", def.VaryDF),
		ThetaPrior:      noise.ThetaPrior(getEnvOrDefault("GIBBS_THETA_PRIOR", string(def.ThetaPrior))),
		Alpha:           e.getFloat("GIBBS_ALPHA", def.Alpha),
		VaryAlpha:       e.getBool("GIBBS_VARY_ALPHA", def.VaryAlpha),
		PSpin:           e.getFloat("GIBBS_PSPIN", 0),
		CheckpointEvery: e.getInt("GIBBS_CHECKPOINT_EVERY", def.CheckpointEvery),
		WhiteSteps:      e.getInt("GIBBS_WHITE_STEPS", def.WhiteSteps),
		HyperSteps:      e.getInt("GIBBS_HYPER_STEPS", def.HyperSteps),
	}.Normalize()
}

func loadRunConfig(e *env) RunConfig {
	return RunConfig{
		NIter:        e.getInt("GIBBS_NITER", 10000),
		OutDir:       getEnvOrDefault("GIBBS_OUTDIR", "./outlier_chains"),
		Seed:         e.getUint("GIBBS_SEED", 1),
		Chains:       e.getInt("GIBBS_CHAINS", 1),
		Parallel:     e.getInt("GIBBS_PARALLEL", 0),
		BurnFraction: e.getFloat("GIBBS_BURN_FRACTION", 0.25),
		Threshold:    e.getFloat("GIBBS_THRESHOLD", 0.1),
	}
}

func loadNoiseConfig(e *env) NoiseConfig {
	return NoiseConfig{
		RedNoiseComponents: e.getInt("RED_NOISE_COMPONENTS", 30),
		ECORR:              e.getBool("NOISE_ECORR", true),
		EQUAD:              e.getBool("NOISE_EQUAD", true),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: getEnvOrDefault("DATABASE_DRIVER", "sqlite3"),
		URL:    getEnvOrDefault("DATABASE_URL", "outliers.db"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

// Validate checks every section and returns the first problem as CONFIG_INVALID
func (c *Config) Validate() error {
	if err := c.Gibbs.Validate(); err != nil {
		return err
	}
	if c.Run.NIter < 1 {
		return errors.ConfigInvalidf("GIBBS_NITER must be positive, got %d", c.Run.NIter)
	}
	if c.Run.Chains < 1 {
		return errors.ConfigInvalidf("GIBBS_CHAINS must be positive, got %d", c.Run.Chains)
	}
	if c.Run.Parallel < 0 {
		return errors.ConfigInvalidf("GIBBS_PARALLEL cannot be negative, got %d", c.Run.Parallel)
	}
	if c.Run.OutDir == "" {
		return errors.ConfigInvalid("GIBBS_OUTDIR is required")
	}
	if !(c.Run.BurnFraction >= 0 && c.Run.BurnFraction < 1) {
		return errors.ConfigInvalidf("GIBBS_BURN_FRACTION must be in [0, 1), got %g", c.Run.BurnFraction)
	}
	if !(c.Run.Threshold >= 0 && c.Run.Threshold <= 1) {
		return errors.ConfigInvalidf("GIBBS_THRESHOLD must be in [0, 1], got %g", c.Run.Threshold)
	}
	if c.Noise.RedNoiseComponents < 1 {
		return errors.ConfigInvalidf("RED_NOISE_COMPONENTS must be positive, got %d", c.Noise.RedNoiseComponents)
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return errors.ConfigInvalidf("DATABASE_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	if c.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

// Burn converts the burn fraction into a row count for a chain of niter rows
func (c RunConfig) Burn() int {
	return int(c.BurnFraction * float64(c.NIter))
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// env parses typed variables, keeping the first malformed one
type env struct {
	err error
}

func (e *env) fail(key, value string, err error) {
	if e.err == nil {
		e.err = errors.ConfigInvalidf("%s=%q: %v", key, value, err)
	}
}

func (e *env) getInt(key string, defaultValue int) int {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *env) getUint(key string, defaultValue uint64) uint64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *env) getFloat(key string, defaultValue float64) float64 {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (e *env) getBool(key string, defaultValue bool) bool {
	value := getEnvOrDefault(key, "")
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return v
}
