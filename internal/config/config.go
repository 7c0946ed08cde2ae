package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MemoryConfig holds the in-memory/file export backend settings.
type MemoryConfig struct {
	OutputDir string `json:"outputDir" mapstructure:"outputDir"`
}

// StorageConfig selects and tunes the episode sink.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // memory or database
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
}

// PolicyConfig holds the external guidance link settings.
type PolicyConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	URL        string `json:"url" mapstructure:"url"`
	Token      string `json:"token" mapstructure:"token"`
	StaleTicks int    `json:"staleTicks" mapstructure:"staleTicks"`
	DecayTicks int    `json:"decayTicks" mapstructure:"decayTicks"`
}

// ReplayConfig holds playback settings.
type ReplayConfig struct {
	Speed       float64 `json:"speed" mapstructure:"speed"`
	FreezeTicks int     `json:"freezeTicks" mapstructure:"freezeTicks"`

	CruiseInEnabled    bool    `json:"cruiseInEnabled" mapstructure:"cruiseInEnabled"`
	CruiseInDuration   float64 `json:"cruiseInDuration" mapstructure:"cruiseInDuration"`
	CruiseInMultiplier float64 `json:"cruiseInMultiplier" mapstructure:"cruiseInMultiplier"`
	CruiseInMinSpeed   float64 `json:"cruiseInMinSpeed" mapstructure:"cruiseInMinSpeed"`
}

// OTelConfig holds OpenTelemetry export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// Load reads configuration from the JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("sim.dt", 0.02)
	viper.SetDefault("sim.maxRateRad", 6.0)
	viper.SetDefault("sim.thrustFloor", 0.0)
	viper.SetDefault("sim.seeker.halfFovDeg", 30.0)
	viper.SetDefault("sim.seeker.maxRange", 10000.0)
	viper.SetDefault("sim.seeker.maxLosRate", 12.0)
	viper.SetDefault("sim.guidance.timeToAlign", 0.35)

	viper.SetDefault("replay.speed", 1.0)
	viper.SetDefault("replay.freezeTicks", 25)
	viper.SetDefault("replay.cruiseInEnabled", false)
	viper.SetDefault("replay.cruiseInDuration", 3.0)
	viper.SetDefault("replay.cruiseInMultiplier", 1.0)
	viper.SetDefault("replay.cruiseInMinSpeed", 10.0)

	viper.SetDefault("policy.enabled", false)
	viper.SetDefault("policy.url", "ws://localhost:8765/policy")
	viper.SetDefault("policy.token", "")
	viper.SetDefault("policy.staleTicks", 10)
	viper.SetDefault("policy.decayTicks", 25)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./recordings")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "interceptor")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "interceptor-metrics")
	viper.SetDefault("influx.bucket", "sim_perf")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "interceptor")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("interceptor.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetFloat returns a float64 config value.
func GetFloat(key string) float64 {
	return viper.GetFloat64(key)
}

// GetStorageConfig returns the storage section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir: viper.GetString("storage.memory.outputDir"),
		},
	}
}

// GetPolicyConfig returns the policy link section.
func GetPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Enabled:    viper.GetBool("policy.enabled"),
		URL:        viper.GetString("policy.url"),
		Token:      viper.GetString("policy.token"),
		StaleTicks: viper.GetInt("policy.staleTicks"),
		DecayTicks: viper.GetInt("policy.decayTicks"),
	}
}

// GetReplayConfig returns the replay section.
func GetReplayConfig() ReplayConfig {
	return ReplayConfig{
		Speed:              viper.GetFloat64("replay.speed"),
		FreezeTicks:        viper.GetInt("replay.freezeTicks"),
		CruiseInEnabled:    viper.GetBool("replay.cruiseInEnabled"),
		CruiseInDuration:   viper.GetFloat64("replay.cruiseInDuration"),
		CruiseInMultiplier: viper.GetFloat64("replay.cruiseInMultiplier"),
		CruiseInMinSpeed:   viper.GetFloat64("replay.cruiseInMinSpeed"),
	}
}

// GetOTelConfig returns the OpenTelemetry section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
