package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"logLevel": "debug",
		"sim": { "dt": 0.01 },
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interceptor.cfg.json"), []byte(cfg), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, 0.01, viper.GetFloat64("sim.dt"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interceptor.cfg.json"), []byte(`{}`), 0644))

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, 0.02, viper.GetFloat64("sim.dt"))
	assert.Equal(t, 30.0, viper.GetFloat64("sim.seeker.halfFovDeg"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "postgres", viper.GetString("db.username"))
	assert.Equal(t, "interceptor", viper.GetString("db.database"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./recordings", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, false, viper.GetBool("policy.enabled"))
	assert.Equal(t, "ws://localhost:8765/policy", viper.GetString("policy.url"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "sim_perf", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "interceptor", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetInt(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testInt", 42)
	assert.Equal(t, 42, GetInt("testInt"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGetFloat(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testFloat", 1.25)
	assert.Equal(t, 1.25, GetFloat("testFloat"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interceptor.cfg.json"), []byte(`{}`), 0644))
	require.NoError(t, Load(dir))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./recordings", cfg.Memory.OutputDir)
}

func TestGetPolicyConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"policy": {
			"enabled": true,
			"url": "ws://policy.local:9000/v1",
			"token": "abc",
			"staleTicks": 4,
			"decayTicks": 8
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interceptor.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	pc := GetPolicyConfig()
	assert.Equal(t, true, pc.Enabled)
	assert.Equal(t, "ws://policy.local:9000/v1", pc.URL)
	assert.Equal(t, "abc", pc.Token)
	assert.Equal(t, 4, pc.StaleTicks)
	assert.Equal(t, 8, pc.DecayTicks)
}

func TestGetReplayConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"replay": {
			"speed": 2.5,
			"freezeTicks": 10,
			"cruiseInEnabled": true,
			"cruiseInDuration": 5.0
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interceptor.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	rc := GetReplayConfig()
	assert.Equal(t, 2.5, rc.Speed)
	assert.Equal(t, 10, rc.FreezeTicks)
	assert.Equal(t, true, rc.CruiseInEnabled)
	assert.Equal(t, 5.0, rc.CruiseInDuration)
	assert.Equal(t, 1.0, rc.CruiseInMultiplier, "unset keys fall back to defaults")
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfg := `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "interceptor.cfg.json"), []byte(cfg), 0644))
	require.NoError(t, Load(dir))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}
