package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ProviderConfig selects and configures the active map provider.
type ProviderConfig struct {
	Type   string       `json:"type" mapstructure:"type"` // "sim" or "engine"
	Engine EngineConfig `json:"engine" mapstructure:"engine"`
}

// EngineConfig holds the real-engine bridge connection settings.
type EngineConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// HarnessConfig holds the control-server settings.
type HarnessConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// FixtureConfig holds scenario fixture storage settings.
type FixtureConfig struct {
	Dir            string `json:"dir" mapstructure:"dir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	CatalogType    string `json:"catalogType" mapstructure:"catalogType"` // "sqlite" or "postgres"
	SqlitePath     string `json:"sqlitePath" mapstructure:"sqlitePath"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds InfluxDB reporting settings.
type InfluxConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Protocol string
	Token    string
	Org      string
}

// GraylogConfig holds GELF log forwarding settings.
type GraylogConfig struct {
	Enabled bool
	Address string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName("simkit.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers default values without requiring a config file.
// Tests and embedded harness setups call this directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./simkitlogs")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("provider.type", "sim")
	viper.SetDefault("provider.engine.url", "ws://localhost:8090/engine")
	viper.SetDefault("provider.engine.secret", "")

	viper.SetDefault("harness.addr", "localhost:7077")

	viper.SetDefault("fixture.dir", "./fixtures")
	viper.SetDefault("fixture.compressOutput", false)
	viper.SetDefault("fixture.catalogType", "sqlite")
	viper.SetDefault("fixture.sqlitePath", "./fixtures/catalog.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "simkit")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "simkit-metrics")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "simkit-harness")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
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

// GetProviderConfig returns the provider selection settings.
func GetProviderConfig() ProviderConfig {
	return ProviderConfig{
		Type: viper.GetString("provider.type"),
		Engine: EngineConfig{
			URL:    viper.GetString("provider.engine.url"),
			Secret: viper.GetString("provider.engine.secret"),
		},
	}
}

// GetHarnessConfig returns the control-server settings.
func GetHarnessConfig() HarnessConfig {
	return HarnessConfig{
		Addr: viper.GetString("harness.addr"),
	}
}

// GetFixtureConfig returns the fixture storage settings.
func GetFixtureConfig() FixtureConfig {
	return FixtureConfig{
		Dir:            viper.GetString("fixture.dir"),
		CompressOutput: viper.GetBool("fixture.compressOutput"),
		CatalogType:    viper.GetString("fixture.catalogType"),
		SqlitePath:     viper.GetString("fixture.sqlitePath"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the InfluxDB settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetGraylogConfig returns the GELF forwarding settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}
