package config

import (
	"fmt"
	"time"

	"github.com/OCAP2/awacs/internal/contact"
	"github.com/OCAP2/awacs/internal/ledger"
	"github.com/OCAP2/awacs/internal/visibility"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "awacs.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite storage backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
	// DumpPath is the file the in-memory DB is vacuumed into. Empty builds
	// one from the session start time.
	DumpPath string `json:"dumpPath" mapstructure:"dumpPath"`
}

// WebSocketConfig holds streaming backend settings
type WebSocketConfig struct {
	URL        string        `json:"url" mapstructure:"url"`
	Secret     string        `json:"secret" mapstructure:"secret"`
	AckTimeout time.Duration `json:"ackTimeout" mapstructure:"ackTimeout"`
}

// StorageConfig selects and configures the kill log backend
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// KafkaConfig holds the kill publisher settings
type KafkaConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	Brokers      []string      `json:"brokers" mapstructure:"brokers"`
	Topic        string        `json:"topic" mapstructure:"topic"`
	WriteTimeout time.Duration `json:"writeTimeout" mapstructure:"writeTimeout"`
}

// InfluxConfig holds InfluxDB connection settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// APIConfig holds the stats web server upload settings
type APIConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	Tag       string `json:"tag" mapstructure:"tag"`
}

// TerrainConfig points at the heightmap; an empty File means flat terrain.
type TerrainConfig struct {
	File      string  `json:"file" mapstructure:"file"`
	Elevation float64 `json:"elevation" mapstructure:"elevation"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./awacslogs")
	viper.SetDefault("frameLimit", 4096)
	viper.SetDefault("statusFile", "./awacs_status.txt")
	viper.SetDefault("monitor.interval", "1s")

	viper.SetDefault("visibility.capacity", visibility.DefaultCapacity)

	dc := contact.DefaultConfig()
	viper.SetDefault("contact.maxAge", dc.MaxAge.String())
	viper.SetDefault("contact.maxLines", dc.MaxLines)
	viper.SetDefault("contact.sensorMastHeight", dc.MastHeight)
	viper.SetDefault("contact.reportInterval", dc.ReportInterval.String())
	viper.SetDefault("contact.closeInterval", dc.CloseInterval.String())
	viper.SetDefault("contact.immediateRange", dc.ImmediateRange)
	viper.SetDefault("contact.closeRange", dc.CloseRange)

	dl := ledger.DefaultConfig()
	viper.SetDefault("ledger.window", dl.Window.String())
	viper.SetDefault("ledger.gcInterval", dl.GCInterval.String())
	viper.SetDefault("ledger.drainInterval", "10s")

	viper.SetDefault("terrain.file", "")
	viper.SetDefault("terrain.elevation", 0)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "awacs")
	viper.SetDefault("db.hypertables", false)
	viper.SetDefault("db.flushInterval", "2s")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./killlogs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.ackTimeout", "10s")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "awacs-metrics")

	viper.SetDefault("kafka.enabled", false)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "campaign.kills")
	viper.SetDefault("kafka.writeTimeout", "5s")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "awacs")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
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

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetVisibilityConfig returns the line-of-sight cache settings.
func GetVisibilityConfig() visibility.Config {
	return visibility.Config{Capacity: viper.GetInt("visibility.capacity")}
}

// GetContactConfig returns the tracker and report throttle settings.
func GetContactConfig() contact.Config {
	return contact.Config{
		MaxAge:         viper.GetDuration("contact.maxAge"),
		MaxLines:       viper.GetInt("contact.maxLines"),
		MastHeight:     viper.GetFloat64("contact.sensorMastHeight"),
		ReportInterval: viper.GetDuration("contact.reportInterval"),
		CloseInterval:  viper.GetDuration("contact.closeInterval"),
		ImmediateRange: viper.GetFloat64("contact.immediateRange"),
		CloseRange:     viper.GetFloat64("contact.closeRange"),
	}
}

// GetLedgerConfig returns the attribution window settings.
func GetLedgerConfig() ledger.Config {
	return ledger.Config{
		Window:     viper.GetDuration("ledger.window"),
		GCInterval: viper.GetDuration("ledger.gcInterval"),
	}
}

// GetStorageConfig returns the kill log backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
		WebSocket: WebSocketConfig{
			URL:        viper.GetString("storage.websocket.url"),
			Secret:     viper.GetString("storage.websocket.secret"),
			AckTimeout: viper.GetDuration("storage.websocket.ackTimeout"),
		},
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetKafkaConfig returns the kill publisher settings.
func GetKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Enabled:      viper.GetBool("kafka.enabled"),
		Brokers:      viper.GetStringSlice("kafka.brokers"),
		Topic:        viper.GetString("kafka.topic"),
		WriteTimeout: viper.GetDuration("kafka.writeTimeout"),
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

// GetTerrainConfig returns the heightmap settings.
func GetTerrainConfig() TerrainConfig {
	return TerrainConfig{
		File:      viper.GetString("terrain.file"),
		Elevation: viper.GetFloat64("terrain.elevation"),
	}
}

// GetAPIConfig returns the upload settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
		Tag:       viper.GetString("api.tag"),
	}
}
