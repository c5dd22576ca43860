package api

import (
	"github.com/larsks/gpiocdev/internal/config"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/mqtt"
	"github.com/spf13/pflag"
)

// Config holds the configuration for the API server.
type Config struct {
	ConfigFile    string      `mapstructure:"config-file"`
	ListenAddress string      `mapstructure:"listen-address"`
	ListenPort    int         `mapstructure:"listen-port"`
	Chip          string      `mapstructure:"chip"`
	Consumer      string      `mapstructure:"consumer"`
	CORSOrigins   []string    `mapstructure:"cors-origins"`
	Watch         []string    `mapstructure:"watch"`
	WatchEdge     string      `mapstructure:"watch-edge"`
	MQTT          mqtt.Config `mapstructure:"mqtt"`
	StrictConfig  bool        `mapstructure:"strict-config"`
}

// NewConfig creates a new Config instance with default values.
func NewConfig() *Config {
	return &Config{
		ListenPort: 8080,
		Chip:       "gpiochip0",
		Consumer:   lineops.DefaultConsumer,
		WatchEdge:  "both",
		MQTT: mqtt.Config{
			ClientID:    "gpiocdev-api",
			TopicPrefix: mqtt.DefaultTopicPrefix,
		},
	}
}

// AddFlags adds pflag flags for the configuration.
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", config.DefaultConfigFile(), "Config file to use")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Listen address for http server")
	fs.IntVar(&c.ListenPort, "listen-port", c.ListenPort, "Listen port for http server")
	fs.StringVar(&c.Chip, "chip", c.Chip, "GPIO chip used for watched lines")
	fs.BoolVar(&c.StrictConfig, "strict-config", c.StrictConfig, "Fail on config file keys that are not recognized")
	fs.StringVar(&c.Consumer, "consumer", c.Consumer, "Consumer label for requested lines")
	fs.StringSliceVar(&c.CORSOrigins, "cors-origins", c.CORSOrigins, "Origins allowed to make cross-origin requests")
	fs.StringSliceVar(&c.Watch, "watch", c.Watch, "Line specs to watch and publish to MQTT")
	fs.StringVar(&c.WatchEdge, "watch-edge", c.WatchEdge, "Edges to watch (rising, falling or both)")
	fs.StringVar(&c.MQTT.ServerURL, "mqtt.server-url", c.MQTT.ServerURL, "MQTT server URL (e.g., mqtt://localhost:1883)")
	fs.StringVar(&c.MQTT.ClientID, "mqtt.client-id", c.MQTT.ClientID, "MQTT client id")
	fs.StringVar(&c.MQTT.TopicPrefix, "mqtt.topic-prefix", c.MQTT.TopicPrefix, "MQTT topic prefix for line events")
}

// LoadConfig loads configuration using pflag.CommandLine.
func (c *Config) LoadConfig() error {
	return c.LoadConfigWithFlagSet(pflag.CommandLine)
}

// LoadConfigWithFlagSet loads configuration with proper precedence using a custom flag set (for testing)
func (c *Config) LoadConfigWithFlagSet(fs *pflag.FlagSet) error {
	configFile, err := config.ResolveConfigFile(c.ConfigFile)
	if err != nil {
		return err
	}
	c.ConfigFile = configFile

	defaults := NewConfig()
	loader := config.NewConfigLoader()
	loader.SetConfigFile(configFile)
	loader.SetEnvPrefix("GPIOCDEV")
	loader.SetStrictMode(c.StrictConfig)
	loader.SetDefaults(map[string]any{
		"listen-address":    defaults.ListenAddress,
		"listen-port":       defaults.ListenPort,
		"chip":              defaults.Chip,
		"consumer":          defaults.Consumer,
		"cors-origins":      []string{},
		"watch":             []string{},
		"watch-edge":        defaults.WatchEdge,
		"mqtt.server-url":   "",
		"mqtt.client-id":    defaults.MQTT.ClientID,
		"mqtt.topic-prefix": defaults.MQTT.TopicPrefix,
	})

	return loader.LoadConfigWithFlagSet(c, fs)
}

func (c *Config) GetListenAddress() string {
	return c.ListenAddress
}

func (c *Config) GetListenPort() int {
	return c.ListenPort
}
