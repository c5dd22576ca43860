package gpioctl

import (
	"github.com/larsks/gpiocdev/internal/config"
	"github.com/larsks/gpiocdev/internal/lineops"
	"github.com/larsks/gpiocdev/internal/mqtt"
	"github.com/spf13/pflag"
)

const defaultChip = "gpiochip0"

// Config holds the gpioctl configuration
type Config struct {
	ConfigFile   string      `mapstructure:"config-file"`
	Chip         string      `mapstructure:"chip"`
	Consumer     string      `mapstructure:"consumer"`
	MQTT         mqtt.Config `mapstructure:"mqtt"`
	StrictConfig bool        `mapstructure:"strict-config"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Chip:     defaultChip,
		Consumer: lineops.DefaultConsumer,
		MQTT: mqtt.Config{
			ClientID:    "gpioctl",
			TopicPrefix: mqtt.DefaultTopicPrefix,
			MaxRetries:  3,
		},
	}
}

// AddFlags adds command-line flags for all configuration options
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ConfigFile, "config", config.DefaultConfigFile(), "Config file to use")
	fs.StringVarP(&c.Chip, "chip", "c", c.Chip, "GPIO chip (name, number or path)")
	fs.BoolVar(&c.StrictConfig, "strict-config", c.StrictConfig, "Fail on config file keys that are not recognized")
	fs.StringVar(&c.Consumer, "consumer", c.Consumer, "Consumer label for requested lines")
	fs.StringVar(&c.MQTT.ServerURL, "mqtt.server-url", c.MQTT.ServerURL, "Publish watched events to this MQTT server")
	fs.StringVar(&c.MQTT.ClientID, "mqtt.client-id", c.MQTT.ClientID, "MQTT client id")
	fs.StringVar(&c.MQTT.TopicPrefix, "mqtt.topic-prefix", c.MQTT.TopicPrefix, "MQTT topic prefix for line events")
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
		"chip":              defaults.Chip,
		"consumer":          defaults.Consumer,
		"mqtt.server-url":   "",
		"mqtt.client-id":    defaults.MQTT.ClientID,
		"mqtt.topic-prefix": defaults.MQTT.TopicPrefix,
		"mqtt.max-retries":  defaults.MQTT.MaxRetries,
	})

	return loader.LoadConfigWithFlagSet(c, fs)
}
