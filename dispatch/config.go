package dispatch

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"github.com/marinerlabs/rovlink/store"
)

// PeripheralConfig binds one tty port to the partition its controller is
// expected to serve. The binding is only a starting point: the controller's
// own deviceID declarations win at runtime.
type PeripheralConfig struct {
	Port string          `yaml:"port"`
	ID   store.Partition `yaml:"id"`
	Baud int             `yaml:"baud"`
}

type VideoConfig struct {
	Camera int `yaml:"camera"`
	Port   int `yaml:"port"`
}

type Config struct {
	Version     int                `yaml:"version"`
	Listen      string             `yaml:"listen"`
	Peripherals []PeripheralConfig `yaml:"peripherals"`
	Video       []VideoConfig      `yaml:"video"`
}

// LoadConfig reads and validates the daemon's yaml configuration.
func LoadConfig(filename string) (cfg Config, err error) {
	raw, err := ioutil.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("unable to read yaml file: %w", err)
	}

	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unable to unmarshal yaml: %w", err)
	}

	if cfg.Version != 1 {
		return cfg, fmt.Errorf("unable to work with version %d", cfg.Version)
	}
	if cfg.Listen == "" {
		cfg.Listen = "0.0.0.0:50000"
	}
	for i, p := range cfg.Peripherals {
		if !store.ValidDevice(p.ID) {
			return cfg, fmt.Errorf("peripheral %d: unknown id %q", i, p.ID)
		}
	}

	return cfg, nil
}
