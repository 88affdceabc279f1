package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"spaceteam-go/devices/i2cin"
	"spaceteam-go/internal/sim"
	"spaceteam-go/services/reader"
)

const (
	KindSim = "sim"
	KindI2C = "i2c"
)

// FileConfig is the yaml file given with --config.
type FileConfig struct {
	FixedRate   *bool              `yaml:"fixed_rate"`
	Peripherals []PeripheralConfig `yaml:"peripherals"`
}

// PeripheralConfig describes one peripheral. Kind is required ("i2c" or "sim").
// Address, Register and Length apply to kind "i2c"; Latency and FailEvery to
// kind "sim".
type PeripheralConfig struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Address   uint16 `yaml:"address"`
	Register  uint8  `yaml:"register"`
	Length    int    `yaml:"length"`
	Latency   string `yaml:"latency"`
	FailEvery int64  `yaml:"fail_every"`
}

// defaultConfig mirrors the control panel: five MCP23017 port expanders read as
// GPIOA/GPIOB pairs, plus a simulated microcontroller link.
func defaultConfig() *FileConfig {
	fc := &FileConfig{}
	for _, addr := range []uint16{0x20, 0x21, 0x22, 0x26, 0x27} {
		fc.Peripherals = append(fc.Peripherals, PeripheralConfig{
			Name:     fmt.Sprintf("mcp%02x", addr),
			Kind:     KindI2C,
			Address:  addr,
			Register: 0x12,
			Length:   2,
		})
	}
	fc.Peripherals = append(fc.Peripherals, PeripheralConfig{Name: "maple", Kind: KindSim, Latency: "2ms"})
	return fc
}

func loadConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(raw)
}

func parseConfig(raw []byte) (*FileConfig, error) {
	fc := &FileConfig{}
	if err := yaml.UnmarshalStrict(raw, fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(fc.Peripherals) == 0 {
		return nil, fmt.Errorf("config has no peripherals")
	}
	return fc, nil
}

// build turns the config into peripherals in file order. i2c peripherals share bus.
func (fc *FileConfig) build(bus *sim.I2C) ([]reader.Peripheral, error) {
	prps := make([]reader.Peripheral, 0, len(fc.Peripherals))
	for i, pc := range fc.Peripherals {
		switch pc.Kind {
		case KindI2C:
			d, err := i2cin.New(bus, i2cin.Config{
				Name:     pc.Name,
				Address:  pc.Address,
				Register: pc.Register,
				Length:   pc.Length,
			})
			if err != nil {
				return nil, fmt.Errorf("peripheral %d (%s): %w", i, pc.Name, err)
			}
			prps = append(prps, d)
		case KindSim:
			var lat time.Duration
			if pc.Latency != "" {
				var err error
				if lat, err = time.ParseDuration(pc.Latency); err != nil {
					return nil, fmt.Errorf("peripheral %d (%s): latency: %w", i, pc.Name, err)
				}
			}
			prps = append(prps, &sim.Peripheral{Name: pc.Name, Latency: lat, FailEvery: pc.FailEvery})
		default:
			return nil, fmt.Errorf("peripheral %d (%s): unknown kind %q", i, pc.Name, pc.Kind)
		}
	}
	return prps, nil
}
