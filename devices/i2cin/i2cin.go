// Package i2cin caches a block of input registers read over I²C.
//
// A Device is a reader.Peripheral: every RefreshInputs performs one
// write-register/read-block transaction and swaps the cached copy. Callers read
// the cache with Snapshot or Bit at any time without touching the bus.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package i2cin

import (
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"spaceteam-go/errcode"
)

// MaxLength bounds the register block size.
const MaxLength = 32

// Config describes the register block. Name is optional.
type Config struct {
	Name     string
	Address  uint16
	Register uint8
	Length   int
}

type Device struct {
	bus drivers.I2C
	cfg Config

	reg     [1]byte
	scratch []byte // only touched by RefreshInputs

	mu        sync.RWMutex
	cache     []byte
	valid     bool
	refreshed time.Time
}

// New creates a Device. It does not touch the bus.
func New(bus drivers.I2C, cfg Config) (*Device, error) {
	if bus == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "i2cin", Msg: "nil bus"}
	}
	if cfg.Length <= 0 || cfg.Length > MaxLength {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "i2cin", Msg: fmt.Sprintf("length %d out of range", cfg.Length)}
	}
	if cfg.Address > 0x7F {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "i2cin", Msg: fmt.Sprintf("address 0x%x is not 7-bit", cfg.Address)}
	}
	return &Device{
		bus:     bus,
		cfg:     cfg,
		reg:     [1]byte{cfg.Register},
		scratch: make([]byte, cfg.Length),
		cache:   make([]byte, cfg.Length),
	}, nil
}

func (d *Device) ID() string {
	if d.cfg.Name != "" {
		return d.cfg.Name
	}
	return d.String()
}

func (d *Device) String() string {
	return fmt.Sprintf("i2cin@0x%02x/0x%02x", d.cfg.Address, d.cfg.Register)
}

// RefreshInputs reads the register block into the cache. On failure the previous
// cache is kept.
func (d *Device) RefreshInputs() error {
	if err := d.bus.Tx(d.cfg.Address, d.reg[:], d.scratch); err != nil {
		return &errcode.E{C: errcode.RefreshFailed, Op: d.ID(), Err: err}
	}
	d.mu.Lock()
	d.cache, d.scratch = d.scratch, d.cache
	d.valid = true
	d.refreshed = time.Now()
	d.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the cached block and whether it has ever been filled.
func (d *Device) Snapshot() ([]byte, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]byte(nil), d.cache...), d.valid
}

// Bit returns bit n of the cached block; bit 0 is the LSB of the first byte.
func (d *Device) Bit(n int) (bool, error) {
	if n < 0 || n >= d.cfg.Length*8 {
		return false, &errcode.E{C: errcode.InvalidParams, Op: d.ID(), Msg: fmt.Sprintf("bit %d out of range", n)}
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.valid {
		return false, &errcode.E{C: errcode.NotReady, Op: d.ID(), Msg: "no successful refresh yet"}
	}
	return d.cache[n/8]&(1<<(n%8)) != 0, nil
}

// Refreshed returns the time of the last successful refresh (zero if none).
func (d *Device) Refreshed() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshed
}
