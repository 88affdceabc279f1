// Package sim provides stand-in peripherals for running the reader without hardware.
package sim

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"
)

var ErrInjected = errors.New("sim: injected failure")

// Peripheral pretends to read a device: it sleeps Latency and fails every
// FailEvery-th refresh when FailEvery > 0.
type Peripheral struct {
	Name      string
	Latency   time.Duration
	FailEvery int64

	n atomic.Int64
}

func (p *Peripheral) ID() string { return p.Name }

func (p *Peripheral) RefreshInputs() error {
	n := p.n.Add(1)
	if p.Latency > 0 {
		time.Sleep(p.Latency)
	}
	if p.FailEvery > 0 && n%p.FailEvery == 0 {
		return ErrInjected
	}
	return nil
}

// Refreshes returns how many times RefreshInputs has been called.
func (p *Peripheral) Refreshes() int64 { return p.n.Load() }

// Compile-time check.
var _ drivers.I2C = (*I2C)(nil)

// I2C is an in-memory bus. Each device address has a 256-byte register file;
// reads auto-increment from the written register and every read bumps the
// first register read so inputs appear to change.
type I2C struct {
	mu    sync.Mutex
	regs  map[uint16]*[256]byte
	Delay time.Duration
}

func NewI2C() *I2C { return &I2C{regs: make(map[uint16]*[256]byte)} }

// Set writes raw register contents for addr starting at reg.
func (b *I2C) Set(addr uint16, reg uint8, data ...byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rf := b.file(addr)
	for i, v := range data {
		rf[uint8(int(reg)+i)] = v
	}
}

func (b *I2C) Tx(addr uint16, w, r []byte) error {
	if b.Delay > 0 {
		time.Sleep(b.Delay)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rf := b.file(addr)
	if len(w) == 0 {
		return nil
	}
	reg := w[0]
	for i, v := range w[1:] {
		rf[uint8(int(reg)+i)] = v
	}
	for i := range r {
		r[i] = rf[uint8(int(reg)+i)]
	}
	if len(r) > 0 {
		rf[reg]++
	}
	return nil
}

func (b *I2C) file(addr uint16) *[256]byte {
	rf := b.regs[addr]
	if rf == nil {
		rf = new([256]byte)
		b.regs[addr] = rf
	}
	return rf
}
