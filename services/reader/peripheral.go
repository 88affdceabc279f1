package reader

import (
	"fmt"
	"strconv"
)

// Peripheral is a device whose input state is cached locally and refreshed by the
// reader. RefreshInputs must return well inside the sampling period; a non-nil
// error is reported and the cycle moves on to the next peripheral.
type Peripheral interface {
	RefreshInputs() error
}

// PeripheralFunc adapts a plain function to Peripheral.
type PeripheralFunc func() error

func (f PeripheralFunc) RefreshInputs() error { return f() }

// nameOf picks a diagnostic name: ID(), then String(), then "<index>:<type>".
func nameOf(i int, p Peripheral) string {
	type ider interface{ ID() string }
	if v, ok := p.(ider); ok {
		if id := v.ID(); id != "" {
			return id
		}
	}
	if v, ok := p.(fmt.Stringer); ok {
		if s := v.String(); s != "" {
			return s
		}
	}
	return strconv.Itoa(i) + ":" + fmt.Sprintf("%T", p)
}
