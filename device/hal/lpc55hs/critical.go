package lpc55hs

import (
	"sync"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
)

// CriticalSection is the token held while the bus lock is taken. Endpoint
// hardware methods take one, so the controller registers and the
// command/status list are only reachable while the lock is held.
type CriticalSection struct {
	lock sync.Locker
	dev  regs.Block
	phy  regs.Block
	list regs.Block
}

// Exit releases the bus lock. The token must not be used afterwards.
func (cs *CriticalSection) Exit() {
	cs.lock.Unlock()
}

func (cs *CriticalSection) command(off uintptr) regs.Command {
	return regs.Command(cs.list.Read(off))
}

func (cs *CriticalSection) setCommand(off uintptr, c regs.Command) {
	cs.list.Write(off, uint32(c))
}

// Option configures a Bus.
type Option func(*Bus)

// WithLocker replaces the lock serializing bus operations. On a single-core
// target with the bus serviced from an interrupt handler, pass a locker
// that masks that interrupt.
func WithLocker(l sync.Locker) Option {
	return func(b *Bus) {
		if l != nil {
			b.lock = l
		}
	}
}
