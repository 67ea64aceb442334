package lpc55hs

import (
	"sync/atomic"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/pkg"
)

// Peripherals is the set of resources owned by the driver: the device
// controller registers, the PHY registers and the USB1 SRAM. Build one from
// a simulator in tests, or call Take on hardware.
type Peripherals struct {
	Device regs.Bank
	PHY    regs.Bank
	SRAM   regs.Memory
}

var taken atomic.Bool

// Take returns the memory-mapped USB1 peripherals. It succeeds once per
// program; later calls return ErrPeripheralTaken.
func Take() (*Peripherals, error) {
	if !taken.CompareAndSwap(false, true) {
		return nil, pkg.ErrPeripheralTaken
	}
	return &Peripherals{
		Device: regs.Device,
		PHY:    regs.PHY,
		SRAM:   regs.USBSRAM(),
	}, nil
}
