package regs

import (
	"sync/atomic"
	"unsafe"
)

// MMIO is a memory-mapped register bank at an absolute address. Accesses
// go through sync/atomic, which the compiler never elides, merges or
// reorders.
type MMIO uintptr

// Device and PHY register banks of the USB1 peripheral.
const (
	Device MMIO = MMIO(DeviceBase)
	PHY    MMIO = MMIO(PHYBase)
)

func (m MMIO) word(off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(m) + off))
}

// Load reads the 32-bit register at off.
func (m MMIO) Load(off uintptr) uint32 {
	return atomic.LoadUint32(m.word(off))
}

// Store writes v to the 32-bit register at off.
func (m MMIO) Store(off uintptr, v uint32) {
	atomic.StoreUint32(m.word(off), v)
}

// SRAM is a memory-mapped RAM region. Byte accesses are performed on the
// containing little-endian word; a byte store is a compare-and-swap on that
// word so neighbouring bytes are preserved.
type SRAM struct {
	MMIO
	size uintptr
}

// NewSRAM returns the RAM region [base, base+size).
func NewSRAM(base, size uintptr) SRAM {
	return SRAM{MMIO: MMIO(base), size: size}
}

// USBSRAM returns the USB1 SRAM region.
func USBSRAM() SRAM {
	return NewSRAM(SRAMBase, SRAMSize)
}

// LoadByte reads the byte at off.
func (s SRAM) LoadByte(off uintptr) byte {
	shift := 8 * (off & 3)
	return byte(s.Load(off&^3) >> shift)
}

// StoreByte writes b to the byte at off.
func (s SRAM) StoreByte(off uintptr, b byte) {
	shift := 8 * (off & 3)
	w := s.word(off &^ 3)
	for {
		old := atomic.LoadUint32(w)
		v := old&^(0xFF<<shift) | uint32(b)<<shift
		if atomic.CompareAndSwapUint32(w, old, v) {
			return
		}
	}
}

// Base returns the absolute address of the region.
func (s SRAM) Base() uintptr {
	return uintptr(s.MMIO)
}

// Size returns the size of the region in bytes.
func (s SRAM) Size() uintptr {
	return s.size
}
