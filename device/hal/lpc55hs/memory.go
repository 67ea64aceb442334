package lpc55hs

import (
	"fmt"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/pkg"
)

// Buffer is an endpoint data buffer in USB1 SRAM. The zero value is an
// unallocated buffer.
type Buffer struct {
	mem  regs.Memory
	off  uintptr
	size uintptr
}

// Read copies min(len(dst), Cap()) bytes from the buffer into dst and
// returns the number of bytes copied.
func (b Buffer) Read(dst []byte) int {
	n := min(len(dst), b.Cap())
	for i := 0; i < n; i++ {
		dst[i] = b.mem.LoadByte(b.off + uintptr(i))
	}
	return n
}

// Write copies min(len(src), Cap()) bytes from src into the buffer and
// returns the number of bytes copied. Excess bytes are dropped.
func (b Buffer) Write(src []byte) int {
	n := min(len(src), b.Cap())
	for i := 0; i < n; i++ {
		b.mem.StoreByte(b.off+uintptr(i), src[i])
	}
	return n
}

// Offset returns the buffer's offset from the start of USB1 SRAM.
func (b Buffer) Offset() uintptr {
	return b.off
}

// Addr returns the absolute address of the buffer, as programmed into the
// controller.
func (b Buffer) Addr() uint32 {
	if b.mem == nil {
		return 0
	}
	return uint32(b.mem.Base() + b.off)
}

// Cap returns the buffer size in bytes.
func (b Buffer) Cap() int {
	return int(b.size)
}

// IsEmpty reports whether the buffer is unallocated.
func (b Buffer) IsEmpty() bool {
	return b.size == 0
}

// Allocator is a bump allocator over USB1 SRAM. Buffers start after the
// endpoint command/status list, are 64-byte aligned, and are never freed.
//
// An Allocator is not safe for concurrent use; the bus only calls it while
// holding its lock.
type Allocator struct {
	mem  regs.Memory
	next uintptr
}

// NewAllocator returns an allocator over mem, reserving the command/status
// list at its start.
func NewAllocator(mem regs.Memory) *Allocator {
	return &Allocator{mem: mem, next: regs.ListSize}
}

// place returns the aligned region for size bytes starting the search at
// offset from. It does not modify the allocator.
func (a *Allocator) place(from uintptr, size int) (off uintptr, err error) {
	if size < 0 {
		return 0, fmt.Errorf("allocate %d bytes: %w", size, pkg.ErrInvalidParameter)
	}
	base := a.mem.Base()
	addr := (base + from + regs.BufferAlign - 1) &^ (regs.BufferAlign - 1)
	off = addr - base
	if off+uintptr(size) > a.mem.Size() {
		return 0, fmt.Errorf("allocate %d bytes at %#x: %w", size, off, pkg.ErrEndpointMemoryOverflow)
	}
	return off, nil
}

// Allocate returns a buffer of size bytes. On failure the allocator is
// left unchanged.
func (a *Allocator) Allocate(size int) (Buffer, error) {
	off, err := a.place(a.next, size)
	if err != nil {
		return Buffer{}, err
	}
	a.next = off + uintptr(size)
	pkg.LogDebug(pkg.ComponentAllocator, "buffer allocated",
		"offset", fmt.Sprintf("%#x", off), "size", size)
	return Buffer{mem: a.mem, off: off, size: uintptr(size)}, nil
}

// AllocateAll returns one buffer per size, or an error without allocating
// any of them.
func (a *Allocator) AllocateAll(sizes ...int) ([]Buffer, error) {
	next := a.next
	for _, size := range sizes {
		off, err := a.place(next, size)
		if err != nil {
			return nil, err
		}
		next = off + uintptr(size)
	}

	bufs := make([]Buffer, len(sizes))
	for i, size := range sizes {
		bufs[i], _ = a.Allocate(size)
	}
	return bufs, nil
}

// Used returns the number of SRAM bytes consumed, including the
// command/status list and alignment padding.
func (a *Allocator) Used() int {
	return int(a.next)
}

// Free returns the number of SRAM bytes not yet consumed.
func (a *Allocator) Free() int {
	return int(a.mem.Size() - a.next)
}
