// Package regs describes the register surface of the LPC55 USB1 high-speed
// device controller: register offsets and bits, the endpoint command/status
// word format, and volatile access to memory-mapped registers and SRAM.
//
// The driver never dereferences hardware addresses itself. It talks to a
// [Bank] (device and PHY registers) and a [Memory] (USB1 SRAM, holding the
// endpoint command/status list and the data buffers). [MMIO] and [SRAM]
// implement them for real hardware; the
// [github.com/ardnew/usbhs/device/hal/lpc55hs/sim] package implements them
// in memory for tests and tools.
package regs
