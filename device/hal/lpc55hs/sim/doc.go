// Package sim simulates the LPC55 USB1 high-speed device controller in
// memory.
//
// A [Peripheral] provides the register banks and SRAM that the driver in
// [github.com/ardnew/usbhs/device/hal/lpc55hs] programs, and a host-side API
// that plays the role of the USB host:
//
//	p := sim.New()
//	bus := lpc55hs.NewBus(&lpc55hs.Peripherals{
//	    Device: p.Device(),
//	    PHY:    p.PHY(),
//	    SRAM:   p.SRAM(),
//	})
//	// ... allocate endpoints, bus.Enable()
//	p.BusReset()
//	p.Setup([8]byte{0x00, 0x05, 0x07})     // SET_ADDRESS(7)
//	p.Out(1, []byte("ping"))
//	data, hs := p.In(1)
//
// The simulation follows the controller's documented behaviour for the
// parts the driver relies on: write-one-to-clear flags in DEVCMDSTAT and
// INTSTAT, the endpoint command/status list (active, stall, disabled,
// NBytes), SETUP handling on the control endpoint, EPSKIP, and the PHY
// CTRL set/clear aliases. Timing, errors on the wire, double buffering and
// isochronous scheduling are not modelled.
//
// A [Snapshot] of the whole peripheral can be encoded as CBOR, and the SRAM
// can be written as an Intel HEX image at its absolute address.
package sim
