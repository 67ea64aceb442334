// Package lpc55hs drives the USB1 high-speed device controller of the NXP
// LPC55S6x family.
//
// The controller reads a command/status list from USB1 SRAM: one 32-bit
// word per endpoint buffer, telling it where the buffer is, how many bytes
// to move, and whether the buffer is active, stalled or disabled. The
// driver places that list at the start of SRAM and carves endpoint buffers
// out of the rest with a bump [Allocator].
//
// [Bus] implements [hal.Bus]. A protocol layer allocates endpoints, calls
// Enable once, then polls:
//
//	p, err := lpc55hs.Take()
//	if err != nil {
//	    return err
//	}
//	bus := lpc55hs.NewBus(p)
//	ep0out, _ := bus.AllocEndpoint(hal.EndpointConfig{...})
//	bus.Enable()
//	for {
//	    switch r := bus.Poll(); r.Event {
//	    case hal.PollReset:
//	        bus.Reset()
//	    case hal.PollData:
//	        // r.Setup, r.Out and r.InComplete are per-endpoint bitmasks.
//	    }
//	}
//
// Every bus method runs under one lock, a *sync.Mutex unless [WithLocker]
// supplies another. The control endpoint's OUT buffer is one byte larger
// than its max packet size so a full packet completes without the buffer
// running out, and the bus reports [QuirkSetAddressBeforeStatus].
//
// Building with -tags usbhsdebug turns controller invariant violations
// into panics; otherwise they are logged.
//
// Register access goes through [regs.Bank], so the same driver runs
// against [sim.Peripheral] in tests.
package lpc55hs
