// Package hal defines the bus abstraction between a USB device protocol
// layer and a device-controller driver.
//
// The [Bus] interface is poll-driven: the protocol layer allocates
// endpoints, enables the bus, and then calls [Bus.Poll] from a main loop or
// an interrupt handler. Each poll returns a [PollResult]:
//
//   - [PollReset]: the host reset the bus; call [Bus.Reset]
//   - [PollSuspend]: the bus is idle; call [Bus.Suspend]
//   - [PollData]: endpoints with OUT data, completed IN transfers, or a
//     SETUP packet, as bitmasks indexed by endpoint number
//   - [PollNone]: nothing to do
//
// The protocol layer then services the reported endpoints with [Bus.Read]
// and [Bus.Write]. Both are non-blocking.
//
// # Example
//
//	switch r := bus.Poll(); r.Event {
//	case hal.PollReset:
//	    bus.Reset()
//	case hal.PollData:
//	    if r.Setup&1 != 0 {
//	        n, err := bus.Read(hal.NewEndpointAddress(0, hal.DirectionOut), buf[:])
//	        // ...
//	    }
//	}
//
// A driver for the LPC55 USB1 high-speed controller is available in
// [github.com/ardnew/usbhs/device/hal/lpc55hs].
package hal
