package hal

import "fmt"

// Direction is the direction of an endpoint, encoded as bit 7 of its address.
type Direction uint8

// Endpoint directions.
const (
	DirectionOut Direction = 0x00 // Host to device
	DirectionIn  Direction = 0x80 // Device to host
)

// String returns "IN" or "OUT".
func (d Direction) String() string {
	if d == DirectionIn {
		return "IN"
	}
	return "OUT"
}

// EndpointType is the transfer type of an endpoint (USB 2.0 Spec Table 9-13).
type EndpointType uint8

// Endpoint transfer types.
const (
	EndpointTypeControl     EndpointType = 0x00 // Control transfer
	EndpointTypeIsochronous EndpointType = 0x01 // Isochronous transfer
	EndpointTypeBulk        EndpointType = 0x02 // Bulk transfer
	EndpointTypeInterrupt   EndpointType = 0x03 // Interrupt transfer
)

// String returns a human-readable transfer type name.
func (t EndpointType) String() string {
	switch t {
	case EndpointTypeControl:
		return "Control"
	case EndpointTypeIsochronous:
		return "Isochronous"
	case EndpointTypeBulk:
		return "Bulk"
	case EndpointTypeInterrupt:
		return "Interrupt"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// EndpointAddress is a USB endpoint address: index in bits 3:0 and the
// direction in bit 7.
type EndpointAddress uint8

// NewEndpointAddress returns the address of endpoint index in direction dir.
func NewEndpointAddress(index int, dir Direction) EndpointAddress {
	return EndpointAddress(uint8(index)&0x0F | uint8(dir))
}

// Index returns the endpoint number (0-15).
func (a EndpointAddress) Index() int {
	return int(a & 0x0F)
}

// Direction returns the endpoint direction.
func (a EndpointAddress) Direction() Direction {
	return Direction(a & 0x80)
}

// IsIn returns true if this is an IN endpoint (device to host).
func (a EndpointAddress) IsIn() bool {
	return a.Direction() == DirectionIn
}

// IsOut returns true if this is an OUT endpoint (host to device).
func (a EndpointAddress) IsOut() bool {
	return a.Direction() == DirectionOut
}

// String returns the address in the form "0x81".
func (a EndpointAddress) String() string {
	return fmt.Sprintf("0x%02X", uint8(a))
}

// EndpointConfig describes an endpoint allocation request.
type EndpointConfig struct {
	Direction     Direction
	Address       EndpointAddress // Used only when Fixed is set
	Fixed         bool            // Allocate exactly Address instead of searching
	Type          EndpointType
	MaxPacketSize uint16
	Interval      uint8 // Polling interval, accepted but unused by the bus
}

// PollEvent classifies the result of a bus poll.
type PollEvent uint8

// Poll events, in decreasing priority.
const (
	PollNone    PollEvent = iota // Nothing happened
	PollReset                    // Bus reset detected
	PollSuspend                  // Bus suspended
	PollData                     // One or more endpoints have events
)

// String returns the event name.
func (e PollEvent) String() string {
	switch e {
	case PollReset:
		return "reset"
	case PollSuspend:
		return "suspend"
	case PollData:
		return "data"
	default:
		return "none"
	}
}

// PollResult is the portable result of one bus poll. The masks are indexed
// by endpoint number, bit 0 being the control endpoint, and are only
// meaningful when Event is PollData.
type PollResult struct {
	Event      PollEvent
	Out        uint16 // OUT data received
	InComplete uint16 // IN transfer completed
	Setup      uint16 // SETUP packet received
}

// Data returns a PollData result, or a PollNone result if all masks are zero.
func Data(out, inComplete, setup uint16) PollResult {
	if out|inComplete|setup == 0 {
		return PollResult{Event: PollNone}
	}
	return PollResult{Event: PollData, Out: out, InComplete: inComplete, Setup: setup}
}

// SetupPacket represents a USB SETUP packet in the HAL layer.
// This is a fixed-size, zero-allocation structure for SETUP transactions.
type SetupPacket struct {
	RequestType uint8  // Request characteristics
	Request     uint8  // Specific request
	Value       uint16 // Request-specific value
	Index       uint16 // Request-specific index
	Length      uint16 // Number of bytes to transfer
}

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// ParseSetupPacket parses raw bytes into a SetupPacket.
// Returns false if data is too short.
func ParseSetupPacket(data []byte, out *SetupPacket) bool {
	if len(data) < SetupPacketSize {
		return false
	}
	out.RequestType = data[0]
	out.Request = data[1]
	out.Value = uint16(data[2]) | uint16(data[3])<<8
	out.Index = uint16(data[4]) | uint16(data[5])<<8
	out.Length = uint16(data[6]) | uint16(data[7])<<8
	return true
}

// MarshalTo writes the setup packet to buf.
// Returns the number of bytes written (8), or 0 if buf is too small.
func (s *SetupPacket) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = s.RequestType
	buf[1] = s.Request
	buf[2] = byte(s.Value)
	buf[3] = byte(s.Value >> 8)
	buf[4] = byte(s.Index)
	buf[5] = byte(s.Index >> 8)
	buf[6] = byte(s.Length)
	buf[7] = byte(s.Length >> 8)
	return SetupPacketSize
}

// Bus defines the peripheral-facing half of a USB device stack.
//
// A protocol layer allocates endpoints, enables the bus, then repeatedly
// calls Poll and services the endpoints it reports with Read and Write.
// Implementations serialize every method internally.
type Bus interface {
	// AllocEndpoint allocates an endpoint and its buffers. It is only
	// valid before Enable.
	AllocEndpoint(cfg EndpointConfig) (EndpointAddress, error)

	// Enable makes the device visible on the bus.
	// It must be called exactly once, after all endpoints are allocated.
	Enable()

	// Reset reprograms every endpoint after a bus reset.
	Reset()

	// SetDeviceAddress programs the device address assigned by the host.
	SetDeviceAddress(addr uint8)

	// Poll reports pending bus events.
	Poll() PollResult

	// Read reads a received packet from an OUT endpoint.
	Read(addr EndpointAddress, buf []byte) (int, error)

	// Write queues a packet for transmission on an IN endpoint.
	Write(addr EndpointAddress, data []byte) (int, error)

	// SetStalled sets or clears the stall condition of an endpoint.
	SetStalled(addr EndpointAddress, stalled bool)

	// IsStalled reports whether an endpoint is stalled.
	IsStalled(addr EndpointAddress) bool

	// Suspend is called when the bus enters the suspended state.
	Suspend()

	// Resume is called when the bus leaves the suspended state.
	Resume()

	// SetAddressBeforeStatus reports whether the device address must be
	// programmed before the status stage of SET_ADDRESS completes.
	SetAddressBeforeStatus() bool
}
