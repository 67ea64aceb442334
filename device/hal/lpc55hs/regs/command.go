package regs

import "fmt"

// Command is one endpoint command/status word of the command/status list.
//
//	31  30  29  28  27     26  25..11  10..0
//	A   D   S   TR  RF/TV  T   NBytes  Offset
type Command uint32

// Command bits.
const (
	CmdOffsetMask  Command = 0x7FF // Buffer offset from DATABUFSTART, 64-byte units
	cmdNBytesShift         = 11
	CmdNBytesMask  Command = 0x7FFF << cmdNBytesShift
	CmdType        Command = 1 << 26 // Isochronous endpoint
	CmdRFTV        Command = 1 << 27 // Rate feedback / toggle value
	CmdToggleReset Command = 1 << 28 // Reset the data toggle to RF/TV
	CmdStall       Command = 1 << 29 // Stalled
	CmdDisabled    Command = 1 << 30 // Disabled
	CmdActive      Command = 1 << 31 // Buffer owned by the controller
)

// MaxNBytes is the largest byte count a command word can hold.
const MaxNBytes = int(CmdNBytesMask >> cmdNBytesShift)

// Offset returns the buffer offset in bytes from DATABUFSTART.
func (c Command) Offset() uintptr {
	return uintptr(c&CmdOffsetMask) * BufferAlign
}

// NBytes returns the byte count: bytes to send for IN, bytes still free for
// OUT.
func (c Command) NBytes() int {
	return int(c&CmdNBytesMask) >> cmdNBytesShift
}

// Active reports whether the controller owns the buffer.
func (c Command) Active() bool { return c&CmdActive != 0 }

// Stalled reports whether the stall bit is set.
func (c Command) Stalled() bool { return c&CmdStall != 0 }

// Disabled reports whether the disabled bit is set.
func (c Command) Disabled() bool { return c&CmdDisabled != 0 }

// WithOffset returns c with its buffer offset set to off bytes from
// DATABUFSTART. off must be a multiple of BufferAlign.
func (c Command) WithOffset(off uintptr) Command {
	return c&^CmdOffsetMask | Command(off/BufferAlign)&CmdOffsetMask
}

// WithNBytes returns c with its byte count set to n.
func (c Command) WithNBytes(n int) Command {
	return c&^CmdNBytesMask | Command(n)<<cmdNBytesShift&CmdNBytesMask
}

// String returns the decoded fields, for logs.
func (c Command) String() string {
	return fmt.Sprintf("{off:%#x n:%d a:%t d:%t s:%t tr:%t t:%t}",
		c.Offset(), c.NBytes(), c.Active(), c.Disabled(), c.Stalled(),
		c&CmdToggleReset != 0, c&CmdType != 0)
}

// Command list offsets. Each endpoint owns four consecutive words: OUT
// buffer 0, OUT buffer 1, IN buffer 0, IN buffer 1. Endpoint 0 has a single
// OUT buffer and uses the second OUT word for SETUP.

// OutCommand returns the list offset of endpoint ep's OUT buffer 0 word.
func OutCommand(ep int) uintptr {
	return uintptr(ep) * BytesPerEndpoint
}

// SetupCommand returns the list offset of the control endpoint's SETUP word.
func SetupCommand() uintptr {
	return 4
}

// InCommand returns the list offset of endpoint ep's IN buffer 0 word.
func InCommand(ep int) uintptr {
	return uintptr(ep)*BytesPerEndpoint + 8
}

// SkipOut returns the EPSKIP, EPINUSE and EPTOGGLE bit of endpoint ep's OUT
// direction.
func SkipOut(ep int) uint32 { return 1 << (2 * ep) }

// SkipIn returns the EPSKIP, EPINUSE and EPTOGGLE bit of endpoint ep's IN
// direction.
func SkipIn(ep int) uint32 { return 1 << (2*ep + 1) }
