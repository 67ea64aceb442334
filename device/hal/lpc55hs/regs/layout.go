package regs

// Peripheral base addresses (LPC55S6x user manual, memory map).
const (
	DeviceBase uintptr = 0x40094000 // USB1 high-speed device controller
	PHYBase    uintptr = 0x40038000 // USB1 high-speed PHY
	SRAMBase   uintptr = 0x40100000 // USB1 SRAM
	SRAMSize   uintptr = 0x4000
)

// Endpoint geometry.
const (
	// NumEndpoints is the number of physical endpoints, including control.
	NumEndpoints = 1 + 5

	// BytesPerEndpoint is the size of one endpoint's command/status entries:
	// two directions, two buffers each, one 32-bit word per buffer.
	BytesPerEndpoint = 4 * 4

	// ListSize is the size of the endpoint command/status list, which
	// occupies the start of USB1 SRAM.
	ListSize = NumEndpoints * BytesPerEndpoint

	// BufferAlign is the alignment of endpoint data buffers.
	BufferAlign = 64

	// ListAlign is the alignment of the endpoint command/status list.
	ListAlign = 256
)

// Device register offsets.
const (
	DEVCMDSTAT   = 0x00 // Device command/status
	INFO         = 0x04 // Frame number and error status
	EPLISTSTART  = 0x08 // Endpoint command/status list start address
	DATABUFSTART = 0x0C // Data buffer start address
	LPM          = 0x10 // Link power management
	EPSKIP       = 0x14 // Endpoint skip
	EPINUSE      = 0x18 // Endpoint buffer in use
	EPBUFCFG     = 0x1C // Endpoint buffer configuration
	INTSTAT      = 0x20 // Interrupt status (write one to clear)
	INTEN        = 0x24 // Interrupt enable
	INTSETSTAT   = 0x28 // Set interrupt status
	EPTOGGLE     = 0x34 // Endpoint toggle
)

// DEVCMDSTAT bits.
const (
	DevAddrMask     = 0x7F    // Device address
	DevEn           = 1 << 7  // Device enable
	Setup           = 1 << 8  // SETUP token received (write one to clear)
	ForceNeedClk    = 1 << 9  // Force need-clock
	LPMSup          = 1 << 11 // LPM supported
	IntOnNAKAO      = 1 << 12 // Interrupt on NAK, interrupt OUT
	IntOnNAKAI      = 1 << 13 // Interrupt on NAK, interrupt IN
	IntOnNAKCO      = 1 << 14 // Interrupt on NAK, control OUT
	IntOnNAKCI      = 1 << 15 // Interrupt on NAK, control IN
	DCon            = 1 << 16 // Device connect
	DSus            = 1 << 17 // Device suspend
	LPMSus          = 1 << 19 // Device LPM suspend
	LPMRewp         = 1 << 20 // LPM remote wake-up enabled by host
	DConC           = 1 << 24 // Connect change (write one to clear)
	DSusC           = 1 << 25 // Suspend change (write one to clear)
	DResC           = 1 << 26 // Bus reset (write one to clear)
	VBusDebounced   = 1 << 28 // VBUS detected
	DevCmdStatW1C   = Setup | DConC | DSusC | DResC
	devSpeedShift   = 22
	devSpeedMask    = 0x3 << devSpeedShift
	DevSpeedHigh    = 0x2 << devSpeedShift
	DevSpeedFull    = 0x1 << devSpeedShift
	DevSpeedUnknown = 0x0 << devSpeedShift
)

// INTSTAT and INTEN bits.
const (
	FrameInt = 1 << 30 // Start of frame
	DevInt   = 1 << 31 // Device status change
	DevIntEn = DevInt
)

// EndpointInts is the INTSTAT mask covering every endpoint interrupt.
const EndpointInts = 1<<(2*NumEndpoints) - 1

// OutInt returns the INTSTAT bit of endpoint ep's OUT direction.
func OutInt(ep int) uint32 { return 1 << (2 * ep) }

// InInt returns the INTSTAT bit of endpoint ep's IN direction.
func InInt(ep int) uint32 { return 1 << (2*ep + 1) }

// PHY register offsets. The _SET and _CLR aliases set and clear bits
// without a read-modify-write.
const (
	PHYPWD     = 0x00
	PHYCTRL    = 0x30
	PHYCTRLSet = 0x34
	PHYCTRLClr = 0x38
)

// PHY CTRL bits.
const (
	PHYClkGate = 1 << 30
	PHYSftRst  = 1 << 31
)

// DevSpeed extracts the negotiated speed field from a DEVCMDSTAT value.
func DevSpeed(devcmdstat uint32) uint32 {
	return devcmdstat & devSpeedMask
}

// DevCmdStatModify performs a read-modify-write of DEVCMDSTAT without
// acknowledging any pending write-one-to-clear flag by accident. To clear a
// flag, pass it in set.
func DevCmdStatModify(dev Block, clear, set uint32) {
	v := dev.Read(DEVCMDSTAT) &^ DevCmdStatW1C
	dev.Write(DEVCMDSTAT, v&^clear|set)
}
