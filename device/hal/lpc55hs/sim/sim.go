package sim

import (
	"encoding/binary"
	"sync"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/pkg"
)

// Number of words modelled in each register bank.
const (
	deviceWords = 0x40 / 4
	phyWords    = 0x40 / 4
)

// DEVCMDSTAT bits software cannot change.
const devCmdStatReadOnly = regs.LPMRewp | regs.VBusDebounced | 0x3<<22

// Handshake is the device's answer to a host token.
type Handshake int

// Handshakes.
const (
	ACK Handshake = iota
	NAK
	Stall
)

// String returns the handshake name.
func (h Handshake) String() string {
	switch h {
	case ACK:
		return "ACK"
	case NAK:
		return "NAK"
	default:
		return "STALL"
	}
}

// Peripheral is an in-memory LPC55 USB1 controller. The device side is
// reached through Device, PHY and SRAM; the host side through BusReset,
// Setup, Out, In and friends. Both sides may run on different goroutines.
type Peripheral struct {
	mu   sync.Mutex
	dev  [deviceWords]uint32
	phy  [phyWords]uint32
	sram []byte
}

// New returns a peripheral in its post-reset state: PHY clock gated,
// device disabled and disconnected, VBUS present.
func New() *Peripheral {
	p := &Peripheral{sram: make([]byte, regs.SRAMSize)}
	p.phy[regs.PHYCTRL/4] = regs.PHYClkGate
	p.dev[regs.DEVCMDSTAT/4] = regs.VBusDebounced
	return p
}

// Device returns the device register bank.
func (p *Peripheral) Device() regs.Bank { return deviceBank{p} }

// PHY returns the PHY register bank.
func (p *Peripheral) PHY() regs.Bank { return phyBank{p} }

// SRAM returns the USB1 SRAM.
func (p *Peripheral) SRAM() regs.Memory { return sram{p} }

type deviceBank struct{ p *Peripheral }

func (b deviceBank) Load(off uintptr) uint32 {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()
	return b.p.dev[off/4]
}

func (b deviceBank) Store(off uintptr, v uint32) {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()
	b.p.storeDevice(off, v)
}

func (p *Peripheral) storeDevice(off uintptr, v uint32) {
	reg := &p.dev[off/4]
	switch off {
	case regs.DEVCMDSTAT:
		keep := *reg & devCmdStatReadOnly
		pending := *reg & regs.DevCmdStatW1C &^ v
		*reg = v&^(regs.DevCmdStatW1C|devCmdStatReadOnly) | keep | pending
	case regs.INTSTAT:
		*reg &^= v
	case regs.INTSETSTAT:
		p.dev[regs.INTSTAT/4] |= v
	case regs.EPSKIP:
		for ep := 0; ep < regs.NumEndpoints; ep++ {
			if v&regs.SkipOut(ep) != 0 {
				p.deactivate(regs.OutCommand(ep))
			}
			if v&regs.SkipIn(ep) != 0 {
				p.deactivate(regs.InCommand(ep))
			}
		}
	default:
		*reg = v
	}
}

type phyBank struct{ p *Peripheral }

func (b phyBank) Load(off uintptr) uint32 {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()
	if off == regs.PHYCTRLSet || off == regs.PHYCTRLClr {
		return b.p.phy[regs.PHYCTRL/4]
	}
	return b.p.phy[off/4]
}

func (b phyBank) Store(off uintptr, v uint32) {
	b.p.mu.Lock()
	defer b.p.mu.Unlock()
	switch off {
	case regs.PHYCTRLSet:
		b.p.phy[regs.PHYCTRL/4] |= v
	case regs.PHYCTRLClr:
		b.p.phy[regs.PHYCTRL/4] &^= v
	default:
		b.p.phy[off/4] = v
	}
}

type sram struct{ p *Peripheral }

func (m sram) Load(off uintptr) uint32 {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	return binary.LittleEndian.Uint32(m.p.sram[off:])
}

func (m sram) Store(off uintptr, v uint32) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	binary.LittleEndian.PutUint32(m.p.sram[off:], v)
}

func (m sram) LoadByte(off uintptr) byte {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	return m.p.sram[off]
}

func (m sram) StoreByte(off uintptr, b byte) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	m.p.sram[off] = b
}

func (m sram) Base() uintptr { return regs.SRAMBase }
func (m sram) Size() uintptr { return uintptr(len(m.p.sram)) }

// Register returns the raw value of a device register.
func (p *Peripheral) Register(off uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dev[off/4]
}

// PHYRegister returns the raw value of a PHY register.
func (p *Peripheral) PHYRegister(off uintptr) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phy[off/4]
}

// Command returns the command/status word at list offset off.
func (p *Peripheral) Command(off uintptr) regs.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.command(off)
}

// Address returns the programmed device address.
func (p *Peripheral) Address() uint8 {
	return uint8(p.Register(regs.DEVCMDSTAT) & regs.DevAddrMask)
}

// Attached reports whether the device is enabled and connected.
func (p *Peripheral) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached()
}

// Locked helpers below assume p.mu is held.

func (p *Peripheral) attached() bool {
	const want = regs.DevEn | regs.DCon
	return p.dev[regs.DEVCMDSTAT/4]&want == want
}

func (p *Peripheral) listOffset() uintptr {
	start := uintptr(p.dev[regs.EPLISTSTART/4])
	if start < regs.SRAMBase {
		return 0
	}
	return start - regs.SRAMBase
}

func (p *Peripheral) bufferOffset(c regs.Command) uintptr {
	start := uintptr(p.dev[regs.DATABUFSTART/4])
	if start < regs.SRAMBase {
		start = regs.SRAMBase
	}
	return start - regs.SRAMBase + c.Offset()
}

func (p *Peripheral) command(off uintptr) regs.Command {
	return regs.Command(binary.LittleEndian.Uint32(p.sram[p.listOffset()+off:]))
}

func (p *Peripheral) setCommand(off uintptr, c regs.Command) {
	binary.LittleEndian.PutUint32(p.sram[p.listOffset()+off:], uint32(c))
}

func (p *Peripheral) deactivate(off uintptr) {
	p.setCommand(off, p.command(off)&^regs.CmdActive)
}

func (p *Peripheral) raise(devcmdstat, intstat uint32) {
	p.dev[regs.DEVCMDSTAT/4] |= devcmdstat
	p.dev[regs.INTSTAT/4] |= intstat
}

// BusReset signals a bus reset, after which the link runs at high speed.
func (p *Peripheral) BusReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dev[regs.DEVCMDSTAT/4] = p.dev[regs.DEVCMDSTAT/4]&^(0x3<<22) | regs.DevSpeedHigh
	p.raise(regs.DResC, regs.DevInt)
	pkg.LogDebug(pkg.ComponentSim, "bus reset")
}

// Suspend signals that the bus went idle.
func (p *Peripheral) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raise(regs.DSus|regs.DSusC, regs.DevInt)
	pkg.LogDebug(pkg.ComponentSim, "bus suspend")
}

// LPMSuspend signals an LPM (L1) suspend. remoteWake is the host's
// remote wake-up permission.
func (p *Peripheral) LPMSuspend(remoteWake bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dev[regs.DEVCMDSTAT/4] &^= regs.LPMRewp
	if remoteWake {
		p.dev[regs.DEVCMDSTAT/4] |= regs.LPMRewp
	}
	p.raise(regs.LPMSus, regs.DevInt)
	pkg.LogDebug(pkg.ComponentSim, "bus lpm suspend", "remote_wake", remoteWake)
}

// Wake signals host-initiated resume.
func (p *Peripheral) Wake() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dev[regs.DEVCMDSTAT/4] &^= regs.DSus | regs.LPMSus
	p.raise(regs.DSusC, regs.DevInt)
	pkg.LogDebug(pkg.ComponentSim, "bus resume")
}

// Setup delivers a SETUP packet to the control endpoint. SETUP packets are
// never NAKed; they clear the active and stall bits of both control
// directions. Returns NAK only when the device is not attached.
func (p *Peripheral) Setup(packet [8]byte) Handshake {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached() {
		return NAK
	}

	buf := p.bufferOffset(p.command(regs.SetupCommand()))
	copy(p.sram[buf:buf+8], packet[:])

	for _, off := range []uintptr{regs.OutCommand(0), regs.InCommand(0)} {
		p.setCommand(off, p.command(off)&^(regs.CmdActive|regs.CmdStall))
	}
	p.raise(regs.Setup, regs.OutInt(0))
	pkg.LogDebug(pkg.ComponentSim, "setup", "packet", packet)
	return ACK
}

// Out delivers an OUT data packet to endpoint ep. Bytes beyond the
// remaining NBytes of the armed buffer are dropped.
func (p *Peripheral) Out(ep int, data []byte) Handshake {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached() || ep >= regs.NumEndpoints {
		return NAK
	}

	off := regs.OutCommand(ep)
	c := p.command(off)
	switch {
	case c.Stalled():
		return Stall
	case !c.Active() || c.Disabled():
		return NAK
	}

	n := min(len(data), c.NBytes())
	buf := p.bufferOffset(c)
	copy(p.sram[buf:buf+uintptr(n)], data[:n])

	p.setCommand(off, c.WithNBytes(c.NBytes()-n)&^regs.CmdActive)
	p.raise(0, regs.OutInt(ep))
	pkg.LogDebug(pkg.ComponentSim, "out", "ep", ep, "len", n)
	return ACK
}

// In issues an IN token to endpoint ep and returns the packet sent by the
// device.
func (p *Peripheral) In(ep int) ([]byte, Handshake) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached() || ep >= regs.NumEndpoints {
		return nil, NAK
	}

	off := regs.InCommand(ep)
	c := p.command(off)
	switch {
	case c.Stalled():
		return nil, Stall
	case !c.Active() || c.Disabled():
		return nil, NAK
	}

	buf := p.bufferOffset(c)
	data := make([]byte, c.NBytes())
	copy(data, p.sram[buf:])

	p.setCommand(off, c.WithNBytes(0)&^regs.CmdActive)
	p.raise(0, regs.InInt(ep))
	pkg.LogDebug(pkg.ComponentSim, "in", "ep", ep, "len", len(data))
	return data, ACK
}
