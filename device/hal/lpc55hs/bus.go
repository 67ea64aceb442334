package lpc55hs

import (
	"fmt"
	"sync"

	"github.com/ardnew/usbhs/device/hal"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/pkg"
)

// MaxPacketSize is the largest packet size an endpoint may request.
const MaxPacketSize = 1024

// QuirkSetAddressBeforeStatus is true: the controller latches DEV_ADDR
// immediately, after the status stage has been armed.
const QuirkSetAddressBeforeStatus = true

// Bus drives the LPC55 USB1 high-speed device controller. Every method is
// serialized by the bus lock.
type Bus struct {
	lock      sync.Locker
	periph    *Peripherals
	alloc     *Allocator
	endpoints [regs.NumEndpoints]Endpoint
	maxEP     int
	enabled   bool
}

var _ hal.Bus = (*Bus)(nil)

// NewBus returns a bus over p. The peripherals are owned by the bus from
// here on.
func NewBus(p *Peripherals, opts ...Option) *Bus {
	if p == nil || p.Device == nil || p.PHY == nil || p.SRAM == nil {
		panic("lpc55hs: incomplete peripherals")
	}
	if p.SRAM.Size() < regs.ListSize {
		panic("lpc55hs: SRAM smaller than the endpoint list")
	}
	b := &Bus{
		lock:   new(sync.Mutex),
		periph: p,
		alloc:  NewAllocator(p.SRAM),
	}
	for i := range b.endpoints {
		b.endpoints[i].index = i
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) enter() CriticalSection {
	b.lock.Lock()
	return CriticalSection{
		lock: b.lock,
		dev:  regs.Block{Bank: b.periph.Device},
		phy:  regs.Block{Bank: b.periph.PHY},
		list: regs.Block{Bank: b.periph.SRAM},
	}
}

// AllocEndpoint binds a buffer of cfg.MaxPacketSize bytes to an endpoint.
// With cfg.Fixed the endpoint is cfg.Address; otherwise the first
// non-control endpoint whose type is unclaimed or equal to cfg.Type and
// whose direction is free is chosen. An OUT allocation on the control
// endpoint also reserves the SETUP buffer.
func (b *Bus) AllocEndpoint(cfg hal.EndpointConfig) (hal.EndpointAddress, error) {
	if cfg.MaxPacketSize == 0 || cfg.MaxPacketSize > MaxPacketSize {
		return 0, fmt.Errorf("alloc endpoint: max packet size %d: %w",
			cfg.MaxPacketSize, pkg.ErrInvalidParameter)
	}

	lo, hi := 1, regs.NumEndpoints
	if cfg.Fixed {
		idx := cfg.Address.Index()
		if idx >= regs.NumEndpoints || cfg.Address.Direction() != cfg.Direction {
			return 0, fmt.Errorf("alloc endpoint %v: %w", cfg.Address, pkg.ErrInvalidEndpoint)
		}
		lo, hi = idx, idx+1
	}

	cs := b.enter()
	defer cs.Exit()

	if b.enabled {
		pkg.LogWarn(pkg.ComponentBus, "endpoint allocated after enable", "dir", cfg.Direction)
	}

	mps := int(cfg.MaxPacketSize)
	for i := lo; i < hi; i++ {
		ep := &b.endpoints[i]
		if t, ok := ep.Type(); ok && t != cfg.Type {
			continue
		}

		addr := hal.NewEndpointAddress(i, cfg.Direction)
		switch cfg.Direction {
		case hal.DirectionOut:
			if ep.HasOut() {
				continue
			}
			sizes := []int{mps}
			if i == 0 {
				// One spare byte lets a max-size packet complete without the
				// buffer filling up; the SETUP buffer follows.
				sizes = []int{mps + 1, hal.SetupPacketSize}
			}
			bufs, err := b.alloc.AllocateAll(sizes...)
			if err != nil {
				return 0, fmt.Errorf("alloc endpoint %v: %w", addr, err)
			}
			ep.SetType(cfg.Type)
			ep.BindOut(bufs[0])
			if i == 0 {
				ep.BindSetup(bufs[1])
			}
		default:
			if ep.HasIn() {
				continue
			}
			buf, err := b.alloc.Allocate(mps)
			if err != nil {
				return 0, fmt.Errorf("alloc endpoint %v: %w", addr, err)
			}
			ep.SetType(cfg.Type)
			ep.BindIn(buf)
		}

		pkg.LogDebug(pkg.ComponentBus, "endpoint allocated",
			"addr", addr, "type", cfg.Type, "mps", mps)
		return addr, nil
	}

	if cfg.Fixed {
		return 0, fmt.Errorf("alloc endpoint %v: %w", cfg.Address, pkg.ErrInvalidEndpoint)
	}
	return 0, fmt.Errorf("alloc %v %v endpoint: %w", cfg.Type, cfg.Direction, pkg.ErrEndpointOverflow)
}

// Enable arms the allocated endpoints, programs the list and buffer base
// registers, ungates the PHY clock and connects the device.
func (b *Bus) Enable() {
	cs := b.enter()
	defer cs.Exit()

	if b.enabled {
		pkg.LogWarn(pkg.ComponentBus, "bus already enabled")
		return
	}

	for i := range b.endpoints {
		ep := &b.endpoints[i]
		if !ep.HasOut() && !ep.HasIn() {
			continue
		}
		b.maxEP = i
		if ep.HasOut() {
			ep.ResetOut(&cs)
		}
		if ep.HasSetup() {
			ep.ResetSetup(&cs)
		}
		if ep.HasIn() {
			ep.ResetIn(&cs)
		}
	}

	base := b.periph.SRAM.Base()
	if base%regs.ListAlign != 0 {
		panic(fmt.Sprintf("lpc55hs: endpoint list at %#x not %d-byte aligned", base, regs.ListAlign))
	}
	cs.dev.Write(regs.DATABUFSTART, uint32(base))
	cs.dev.Write(regs.EPLISTSTART, uint32(base))

	cs.phy.Write(regs.PHYCTRLClr, regs.PHYClkGate)
	regs.DevCmdStatModify(cs.dev, 0, regs.DevEn|regs.DCon)
	cs.dev.Set(regs.INTEN, regs.EndpointInts)
	cs.dev.Set(regs.INTEN, regs.DevIntEn)

	b.enabled = true
	pkg.LogInfo(pkg.ComponentBus, "bus enabled",
		"max_endpoint", b.maxEP, "sram_used", b.alloc.Used())
}

// Reset clears the device address, reconfigures every endpoint and
// acknowledges all pending interrupts.
func (b *Bus) Reset() {
	cs := b.enter()
	defer cs.Exit()

	regs.DevCmdStatModify(cs.dev, regs.DevAddrMask, 0)
	for i := range b.endpoints {
		b.endpoints[i].Configure(&cs)
	}
	cs.dev.Write(regs.INTSTAT, ^uint32(0))
	pkg.LogDebug(pkg.ComponentBus, "bus reset")
}

// SetDeviceAddress programs the device address.
func (b *Bus) SetDeviceAddress(addr uint8) {
	cs := b.enter()
	defer cs.Exit()

	regs.DevCmdStatModify(cs.dev, regs.DevAddrMask, uint32(addr)&regs.DevAddrMask)
	pkg.LogDebug(pkg.ComponentBus, "address set", "addr", addr)
}

// Poll reports the highest priority pending event: a bus reset, then a
// suspend, then endpoint data. Reported endpoint interrupts are
// acknowledged, so a second poll without new bus activity returns
// PollNone. The suspend flags stay set until Resume.
func (b *Bus) Poll() hal.PollResult {
	cs := b.enter()
	defer cs.Exit()

	st := cs.dev.Read(regs.DEVCMDSTAT)
	if st&regs.DResC != 0 {
		regs.DevCmdStatModify(cs.dev, 0, regs.DResC)
		return hal.PollResult{Event: hal.PollReset}
	}
	if (st&regs.DSusC != 0 && st&regs.DSus != 0) || st&regs.LPMSus != 0 {
		return hal.PollResult{Event: hal.PollSuspend}
	}
	if st&regs.DSusC != 0 {
		// Suspend change with DSUS clear: the host resumed the bus.
		regs.DevCmdStatModify(cs.dev, 0, regs.DSusC)
	}

	intstat := cs.dev.Read(regs.INTSTAT)
	var out, in, setup uint16
	ack := uint32(regs.DevInt)

	if intstat&regs.OutInt(0) != 0 {
		if cs.dev.Has(regs.DEVCMDSTAT, regs.Setup) {
			setup |= 1
		} else {
			out |= 1
		}
		ack |= regs.OutInt(0)
	}
	if intstat&regs.InInt(0) != 0 {
		cs.dev.Write(regs.INTSTAT, regs.InInt(0))
		in |= 1
		off := regs.InCommand(0)
		cs.setCommand(off, cs.command(off)&^regs.CmdActive)
	}

	for i := 1; i <= b.maxEP; i++ {
		bit := uint16(1) << i
		if intstat&regs.OutInt(i) != 0 {
			c := cs.command(regs.OutCommand(i))
			invariant(!c.Active(), "OUT interrupt on active buffer", "ep", i, "cmd", c)
			out |= bit
			ack |= regs.OutInt(i)
		}
		if intstat&regs.InInt(i) != 0 {
			if c := cs.command(regs.InCommand(i)); c.Active() {
				pkg.LogDebug(pkg.ComponentBus, "IN interrupt on active buffer", "ep", i, "cmd", c)
				continue
			}
			cs.dev.Write(regs.INTSTAT, regs.InInt(i))
			in |= bit
		}
	}

	cs.dev.Write(regs.INTSTAT, ack)
	return hal.Data(out, in, setup)
}

func (b *Bus) endpoint(addr hal.EndpointAddress) (*Endpoint, error) {
	if addr.Index() >= regs.NumEndpoints {
		return nil, pkg.ErrInvalidEndpoint
	}
	return &b.endpoints[addr.Index()], nil
}

// Read copies a received packet from an OUT endpoint into buf. It returns
// ErrWouldBlock when no packet is pending and ErrBufferOverflow when buf is
// too small; the packet stays pending in both cases.
func (b *Bus) Read(addr hal.EndpointAddress, buf []byte) (int, error) {
	if !addr.IsOut() {
		return 0, pkg.ErrInvalidEndpoint
	}
	ep, err := b.endpoint(addr)
	if err != nil {
		return 0, err
	}
	cs := b.enter()
	defer cs.Exit()
	return ep.Read(&cs, buf)
}

// Write queues data on an IN endpoint. It returns ErrWouldBlock while the
// previous packet is still being sent.
func (b *Bus) Write(addr hal.EndpointAddress, data []byte) (int, error) {
	if !addr.IsIn() {
		return 0, pkg.ErrInvalidEndpoint
	}
	ep, err := b.endpoint(addr)
	if err != nil {
		return 0, err
	}
	cs := b.enter()
	defer cs.Exit()
	return ep.Write(&cs, data)
}

func listOffset(addr hal.EndpointAddress) (off uintptr, skip uint32) {
	i := addr.Index()
	if addr.IsIn() {
		return regs.InCommand(i), regs.SkipIn(i)
	}
	return regs.OutCommand(i), regs.SkipOut(i)
}

// SetStalled sets or clears the stall condition. A buffer still owned by
// the controller on a non-control endpoint is retired with EPSKIP first.
// Clearing a stall resets the data toggle and re-arms a bound OUT buffer.
func (b *Bus) SetStalled(addr hal.EndpointAddress, stalled bool) {
	ep, err := b.endpoint(addr)
	if err != nil {
		pkg.LogWarn(pkg.ComponentBus, "stall on invalid endpoint", "addr", addr)
		return
	}
	cs := b.enter()
	defer cs.Exit()

	off, skip := listOffset(addr)
	if cs.command(off).Stalled() == stalled {
		return
	}

	i := addr.Index()
	if i > 0 && cs.command(off).Active() {
		cs.dev.Write(regs.EPSKIP, skip)
		cs.list.Wait(off, uint32(regs.CmdActive), 0)
	}

	c := cs.command(off)
	if stalled {
		c |= regs.CmdStall
	} else {
		c &^= regs.CmdStall
		if i > 0 {
			c = c&^regs.CmdRFTV | regs.CmdToggleReset
			if addr.IsOut() && ep.HasOut() {
				c = c.WithOffset(ep.out.Offset()).WithNBytes(ep.out.Cap()) | regs.CmdActive
			}
		}
	}
	cs.setCommand(off, c)
	pkg.LogDebug(pkg.ComponentBus, "stall", "addr", addr, "stalled", stalled)
}

// IsStalled reports whether the endpoint's stall bit is set.
func (b *Bus) IsStalled(addr hal.EndpointAddress) bool {
	if _, err := b.endpoint(addr); err != nil {
		return false
	}
	cs := b.enter()
	defer cs.Exit()

	off, _ := listOffset(addr)
	return cs.command(off).Stalled()
}

// Suspend is a no-op; the controller handles bus suspend on its own.
func (b *Bus) Suspend() {
	pkg.LogDebug(pkg.ComponentBus, "suspend")
}

// Resume leaves suspend: an LPM suspend is ended when the host permits
// remote wake-up, the suspend bit is cleared and the suspend change
// acknowledged.
func (b *Bus) Resume() {
	cs := b.enter()
	defer cs.Exit()

	if cs.dev.Has(regs.DEVCMDSTAT, regs.LPMRewp) {
		regs.DevCmdStatModify(cs.dev, regs.LPMSus, 0)
	}
	regs.DevCmdStatModify(cs.dev, regs.DSus, regs.DSusC)
	pkg.LogDebug(pkg.ComponentBus, "resume")
}

// SetAddressBeforeStatus returns QuirkSetAddressBeforeStatus.
func (b *Bus) SetAddressBeforeStatus() bool {
	return QuirkSetAddressBeforeStatus
}

// MaxEndpoint returns the highest endpoint number with a bound buffer, as
// computed by Enable.
func (b *Bus) MaxEndpoint() int {
	cs := b.enter()
	defer cs.Exit()
	return b.maxEP
}

// MemoryUsed returns the SRAM bytes consumed by the list and buffers.
func (b *Bus) MemoryUsed() int {
	cs := b.enter()
	defer cs.Exit()
	return b.alloc.Used()
}

// Endpoints describes every endpoint that has a claimed type.
func (b *Bus) Endpoints() []EndpointInfo {
	cs := b.enter()
	defer cs.Exit()

	var infos []EndpointInfo
	for i := range b.endpoints {
		ep := &b.endpoints[i]
		t, ok := ep.Type()
		if !ok {
			continue
		}
		infos = append(infos, EndpointInfo{
			Index: i,
			Type:  t,
			Out:   ep.out,
			In:    ep.in,
			Setup: ep.setup,
		})
	}
	return infos
}
