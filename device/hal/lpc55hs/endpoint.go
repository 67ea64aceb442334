package lpc55hs

import (
	"github.com/ardnew/usbhs/device/hal"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/pkg"
)

// Endpoint holds the buffers bound to one physical endpoint and programs
// its command/status list entries. Methods that touch hardware take the
// bus's CriticalSection.
type Endpoint struct {
	index int
	typ   hal.EndpointType
	typed bool
	out   Buffer
	in    Buffer
	setup Buffer
}

// Index returns the endpoint number.
func (e *Endpoint) Index() int { return e.index }

// Type returns the endpoint type, and false if no type was claimed yet.
func (e *Endpoint) Type() (hal.EndpointType, bool) { return e.typ, e.typed }

// SetType claims the endpoint for type t.
func (e *Endpoint) SetType(t hal.EndpointType) {
	e.typ = t
	e.typed = true
}

// HasOut reports whether an OUT buffer is bound.
func (e *Endpoint) HasOut() bool { return !e.out.IsEmpty() }

// HasIn reports whether an IN buffer is bound.
func (e *Endpoint) HasIn() bool { return !e.in.IsEmpty() }

// HasSetup reports whether a SETUP buffer is bound.
func (e *Endpoint) HasSetup() bool { return !e.setup.IsEmpty() }

// BindOut binds b as the OUT buffer.
func (e *Endpoint) BindOut(b Buffer) { e.out = b }

// BindIn binds b as the IN buffer.
func (e *Endpoint) BindIn(b Buffer) { e.in = b }

// BindSetup binds b as the SETUP buffer.
func (e *Endpoint) BindSetup(b Buffer) { e.setup = b }

func (e *Endpoint) typeBits() regs.Command {
	if e.typed && e.typ == hal.EndpointTypeIsochronous {
		return regs.CmdType
	}
	return 0
}

// ResetOut arms the OUT buffer to receive a full buffer of data.
func (e *Endpoint) ResetOut(cs *CriticalSection) {
	c := e.typeBits().WithOffset(e.out.Offset()).WithNBytes(e.out.Cap()) | regs.CmdActive
	cs.setCommand(regs.OutCommand(e.index), c)
}

// ResetIn points the IN buffer entry at its buffer, idle.
func (e *Endpoint) ResetIn(cs *CriticalSection) {
	cs.setCommand(regs.InCommand(e.index), e.typeBits().WithOffset(e.in.Offset()))
}

// ResetSetup points the SETUP entry at the SETUP buffer.
func (e *Endpoint) ResetSetup(cs *CriticalSection) {
	cs.setCommand(regs.SetupCommand(), regs.Command(0).WithOffset(e.setup.Offset()))
}

// Configure reprograms every list entry of the endpoint after a bus reset:
// bound directions are reset with the data toggle at DATA0 and stall
// cleared, unbound directions and second buffers are disabled.
func (e *Endpoint) Configure(cs *CriticalSection) {
	i := e.index
	if e.HasOut() {
		e.ResetOut(cs)
		if i > 0 {
			cs.setCommand(regs.OutCommand(i), cs.command(regs.OutCommand(i))|regs.CmdToggleReset)
		}
	} else if i > 0 {
		cs.setCommand(regs.OutCommand(i), regs.CmdDisabled)
	}
	if i == 0 && e.HasSetup() {
		e.ResetSetup(cs)
	}

	if e.HasIn() {
		e.ResetIn(cs)
		if i > 0 {
			cs.setCommand(regs.InCommand(i), cs.command(regs.InCommand(i))|regs.CmdToggleReset)
		}
	} else if i > 0 {
		cs.setCommand(regs.InCommand(i), regs.CmdDisabled)
	}

	// Single buffering: the second word of each direction is unused.
	if i > 0 {
		cs.setCommand(regs.OutCommand(i)+4, regs.CmdDisabled)
		cs.setCommand(regs.InCommand(i)+4, regs.CmdDisabled)
	}
}

// rearmOut acknowledges the OUT interrupt and hands the OUT buffer back to
// the controller, so a later Poll does not report the drained packet.
func (e *Endpoint) rearmOut(cs *CriticalSection) {
	cs.dev.Write(regs.INTSTAT, regs.OutInt(e.index))
	off := regs.OutCommand(e.index)
	c := cs.command(off) &^ (regs.CmdToggleReset | regs.CmdStall)
	cs.setCommand(off, c.WithOffset(e.out.Offset()).WithNBytes(e.out.Cap())|regs.CmdActive)
}

// Read copies a received packet into dst and re-arms the OUT buffer. On the
// control endpoint a pending SETUP packet takes precedence over OUT data.
func (e *Endpoint) Read(cs *CriticalSection, dst []byte) (int, error) {
	if !e.HasOut() {
		return 0, pkg.ErrInvalidEndpoint
	}

	if e.index == 0 && e.HasSetup() && cs.dev.Has(regs.DEVCMDSTAT, regs.Setup) {
		if len(dst) < hal.SetupPacketSize {
			return 0, pkg.ErrBufferOverflow
		}
		n := e.setup.Read(dst[:hal.SetupPacketSize])
		regs.DevCmdStatModify(cs.dev, 0, regs.Setup)
		e.rearmOut(cs)
		pkg.LogDebug(pkg.ComponentEndpoint, "setup read", "ep", e.index)
		return n, nil
	}

	c := cs.command(regs.OutCommand(e.index))
	if c.Active() || c.Stalled() || c.Disabled() {
		return 0, pkg.ErrWouldBlock
	}
	n := e.out.Cap() - c.NBytes()
	invariant(n >= 0, "OUT byte count exceeds buffer", "ep", e.index, "cmd", c)
	n = max(n, 0)
	if n > len(dst) {
		return 0, pkg.ErrBufferOverflow
	}
	e.out.Read(dst[:n])
	e.rearmOut(cs)
	return n, nil
}

// Write copies src into the IN buffer and hands it to the controller.
func (e *Endpoint) Write(cs *CriticalSection, src []byte) (int, error) {
	if !e.HasIn() {
		return 0, pkg.ErrInvalidEndpoint
	}
	off := regs.InCommand(e.index)
	c := cs.command(off)
	if c.Active() {
		return 0, pkg.ErrWouldBlock
	}
	if len(src) > e.in.Cap() {
		return 0, pkg.ErrBufferOverflow
	}
	n := e.in.Write(src)
	c = c &^ regs.CmdToggleReset
	cs.setCommand(off, c.WithOffset(e.in.Offset()).WithNBytes(n)|regs.CmdActive)
	return n, nil
}

// EndpointInfo describes an allocated endpoint, for inspection tools.
type EndpointInfo struct {
	Index int
	Type  hal.EndpointType
	Out   Buffer
	In    Buffer
	Setup Buffer
}
