package sim

import (
	"fmt"
	"io"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/pkg"
	"github.com/fxamacker/cbor/v2"
	"github.com/marcinbor85/gohex"
)

// Snapshot is a copy of the complete peripheral state.
type Snapshot struct {
	Device []uint32 `cbor:"1,keyasint"`
	PHY    []uint32 `cbor:"2,keyasint"`
	SRAM   []byte   `cbor:"3,keyasint"`
}

// Snapshot captures the current peripheral state.
func (p *Peripheral) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Device: make([]uint32, len(p.dev)),
		PHY:    make([]uint32, len(p.phy)),
		SRAM:   make([]byte, len(p.sram)),
	}
	copy(s.Device, p.dev[:])
	copy(s.PHY, p.phy[:])
	copy(s.SRAM, p.sram)
	return s
}

// Restore replaces the peripheral state with s.
func (p *Peripheral) Restore(s Snapshot) error {
	if len(s.Device) != deviceWords || len(s.PHY) != phyWords || len(s.SRAM) != int(regs.SRAMSize) {
		return fmt.Errorf("restore snapshot: %w: device=%d phy=%d sram=%d",
			pkg.ErrInvalidParameter, len(s.Device), len(s.PHY), len(s.SRAM))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(p.dev[:], s.Device)
	copy(p.phy[:], s.PHY)
	copy(p.sram, s.SRAM)
	return nil
}

// MarshalSnapshot encodes s as CBOR.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return cbor.Marshal(s)
}

// UnmarshalSnapshot decodes a CBOR snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// WriteHex writes the SRAM contents as Intel HEX, placed at the SRAM's
// absolute address.
func (p *Peripheral) WriteHex(w io.Writer) error {
	s := p.Snapshot()
	mem := gohex.NewMemory()
	if err := mem.AddBinary(uint32(regs.SRAMBase), s.SRAM); err != nil {
		return fmt.Errorf("add sram image: %w", err)
	}
	if err := mem.DumpIntelHex(w, 16); err != nil {
		return fmt.Errorf("dump intel hex: %w", err)
	}
	return nil
}
