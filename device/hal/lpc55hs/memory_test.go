package lpc55hs

import (
	"bytes"
	"errors"
	"sort"
	"testing"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/sim"
	"github.com/ardnew/usbhs/pkg"
)

// limited shrinks a memory region without moving it.
type limited struct {
	regs.Memory
	size uintptr
}

func (l limited) Size() uintptr { return l.size }

func TestAllocatorPlacement(t *testing.T) {
	a := NewAllocator(sim.New().SRAM())

	want := []uintptr{128, 192, 256}
	for i, size := range []int{8, 16, 8} {
		buf, err := a.Allocate(size)
		if err != nil {
			t.Fatalf("Allocate(%d) error = %v", size, err)
		}
		if buf.Offset() != want[i] || buf.Cap() != size {
			t.Errorf("Allocate(%d) = offset %#x cap %d, want offset %#x", size, buf.Offset(), buf.Cap(), want[i])
		}
		if buf.Addr() != uint32(regs.SRAMBase+want[i]) {
			t.Errorf("Addr() = %#x, want %#x", buf.Addr(), regs.SRAMBase+want[i])
		}
	}
	if a.Used() != 264 {
		t.Errorf("Used() = %d, want 264", a.Used())
	}
	if a.Free() != int(regs.SRAMSize)-264 {
		t.Errorf("Free() = %d, want %d", a.Free(), int(regs.SRAMSize)-264)
	}
}

func TestAllocatorDisjoint(t *testing.T) {
	a := NewAllocator(sim.New().SRAM())
	sizes := []int{1, 64, 65, 0, 512, 7, 1024, 63, 128, 1000}

	var bufs []Buffer
	for {
		size := sizes[len(bufs)%len(sizes)]
		buf, err := a.Allocate(size)
		if errors.Is(err, pkg.ErrEndpointMemoryOverflow) {
			break
		}
		if err != nil {
			t.Fatalf("Allocate(%d) error = %v", size, err)
		}
		bufs = append(bufs, buf)
	}

	sort.Slice(bufs, func(i, j int) bool { return bufs[i].Offset() < bufs[j].Offset() })
	for i, buf := range bufs {
		if buf.Offset()%regs.BufferAlign != 0 {
			t.Errorf("buffer %d at %#x not aligned", i, buf.Offset())
		}
		if buf.Offset() < regs.ListSize || buf.Offset()+uintptr(buf.Cap()) > regs.SRAMSize {
			t.Errorf("buffer %d [%#x, +%d) outside SRAM data area", i, buf.Offset(), buf.Cap())
		}
		if i > 0 {
			prev := bufs[i-1]
			if prev.Offset()+uintptr(prev.Cap()) > buf.Offset() {
				t.Errorf("buffers %d and %d overlap", i-1, i)
			}
		}
	}
}

func TestAllocatorOverflow(t *testing.T) {
	a := NewAllocator(sim.New().SRAM())

	if _, err := a.Allocate(int(regs.SRAMSize)); !errors.Is(err, pkg.ErrEndpointMemoryOverflow) {
		t.Fatalf("Allocate(SRAMSize) error = %v, want %v", err, pkg.ErrEndpointMemoryOverflow)
	}
	if a.Used() != regs.ListSize {
		t.Fatalf("Used() after failure = %d, want %d", a.Used(), regs.ListSize)
	}

	if _, err := a.Allocate(int(regs.SRAMSize) - 128); err != nil {
		t.Fatalf("Allocate(exact fit) error = %v", err)
	}
	used := a.Used()
	if _, err := a.Allocate(1); !errors.Is(err, pkg.ErrEndpointMemoryOverflow) {
		t.Errorf("Allocate(1) on full memory error = %v", err)
	}
	if a.Used() != used {
		t.Errorf("Used() changed on failure: %d -> %d", used, a.Used())
	}

	if _, err := a.Allocate(-1); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Allocate(-1) error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
}

func TestAllocateAllIsAtomic(t *testing.T) {
	a := NewAllocator(limited{Memory: sim.New().SRAM(), size: 200})

	if _, err := a.AllocateAll(65, 8); !errors.Is(err, pkg.ErrEndpointMemoryOverflow) {
		t.Fatalf("AllocateAll() error = %v, want %v", err, pkg.ErrEndpointMemoryOverflow)
	}
	if a.Used() != regs.ListSize {
		t.Errorf("Used() = %d, want %d", a.Used(), regs.ListSize)
	}

	bufs, err := a.AllocateAll(8, 8)
	if err != nil {
		t.Fatalf("AllocateAll(8, 8) error = %v", err)
	}
	if bufs[0].Offset() != 128 || bufs[1].Offset() != 192 {
		t.Errorf("offsets = %#x, %#x, want 0x80, 0xc0", bufs[0].Offset(), bufs[1].Offset())
	}
}

func TestBufferCopy(t *testing.T) {
	a := NewAllocator(sim.New().SRAM())
	buf, err := a.Allocate(16)
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("0123456789")
	if n := buf.Write(data); n != len(data) {
		t.Fatalf("Write() = %d, want %d", n, len(data))
	}
	got := make([]byte, len(data))
	if n := buf.Read(got); n != len(data) || !bytes.Equal(got, data) {
		t.Errorf("Read() = %d %q, want %q", n, got, data)
	}

	long := bytes.Repeat([]byte{0xAA}, 20)
	if n := buf.Write(long); n != 16 {
		t.Errorf("Write(20 bytes) = %d, want 16", n)
	}
	big := make([]byte, 32)
	if n := buf.Read(big); n != 16 {
		t.Errorf("Read(32 bytes) = %d, want 16", n)
	}

	var empty Buffer
	if !empty.IsEmpty() || empty.Addr() != 0 || empty.Read(big) != 0 {
		t.Error("zero Buffer is not empty")
	}
}
