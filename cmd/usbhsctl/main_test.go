package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/usbhs/device/hal"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/sim"
	"github.com/ardnew/usbhs/pkg"
	"github.com/marcinbor85/gohex"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := run(cmd, opts)
	return out.String(), err
}

func TestParseEndpointSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    endpointSpec
		wantErr bool
	}{
		{"1:in:bulk:512", endpointSpec{fixed: true, index: 1, dir: hal.DirectionIn, typ: hal.EndpointTypeBulk, mps: 512}, false},
		{"auto:OUT:interrupt:8", endpointSpec{dir: hal.DirectionOut, typ: hal.EndpointTypeInterrupt, mps: 8}, false},
		{"3:in:iso:0x400", endpointSpec{fixed: true, index: 3, dir: hal.DirectionIn, typ: hal.EndpointTypeIsochronous, mps: 1024}, false},
		{"1:in:bulk", endpointSpec{}, true},
		{"x:in:bulk:64", endpointSpec{}, true},
		{"16:in:bulk:64", endpointSpec{}, true},
		{"1:up:bulk:64", endpointSpec{}, true},
		{"1:in:stream:64", endpointSpec{}, true},
		{"1:in:bulk:70000", endpointSpec{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseEndpointSpec(tt.in)
			if tt.wantErr {
				if !errors.Is(err, pkg.ErrInvalidParameter) {
					t.Errorf("parseEndpointSpec() error = %v, want %v", err, pkg.ErrInvalidParameter)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEndpointSpec() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("parseEndpointSpec() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAllocatePlan(t *testing.T) {
	plan, err := parsePlan(64, []string{"auto:in:bulk:512", "auto:out:bulk:512", "auto:in:interrupt:8"})
	if err != nil {
		t.Fatal(err)
	}
	_, addrs, err := allocate(sim.New(), plan)
	if err != nil {
		t.Fatalf("allocate() error = %v", err)
	}
	want := []hal.EndpointAddress{0x00, 0x80, 0x81, 0x01, 0x82}
	for i := range want {
		if addrs[i] != want[i] {
			t.Errorf("addrs[%d] = %v, want %v", i, addrs[i], want[i])
		}
	}

	plan, _ = parsePlan(64, []string{"7:in:bulk:64"})
	if _, _, err := allocate(sim.New(), plan); !errors.Is(err, pkg.ErrInvalidEndpoint) {
		t.Errorf("allocate(out of range) error = %v, want %v", err, pkg.ErrInvalidEndpoint)
	}
}

func TestLayoutCommand(t *testing.T) {
	out, err := execute(t, "layout", "--ep", "1:in:bulk:512")
	if err != nil {
		t.Fatalf("layout error = %v", err)
	}
	for _, want := range []string{"SETUP", "Bulk", "0x40100080", "512", "SRAM used: 896"} {
		if !strings.Contains(out, want) {
			t.Errorf("layout output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "layout", "--ep", "bogus"); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("layout with bad endpoint error = %v", err)
	}
}

func TestLoopback(t *testing.T) {
	tests := []struct {
		name    string
		packets int
		size    int
	}{
		{"full packets", 8, loopbackMPS},
		{"short packets", 4, 13},
		{"zero length", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			stats, err := runLoopback(ctx, tt.packets, tt.size)
			if err != nil {
				t.Fatalf("runLoopback() error = %v", err)
			}
			if stats.Bytes != tt.packets*tt.size {
				t.Errorf("Bytes = %d, want %d", stats.Bytes, tt.packets*tt.size)
			}
			if stats.Events[hal.PollReset] != 1 {
				t.Errorf("reset events = %d, want 1", stats.Events[hal.PollReset])
			}
			if stats.Events[hal.PollData] == 0 {
				t.Error("no data events")
			}
		})
	}

	if _, err := runLoopback(context.Background(), 1, loopbackMPS+1); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("runLoopback(oversized) error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
}

func TestEchoDeviceService(t *testing.T) {
	p := sim.New()
	bus, _, err := allocate(p, loopbackPlan)
	if err != nil {
		t.Fatal(err)
	}
	bus.Enable()
	p.BusReset()
	if r := bus.Poll(); r.Event != hal.PollReset {
		t.Fatalf("Poll() = %v, want reset", r.Event)
	}
	bus.Reset()

	d := &echoDevice{bus: bus, events: map[hal.PollEvent]int{}}
	outEvent := hal.PollResult{Event: hal.PollData, Out: 1 << loopbackOut.Index()}

	// An OUT event with nothing to read must not queue an echo.
	if err := d.service(outEvent); err != nil {
		t.Fatalf("service(no data) error = %v", err)
	}
	if d.pending != nil {
		t.Errorf("pending = %x, want nil", d.pending)
	}
	if c := p.Command(regs.InCommand(1)); c.Active() {
		t.Errorf("EP1 IN = %v, want idle", c)
	}

	if h := p.Out(1, []byte("hi")); h != sim.ACK {
		t.Fatalf("Out() = %v", h)
	}
	if err := d.service(outEvent); err != nil {
		t.Fatalf("service() error = %v", err)
	}
	if d.pending != nil {
		t.Errorf("pending = %x after flush, want nil", d.pending)
	}
	if data, h := p.In(1); h != sim.ACK || string(data) != "hi" {
		t.Errorf("In() = %q, %v, want \"hi\"", data, h)
	}
}

func TestLoopbackCommand(t *testing.T) {
	out, err := execute(t, "loopback", "-n", "3", "-s", "32")
	if err != nil {
		t.Fatalf("loopback error = %v", err)
	}
	if !strings.Contains(out, "bytes: 96") {
		t.Errorf("loopback output = %q", out)
	}
}

func TestDumpCommand(t *testing.T) {
	dir := t.TempDir()

	hexPath := filepath.Join(dir, "sram.hex")
	if _, err := execute(t, "dump", "--format", "hex", "--out", hexPath); err != nil {
		t.Fatalf("dump hex error = %v", err)
	}
	f, err := os.Open(hexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(f); err != nil {
		t.Fatalf("ParseIntelHex() error = %v", err)
	}
	segs := mem.GetDataSegments()
	if len(segs) != 1 || segs[0].Address != uint32(regs.SRAMBase) {
		t.Fatalf("segments = %d, want one at %#x", len(segs), regs.SRAMBase)
	}
	// EP0 OUT armed for 65 bytes at offset 0x80.
	cmd := regs.Command(uint32(segs[0].Data[0]) | uint32(segs[0].Data[1])<<8 |
		uint32(segs[0].Data[2])<<16 | uint32(segs[0].Data[3])<<24)
	if !cmd.Active() || cmd.NBytes() != 65 || cmd.Offset() != 0x80 {
		t.Errorf("EP0 OUT command = %v", cmd)
	}

	cborPath := filepath.Join(dir, "snap.cbor")
	if _, err := execute(t, "dump", "--format", "cbor", "-o", cborPath); err != nil {
		t.Fatalf("dump cbor error = %v", err)
	}
	data, err := os.ReadFile(cborPath)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := sim.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot() error = %v", err)
	}
	p := sim.New()
	if err := p.Restore(snap); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !p.Attached() {
		t.Error("snapshot not taken after enable")
	}

	if _, err := execute(t, "dump", "--format", "srec"); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("dump srec error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestCleanupAfterFailure(t *testing.T) {
	original, level := pkg.DefaultLogger, pkg.GetLogLevel()
	t.Cleanup(func() {
		pkg.SetLogger(original)
		pkg.SetLogLevel(level)
	})

	path := filepath.Join(t.TempDir(), "usbhsctl.log")
	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"layout", "--log-file", path, "--ep", "bogus"})

	if err := run(cmd, opts); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Fatalf("run() error = %v, want %v", err, pkg.ErrInvalidParameter)
	}
	if opts.closer != nil || opts.session != nil {
		t.Error("log file or profiling session left open after a failed command")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "command failed") {
		t.Errorf("log file = %q", data)
	}

	errClose := errors.New("close failed")
	opts = &rootOptions{closer: closeFunc(func() error { return errClose })}
	if err := opts.cleanup(); !errors.Is(err, errClose) {
		t.Errorf("cleanup() error = %v, want %v", err, errClose)
	}
	if err := opts.cleanup(); err != nil {
		t.Errorf("second cleanup() error = %v, want nil", err)
	}
}

func TestLogFileFlag(t *testing.T) {
	original, level := pkg.DefaultLogger, pkg.GetLogLevel()
	t.Cleanup(func() {
		pkg.SetLogger(original)
		pkg.SetLogLevel(level)
	})

	path := filepath.Join(t.TempDir(), "usbhsctl.log")
	if _, err := execute(t, "layout", "-v", "--json", "--log-file", path, "--ep", "auto:in:bulk:64"); err != nil {
		t.Fatalf("layout error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"plan allocated"`) {
		t.Errorf("log file = %q", data)
	}
}
