package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/ardnew/usbhs/device/hal"
	"github.com/ardnew/usbhs/device/hal/lpc55hs"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/sim"
	"github.com/ardnew/usbhs/pkg"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	loopbackAddress = 0x12
	loopbackMPS     = 512
	requestSetAddr  = 0x05
)

var (
	loopbackOut = hal.NewEndpointAddress(1, hal.DirectionOut)
	loopbackIn  = hal.NewEndpointAddress(1, hal.DirectionIn)
	controlOut  = hal.NewEndpointAddress(0, hal.DirectionOut)
	controlIn   = hal.NewEndpointAddress(0, hal.DirectionIn)
)

var loopbackPlan = []endpointSpec{
	{fixed: true, dir: hal.DirectionOut, typ: hal.EndpointTypeControl, mps: 64},
	{fixed: true, dir: hal.DirectionIn, typ: hal.EndpointTypeControl, mps: 64},
	{fixed: true, index: 1, dir: hal.DirectionOut, typ: hal.EndpointTypeBulk, mps: loopbackMPS},
	{fixed: true, index: 1, dir: hal.DirectionIn, typ: hal.EndpointTypeBulk, mps: loopbackMPS},
}

type loopbackStats struct {
	Packets int
	Bytes   int
	Events  map[hal.PollEvent]int
}

// echoDevice answers SET_ADDRESS on the control endpoint and echoes every
// packet received on EP1 OUT back on EP1 IN.
type echoDevice struct {
	bus     *lpc55hs.Bus
	ready   chan struct{}
	events  map[hal.PollEvent]int
	pending []byte
	buf     [loopbackMPS]byte
	echo    [loopbackMPS]byte
}

func (d *echoDevice) run(ctx context.Context) error {
	for ctx.Err() == nil {
		r := d.bus.Poll()
		d.events[r.Event]++
		switch r.Event {
		case hal.PollReset:
			d.bus.Reset()
			if d.ready != nil {
				close(d.ready)
				d.ready = nil
			}
		case hal.PollSuspend:
			d.bus.Suspend()
		case hal.PollData:
			if err := d.service(r); err != nil {
				return err
			}
		default:
			if d.pending != nil {
				d.flush()
			}
			runtime.Gosched()
		}
	}
	return nil
}

func (d *echoDevice) service(r hal.PollResult) error {
	if r.Setup&1 != 0 {
		n, err := d.bus.Read(controlOut, d.buf[:])
		if err != nil {
			return err
		}
		var setup hal.SetupPacket
		if !hal.ParseSetupPacket(d.buf[:n], &setup) {
			return fmt.Errorf("short setup packet: %d bytes", n)
		}
		if setup.Request != requestSetAddr {
			d.bus.SetStalled(controlIn, true)
			return nil
		}
		if d.bus.SetAddressBeforeStatus() {
			d.bus.SetDeviceAddress(uint8(setup.Value))
		}
		if _, err := d.bus.Write(controlIn, nil); err != nil {
			return err
		}
	}

	if r.Out&(1<<loopbackOut.Index()) != 0 {
		n, err := d.bus.Read(loopbackOut, d.buf[:])
		switch {
		case err == nil:
			d.pending = append(d.echo[:0], d.buf[:n]...)
		case !errors.Is(err, pkg.ErrWouldBlock):
			return err
		}
	}
	if d.pending != nil {
		d.flush()
	}
	return nil
}

func (d *echoDevice) flush() {
	if _, err := d.bus.Write(loopbackIn, d.pending); err == nil {
		d.pending = nil
	}
}

// retry calls fn until it reports success or ctx is done.
func retry(ctx context.Context, fn func() bool) error {
	for !fn() {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func runHost(ctx context.Context, p *sim.Peripheral, ready <-chan struct{}, packets, size int) (int, error) {
	p.BusReset()
	select {
	case <-ready:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	setAddr := [8]byte{0x00, requestSetAddr, loopbackAddress}
	if err := retry(ctx, func() bool { return p.Setup(setAddr) == sim.ACK }); err != nil {
		return 0, err
	}
	if err := retry(ctx, func() bool { _, h := p.In(0); return h == sim.ACK }); err != nil {
		return 0, err
	}
	if p.Address() != loopbackAddress {
		return 0, fmt.Errorf("device address %#x, want %#x", p.Address(), loopbackAddress)
	}

	total := 0
	for i := 0; i < packets; i++ {
		payload := lo.Times(size, func(j int) byte { return byte(i + j) })
		if err := retry(ctx, func() bool { return p.Out(1, payload) == sim.ACK }); err != nil {
			return total, err
		}
		var echo []byte
		if err := retry(ctx, func() bool {
			var h sim.Handshake
			echo, h = p.In(1)
			return h == sim.ACK
		}); err != nil {
			return total, err
		}
		if !bytes.Equal(echo, payload) {
			return total, fmt.Errorf("packet %d: echoed %d bytes, mismatch", i, len(echo))
		}
		total += len(echo)
	}
	return total, nil
}

func runLoopback(ctx context.Context, packets, size int) (loopbackStats, error) {
	if size < 0 || size > loopbackMPS {
		return loopbackStats{}, fmt.Errorf("packet size %d: %w", size, pkg.ErrInvalidParameter)
	}

	p := sim.New()
	bus, _, err := allocate(p, loopbackPlan)
	if err != nil {
		return loopbackStats{}, err
	}
	bus.Enable()

	dev := &echoDevice{bus: bus, ready: make(chan struct{}), events: map[hal.PollEvent]int{}}
	ready := dev.ready

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var total int
	g.Go(func() error {
		defer cancel()
		var err error
		total, err = runHost(ctx, p, ready, packets, size)
		return err
	})
	g.Go(func() error { return dev.run(ctx) })

	err = g.Wait()
	stats := loopbackStats{Packets: packets, Bytes: total, Events: dev.events}
	return stats, err
}

func printStats(w io.Writer, s loopbackStats) error {
	events := lo.Map([]hal.PollEvent{hal.PollReset, hal.PollSuspend, hal.PollData},
		func(e hal.PollEvent, _ int) string { return fmt.Sprintf("%s=%d", e, s.Events[e]) })
	_, err := fmt.Fprintf(w, "packets: %d\nbytes: %d\nevents: %v\n", s.Packets, s.Bytes, events)
	return err
}

func newLoopbackCmd() *cobra.Command {
	var (
		packets int
		size    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Echo packets between a simulated host and device",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			stats, err := runLoopback(ctx, packets, size)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().IntVarP(&packets, "packets", "n", 16, "Number of packets to echo")
	cmd.Flags().IntVarP(&size, "size", "s", 64, "Packet size in bytes")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Give up after this long")
	return cmd
}
