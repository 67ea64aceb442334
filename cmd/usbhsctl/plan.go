package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/usbhs/device/hal"
	"github.com/ardnew/usbhs/device/hal/lpc55hs"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/sim"
	"github.com/ardnew/usbhs/pkg"
	"github.com/samber/lo"
)

// endpointSpec is one endpoint request of a plan, written on the command
// line as index:dir:type:mps. An index of "auto" lets the bus choose.
type endpointSpec struct {
	fixed bool
	index int
	dir   hal.Direction
	typ   hal.EndpointType
	mps   uint16
}

var endpointTypes = map[string]hal.EndpointType{
	"control":     hal.EndpointTypeControl,
	"iso":         hal.EndpointTypeIsochronous,
	"isochronous": hal.EndpointTypeIsochronous,
	"bulk":        hal.EndpointTypeBulk,
	"interrupt":   hal.EndpointTypeInterrupt,
	"int":         hal.EndpointTypeInterrupt,
}

func parseEndpointSpec(s string) (endpointSpec, error) {
	fields := strings.Split(strings.ToLower(s), ":")
	if len(fields) != 4 {
		return endpointSpec{}, fmt.Errorf("endpoint %q: want index:dir:type:mps: %w", s, pkg.ErrInvalidParameter)
	}

	var spec endpointSpec
	if fields[0] != "auto" {
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 0 || idx > 15 {
			return endpointSpec{}, fmt.Errorf("endpoint %q: index %q: %w", s, fields[0], pkg.ErrInvalidParameter)
		}
		spec.fixed = true
		spec.index = idx
	}

	switch fields[1] {
	case "in":
		spec.dir = hal.DirectionIn
	case "out":
		spec.dir = hal.DirectionOut
	default:
		return endpointSpec{}, fmt.Errorf("endpoint %q: direction %q: %w", s, fields[1], pkg.ErrInvalidParameter)
	}

	typ, ok := endpointTypes[fields[2]]
	if !ok {
		return endpointSpec{}, fmt.Errorf("endpoint %q: type %q: %w", s, fields[2], pkg.ErrInvalidParameter)
	}
	spec.typ = typ

	mps, err := strconv.ParseUint(fields[3], 0, 16)
	if err != nil {
		return endpointSpec{}, fmt.Errorf("endpoint %q: max packet size %q: %w", s, fields[3], pkg.ErrInvalidParameter)
	}
	spec.mps = uint16(mps)
	return spec, nil
}

func (e endpointSpec) config() hal.EndpointConfig {
	return hal.EndpointConfig{
		Direction:     e.dir,
		Address:       hal.NewEndpointAddress(e.index, e.dir),
		Fixed:         e.fixed,
		Type:          e.typ,
		MaxPacketSize: e.mps,
	}
}

// parsePlan returns the control endpoint pair followed by the parsed
// endpoint specs.
func parsePlan(ep0 uint16, specs []string) ([]endpointSpec, error) {
	plan := []endpointSpec{
		{fixed: true, dir: hal.DirectionOut, typ: hal.EndpointTypeControl, mps: ep0},
		{fixed: true, dir: hal.DirectionIn, typ: hal.EndpointTypeControl, mps: ep0},
	}
	for _, s := range specs {
		spec, err := parseEndpointSpec(s)
		if err != nil {
			return nil, err
		}
		plan = append(plan, spec)
	}
	return plan, nil
}

// allocate builds a bus on p and allocates every endpoint of plan.
func allocate(p *sim.Peripheral, plan []endpointSpec) (*lpc55hs.Bus, []hal.EndpointAddress, error) {
	bus := lpc55hs.NewBus(&lpc55hs.Peripherals{Device: p.Device(), PHY: p.PHY(), SRAM: p.SRAM()})
	addrs := make([]hal.EndpointAddress, 0, len(plan))
	for _, spec := range plan {
		addr, err := bus.AllocEndpoint(spec.config())
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, addr)
	}
	pkg.LogDebug(pkg.ComponentCLI, "plan allocated",
		"endpoints", lo.Map(addrs, func(a hal.EndpointAddress, _ int) string { return a.String() }))
	return bus, addrs, nil
}
