package main

import (
	"fmt"
	"io"

	"github.com/ardnew/usbhs/device/hal/lpc55hs"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/regs"
	"github.com/ardnew/usbhs/device/hal/lpc55hs/sim"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

type bufferRow struct {
	ep   int
	kind string
	typ  string
	buf  lpc55hs.Buffer
}

func bufferRows(infos []lpc55hs.EndpointInfo) []bufferRow {
	rows := lo.FlatMap(infos, func(info lpc55hs.EndpointInfo, _ int) []bufferRow {
		typ := info.Type.String()
		return []bufferRow{
			{info.Index, "OUT", typ, info.Out},
			{info.Index, "SETUP", typ, info.Setup},
			{info.Index, "IN", typ, info.In},
		}
	})
	return lo.Filter(rows, func(r bufferRow, _ int) bool { return !r.buf.IsEmpty() })
}

func renderLayout(w io.Writer, bus *lpc55hs.Bus) error {
	rows := lo.Map(bufferRows(bus.Endpoints()), func(r bufferRow, _ int) []string {
		return []string{
			fmt.Sprint(r.ep),
			r.kind,
			r.typ,
			fmt.Sprintf("%#05x", r.buf.Offset()),
			fmt.Sprintf("%#08x", r.buf.Addr()),
			fmt.Sprint(r.buf.Cap()),
		}
	})

	headers := lo.Map([]string{"EP", "Buffer", "Type", "Offset", "Address", "Size"},
		func(h string, _ int) string { return headerStyle.Render(h) })

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col >= 3 {
				return cellStyle.Align(lipgloss.Right)
			}
			return cellStyle
		})

	_, err := fmt.Fprintf(w, "%s\nSRAM used: %d of %d bytes (list %d)\n",
		t.Render(), bus.MemoryUsed(), regs.SRAMSize, regs.ListSize)
	return err
}

func newLayoutCmd() *cobra.Command {
	var (
		specs []string
		ep0   uint16
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the SRAM buffer layout of an endpoint plan",
		Example: `  usbhsctl layout --ep 1:in:bulk:512 --ep 1:out:bulk:512
  usbhsctl layout --ep auto:in:interrupt:8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := parsePlan(ep0, specs)
			if err != nil {
				return err
			}
			bus, _, err := allocate(sim.New(), plan)
			if err != nil {
				return err
			}
			return renderLayout(cmd.OutOrStdout(), bus)
		},
	}
	cmd.Flags().StringArrayVar(&specs, "ep", nil, "Endpoint as index:dir:type:mps (repeatable)")
	cmd.Flags().Uint16Var(&ep0, "ep0", 64, "Control endpoint max packet size")
	return cmd
}
