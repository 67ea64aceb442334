package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ardnew/usbhs/device/hal/lpc55hs/sim"
	"github.com/ardnew/usbhs/pkg"
	"github.com/spf13/cobra"
)

func dump(w io.Writer, p *sim.Peripheral, format string) error {
	switch format {
	case "hex":
		return p.WriteHex(w)
	case "cbor":
		data, err := sim.MarshalSnapshot(p.Snapshot())
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("dump format %q: %w", format, pkg.ErrInvalidParameter)
	}
}

func newDumpCmd() *cobra.Command {
	var (
		specs  []string
		ep0    uint16
		format string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Enable an endpoint plan and dump the controller state",
		Long: `dump allocates an endpoint plan, enables the bus and writes either the
USB1 SRAM as Intel HEX or a CBOR snapshot of the whole controller`,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := parsePlan(ep0, specs)
			if err != nil {
				return err
			}
			p := sim.New()
			bus, _, err := allocate(p, plan)
			if err != nil {
				return err
			}
			bus.Enable()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := dump(w, p, format); err != nil {
				return err
			}
			pkg.LogInfo(pkg.ComponentCLI, "dump written", "format", format, "out", out)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&specs, "ep", nil, "Endpoint as index:dir:type:mps (repeatable)")
	cmd.Flags().Uint16Var(&ep0, "ep0", 64, "Control endpoint max packet size")
	cmd.Flags().StringVar(&format, "format", "hex", "Output format: hex or cbor")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "Output file, - for stdout")
	return cmd
}
