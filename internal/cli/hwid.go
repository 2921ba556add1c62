package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type hardwareComponents interface {
	ProcessorID() (string, error)
	DiskSerial() (string, error)
}

func newHWIDCmd(app *App) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "hwid",
		Short: "Print this machine's hardware fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fp, err := app.Hardware.Fingerprint()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, fp)

			if hc, ok := app.Hardware.(hardwareComponents); ok && verbose {
				cpu, err := hc.ProcessorID()
				if err != nil {
					return err
				}
				disk, err := hc.DiskSerial()
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "processor: %s\ndisk: %s\n", cpu, disk)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Also print the identifiers the fingerprint is derived from.")
	return cmd
}
