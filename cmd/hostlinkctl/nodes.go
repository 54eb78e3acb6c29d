package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayo-electronics/t0ve-hostlink/port"
)

// newListNodesCommand supplements the original connection_prompt GUI
// dialog (test_file_request.py) with a non-interactive listing:
// hostlinkctl has no widget toolkit to pop a selection dialog in, so it
// just enumerates candidates and lets the operator pick a --node and
// --serial-regex for a subsequent `run`/`files` invocation.
func newListNodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-nodes",
		Short: "Enumerate USB serial candidates and their serial-number descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			candidates, err := port.NewSysfsDiscoverer().Enumerate()
			if err != nil {
				return fmt.Errorf("enumerate candidates: %w", err)
			}
			if len(candidates) == 0 {
				fmt.Println("no USB serial candidates found")
				return nil
			}
			for _, c := range candidates {
				fmt.Printf("%-20s  serial=%s\n", c.DevicePath, c.SerialNumber)
			}
			return nil
		},
	}
}
