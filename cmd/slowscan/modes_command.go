package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/slowscan/pkg/sstv"
)

type modeRow struct {
	Name     string        `json:"name"`
	VIS      uint8         `json:"vis"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Layout   string        `json:"layout"`
	Duration time.Duration `json:"duration"`
}

func newModesCommand(_ *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "modes",
		Short: "List the supported SSTV modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := sstv.DefaultRegistry().Modes()
			rows := make([]modeRow, len(modes))
			for i, m := range modes {
				ms := sstv.HeaderDuration + m.ImageDuration()
				rows[i] = modeRow{
					Name:     m.Name,
					VIS:      m.VIS,
					Width:    m.Width,
					Height:   m.Height,
					Layout:   m.Layout.String(),
					Duration: time.Duration(ms * float64(time.Millisecond)),
				}
			}
			if jsonOutput {
				return writeJSON(cmd, rows)
			}

			table := make([][]string, len(rows))
			for i, r := range rows {
				table[i] = []string{
					r.Name,
					fmt.Sprintf("0x%02X", r.VIS),
					fmt.Sprintf("%dx%d", r.Width, r.Height),
					r.Layout,
					fmt.Sprintf("%.1fs", r.Duration.Seconds()),
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Mode", "VIS", "Size", "Layout", "Duration"},
				table,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print modes as JSON")
	return cmd
}
