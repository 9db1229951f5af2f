package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var statsOut outputFlags

var statsCmd = &cobra.Command{
	Use:   "stats <dataset>",
	Short: "Show global statistics for every numeric feature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		p, _, err := newPipeline(c, nil)
		if err != nil {
			return err
		}
		g, err := p.Stats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(g.Features) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "⚠ Warning: dataset has no numeric columns")
		}
		return statsOut.emit(cmd, g.Map(), func(w io.Writer) {
			fmt.Fprintln(w, "FEATURE\tMEAN\tSTD\tMIN\tMAX\tNORM_MEAN\tNORM_STD")
			for j, name := range g.Features {
				s := g.Summaries[j]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", name,
					fmtFloat(s.Mean), fmtFloat(s.Std), fmtFloat(s.Min), fmtFloat(s.Max),
					fmtFloat(s.NormMean), fmtFloat(s.NormStd))
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsOut.register(statsCmd)
}
