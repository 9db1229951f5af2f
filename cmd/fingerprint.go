package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var (
	fpIDs []string
	fpOut outputFlags
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint <dataset> --ids a,b,c",
	Short: "Compare a selection of rows with the whole dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(fpIDs) == 0 {
			return fmt.Errorf("--ids is required")
		}
		c, err := settings()
		if err != nil {
			return err
		}
		p, _, err := newPipeline(c, nil)
		if err != nil {
			return err
		}
		fp, err := p.Fingerprint(cmd.Context(), args[0], fpIDs)
		if err != nil {
			return err
		}
		return fpOut.emit(cmd, fp, func(w io.Writer) {
			names := make([]string, 0, len(fp))
			for n := range fp {
				names = append(names, n)
			}
			sort.Strings(names)
			fmt.Fprintln(w, "FEATURE\tMEAN\tSTD\tGLOBAL_MEAN\tNORM_MEAN\tDELTA")
			for _, n := range names {
				l := fp[n]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%+.4g\n", n,
					fmtFloat(l.Mean), fmtFloat(l.Std), fmtFloat(l.GlobalMean), fmtFloat(l.NormMean), l.MeanDelta)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(fingerprintCmd)
	fingerprintCmd.Flags().StringSliceVar(&fpIDs, "ids", nil, "row ids to summarize (comma separated)")
	fpOut.register(fingerprintCmd)
}
