package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/fingerprint-cli/internal/projection"
)

var (
	projMethod string
	projOut    outputFlags
)

type projectedPoint struct {
	ID  string           `json:"id" yaml:"id"`
	Pos projection.Point `json:"pos" yaml:"pos"`
}

var projectCmd = &cobra.Command{
	Use:   "project <dataset>",
	Short: "Project a dataset's numeric columns to 2-D",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		method := projMethod
		if method == "" {
			method = c.DefaultMethod
		}
		p, _, err := newPipeline(c, nil)
		if err != nil {
			return err
		}
		pts, err := p.Projection(cmd.Context(), args[0], method)
		if err != nil {
			return err
		}
		ds, err := p.Dataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := make([]projectedPoint, len(pts))
		for i, pt := range pts {
			out[i] = projectedPoint{ID: ds.IDs[i], Pos: pt}
		}
		return projOut.emit(cmd, out, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tX\tY")
			for _, o := range out {
				fmt.Fprintf(w, "%s\t%s\t%s\n", o.ID, fmtFloat(o.Pos.X), fmtFloat(o.Pos.Y))
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.Flags().StringVarP(&projMethod, "method", "m", "", "projection method: pca or tsne (default from config)")
	projOut.register(projectCmd)
}
