package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/fingerprint-cli/internal/ranking"
)

var (
	rankMethod string
	rankRadius float64
	rankTop    int
	rankOut    outputFlags
)

var rankCmd = &cobra.Command{
	Use:   "rank <dataset>",
	Short: "Rank features by local importance for every row",
	Long: `Rank computes, for every row, the variance of each feature among the rows
within --radius of it in the projection, divides it by the feature's global
variance and normalizes the result into scores that sum to 1.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		method := rankMethod
		if method == "" {
			method = c.DefaultMethod
		}
		radius := c.DefaultRadius
		if cmd.Flags().Changed("radius") {
			radius = rankRadius
		}
		p, _, err := newPipeline(c, nil)
		if err != nil {
			return err
		}
		rows, err := p.Ranking(cmd.Context(), args[0], method, radius)
		if err != nil {
			return err
		}
		rows = topFeatures(rows, rankTop)
		return rankOut.emit(cmd, rows, func(w io.Writer) {
			fmt.Fprintln(w, "ID\tFEATURES")
			for _, r := range rows {
				parts := make([]string, len(r.Features))
				for k, f := range r.Features {
					parts[k] = fmt.Sprintf("%s=%.3f", f, r.Scores[k])
				}
				fmt.Fprintf(w, "%s\t%s\n", r.ID, strings.Join(parts, " "))
			}
		})
	},
}

// topFeatures returns copies of rows holding at most n features each. The
// input rows come from the pipeline cache and are left untouched.
func topFeatures(rows []ranking.Row, n int) []ranking.Row {
	if n <= 0 {
		return rows
	}
	out := make([]ranking.Row, len(rows))
	for i, r := range rows {
		k := min(n, len(r.Features))
		out[i] = ranking.Row{
			ID:       r.ID,
			Features: append([]string(nil), r.Features[:k]...),
			Scores:   append([]float64(nil), r.Scores[:k]...),
		}
	}
	return out
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().StringVarP(&rankMethod, "method", "m", "", "projection method: pca or tsne (default from config)")
	rankCmd.Flags().Float64VarP(&rankRadius, "radius", "r", 0, "neighborhood radius in projection units (default from config)")
	rankCmd.Flags().IntVar(&rankTop, "top", 0, "keep only the N most informative features per row")
	rankOut.register(rankCmd)
}
