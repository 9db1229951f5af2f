package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/fingerprint-cli/internal/dataset"
)

var dataOut outputFlags

type dataColumn struct {
	Name      string `json:"name" yaml:"name"`
	IsNumeric bool   `json:"isNumeric" yaml:"is_numeric"`
}

type dataView struct {
	Name    string           `json:"name" yaml:"name"`
	Rows    int              `json:"rows" yaml:"rows"`
	Columns []dataColumn     `json:"columns" yaml:"columns"`
	Records []map[string]any `json:"records" yaml:"records"`
}

var dataCmd = &cobra.Command{
	Use:   "data <dataset>",
	Short: "Show a dataset's rows and column types",
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
		ds, err := p.Dataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		view := dataView{Name: ds.Name, Rows: ds.Len(), Records: make([]map[string]any, ds.Len())}
		for _, col := range ds.Columns {
			view.Columns = append(view.Columns, dataColumn{Name: col.Name, IsNumeric: col.Numeric})
		}
		for i := range view.Records {
			view.Records[i] = ds.Record(i)
		}
		return dataOut.emit(cmd, view, func(w io.Writer) {
			header := []string{strings.ToUpper(dataset.IDField)}
			for _, col := range ds.Columns {
				header = append(header, col.Name)
			}
			fmt.Fprintln(w, strings.Join(header, "\t"))
			for _, rec := range view.Records {
				cells := []string{fmt.Sprint(rec[dataset.IDField])}
				for _, col := range ds.Columns {
					if f, ok := rec[col.Name].(float64); ok {
						cells = append(cells, fmtFloat(f))
						continue
					}
					cells = append(cells, fmt.Sprint(rec[col.Name]))
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(dataCmd)
	dataOut.register(dataCmd)
}
