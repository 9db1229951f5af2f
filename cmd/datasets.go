package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var datasetsOut outputFlags

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"list", "ls"},
	Short:   "List the datasets in the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := settings()
		if err != nil {
			return err
		}
		_, store, err := newPipeline(c, nil)
		if err != nil {
			return err
		}
		entries, err := store.List()
		if err != nil {
			return err
		}
		return datasetsOut.emit(cmd, entries, func(w io.Writer) {
			if len(entries) == 0 {
				fmt.Fprintln(w, "(no datasets)")
				return
			}
			fmt.Fprintln(w, "ID\tNAME")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\n", e.ID, e.Name)
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
	datasetsOut.register(datasetsCmd)
}
