package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/fingerprint-cli/internal/utils"
)

// outputFlags is the --format/--output pair shared by the read commands.
type outputFlags struct {
	format string
	path   string
}

func (o *outputFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&o.format, "format", "json", "output format: json, yaml or table")
	c.Flags().StringVarP(&o.path, "output", "o", "", "write to this file instead of stdout")
}

// emit renders v in the selected format. table is used for --format table.
func (o *outputFlags) emit(cmd *cobra.Command, v any, table func(w io.Writer)) error {
	var buf bytes.Buffer
	switch strings.ToLower(strings.TrimSpace(o.format)) {
	case "", "json":
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	case "yaml", "yml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal yaml: %w", err)
		}
		buf.Write(b)
	case "table":
		tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		table(tw)
		if err := tw.Flush(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported --format: %s (use json, yaml or table)", o.format)
	}

	if o.path != "" {
		if err := utils.SafeWriteFile(o.path, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", o.path)
		return nil
	}
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func fmtFloat(f float64) string {
	return fmt.Sprintf("%.4g", f)
}
