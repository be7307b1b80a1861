package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/gray-logic-facade/internal/facade"
	"github.com/nerrad567/gray-logic-facade/internal/graph"
)

func newGraphCmd(v *viper.Viper) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the dependency graph of the device definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "dot" {
				return fmt.Errorf("unknown format %q (want table or dot)", format)
			}
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			dev, _, err := buildOffline(cfg)
			if err != nil {
				return err
			}

			kinds := make(map[string]string)
			for _, info := range dev.Attributes() {
				kinds[info.Name] = info.Kind.String()
			}

			var werr error
			dev.Inspect(func(g *graph.Graph) {
				if format == "dot" {
					werr = writeDot(cmd.OutOrStdout(), dev.Name(), g)
					return
				}
				werr = writeTable(cmd.OutOrStdout(), g, kinds)
			})
			return werr
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or dot")
	return cmd
}

func writeTable(w io.Writer, g *graph.Graph, kinds map[string]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tKIND\tBINDS\tDEPENDENCIES")
	for name, node := range g.All() {
		kind, ok := kinds[name]
		if !ok {
			kind = "subnode"
		}
		if node.Restricted() {
			kind += " (restricted)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, kind,
			orDash(g.Bindings(name)), orDash(g.Dependencies(name)))
	}
	return tw.Flush()
}

func writeDot(w io.Writer, device string, g *graph.Graph) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", device)
	for name, node := range g.All() {
		shape := "ellipse"
		switch {
		case node.Restricted():
			shape = "box"
		case name == facade.ClockAttribute:
			shape = "diamond"
		}
		fmt.Fprintf(&b, "  %q [shape=%s];\n", name, shape)
	}
	for name := range g.All() {
		for _, in := range g.Bindings(name) {
			fmt.Fprintf(&b, "  %q -> %q;\n", in, name)
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func orDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}
