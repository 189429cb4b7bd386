package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/licenscan/licenscan/pkg/deps"
)

// ToDOT converts the dependency graph to Graphviz DOT format. Nodes are
// labeled "name@version\nlicense"; packages with an unknown license get a
// highlighted fill so they stand out in the rendered diagram.
func ToDOT(records []*deps.Record, edges map[string][]string) string {
	var buf bytes.Buffer
	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	sorted := append([]*deps.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DisplayID() < sorted[j].DisplayID()
	})

	for _, rec := range sorted {
		label := rec.DisplayID() + "\n" + rec.License
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if rec.License == deps.UnknownLicense {
			attrs = append(attrs, "fillcolor=lightyellow")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", rec.DisplayID(), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	parents := make([]string, 0, len(edges))
	for parent := range edges {
		parents = append(parents, parent)
	}
	sort.Strings(parents)
	for _, parent := range parents {
		kids := append([]string(nil), edges[parent]...)
		sort.Strings(kids)
		for _, child := range kids {
			fmt.Fprintf(&buf, "  %q -> %q;\n", parent, child)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
