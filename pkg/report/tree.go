package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/licenscan/licenscan/pkg/deps"
)

// WriteTree renders the dependency graph as an indented tree, one block per
// root. Roots are packages that appear as a parent in the edge map but
// never as a child. The walk is depth-first with an explicit stack, so
// adversarial graph depth cannot blow the call stack. Cycles are cut with a
// circular-reference marker; a node reached on several paths is printed on
// each, so diamonds render fully.
func WriteTree(w io.Writer, records []*deps.Record, edges map[string][]string) error {
	children := make(map[string]bool)
	for _, kids := range edges {
		for _, dep := range kids {
			children[dep] = true
		}
	}

	byID := make(map[string]*deps.Record, len(records))
	for _, rec := range records {
		byID[rec.DisplayID()] = rec
	}

	var roots []string
	for _, rec := range records {
		id := rec.DisplayID()
		if !children[id] && len(edges[id]) > 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)

	if _, err := fmt.Fprintf(w, "=== DEPENDENCY TREE ===\n\n"); err != nil {
		return err
	}

	for i, root := range roots {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		rec := byID[root]
		if _, err := fmt.Fprintf(w, "%s (%s)\n", rec.Name, rec.License); err != nil {
			return err
		}
		if err := writeSubtree(w, root, edges, byID); err != nil {
			return err
		}
	}
	return nil
}

// frame is one pending node of the iterative tree walk. Exit frames pop
// their node off the current path once its subtree is done.
type frame struct {
	id    string
	level int
	last  bool
	exit  bool
}

// writeSubtree prints everything below root. onPath tracks the nodes of the
// current root-to-node path only, so shared subtrees still print everywhere
// they occur while cycles terminate.
func writeSubtree(w io.Writer, root string, edges map[string][]string, byID map[string]*deps.Record) error {
	onPath := map[string]bool{root: true}

	stack := pushChildren(nil, edges[root], 1)
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.exit {
			delete(onPath, f.id)
			continue
		}

		indent := strings.Repeat("  ", f.level)
		prefix := "├── "
		if f.last {
			prefix = "└── "
		}

		if onPath[f.id] {
			if _, err := fmt.Fprintf(w, "%s%s%s [circular reference]\n", indent, prefix, f.id); err != nil {
				return err
			}
			continue
		}

		rec, ok := byID[f.id]
		if !ok {
			if _, err := fmt.Fprintf(w, "%s%s%s [unknown]\n", indent, prefix, f.id); err != nil {
				return err
			}
			continue
		}

		if _, err := fmt.Fprintf(w, "%s%s%s (%s)\n", indent, prefix, rec.Name, rec.License); err != nil {
			return err
		}

		if kids := edges[f.id]; len(kids) > 0 {
			onPath[f.id] = true
			stack = append(stack, frame{id: f.id, exit: true})
			stack = pushChildren(stack, kids, f.level+1)
		}
	}
	return nil
}

// pushChildren pushes children in reverse sorted order so the stack pops
// them alphabetically, marking the final child for the closing prefix.
func pushChildren(stack []frame, kids []string, level int) []frame {
	sorted := append([]string(nil), kids...)
	sort.Strings(sorted)
	for i := len(sorted) - 1; i >= 0; i-- {
		stack = append(stack, frame{
			id:    sorted[i],
			level: level,
			last:  i == len(sorted)-1,
		})
	}
	return stack
}
