// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package plan

import "strings"

// Format renders a plan as an indented tree.
func Format(n Node) string {
	return FormatWith(n, nil)
}

// FormatWith renders a plan as an indented tree, printing the lines returned
// by annotate under each node. Subset members are shown as children of their
// subset; a subset reached again while printing its own members is printed
// once more without members.
func FormatWith(n Node, annotate func(Node) []string) string {
	f := formatter{annotate: annotate, open: make(map[*Subset]bool)}
	f.format(n, "", "")
	return f.buf.String()
}

type formatter struct {
	buf      strings.Builder
	annotate func(Node) []string
	open     map[*Subset]bool
}

func (f *formatter) format(n Node, first, rest string) {
	f.buf.WriteString(first)
	if n == nil {
		f.buf.WriteString("<nil>\n")
		return
	}
	f.buf.WriteString(n.String())

	var children []Node
	switch t := n.(type) {
	case *Subset:
		if f.open[t] {
			f.buf.WriteString(" (cycle)\n")
			return
		}
		f.open[t] = true
		defer delete(f.open, t)
		children = t.Members
	case *Vertex:
		children = []Node{t.Current}
	default:
		children = n.Inputs()
	}
	f.buf.WriteByte('\n')

	var notes []string
	if f.annotate != nil {
		notes = f.annotate(n)
	}
	for _, note := range notes {
		prefix := rest + "│ "
		if len(children) == 0 {
			prefix = rest + "  "
		}
		f.buf.WriteString(prefix)
		f.buf.WriteString(note)
		f.buf.WriteByte('\n')
	}
	for i, c := range children {
		if i == len(children)-1 {
			f.format(c, rest+"└── ", rest+"    ")
		} else {
			f.format(c, rest+"├── ", rest+"│   ")
		}
	}
}
