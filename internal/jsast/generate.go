package jsast

import (
	"sort"
	"strings"
)

type edit struct {
	span Span
	text string
}

// Generate renders t back to source text with every edit applied.
func Generate(t *Tree) string {
	var b strings.Builder
	for _, n := range t.Prologue {
		b.WriteString(render(n))
		b.WriteByte('\n')
	}

	var edits []edit
	for _, n := range t.Nodes {
		switch v := n.(type) {
		case *RequireCall:
			if v.Synthetic || !v.Rewritten {
				continue
			}
			edits = append(edits, edit{span: v.ArgSpan, text: v.ArgText()})
		case *Splice:
			edits = append(edits, edit{span: v.Span, text: renderParts(v.Parts)})
		case *Insertion:
			edits = append(edits, edit{span: Span{Start: v.At, End: v.At}, text: "\n" + renderParts(v.Parts)})
		}
	}
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].span.Start != edits[j].span.Start {
			return edits[i].span.Start < edits[j].span.Start
		}
		// insertions go before a replacement starting at the same offset
		return edits[i].span.End == edits[i].span.Start && edits[j].span.End != edits[j].span.Start
	})

	pos := 0
	for _, e := range edits {
		if e.span.Start < pos {
			// Overlapping edits are dropped; the passes never produce them.
			continue
		}
		b.Write(t.Source[pos:e.span.Start])
		b.WriteString(e.text)
		pos = e.span.End
	}
	b.Write(t.Source[pos:])
	return b.String()
}

func render(n Node) string {
	switch v := n.(type) {
	case *Text:
		return v.Value
	case *RequireCall:
		return "require(" + v.ArgText() + ")"
	case *Stmt:
		return renderParts(v.Parts)
	case *Splice:
		return renderParts(v.Parts)
	case *Insertion:
		return renderParts(v.Parts)
	}
	return ""
}

func renderParts(parts []Node) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(render(p))
	}
	return b.String()
}
