package rdf

import (
	"bufio"
	"io"
)

// WriteTurtle serializes the graph as Turtle. Consecutive triples sharing a
// subject are folded into one statement with `;` separators; triples are
// otherwise emitted strictly in insertion order.
func (g *Graph) WriteTurtle(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, b := range g.prefixes {
		if _, err := bw.WriteString("@prefix " + b.prefix + ": <" + string(b.ns) + "> .\n"); err != nil {
			return err
		}
	}
	if len(g.triples) > 0 {
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}

	var openSubject string
	for _, t := range g.triples {
		subj := t.Subject.render(g.prefixes)
		pred := t.Predicate.render(g.prefixes)
		// rdf:type abbreviates to "a"
		if t.Predicate == RDFType {
			pred = "a"
		}
		obj := t.Object.render(g.prefixes)

		if subj == openSubject {
			if _, err := bw.WriteString(" ;\n    " + pred + " " + obj); err != nil {
				return err
			}
			continue
		}
		if openSubject != "" {
			if _, err := bw.WriteString(" .\n"); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(subj + " " + pred + " " + obj); err != nil {
			return err
		}
		openSubject = subj
	}
	if openSubject != "" {
		if _, err := bw.WriteString(" .\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}
