package rdf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Term is a subject, predicate, or object position in a triple.
type Term interface {
	render(prefixes []prefixBinding) string
}

// IRI is a resource identifier. The empty IRI renders as <>, the document
// base, which the batch header uses for its feature collection.
type IRI string

func (i IRI) render(prefixes []prefixBinding) string {
	for _, b := range prefixes {
		if rest, found := strings.CutPrefix(string(i), string(b.ns)); found && isLocalName(rest) {
			return b.prefix + ":" + rest
		}
	}
	return "<" + string(i) + ">"
}

// Blank is a blank node label.
type Blank string

func (b Blank) render([]prefixBinding) string {
	return "_:" + string(b)
}

// Literal is a possibly-datatyped literal value.
type Literal struct {
	Value    string
	Datatype IRI
}

func (l Literal) render(prefixes []prefixBinding) string {
	out := `"` + escapeLiteral(l.Value) + `"`
	if l.Datatype != "" {
		out += "^^" + l.Datatype.render(prefixes)
	}
	return out
}

// escapeLiteral escapes a string for a double-quoted turtle literal. Turtle
// only defines ECHAR escapes plus \uXXXX; Go-style escapes like \x are not
// valid turtle.
func escapeLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// Text creates a plain string literal.
func Text(v string) Literal {
	return Literal{Value: v}
}

// Integer creates an xsd:integer literal.
func Integer(v int) Literal {
	return Literal{Value: strconv.Itoa(v), Datatype: XSDInteger}
}

// Float creates an xsd:float literal.
func Float(v float64) Literal {
	return Literal{Value: strconv.FormatFloat(v, 'g', -1, 64), Datatype: XSDFloat}
}

// DateTime creates an xsd:dateTime literal in UTC RFC 3339 form.
func DateTime(t time.Time) Literal {
	return Literal{Value: t.UTC().Format(time.RFC3339), Datatype: XSDDateTime}
}

// WKT creates a geo:wktLiteral.
func WKT(v string) Literal {
	return Literal{Value: v, Datatype: GeoWKTLiteral}
}

// Triple is one subject-predicate-object assertion.
type Triple struct {
	Subject   Term
	Predicate IRI
	Object    Term
}

// Graph is an ordered collection of triples with a fixed prefix table.
// Triples serialize in insertion order, so the same assertions added in the
// same order always produce byte-identical output.
type Graph struct {
	prefixes []prefixBinding
	triples  []Triple
}

// NewGraph creates a graph with the standard prefix table bound.
func NewGraph() *Graph {
	return &Graph{prefixes: defaultPrefixes}
}

// Add appends one triple to the graph.
func (g *Graph) Add(s Term, p IRI, o Term) {
	g.triples = append(g.triples, Triple{Subject: s, Predicate: p, Object: o})
}

// Len returns the number of triples in the graph.
func (g *Graph) Len() int {
	return len(g.triples)
}

// isLocalName reports whether a string is usable as the local part of a
// prefixed name without escaping.
func isLocalName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	// a trailing dot would be parsed as end-of-statement
	return !strings.HasSuffix(s, ".")
}
