// Package codec implements the segment-delimited wire format used for
// customs declaration (CUSDEC) and response (CUSRES) messages: a textual
// protocol of tagged segments whose fields and components are separated by
// structural characters declared once per message.
package codec

import "strings"

// Delimiters holds the four structural characters of a message. They are
// declared per message envelope, so every encode/decode call receives them
// explicitly rather than reading package state.
type Delimiters struct {
	Field      byte // separates fields within a segment
	Component  byte // separates components within a field
	Terminator byte // ends a segment
	Escape     byte // makes the following character literal
}

// DefaultDelimiters is the conventional set used when an interchange does
// not override them.
var DefaultDelimiters = Delimiters{
	Field:      '+',
	Component:  ':',
	Terminator: '\'',
	Escape:     '?',
}

func (d Delimiters) reserved(c byte) bool {
	return c == d.Field || c == d.Component || c == d.Terminator || c == d.Escape
}

// Segment is one delimited unit of a message: a tag plus ordered fields,
// each field an ordered list of component strings.
type Segment struct {
	Tag    string
	Fields [][]string
}

// Field returns the components of field i, or nil when absent.
func (s Segment) Field(i int) []string {
	if i < 0 || i >= len(s.Fields) {
		return nil
	}
	return s.Fields[i]
}

// Component returns component j of field i, or "" when absent.
func (s Segment) Component(i, j int) string {
	f := s.Field(i)
	if j < 0 || j >= len(f) {
		return ""
	}
	return f[j]
}

// EncodeSegment renders a segment in wire form. Reserved characters inside
// literal data are prefixed with the escape character, so EncodeSegment and
// DecodeSegment round-trip any field content.
func EncodeSegment(d Delimiters, seg Segment) string {
	var b strings.Builder
	b.WriteString(seg.Tag)
	for _, field := range seg.Fields {
		b.WriteByte(d.Field)
		for j, comp := range field {
			if j > 0 {
				b.WriteByte(d.Component)
			}
			for i := 0; i < len(comp); i++ {
				if d.reserved(comp[i]) {
					b.WriteByte(d.Escape)
				}
				b.WriteByte(comp[i])
			}
		}
	}
	b.WriteByte(d.Terminator)
	return b.String()
}

// DecodeSegment parses one wire segment. The input must end with an
// unescaped terminator. The scanner runs left-to-right with an explicit
// escaped state: an escape character consumes the next character literally,
// whatever it is, which handles an escape immediately followed by another
// escape. An empty field between two separators decodes to a single empty
// component, not an omission.
func DecodeSegment(d Delimiters, raw string) (Segment, error) {
	if raw == "" {
		return Segment{}, &SegmentError{Detail: "empty input", Offset: 0}
	}

	var (
		seg     Segment
		comp    strings.Builder
		field   []string
		inTag   = true
		escaped = false
		done    = false
	)

	endField := func() {
		field = append(field, comp.String())
		comp.Reset()
		seg.Fields = append(seg.Fields, field)
		field = nil
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if escaped {
			comp.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case d.Escape:
			escaped = true
		case d.Terminator:
			if inTag {
				seg.Tag = comp.String()
				comp.Reset()
			} else {
				endField()
			}
			if i != len(raw)-1 {
				return Segment{}, &SegmentError{Detail: "data after terminator", Offset: i}
			}
			done = true
		case d.Field:
			if inTag {
				seg.Tag = comp.String()
				comp.Reset()
				inTag = false
			} else {
				endField()
			}
		case d.Component:
			if inTag {
				return Segment{}, &SegmentError{Detail: "component separator inside tag", Offset: i}
			}
			field = append(field, comp.String())
			comp.Reset()
		default:
			comp.WriteByte(c)
		}
	}

	if escaped {
		return Segment{}, &SegmentError{Detail: "input ends inside escape sequence", Offset: len(raw) - 1}
	}
	if !done {
		return Segment{}, &SegmentError{Detail: "missing segment terminator", Offset: len(raw) - 1}
	}
	if seg.Tag == "" {
		return Segment{}, &SegmentError{Detail: "empty segment tag", Offset: 0}
	}
	return seg, nil
}

// splitSegments cuts a byte stream at unescaped terminators, keeping escape
// sequences intact so each piece can be handed to DecodeSegment.
func splitSegments(d Delimiters, data []byte) ([]string, error) {
	var (
		out     []string
		start   = 0
		escaped = false
	)
	for i := 0; i < len(data); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch data[i] {
		case d.Escape:
			escaped = true
		case d.Terminator:
			out = append(out, string(data[start:i+1]))
			start = i + 1
		}
	}
	if escaped {
		return nil, &SegmentError{Detail: "stream ends inside escape sequence", Offset: len(data) - 1}
	}
	if start != len(data) {
		return nil, &SegmentError{Detail: "trailing data without terminator", Offset: start}
	}
	return out, nil
}
