package codec

import (
	"fmt"
	"strconv"
)

// Structural segment tags. TagHeader and TagTrailer frame every message;
// the remaining tags carry declaration and response content.
const (
	TagHeader   = "UNH"
	TagTrailer  = "UNT"
	TagMessage  = "BGM"
	TagParty    = "NAD"
	TagCurrency = "CUX"
	TagItem     = "CST"
	TagMeasure  = "MEA"
	TagQuantity = "QTY"
	TagAmount   = "MOA"
	TagStatus   = "STS"
	TagRef      = "RFF"
)

// MessageFunction qualifies the intent of a declaration message.
type MessageFunction string

const (
	FunctionOriginal  MessageFunction = "9"
	FunctionAmendment MessageFunction = "4"
	FunctionDeletion  MessageFunction = "1"
)

// Envelope is the metadata declared by the header segment.
type Envelope struct {
	Reference   string
	MessageType string // CUSDEC, CUSRES
	Version     string
	Function    MessageFunction
}

// Message is a decoded wire message: envelope plus the ordered body
// segments between header and trailer. UnknownTags lists body tags the
// codec does not interpret; their segments are still present in Segments so
// a re-encode reproduces the original ordering.
type Message struct {
	Envelope    Envelope
	Segments    []Segment
	UnknownTags []string
}

var knownTags = map[string]bool{
	TagMessage:  true,
	TagParty:    true,
	TagCurrency: true,
	TagItem:     true,
	TagMeasure:  true,
	TagQuantity: true,
	TagAmount:   true,
	TagStatus:   true,
	TagRef:      true,
}

// EncodeMessage renders an envelope and body as a byte stream: header
// segment, body segments in order, then a trailer carrying the total
// segment count (header and trailer included) and the envelope reference.
func EncodeMessage(d Delimiters, env Envelope, body []Segment) []byte {
	header := Segment{
		Tag: TagHeader,
		Fields: [][]string{
			{env.Reference},
			{env.MessageType, env.Version},
			{string(env.Function)},
		},
	}
	trailer := Segment{
		Tag: TagTrailer,
		Fields: [][]string{
			{strconv.Itoa(len(body) + 2)},
			{env.Reference},
		},
	}

	var out []byte
	out = append(out, EncodeSegment(d, header)...)
	for _, seg := range body {
		out = append(out, EncodeSegment(d, seg)...)
	}
	out = append(out, EncodeSegment(d, trailer)...)
	return out
}

// DecodeMessage parses a byte stream into a message. Any failure rejects
// the whole message; a partially decoded message is never returned.
// Unknown body tags are tolerated and recorded for forward compatibility.
func DecodeMessage(d Delimiters, data []byte) (Message, error) {
	raws, err := splitSegments(d, data)
	if err != nil {
		return Message{}, err
	}
	if len(raws) == 0 {
		return Message{}, &EnvelopeError{Detail: "empty message"}
	}

	segs := make([]Segment, 0, len(raws))
	for _, raw := range raws {
		seg, err := DecodeSegment(d, raw)
		if err != nil {
			return Message{}, err
		}
		segs = append(segs, seg)
	}

	headers, trailers := 0, 0
	for _, seg := range segs {
		switch seg.Tag {
		case TagHeader:
			headers++
		case TagTrailer:
			trailers++
		}
	}
	if headers != trailers {
		return Message{}, &EnvelopeError{Detail: fmt.Sprintf("%d header(s) against %d trailer(s)", headers, trailers)}
	}
	if headers == 0 {
		return Message{}, &EnvelopeError{Detail: "missing header and trailer"}
	}
	if segs[0].Tag != TagHeader {
		return Message{}, &EnvelopeError{Detail: "first segment is not a header"}
	}
	if segs[len(segs)-1].Tag != TagTrailer {
		return Message{}, &EnvelopeError{Detail: "last segment is not a trailer"}
	}

	header := segs[0]
	trailer := segs[len(segs)-1]

	env := Envelope{
		Reference:   header.Component(0, 0),
		MessageType: header.Component(1, 0),
		Version:     header.Component(1, 1),
		Function:    MessageFunction(header.Component(2, 0)),
	}

	declared, err := strconv.Atoi(trailer.Component(0, 0))
	if err != nil {
		return Message{}, &MessageError{Detail: "trailer segment count is not numeric"}
	}
	if declared != len(segs) {
		return Message{}, &CountMismatchError{Declared: declared, Parsed: len(segs)}
	}
	if ref := trailer.Component(1, 0); ref != "" && ref != env.Reference {
		return Message{}, &EnvelopeError{Detail: "trailer reference does not match header"}
	}

	msg := Message{Envelope: env, Segments: segs[1 : len(segs)-1]}
	for _, seg := range msg.Segments {
		if !knownTags[seg.Tag] {
			msg.UnknownTags = append(msg.UnknownTags, seg.Tag)
		}
	}
	return msg, nil
}
