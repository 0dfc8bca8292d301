package codec

import "fmt"

// Reason codes carried by codec errors. These surface to API callers
// unchanged so a rejected message can be appealed without re-deriving
// internal state.
const (
	ReasonMalformedSegment     = "MALFORMED_SEGMENT"
	ReasonSegmentCountMismatch = "SEGMENT_COUNT_MISMATCH"
	ReasonUnbalancedEnvelope   = "UNBALANCED_ENVELOPE"
	ReasonMalformedMessage     = "MALFORMED_MESSAGE"
)

// SegmentError reports a segment that cannot be decoded. Format errors are
// fatal to the whole decode call; no partial segment is ever returned.
type SegmentError struct {
	Detail string
	Offset int
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("malformed segment at offset %d: %s", e.Offset, e.Detail)
}

func (e *SegmentError) ReasonCode() string { return ReasonMalformedSegment }

// CountMismatchError reports a trailer whose declared segment count disagrees
// with the number of segments actually parsed.
type CountMismatchError struct {
	Declared int
	Parsed   int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("trailer declares %d segments, parsed %d", e.Declared, e.Parsed)
}

func (e *CountMismatchError) ReasonCode() string { return ReasonSegmentCountMismatch }

// EnvelopeError reports missing or unpaired header/trailer segments.
type EnvelopeError struct {
	Detail string
}

func (e *EnvelopeError) Error() string {
	return "unbalanced envelope: " + e.Detail
}

func (e *EnvelopeError) ReasonCode() string { return ReasonUnbalancedEnvelope }

// MessageError reports a structurally valid message whose content cannot be
// interpreted as the expected message type.
type MessageError struct {
	Detail string
}

func (e *MessageError) Error() string {
	return "malformed message: " + e.Detail
}

func (e *MessageError) ReasonCode() string { return ReasonMalformedMessage }
