package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSegment(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		want string
	}{
		{
			name: "simple fields",
			seg:  Segment{Tag: "BGM", Fields: [][]string{{"IM"}}},
			want: "BGM+IM'",
		},
		{
			name: "components",
			seg:  Segment{Tag: "CST", Fields: [][]string{{"1"}, {"870323", "DE"}}},
			want: "CST+1+870323:DE'",
		},
		{
			name: "reserved characters escaped",
			seg:  Segment{Tag: "NAD", Fields: [][]string{{"DT"}, {"O'BRIEN+CO:LTD?"}}},
			want: "NAD+DT+O?'BRIEN?+CO?:LTD??'",
		},
		{
			name: "empty components kept",
			seg:  Segment{Tag: "MEA", Fields: [][]string{{"WT"}, {"", "12.5", "KGM"}}},
			want: "MEA+WT+:12.5:KGM'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeSegment(DefaultDelimiters, tt.seg))
		})
	}
}

func TestDecodeSegment(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Segment
	}{
		{
			name: "tag only",
			raw:  "UNS'",
			want: Segment{Tag: "UNS"},
		},
		{
			name: "single empty field",
			raw:  "BGM+'",
			want: Segment{Tag: "BGM", Fields: [][]string{{""}}},
		},
		{
			name: "empty field between separators",
			raw:  "NAD+DT++ACME'",
			want: Segment{Tag: "NAD", Fields: [][]string{{"DT"}, {""}, {"ACME"}}},
		},
		{
			name: "empty component between separators",
			raw:  "MEA+WT+:12.5'",
			want: Segment{Tag: "MEA", Fields: [][]string{{"WT"}, {"", "12.5"}}},
		},
		{
			name: "escaped reserved characters",
			raw:  "NAD+DT+O?'BRIEN?+CO?:LTD??'",
			want: Segment{Tag: "NAD", Fields: [][]string{{"DT"}, {"O'BRIEN+CO:LTD?"}}},
		},
		{
			name: "escape before ordinary character",
			raw:  "FTX+?a'",
			want: Segment{Tag: "FTX", Fields: [][]string{{"a"}}},
		},
		{
			name: "double escape",
			raw:  "FTX+????'",
			want: Segment{Tag: "FTX", Fields: [][]string{{"??"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSegment(DefaultDelimiters, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSegmentMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty input", raw: ""},
		{name: "missing terminator", raw: "BGM+IM"},
		{name: "ends inside escape", raw: "BGM+IM?"},
		{name: "data after terminator", raw: "BGM+IM'x"},
		{name: "empty tag", raw: "+IM'"},
		{name: "component separator in tag", raw: "BG:M+IM'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSegment(DefaultDelimiters, tt.raw)
			var segErr *SegmentError
			require.ErrorAs(t, err, &segErr)
			assert.Equal(t, ReasonMalformedSegment, segErr.ReasonCode())
		})
	}
}

// Round-trip law: decode(encode(f)) == f for any field content, including
// fields made entirely of reserved characters.
func TestSegmentRoundTrip(t *testing.T) {
	fieldSets := [][][]string{
		{{"plain"}},
		{{""}},
		{{"", "", ""}},
		{{"+:'?"}, {"??''"}, {"a+b", "c:d"}},
		{{"ACME GmbH & Co. KG"}, {"DE", "80331"}},
	}

	for _, fields := range fieldSets {
		seg := Segment{Tag: "FTX", Fields: fields}
		wire := EncodeSegment(DefaultDelimiters, seg)

		decoded, err := DecodeSegment(DefaultDelimiters, wire)
		require.NoError(t, err)
		require.Equal(t, seg, decoded)

		// Re-encoding the decoded segment must be byte-identical.
		assert.Equal(t, wire, EncodeSegment(DefaultDelimiters, decoded))
	}
}

func TestSegmentCustomDelimiters(t *testing.T) {
	d := Delimiters{Field: '|', Component: '^', Terminator: '~', Escape: '\\'}
	seg := Segment{Tag: "BGM", Fields: [][]string{{"IM|TR"}, {"a^b", "c~d"}}}

	wire := EncodeSegment(d, seg)
	decoded, err := DecodeSegment(d, wire)
	require.NoError(t, err)
	assert.Equal(t, seg, decoded)
}
