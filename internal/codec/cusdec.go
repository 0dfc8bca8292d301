package codec

import (
	"fmt"
	"strconv"

	"github.com/tradegate/customs-api/internal/types"
)

// Qualifiers used within CUSDEC/CUSRES segments.
const (
	PartyDeclarant = "DT"
	PartyConsignee = "CN"
	AmountItem     = "ITEM"
	AmountTotal    = "TOTAL"
	RefOriginal    = "ACW"
	MeasureWeight  = "WT"
)

// CurrentVersion is the message version stamped on outgoing envelopes.
const CurrentVersion = "D96B"

// BuildDeclaration maps a declaration onto CUSDEC wire segments. The
// inverse of ParseDeclaration.
func BuildDeclaration(dec *types.Declaration, fn MessageFunction) (Envelope, []Segment) {
	env := Envelope{
		Reference:   dec.Reference,
		MessageType: "CUSDEC",
		Version:     CurrentVersion,
		Function:    fn,
	}

	body := []Segment{
		{Tag: TagMessage, Fields: [][]string{{string(dec.Type)}}},
		{Tag: TagParty, Fields: [][]string{{PartyDeclarant}, {dec.DeclarantID}}},
		{Tag: TagParty, Fields: [][]string{{PartyConsignee}, {dec.ConsigneeID}}},
		{Tag: TagCurrency, Fields: [][]string{{dec.Currency}}},
	}

	for _, item := range dec.Items {
		body = append(body,
			Segment{Tag: TagItem, Fields: [][]string{
				{strconv.Itoa(item.Sequence)},
				{item.HSCode, item.Origin},
			}},
			Segment{Tag: TagQuantity, Fields: [][]string{
				{formatAmount(item.Quantity), item.Unit},
			}},
			Segment{Tag: TagMeasure, Fields: [][]string{
				{MeasureWeight},
				{formatAmount(item.NetWeight), formatAmount(item.GrossWeight), "KGM"},
			}},
			Segment{Tag: TagAmount, Fields: [][]string{
				{AmountItem},
				{formatAmount(item.Value)},
			}},
		)
	}

	body = append(body, Segment{Tag: TagAmount, Fields: [][]string{
		{AmountTotal},
		{formatAmount(dec.TotalValue), dec.Currency},
	}})

	return env, body
}

// ParseDeclaration interprets a decoded CUSDEC message as a declaration.
// Goods item sequence numbers must run 1..n in wire order. Unknown segments
// were already recorded by DecodeMessage and are skipped here.
func ParseDeclaration(msg Message) (*types.Declaration, error) {
	if msg.Envelope.MessageType != "CUSDEC" {
		return nil, &MessageError{Detail: "expected CUSDEC, got " + msg.Envelope.MessageType}
	}
	if msg.Envelope.Reference == "" {
		return nil, &MessageError{Detail: "missing functional reference"}
	}

	dec := &types.Declaration{Reference: msg.Envelope.Reference}
	var cur *types.GoodsItem
	sawBGM := false

	closeItem := func() {
		if cur != nil {
			dec.Items = append(dec.Items, *cur)
			cur = nil
		}
	}

	for _, seg := range msg.Segments {
		switch seg.Tag {
		case TagMessage:
			sawBGM = true
			dec.Type = types.DeclarationType(seg.Component(0, 0))
		case TagParty:
			switch seg.Component(0, 0) {
			case PartyDeclarant:
				dec.DeclarantID = seg.Component(1, 0)
			case PartyConsignee:
				dec.ConsigneeID = seg.Component(1, 0)
			}
		case TagCurrency:
			dec.Currency = seg.Component(0, 0)
		case TagItem:
			closeItem()
			seq, err := strconv.Atoi(seg.Component(0, 0))
			if err != nil {
				return nil, &MessageError{Detail: "goods item sequence is not numeric"}
			}
			if seq != len(dec.Items)+1 {
				return nil, &MessageError{Detail: fmt.Sprintf("goods item sequence %d out of order, expected %d", seq, len(dec.Items)+1)}
			}
			cur = &types.GoodsItem{
				Sequence: seq,
				HSCode:   seg.Component(1, 0),
				Origin:   seg.Component(1, 1),
			}
		case TagQuantity:
			if cur == nil {
				return nil, &MessageError{Detail: "quantity segment outside goods item"}
			}
			qty, err := parseAmount(seg.Component(0, 0))
			if err != nil {
				return nil, err
			}
			cur.Quantity = qty
			cur.Unit = seg.Component(0, 1)
		case TagMeasure:
			if cur == nil {
				return nil, &MessageError{Detail: "measure segment outside goods item"}
			}
			net, err := parseAmount(seg.Component(1, 0))
			if err != nil {
				return nil, err
			}
			gross, err := parseAmount(seg.Component(1, 1))
			if err != nil {
				return nil, err
			}
			cur.NetWeight = net
			cur.GrossWeight = gross
		case TagAmount:
			switch seg.Component(0, 0) {
			case AmountItem:
				if cur == nil {
					return nil, &MessageError{Detail: "item amount segment outside goods item"}
				}
				v, err := parseAmount(seg.Component(1, 0))
				if err != nil {
					return nil, err
				}
				cur.Value = v
			case AmountTotal:
				closeItem()
				v, err := parseAmount(seg.Component(1, 0))
				if err != nil {
					return nil, err
				}
				dec.TotalValue = v
			}
		}
	}
	closeItem()

	if !sawBGM {
		return nil, &MessageError{Detail: "missing BGM segment"}
	}
	switch dec.Type {
	case types.TypeImport, types.TypeExport, types.TypeTransit, types.TypeReExport:
	default:
		return nil, &MessageError{Detail: "unknown declaration type " + string(dec.Type)}
	}
	if len(dec.Items) == 0 {
		return nil, &MessageError{Detail: "declaration carries no goods items"}
	}
	return dec, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &MessageError{Detail: "non-numeric amount " + strconv.Quote(s)}
	}
	return v, nil
}
