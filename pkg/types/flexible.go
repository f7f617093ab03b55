package types

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexPrice decodes a price that may arrive as a JSON number, a quoted
// numeric string, or garbage. Unparsable values decode to zero so that a
// malformed line never breaks the whole payload.
type FlexPrice struct {
	decimal.Decimal
}

func (p *FlexPrice) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		p.Decimal = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		p.Decimal = decimal.Zero
		return nil
	}
	p.Decimal = d
	return nil
}

// FlexInt decodes an integer that may arrive as a number or a numeric
// string. Absent, null, or unparsable values leave Present false.
type FlexInt struct {
	Value   int
	Present bool
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		f.Present = false
		return nil
	}
	raw = strings.Trim(raw, `"`)
	value, err := strconv.Atoi(raw)
	if err != nil {
		f.Present = false
		return nil
	}
	f.Value = value
	f.Present = true
	return nil
}

// Ptr returns the value as a nullable pointer.
func (f FlexInt) Ptr() *int {
	if !f.Present {
		return nil
	}
	v := f.Value
	return &v
}

// FlexString decodes a value that may arrive as a JSON string or a number
// into its string form. Null decodes to empty.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*f = ""
		return nil
	}
	*f = FlexString(strings.Trim(raw, `"`))
	return nil
}

func (f FlexString) String() string { return string(f) }
