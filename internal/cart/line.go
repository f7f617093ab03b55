package cart

import (
	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/session"
)

// Line is one row in the cart. Display fields are a snapshot taken when the
// product was added, not a live reference: a later catalog price change
// does not touch existing lines.
type Line struct {
	ProductID     string          `json:"product_id"`
	BackendLineID *int64          `json:"backend_line_id,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	ImageURL      string          `json:"image_url,omitempty"`
	Description   string          `json:"description,omitempty"`
	// MaxQuantity is the stock ceiling. nil means unknown/unbounded, zero
	// means out of stock.
	MaxQuantity *int `json:"max_quantity,omitempty"`
	// Surrogate marks lines whose product had no identity; they exist only
	// locally and are never mirrored to the remote cart.
	Surrogate bool `json:"surrogate,omitempty"`
}

// Subtotal returns unit price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) clone() Line {
	out := l
	if l.BackendLineID != nil {
		id := *l.BackendLineID
		out.BackendLineID = &id
	}
	if l.MaxQuantity != nil {
		max := *l.MaxQuantity
		out.MaxQuantity = &max
	}
	return out
}

// Session is the active cart: insertion-ordered lines bound to an owner
// identity.
type Session struct {
	Owner session.Owner `json:"owner"`
	Lines []Line        `json:"lines"`
}

func (s Session) clone() Session {
	out := Session{Owner: s.Owner}
	if len(s.Lines) > 0 {
		out.Lines = make([]Line, len(s.Lines))
		for i, line := range s.Lines {
			out.Lines[i] = line.clone()
		}
	}
	return out
}

func (s Session) indexOf(productID string) int {
	for i, line := range s.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// TotalQuantity sums the quantities across all lines.
func (s Session) TotalQuantity() int {
	total := 0
	for _, line := range s.Lines {
		total += line.Quantity
	}
	return total
}

// Subtotal sums the line subtotals.
func (s Session) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Snapshot is the product data a caller supplies when adding to the cart.
// Stock carries the ceiling semantics: nil when the product exposes no
// stock information, zero when it is explicitly sold out.
type Snapshot struct {
	ProductID   string
	Name        string
	UnitPrice   decimal.Decimal
	ImageURL    string
	Description string
	Stock       *int
	Surrogate   bool
}
