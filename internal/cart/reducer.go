package cart

import (
	"fmt"

	pkgerrors "github.com/pawmart/storefront/pkg/errors"
)

// EventKind classifies the result of applying a mutation.
type EventKind string

const (
	EventNone     EventKind = "none"
	EventAdded    EventKind = "added"
	EventUpdated  EventKind = "updated"
	EventRemoved  EventKind = "removed"
	EventCleared  EventKind = "cleared"
	EventRejected EventKind = "rejected"
)

// Outcome describes what a mutation did. Rejections carry the coded error;
// accepted mutations carry the affected line after the change.
type Outcome struct {
	Kind    EventKind
	Message string
	Err     *pkgerrors.Error
	Line    *Line
}

func (o Outcome) Accepted() bool {
	switch o.Kind {
	case EventAdded, EventUpdated, EventRemoved, EventCleared:
		return true
	}
	return false
}

// apply* functions are the pure core of the cart: they take a session,
// return the next session and an outcome, and never touch storage or the
// network. Rejections leave the input session untouched.

func applyAdd(s Session, snap Snapshot, qty int) (Session, Outcome) {
	if qty <= 0 {
		qty = 1
	}

	idx := s.indexOf(snap.ProductID)
	if idx < 0 {
		ceiling := copyInt(snap.Stock)
		if ceiling != nil && *ceiling <= 0 {
			return s, rejectOutOfStock(snap.Name)
		}
		if ceiling != nil && qty > *ceiling {
			return s, rejectCeiling(snap.Name, *ceiling)
		}
		next := s.clone()
		line := Line{
			ProductID:   snap.ProductID,
			Name:        snap.Name,
			UnitPrice:   snap.UnitPrice,
			Quantity:    qty,
			ImageURL:    snap.ImageURL,
			Description: snap.Description,
			MaxQuantity: ceiling,
			Surrogate:   snap.Surrogate,
		}
		next.Lines = append(next.Lines, line)
		added := line.clone()
		return next, Outcome{
			Kind:    EventAdded,
			Message: fmt.Sprintf("%s added to cart", snap.Name),
			Line:    &added,
		}
	}

	current := s.Lines[idx]

	// The effective ceiling prefers fresh stock data; without it the
	// previously known ceiling stands. A known ceiling never regresses to
	// unknown.
	effective := copyInt(snap.Stock)
	if effective == nil {
		effective = copyInt(current.MaxQuantity)
	}
	if effective != nil && *effective <= 0 {
		return s, rejectOutOfStock(current.Name)
	}
	if effective != nil && current.Quantity+qty > *effective {
		return s, rejectCeiling(current.Name, *effective)
	}

	next := s.clone()
	line := &next.Lines[idx]
	line.Quantity += qty
	line.MaxQuantity = effective
	updated := line.clone()
	return next, Outcome{
		Kind:    EventUpdated,
		Message: fmt.Sprintf("%s quantity updated to %d", line.Name, line.Quantity),
		Line:    &updated,
	}
}

func applySetQuantity(s Session, productID string, qty int) (Session, Outcome) {
	if qty <= 0 {
		return applyRemove(s, productID)
	}

	idx := s.indexOf(productID)
	if idx < 0 {
		return s, Outcome{Kind: EventNone}
	}

	current := s.Lines[idx]
	if current.MaxQuantity != nil && qty > *current.MaxQuantity {
		return s, rejectCeiling(current.Name, *current.MaxQuantity)
	}
	if qty == current.Quantity {
		return s, Outcome{Kind: EventNone}
	}

	next := s.clone()
	line := &next.Lines[idx]
	line.Quantity = qty
	updated := line.clone()
	return next, Outcome{
		Kind:    EventUpdated,
		Message: fmt.Sprintf("%s quantity updated to %d", line.Name, qty),
		Line:    &updated,
	}
}

func applyRemove(s Session, productID string) (Session, Outcome) {
	idx := s.indexOf(productID)
	if idx < 0 {
		return s, Outcome{Kind: EventNone}
	}

	removed := s.Lines[idx].clone()
	next := s.clone()
	next.Lines = append(next.Lines[:idx], next.Lines[idx+1:]...)
	return next, Outcome{
		Kind:    EventRemoved,
		Message: fmt.Sprintf("%s removed from cart", removed.Name),
		Line:    &removed,
	}
}

func applyClear(s Session) (Session, Outcome) {
	next := Session{Owner: s.Owner}
	return next, Outcome{Kind: EventCleared, Message: "cart cleared"}
}

func rejectOutOfStock(name string) Outcome {
	err := pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("%s is out of stock", name))
	return Outcome{Kind: EventRejected, Message: err.Message(), Err: err}
}

func rejectCeiling(name string, available int) Outcome {
	err := pkgerrors.New(pkgerrors.CodeStockLimit, fmt.Sprintf("only %d of %s available", available, name)).
		WithDetails(map[string]any{"available_stock": available})
	return Outcome{Kind: EventRejected, Message: err.Message(), Err: err}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
