package wishlist

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/cart"
	"github.com/pawmart/storefront/internal/session"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/localstore"
	"github.com/pawmart/storefront/pkg/logger"
)

// Entry is one saved product. Entries are display snapshots like cart
// lines; RemoteID is set once the backend wishlist mirrors the entry.
type Entry struct {
	ProductID   string          `json:"product_id"`
	RemoteID    *int64          `json:"remote_id,omitempty"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	Description string          `json:"description,omitempty"`
}

type wishlistAPI interface {
	FetchWishlist(ctx context.Context) ([]backend.WishlistLine, error)
	AddWishlistItem(ctx context.Context, input backend.AddWishlistItemInput) (*backend.WishlistLine, error)
	RemoveWishlistProduct(ctx context.Context, productID int64) error
}

type identitySource interface {
	Current() session.Owner
}

type cartAdder interface {
	Add(ctx context.Context, snap cart.Snapshot, quantity int) cart.Outcome
}

// ServiceParams groups dependencies for the wishlist service. API may be
// nil for a purely local wishlist.
type ServiceParams struct {
	KV       localstore.KV
	API      wishlistAPI
	Identity identitySource
	Cart     cartAdder
	Logger   *logger.Logger
}

// Service manages the saved-for-later list. The local store is the source
// of truth; the backend wishlist is a best-effort mirror for signed-in
// shoppers.
type Service interface {
	List(ctx context.Context) ([]Entry, error)
	Add(ctx context.Context, entry Entry) error
	Remove(ctx context.Context, productID string) error
	Contains(ctx context.Context, productID string) bool
	// MoveToCart puts the saved product in the cart and, if the cart
	// accepts it, drops it from the wishlist.
	MoveToCart(ctx context.Context, productID string, quantity int) (cart.Outcome, error)
}

type service struct {
	kv       localstore.KV
	api      wishlistAPI
	identity identitySource
	cart     cartAdder
	logg     *logger.Logger
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.KV == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity source is required")
	}
	if params.Cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		kv:       params.KV,
		api:      params.API,
		identity: params.Identity,
		cart:     params.Cart,
		logg:     params.Logger,
	}, nil
}

// List returns the saved entries. For signed-in shoppers the remote
// wishlist is folded in first; a failed fetch falls back to the local copy.
func (s *service) List(ctx context.Context) ([]Entry, error) {
	owner := s.identity.Current()
	entries := s.load(ctx, owner)

	if owner.Authenticated() && s.api != nil {
		remote, err := s.api.FetchWishlist(ctx)
		if err != nil {
			s.logg.Error(s.logg.WithOwnerID(ctx, owner.UserID), "wishlist.fetch_failed", err)
			return entries, nil
		}
		entries = mergeRemote(entries, remote)
		s.save(ctx, owner, entries)
	}
	return entries, nil
}

// Add saves the product. Saving an already saved product is a noop.
func (s *service) Add(ctx context.Context, entry Entry) error {
	if entry.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	owner := s.identity.Current()
	entries := s.load(ctx, owner)
	if indexOf(entries, entry.ProductID) >= 0 {
		return nil
	}
	entries = append(entries, entry)
	s.save(ctx, owner, entries)

	if owner.Authenticated() && s.api != nil {
		if productID, err := strconv.ParseInt(entry.ProductID, 10, 64); err == nil {
			line, err := s.api.AddWishlistItem(ctx, backend.AddWishlistItemInput{
				ProductID:   productID,
				ProductName: entry.Name,
				Price:       entry.Price,
				ImageURL:    entry.ImageURL,
				Description: entry.Description,
			})
			if err != nil {
				s.logg.Error(s.logg.WithOwnerID(ctx, owner.UserID), "wishlist.remote_add_failed", err)
				return nil
			}
			if idx := indexOf(entries, entry.ProductID); idx >= 0 && line != nil {
				id := line.ID
				entries[idx].RemoteID = &id
				s.save(ctx, owner, entries)
			}
		}
	}
	return nil
}

// Remove drops the saved product. Removing an absent product is a noop.
func (s *service) Remove(ctx context.Context, productID string) error {
	owner := s.identity.Current()
	entries := s.load(ctx, owner)
	idx := indexOf(entries, productID)
	if idx < 0 {
		return nil
	}
	entries = append(entries[:idx], entries[idx+1:]...)
	s.save(ctx, owner, entries)

	if owner.Authenticated() && s.api != nil {
		if id, err := strconv.ParseInt(productID, 10, 64); err == nil {
			if err := s.api.RemoveWishlistProduct(ctx, id); err != nil {
				s.logg.Error(s.logg.WithOwnerID(ctx, owner.UserID), "wishlist.remote_remove_failed", err)
			}
		}
	}
	return nil
}

func (s *service) Contains(ctx context.Context, productID string) bool {
	entries := s.load(ctx, s.identity.Current())
	return indexOf(entries, productID) >= 0
}

func (s *service) MoveToCart(ctx context.Context, productID string, quantity int) (cart.Outcome, error) {
	entries := s.load(ctx, s.identity.Current())
	idx := indexOf(entries, productID)
	if idx < 0 {
		return cart.Outcome{}, pkgerrors.New(pkgerrors.CodeNotFound, "product is not on the wishlist")
	}
	entry := entries[idx]

	outcome := s.cart.Add(ctx, cart.Snapshot{
		ProductID:   entry.ProductID,
		Name:        entry.Name,
		UnitPrice:   entry.Price,
		ImageURL:    entry.ImageURL,
		Description: entry.Description,
	}, quantity)
	if !outcome.Accepted() {
		// A rejected add keeps the product saved.
		return outcome, nil
	}
	return outcome, s.Remove(ctx, productID)
}

func (s *service) load(ctx context.Context, owner session.Owner) []Entry {
	var entries []Entry
	if _, err := s.kv.Get(ctx, localstore.NamespaceWishlist, ownerKey(owner), &entries); err != nil {
		s.logg.Error(ctx, "wishlist.load_failed", err)
	}
	return entries
}

func (s *service) save(ctx context.Context, owner session.Owner, entries []Entry) {
	if err := s.kv.Put(ctx, localstore.NamespaceWishlist, ownerKey(owner), entries); err != nil {
		s.logg.Error(ctx, "wishlist.save_failed", err)
	}
}

// ownerKey scopes persisted wishlists per account so lists never bleed
// between shoppers sharing a profile.
func ownerKey(owner session.Owner) string {
	if !owner.Authenticated() {
		return "anonymous"
	}
	return "user:" + owner.UserID
}

func indexOf(entries []Entry, productID string) int {
	for i, entry := range entries {
		if entry.ProductID == productID {
			return i
		}
	}
	return -1
}

// mergeRemote folds remote lines into the local list. Local entries win on
// display fields; remote-only products are appended.
func mergeRemote(local []Entry, remote []backend.WishlistLine) []Entry {
	out := make([]Entry, len(local))
	copy(out, local)
	for _, line := range remote {
		if !line.ProductID.Present {
			continue
		}
		productID := strconv.Itoa(line.ProductID.Value)
		id := line.ID
		if idx := indexOf(out, productID); idx >= 0 {
			if out[idx].RemoteID == nil {
				out[idx].RemoteID = &id
			}
			continue
		}
		out = append(out, Entry{
			ProductID:   productID,
			RemoteID:    &id,
			Name:        line.ProductName,
			Price:       line.Price.Decimal,
			ImageURL:    line.ImageURL,
			Description: line.Description,
		})
	}
	return out
}
