package reviews

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pawmart/storefront/internal/backend"
	"github.com/pawmart/storefront/internal/session"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/localstore"
	"github.com/pawmart/storefront/pkg/logger"
)

// Review is one shopper's verdict on a product. The local store is the
// source of truth so a shopper's own review shows immediately; the backend
// moderation queue is a best-effort mirror.
type Review struct {
	ProductID  string    `json:"product_id"`
	OwnerID    string    `json:"owner_id"`
	AuthorName string    `json:"author_name"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubmitInput is the payload for posting a review.
type SubmitInput struct {
	ProductID string `json:"product_id" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"max=2000"`
}

// Summary aggregates a product's reviews for display.
type Summary struct {
	ProductID     string          `json:"product_id"`
	Count         int             `json:"count"`
	AverageRating decimal.Decimal `json:"average_rating"`
}

type purchaseChecker interface {
	HasPurchased(ctx context.Context, productID string) bool
}

type identitySource interface {
	Current() session.Owner
}

type reviewAPI interface {
	FetchComments(ctx context.Context, status string) ([]backend.Comment, error)
	CreateComment(ctx context.Context, input backend.CreateCommentInput) (*backend.Comment, error)
}

// ServiceParams groups dependencies for the review service. API may be
// nil for a purely local review log.
type ServiceParams struct {
	KV        localstore.KV
	API       reviewAPI
	Purchases purchaseChecker
	Identity  identitySource
	Logger    *logger.Logger
}

// Service manages product reviews. Only shoppers with a delivered order
// containing the product may review it, and each shopper holds at most one
// review per product.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*Review, error)
	List(ctx context.Context, productID string) ([]Review, error)
	Summarize(ctx context.Context, productID string) (Summary, error)
	CanReview(ctx context.Context, productID string) bool
}

type service struct {
	kv        localstore.KV
	api       reviewAPI
	purchases purchaseChecker
	identity  identitySource
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds a review service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.KV == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "local store is required")
	}
	if params.Purchases == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase checker is required")
	}
	if params.Identity == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "identity source is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	return &service{
		kv:        params.KV,
		api:       params.API,
		purchases: params.Purchases,
		identity:  params.Identity,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*Review, error) {
	if input.ProductID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if !s.purchases.HasPurchased(ctx, input.ProductID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only delivered purchases can be reviewed")
	}

	owner := s.identity.Current()
	review := Review{
		ProductID:  input.ProductID,
		OwnerID:    owner.UserID,
		AuthorName: authorName(owner),
		Rating:     input.Rating,
		Comment:    input.Comment,
		CreatedAt:  s.now().UTC(),
	}

	all := s.load(ctx, input.ProductID)
	replaced := false
	for i := range all {
		if all[i].OwnerID == owner.UserID {
			all[i] = review
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, review)
	}
	s.save(ctx, input.ProductID, all)
	s.mirror(ctx, owner, review)
	return &review, nil
}

// mirror pushes the review into the backend moderation queue. Failures are
// logged and swallowed; the local review already exists.
func (s *service) mirror(ctx context.Context, owner session.Owner, review Review) {
	if s.api == nil || !owner.Authenticated() {
		return
	}
	productID, err := strconv.ParseInt(review.ProductID, 10, 64)
	if err != nil {
		return
	}
	_, err = s.api.CreateComment(ctx, backend.CreateCommentInput{
		ProductID: productID,
		UserID:    owner.UserID,
		UserName:  review.AuthorName,
		UserEmail: owner.Email,
		Rating:    review.Rating,
		Comment:   review.Comment,
	})
	if err != nil {
		s.logg.Warn(s.logg.WithProductID(ctx, review.ProductID), "reviews.mirror_failed")
	}
}

// List returns the product's reviews, folding in approved comments from
// the backend when it is reachable. The shopper's own local review wins
// over its mirrored copy.
func (s *service) List(ctx context.Context, productID string) ([]Review, error) {
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	all := s.load(ctx, productID)

	if s.api != nil {
		comments, err := s.api.FetchComments(ctx, backend.CommentStatusApproved)
		if err != nil {
			s.logg.Warn(s.logg.WithProductID(ctx, productID), "reviews.remote_unavailable")
		} else {
			all = mergeComments(all, comments, productID)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

func mergeComments(local []Review, comments []backend.Comment, productID string) []Review {
	seen := map[string]bool{}
	for _, review := range local {
		if review.OwnerID != "" {
			seen[review.OwnerID] = true
		}
	}
	for _, comment := range comments {
		if comment.ProductID.String() != productID {
			continue
		}
		if ownerID := comment.UserID.String(); ownerID != "" && seen[ownerID] {
			continue
		}
		rating := 5
		if comment.Rating.Present {
			rating = comment.Rating.Value
		}
		createdAt, _ := time.Parse(time.RFC3339, comment.CreatedAt)
		local = append(local, Review{
			ProductID:  productID,
			OwnerID:    comment.UserID.String(),
			AuthorName: comment.UserName,
			Rating:     rating,
			Comment:    comment.Comment,
			CreatedAt:  createdAt,
		})
	}
	return local
}

// Summarize aggregates the same merged set List shows, so the count and
// average never disagree with the visible reviews.
func (s *service) Summarize(ctx context.Context, productID string) (Summary, error) {
	all, err := s.List(ctx, productID)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{ProductID: productID, Count: len(all), AverageRating: decimal.Zero}
	if len(all) == 0 {
		return summary, nil
	}
	total := 0
	for _, review := range all {
		total += review.Rating
	}
	summary.AverageRating = decimal.NewFromInt(int64(total)).
		Div(decimal.NewFromInt(int64(len(all)))).
		Round(1)
	return summary, nil
}

func (s *service) CanReview(ctx context.Context, productID string) bool {
	return productID != "" && s.purchases.HasPurchased(ctx, productID)
}

func (s *service) load(ctx context.Context, productID string) []Review {
	var all []Review
	if _, err := s.kv.Get(ctx, localstore.NamespaceReviews, "product:"+productID, &all); err != nil {
		s.logg.Error(ctx, "reviews.load_failed", err)
	}
	return all
}

func (s *service) save(ctx context.Context, productID string, all []Review) {
	if err := s.kv.Put(ctx, localstore.NamespaceReviews, "product:"+productID, all); err != nil {
		s.logg.Error(ctx, "reviews.save_failed", err)
	}
}

func authorName(owner session.Owner) string {
	if owner.Name != "" {
		return owner.Name
	}
	if owner.Authenticated() {
		return "Shopper " + owner.UserID
	}
	return "Guest"
}
