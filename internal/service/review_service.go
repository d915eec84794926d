package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/rs/zerolog"
)

type ReviewRequest struct {
	Rating  int
	Comment string
}

func (r *ReviewRequest) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return errs.InvalidArgumentf("rating must be between 1 and 5, got %d", r.Rating)
	}
	if len(r.Comment) > 2000 {
		return errs.InvalidArgumentf("comment too long")
	}
	return nil
}

type IReviewService interface {
	Create(ctx context.Context, principal Principal, productID uint, req ReviewRequest) (*model.Review, error)
	Update(ctx context.Context, principal Principal, reviewID uint, req ReviewRequest) (*model.Review, error)
	Delete(ctx context.Context, principal Principal, reviewID uint) error
	Reply(ctx context.Context, principal Principal, reviewID uint, reply string) (*model.Review, error)
	ListByProduct(ctx context.Context, productID uint) ([]model.Review, error)
}

// ReviewService 評論寫入與評分重算在同一個 transaction
type ReviewService struct {
	store  db.UnifiedDB
	rating IRatingAggregator
	logger zerolog.Logger
	now    func() time.Time
}

func NewReviewService(store db.UnifiedDB, rating IRatingAggregator, logger zerolog.Logger) *ReviewService {
	if store == nil {
		panic("store cannot be nil")
	}
	if rating == nil {
		panic("rating aggregator cannot be nil")
	}
	return &ReviewService{
		store:  store,
		rating: rating,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create 每個 user 對同一商品只能有一則評論
func (s *ReviewService) Create(ctx context.Context, principal Principal, productID uint, req ReviewRequest) (*model.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	review := &model.Review{
		UserID:    principal.UserID,
		ProductID: productID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	var summary RatingSummary
	err := s.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		product, err := tx.GetProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if !product.IsActive {
			return errs.NewProductUnavailable(productID, product.Name)
		}

		_, err = tx.GetReviewByUserAndProduct(ctx, principal.UserID, productID)
		if err == nil {
			return errs.ErrDuplicateReview
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}

		if err := tx.CreateReview(ctx, review); err != nil {
			return err
		}
		summary, err = s.rating.WithTx(tx).Recompute(ctx, productID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logSummary(productID, summary, "review created")
	return review, nil
}

func (s *ReviewService) Update(ctx context.Context, principal Principal, reviewID uint, req ReviewRequest) (*model.Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		review  *model.Review
		summary RatingSummary
	)
	err := s.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		var err error
		review, err = tx.GetReviewByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.UserID != principal.UserID {
			return errs.Unauthorizedf("review %d belongs to another user", reviewID)
		}

		review.Rating = req.Rating
		review.Comment = req.Comment
		if err := tx.UpdateReview(ctx, review); err != nil {
			return err
		}
		summary, err = s.rating.WithTx(tx).Recompute(ctx, review.ProductID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logSummary(review.ProductID, summary, "review updated")
	return review, nil
}

// Delete 本人或管理員, 刪除後同一個 user 可以重新評論
func (s *ReviewService) Delete(ctx context.Context, principal Principal, reviewID uint) error {
	var (
		productID uint
		summary   RatingSummary
	)
	err := s.store.ExecTx(ctx, func(tx db.UnifiedDB) error {
		review, err := tx.GetReviewByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if !principal.canAccess(review.UserID) {
			return errs.Unauthorizedf("review %d belongs to another user", reviewID)
		}
		productID = review.ProductID

		if err := tx.DeleteReview(ctx, reviewID); err != nil {
			return err
		}
		summary, err = s.rating.WithTx(tx).Recompute(ctx, productID)
		return err
	})
	if err != nil {
		return err
	}

	s.logSummary(productID, summary, "review deleted")
	return nil
}

// Reply 管理員回覆, 不影響評分
func (s *ReviewService) Reply(ctx context.Context, principal Principal, reviewID uint, reply string) (*model.Review, error) {
	if err := requireAdmin(principal, "reply to review"); err != nil {
		return nil, err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, errs.InvalidArgumentf("reply cannot be empty")
	}

	review, err := s.store.GetReviewByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	repliedBy := principal.UserID
	review.Reply = reply
	review.RepliedBy = &repliedBy
	review.RepliedAt = &now
	if err := s.store.UpdateReview(ctx, review); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID uint) ([]model.Review, error) {
	if _, err := s.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListReviewsByProduct(ctx, productID)
}

func (s *ReviewService) logSummary(productID uint, summary RatingSummary, msg string) {
	s.logger.Info().
		Uint("product_id", productID).
		Str("rating_average", summary.Average.StringFixed(1)).
		Int("rating_count", summary.Count).
		Msg(msg)
}
