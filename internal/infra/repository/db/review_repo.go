package db

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/domain/errs"
	"github.com/RoyceAzure/lab/storefront/internal/domain/model"
)

type ReviewRepo struct {
	db *DbDao
}

func NewReviewRepo(db *DbDao) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// CreateReview unique index (user_id, product_id) 是最後一道防線
func (s *ReviewRepo) CreateReview(ctx context.Context, review *model.Review) error {
	err := s.db.WithContext(ctx).Create(review).Error
	if _, dup := uniqueViolation(err); dup {
		return errs.ErrDuplicateReview
	}
	return err
}

func (s *ReviewRepo) GetReviewByID(ctx context.Context, reviewID uint) (*model.Review, error) {
	var review model.Review
	if err := s.db.WithContext(ctx).First(&review, "review_id = ?", reviewID).Error; err != nil {
		return nil, notFound(err, "review", reviewID)
	}
	return &review, nil
}

func (s *ReviewRepo) GetReviewByUserAndProduct(ctx context.Context, userID int, productID uint) (*model.Review, error) {
	var review model.Review
	err := s.db.WithContext(ctx).First(&review, "user_id = ? AND product_id = ?", userID, productID).Error
	if err != nil {
		return nil, notFound(err, "review", productID)
	}
	return &review, nil
}

func (s *ReviewRepo) ListReviewsByProduct(ctx context.Context, productID uint) ([]model.Review, error) {
	var reviews []model.Review
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}

func (s *ReviewRepo) ListRatingsByProduct(ctx context.Context, productID uint) ([]int, error) {
	var ratings []int
	err := s.db.WithContext(ctx).Model(&model.Review{}).
		Where("product_id = ?", productID).
		Pluck("rating", &ratings).Error
	return ratings, err
}

func (s *ReviewRepo) UpdateReview(ctx context.Context, review *model.Review) error {
	res := s.db.WithContext(ctx).Model(&model.Review{}).
		Where("review_id = ?", review.ReviewID).
		Updates(map[string]any{
			"rating":     review.Rating,
			"comment":    review.Comment,
			"reply":      review.Reply,
			"replied_by": review.RepliedBy,
			"replied_at": review.RepliedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("review", review.ReviewID)
	}
	return nil
}

// DeleteReview 硬刪除, 讓同一 user 之後可以重新評論
func (s *ReviewRepo) DeleteReview(ctx context.Context, reviewID uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Review{}, "review_id = ?", reviewID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NewNotFound("review", reviewID)
	}
	return nil
}
