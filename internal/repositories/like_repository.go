package repositories

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// LikeRepository defines the interface for like data operations
type LikeRepository interface {
	CreateLike(ctx context.Context, like *models.Like) error
	DeleteLike(ctx context.Context, postID string, userID uint) error
	HasUserLikedPost(ctx context.Context, postID string, userID uint) (bool, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []string) (map[string]bool, error)
	GetLikesCountByPostID(ctx context.Context, postID string) (int64, error)
	DeleteLikesByPostID(ctx context.Context, postID string) error
}

// PostgresLikeRepository implements LikeRepository for PostgreSQL
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// CreateLike stores a like. Liking twice yields ErrAlreadyExists.
func (r *PostgresLikeRepository) CreateLike(ctx context.Context, like *models.Like) error {
	return wrapGorm(r.db.WithContext(ctx).Create(like).Error, "unable to save like")
}

// DeleteLike removes a like; ErrNotFound when there was none.
func (r *PostgresLikeRepository) DeleteLike(ctx context.Context, postID string, userID uint) error {
	wrapMsg := "unable to delete like"
	res := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Like{})
	if res.Error != nil {
		return wrapGorm(res.Error, wrapMsg)
	}
	if res.RowsAffected == 0 {
		return wrapGorm(gorm.ErrRecordNotFound, wrapMsg)
	}
	return nil
}

// HasUserLikedPost checks if a user has liked a specific post
func (r *PostgresLikeRepository) HasUserLikedPost(ctx context.Context, postID string, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Count(&count).Error
	if err != nil {
		return false, wrapGorm(err, "unable to check like")
	}
	return count > 0, nil
}

// LikedPostIDs reports which of postIDs userID has liked.
func (r *PostgresLikeRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var liked []string
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, wrapGorm(err, "unable to check likes")
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}

func (r *PostgresLikeRepository) GetLikesCountByPostID(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, wrapGorm(err, "unable to count likes")
}

func (r *PostgresLikeRepository) DeleteLikesByPostID(ctx context.Context, postID string) error {
	return wrapGorm(r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Like{}).Error,
		"unable to delete post likes")
}
