package repositories

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository defines the interface for follow data operations
type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *models.Follow) error
	DeleteFollow(ctx context.Context, followerID, followingID uint) error
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	GetFollowers(ctx context.Context, userID uint) ([]models.User, error)
	GetFollowing(ctx context.Context, userID uint) ([]models.User, error)
	GetFollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowingSet(ctx context.Context, followerID uint, candidateIDs []uint) (map[uint]bool, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

// CreateFollow stores the edge and bumps both users' counters in one
// transaction. A duplicate edge yields ErrAlreadyExists.
func (r *PostgresFollowRepository) CreateFollow(ctx context.Context, follow *models.Follow) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(follow).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", follow.FollowerID).
			Update("following_count", counterExpr("following_count", 1)).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", follow.FollowingID).
			Update("followers_count", counterExpr("followers_count", 1)).Error
	})
	return wrapGorm(err, "unable to create follow")
}

// DeleteFollow removes the edge and decrements the counters. A missing edge
// yields ErrNotFound.
func (r *PostgresFollowRepository) DeleteFollow(ctx context.Context, followerID, followingID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&models.User{}).Where("id = ?", followerID).
			Update("following_count", counterExpr("following_count", -1)).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", followingID).
			Update("followers_count", counterExpr("followers_count", -1)).Error
	})
	return wrapGorm(err, "unable to delete follow")
}

func (r *PostgresFollowRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, wrapGorm(err, "unable to check follow")
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowers(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	db := r.db.WithContext(ctx)
	err := db.Where("id IN (?)",
		db.Model(&models.Follow{}).Select("follower_id").Where("following_id = ?", userID),
	).Order("username ASC").Find(&users).Error
	return users, wrapGorm(err, "unable to list followers")
}

func (r *PostgresFollowRepository) GetFollowing(ctx context.Context, userID uint) ([]models.User, error) {
	var users []models.User
	db := r.db.WithContext(ctx)
	err := db.Where("id IN (?)",
		db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", userID),
	).Order("username ASC").Find(&users).Error
	return users, wrapGorm(err, "unable to list followings")
}

// GetFollowerIDs is the fan-out recipient snapshot for userID.
func (r *PostgresFollowRepository) GetFollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Order("follower_id ASC").
		Pluck("follower_id", &ids).Error
	return ids, wrapGorm(err, "unable to list follower ids")
}

func (r *PostgresFollowRepository) GetFollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, wrapGorm(err, "unable to list following ids")
}

// FollowingSet reports which of candidateIDs followerID follows.
func (r *PostgresFollowRepository) FollowingSet(ctx context.Context, followerID uint, candidateIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(candidateIDs))
	if len(candidateIDs) == 0 {
		return result, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id IN ?", followerID, candidateIDs).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, wrapGorm(err, "unable to check followings")
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}
