package repositories

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository keeps the FCM registration tokens of each user.
type DeviceTokenRepository interface {
	UpsertToken(ctx context.Context, token *models.DeviceToken) error
	TokensFor(ctx context.Context, userIDs []uint) (map[uint][]string, error)
	DeleteTokens(ctx context.Context, tokens []string) error
}

type PostgresDeviceTokenRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceTokenRepository(db *gorm.DB) *PostgresDeviceTokenRepository {
	return &PostgresDeviceTokenRepository{db: db}
}

// UpsertToken registers token for its user. A token already known is moved
// over to the new owner, since devices change hands on re-login.
func (r *PostgresDeviceTokenRepository) UpsertToken(ctx context.Context, token *models.DeviceToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform"}),
	}).Create(token).Error
	return wrapGorm(err, "unable to save device token")
}

func (r *PostgresDeviceTokenRepository) TokensFor(ctx context.Context, userIDs []uint) (map[uint][]string, error) {
	result := make(map[uint][]string)
	if len(userIDs) == 0 {
		return result, nil
	}
	var rows []models.DeviceToken
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, wrapGorm(err, "unable to list device tokens")
	}
	for _, row := range rows {
		result[row.UserID] = append(result[row.UserID], row.Token)
	}
	return result, nil
}

// DeleteTokens drops tokens FCM reported as unregistered.
func (r *PostgresDeviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	return wrapGorm(r.db.WithContext(ctx).Where("token IN ?", tokens).Delete(&models.DeviceToken{}).Error,
		"unable to delete device tokens")
}
