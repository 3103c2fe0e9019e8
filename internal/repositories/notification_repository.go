package repositories

import (
	"context"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotifications(ctx context.Context, notifications []models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	GetByRecipientID(ctx context.Context, recipientID uint, page, limit int, unreadOnly bool) ([]models.Notification, int64, error)
	GetGrouped(ctx context.Context, recipientID uint) (today, yesterday, thisWeek, older []models.Notification, err error)
	GetUnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkAsRead(ctx context.Context, notificationID uint) error
	MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

// CreateNotifications stores the whole batch in one transaction, assigning IDs
// in place. On error nothing is stored.
func (r *postgresNotificationRepository) CreateNotifications(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range notifications {
			n := &notifications[i]
			n.ID = 0
			n.IsRead = false
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			if err := tx.Create(n).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return wrapGorm(err, "unable to save notifications")
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, wrapGorm(err, "unable to look up notification")
	}
	return &n, nil
}

// GetByRecipientID returns one page of notifications, newest first, plus the
// total matching count. Ties on created_at are broken by id so paging is
// stable.
func (r *postgresNotificationRepository) GetByRecipientID(ctx context.Context, recipientID uint, page, limit int, unreadOnly bool) ([]models.Notification, int64, error) {
	wrapMsg := "unable to list notifications"
	var notifications []models.Notification
	var total int64

	query := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
		if unreadOnly {
			q = q.Where("is_read = ?", false)
		}
		return q
	}

	if err := query().Count(&total).Error; err != nil {
		return nil, 0, wrapGorm(err, wrapMsg)
	}

	offset := (page - 1) * limit
	err := query().
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, 0, wrapGorm(err, wrapMsg)
	}

	return notifications, total, nil
}

func (r *postgresNotificationRepository) GetGrouped(ctx context.Context, recipientID uint) (today, yesterday, thisWeek, older []models.Notification, retErr error) {
	wrapMsg := "unable to list grouped notifications"
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)
	db := r.db.WithContext(ctx)

	if err := db.Where("recipient_id = ? AND created_at >= ?", recipientID, todayStart).
		Order("created_at DESC").Find(&today).Error; err != nil {
		return nil, nil, nil, nil, wrapGorm(err, wrapMsg)
	}

	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, yesterdayStart, todayStart).
		Order("created_at DESC").Find(&yesterday).Error; err != nil {
		return nil, nil, nil, nil, wrapGorm(err, wrapMsg)
	}

	// This week, excluding today and yesterday
	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, weekStart, yesterdayStart).
		Order("created_at DESC").Find(&thisWeek).Error; err != nil {
		return nil, nil, nil, nil, wrapGorm(err, wrapMsg)
	}

	if err := db.Where("recipient_id = ? AND created_at < ?", recipientID, weekStart).
		Order("created_at DESC").Limit(50).Find(&older).Error; err != nil {
		return nil, nil, nil, nil, wrapGorm(err, wrapMsg)
	}

	return today, yesterday, thisWeek, older, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, wrapGorm(err, "unable to count unread notifications")
}

// MarkAsRead flips is_read. Marking an already read notification is a no-op;
// an unknown id yields ErrNotFound.
func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID uint) error {
	wrapMsg := "unable to mark notification as read"
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", notificationID).
		Update("is_read", true)
	if res.Error != nil {
		return wrapGorm(res.Error, wrapMsg)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", notificationID).Count(&count).Error; err != nil {
			return wrapGorm(err, wrapMsg)
		}
		if count == 0 {
			return wrapGorm(gorm.ErrRecordNotFound, wrapMsg)
		}
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, wrapGorm(res.Error, "unable to mark notifications as read")
}
