package repositories

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error)
	IncrementPostsCount(ctx context.Context, id uint) error
	DecrementPostsCount(ctx context.Context, id uint) error
}

// PostgresUserRepository implements UserRepository on top of gorm. Despite the
// name it runs on any gorm dialect the process is configured with.
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	return wrapGorm(r.db.WithContext(ctx).Create(user).Error, "unable to create user")
}

func (r *PostgresUserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrapGorm(err, "unable to look up user by id")
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, wrapGorm(err, "unable to look up user by email")
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, wrapGorm(err, "unable to look up user by firebase uid")
	}
	return &user, nil
}

// GetUsersByIDs loads several users at once, keyed by id. Missing ids are
// simply absent from the map.
func (r *PostgresUserRepository) GetUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	result := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, wrapGorm(err, "unable to load users")
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *PostgresUserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	return wrapGorm(r.db.WithContext(ctx).Save(user).Error, "unable to update user")
}

// SearchUsers returns users whose username starts with prefix, ignoring case.
func (r *PostgresUserRepository) SearchUsers(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE LOWER(?)", prefix+"%").
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, wrapGorm(err, "unable to search users")
	}
	return users, nil
}

func (r *PostgresUserRepository) IncrementPostsCount(ctx context.Context, id uint) error {
	return r.adjust(ctx, id, "posts_count", 1)
}

func (r *PostgresUserRepository) DecrementPostsCount(ctx context.Context, id uint) error {
	return r.adjust(ctx, id, "posts_count", -1)
}

func (r *PostgresUserRepository) adjust(ctx context.Context, id uint, column string, delta int) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update(column, counterExpr(column, delta)).Error
	return wrapGorm(err, "unable to update "+column)
}
