package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.Relational()...))
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, names ...string) []models.User {
	t.Helper()
	repo := NewPostgresUserRepository(db)
	users := make([]models.User, 0, len(names))
	for _, name := range names {
		u := models.User{Username: name, Email: fmt.Sprintf("%s@example.com", name), Password: "x"}
		require.NoError(t, repo.CreateUser(context.Background(), &u))
		users = append(users, u)
	}
	return users
}
