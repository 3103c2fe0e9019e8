package repositories

import (
	"context"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowRepository_FollowUnfollow(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresFollowRepository(db)
	users := NewPostgresUserRepository(db)
	ctx := context.Background()
	u := seedUsers(t, db, "ann", "ben", "cat")
	ann, ben, cat := u[0], u[1], u[2]

	require.NoError(t, repo.CreateFollow(ctx, &models.Follow{FollowerID: ben.ID, FollowingID: ann.ID}))
	require.NoError(t, repo.CreateFollow(ctx, &models.Follow{FollowerID: cat.ID, FollowingID: ann.ID}))

	err := repo.CreateFollow(ctx, &models.Follow{FollowerID: ben.ID, FollowingID: ann.ID})
	assert.True(t, errors.Is(err, ErrAlreadyExists))

	ids, err := repo.GetFollowerIDs(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{ben.ID, cat.ID}, ids)

	got, err := users.GetUserByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.FollowersCount)

	ok, err := repo.IsFollowing(ctx, ben.ID, ann.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	set, err := repo.FollowingSet(ctx, ben.ID, []uint{ann.ID, cat.ID})
	require.NoError(t, err)
	assert.True(t, set[ann.ID])
	assert.False(t, set[cat.ID])

	require.NoError(t, repo.DeleteFollow(ctx, ben.ID, ann.ID))
	err = repo.DeleteFollow(ctx, ben.ID, ann.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	got, err = users.GetUserByID(ctx, ben.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.FollowingCount)

	followers, err := repo.GetFollowers(ctx, ann.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, "cat", followers[0].Username)

	following, err := repo.GetFollowing(ctx, cat.ID)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "ann", following[0].Username)
}
