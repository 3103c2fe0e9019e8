package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Username       string    `json:"username" gorm:"size:50;uniqueIndex"`
	Email          string    `json:"email" gorm:"uniqueIndex"` // Ensure email is unique across all users
	Password       string    `json:"-"`                        // Store hashed password, ignore for JSON serialization
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profile_picture"`
	FirebaseUID    *string   `json:"firebase_uid,omitempty" gorm:"uniqueIndex"` // Link to Firebase User UID
	FollowersCount int64     `json:"followers_count"`
	FollowingCount int64     `json:"following_count"`
	PostsCount     int64     `json:"posts_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserCompact is the author/actor shape embedded in feeds and notifications.
type UserCompact struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

// UserProfile is a user as seen by another (authenticated) user.
type UserProfile struct {
	User
	IsFollowing bool `json:"is_following"`
}

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateUserRequest struct {
	Username string `json:"username,omitempty" validate:"omitempty,min=3,max=50,alphanum"`
	Bio      string `json:"bio,omitempty" validate:"omitempty,max=300,clean"`
}

type UpdateProfilePictureRequest struct {
	ProfilePicture string `json:"profile_picture" validate:"required,url"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
