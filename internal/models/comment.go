package models

import "time"

// Comment represents a comment on a post
type Comment struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PostID     string    `json:"post_id" gorm:"index"` // MongoDB ObjectID as hex string
	UserID     uint      `json:"user_id" gorm:"index"`
	Content    string    `json:"content"`
	LikesCount int64     `json:"likes_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=500,clean"`
}

// CommentView is a comment enriched for the requesting user.
type CommentView struct {
	Comment
	Author      UserCompact `json:"author"`
	IsLikedByMe bool        `json:"is_liked_by_me"`
}
