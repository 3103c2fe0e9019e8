package models

import "time"

// NotificationKind names the action that produced a notification.
type NotificationKind string

const (
	KindNewPost              NotificationKind = "new_post"
	KindLikePost             NotificationKind = "like_post"
	KindLikeComment          NotificationKind = "like_comment"
	KindNewComment           NotificationKind = "new_comment"
	KindProfilePictureUpdate NotificationKind = "profile_picture_update"
)

// FollowerScoped reports whether the kind goes to every follower of the actor
// rather than to the single owner of the content acted on.
func (k NotificationKind) FollowerScoped() bool {
	return k == KindNewPost || k == KindProfilePictureUpdate
}

func (k NotificationKind) Valid() bool {
	switch k {
	case KindNewPost, KindLikePost, KindLikeComment, KindNewComment, KindProfilePictureUpdate:
		return true
	}
	return false
}

// Notification is a persisted notification. Only IsRead ever changes after
// creation.
type Notification struct {
	ID          uint             `json:"id" gorm:"primaryKey"`
	RecipientID uint             `json:"recipient_id" gorm:"index"`
	ActorID     uint             `json:"actor_id" gorm:"index"`
	Kind        NotificationKind `json:"kind" gorm:"size:30;index"`
	PostID      string           `json:"post_id,omitempty"`
	CommentID   *uint            `json:"comment_id,omitempty"`
	Message     string           `json:"message"`
	IsRead      bool             `json:"is_read" gorm:"default:false;index"`
	CreatedAt   time.Time        `json:"created_at" gorm:"index"`
}
