package models

// Relational returns every model that lives in the SQL store, in migration
// order.
func Relational() []interface{} {
	return []interface{}{
		&User{},
		&Follow{},
		&Comment{},
		&Like{},
		&CommentLike{},
		&Notification{},
		&PrivateMessage{},
		&DeviceToken{},
	}
}
