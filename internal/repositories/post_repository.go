package repositories

import (
	"context"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPostsByUserID(ctx context.Context, userID uint, skip, limit int64) ([]models.Post, error)
	GetPostsByUserIDs(ctx context.Context, userIDs []uint, skip, limit int64) ([]models.Post, error)
	GetRecentPosts(ctx context.Context, excludeUserID uint, skip, limit int64) ([]models.Post, error)
	UpdatePostContent(ctx context.Context, id, content string) error
	DeletePost(ctx context.Context, id string) error
	IncrementLikesCount(ctx context.Context, postID string) error
	DecrementLikesCount(ctx context.Context, postID string) error
	IncrementCommentsCount(ctx context.Context, postID string) error
	DecrementCommentsCount(ctx context.Context, postID string) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("posts")}
}

// postObjectID parses a hex id. A malformed id can never match a post, so it
// is reported as ErrNotFound.
func postObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(ErrNotFound, "invalid post id %q", id)
	}
	return objID, nil
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	now := time.Now()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = now
	post.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, post)
	return errors.Wrap(err, "unable to insert post")
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := postObjectID(id)
	if err != nil {
		return nil, err
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrap(ErrNotFound, "post not found")
		}
		return nil, errors.Wrap(err, "unable to load post")
	}
	return &post, nil
}

func (r *MongoPostRepository) find(ctx context.Context, filter interface{}, skip, limit int64) ([]models.Post, error) {
	posts := []models.Post{}
	findOptions := options.Find().
		SetSkip(skip).
		SetLimit(limit).
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "unable to query posts")
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, errors.Wrap(err, "unable to decode posts")
	}
	return posts, nil
}

// GetPostsByUserID retrieves posts by a specific user, newest first.
func (r *MongoPostRepository) GetPostsByUserID(ctx context.Context, userID uint, skip, limit int64) ([]models.Post, error) {
	return r.find(ctx, bson.M{"user_id": userID}, skip, limit)
}

// GetPostsByUserIDs backs the home feed.
func (r *MongoPostRepository) GetPostsByUserIDs(ctx context.Context, userIDs []uint, skip, limit int64) ([]models.Post, error) {
	if len(userIDs) == 0 {
		return []models.Post{}, nil
	}
	return r.find(ctx, bson.M{"user_id": bson.M{"$in": userIDs}}, skip, limit)
}

// GetRecentPosts backs explore: everyone's posts except excludeUserID's.
func (r *MongoPostRepository) GetRecentPosts(ctx context.Context, excludeUserID uint, skip, limit int64) ([]models.Post, error) {
	return r.find(ctx, bson.M{"user_id": bson.M{"$ne": excludeUserID}}, skip, limit)
}

func (r *MongoPostRepository) UpdatePostContent(ctx context.Context, id, content string) error {
	objID, err := postObjectID(id)
	if err != nil {
		return err
	}

	update := bson.M{
		"$set": bson.M{
			"content":    content,
			"updated_at": time.Now(),
		},
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return errors.Wrap(err, "unable to update post")
	}
	if res.MatchedCount == 0 {
		return errors.Wrap(ErrNotFound, "post not found")
	}
	return nil
}

// DeletePost deletes a post by ID from MongoDB
func (r *MongoPostRepository) DeletePost(ctx context.Context, id string) error {
	objID, err := postObjectID(id)
	if err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return errors.Wrap(err, "unable to delete post")
	}
	if res.DeletedCount == 0 {
		return errors.Wrap(ErrNotFound, "post not found")
	}
	return nil
}

// adjust applies $inc to field. Decrements only match documents still above
// zero so counters never go negative.
func (r *MongoPostRepository) adjust(ctx context.Context, postID, field string, delta int) error {
	objID, err := postObjectID(postID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": objID}
	if delta < 0 {
		filter[field] = bson.M{"$gt": 0}
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: delta}})
	return errors.Wrapf(err, "unable to update %s", field)
}

func (r *MongoPostRepository) IncrementLikesCount(ctx context.Context, postID string) error {
	return r.adjust(ctx, postID, "likes_count", 1)
}

func (r *MongoPostRepository) DecrementLikesCount(ctx context.Context, postID string) error {
	return r.adjust(ctx, postID, "likes_count", -1)
}

func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID string) error {
	return r.adjust(ctx, postID, "comments_count", 1)
}

func (r *MongoPostRepository) DecrementCommentsCount(ctx context.Context, postID string) error {
	return r.adjust(ctx, postID, "comments_count", -1)
}
