package service

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Event names mirror the notifications package; services only need the strings.
const (
	EventNewTweet       = "new-tweet"
	EventTweetLiked     = "tweet-liked"
	EventTweetCommented = "tweet-commented"
	EventUserFollowed   = "user-followed"
	EventUserUnfollowed = "user-unfollowed"
)

// ImageStore persists an uploaded image and returns its public path.
type ImageStore interface {
	Save(ctx context.Context, in UploadInput) (string, error)
	Remove(publicPath string)
}

type TweetService struct {
	tweets repository.TweetRepository
	images ImageStore
	events EventEmitter
}

// CreateTweetInput is a new post. Image is optional.
type CreateTweetInput struct {
	Content string       `json:"content" validate:"content"`
	Image   *UploadInput `json:"-"`
}

// AddCommentInput is a new comment body.
type AddCommentInput struct {
	Content string `json:"content" validate:"content"`
}

func NewTweetService(tweets repository.TweetRepository, images ImageStore, events EventEmitter) *TweetService {
	return &TweetService{tweets: tweets, images: images, events: emitterOrNoop(events)}
}

// ListTweets returns every tweet, newest first.
func (s *TweetService) ListTweets(ctx context.Context) ([]models.Tweet, error) {
	return s.tweets.List(ctx)
}

// ListUserTweets returns userID's tweets, newest first. Unknown users have none.
func (s *TweetService) ListUserTweets(ctx context.Context, userID uint) ([]models.Tweet, error) {
	return s.tweets.ListByUser(ctx, userID)
}

// CreateTweet stores the optional image, snapshots the author and persists the tweet.
func (s *TweetService) CreateTweet(ctx context.Context, author *models.User, in CreateTweetInput) (tweet *models.Tweet, err error) {
	ctx, span := observability.StartSpan(ctx, "TweetService", "CreateTweet",
		attribute.Int64("user.id", int64(author.ID)))
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var imagePath string
	if in.Image != nil && s.images != nil {
		imagePath, err = s.images.Save(ctx, *in.Image)
		if err != nil {
			return nil, err
		}
	}

	tweet = &models.Tweet{
		UserID:  author.ID,
		Name:    author.Name,
		Handle:  author.Username,
		Avatar:  author.Avatar,
		Content: in.Content,
		Image:   imagePath,
	}
	if err := s.tweets.Create(ctx, tweet); err != nil {
		if imagePath != "" {
			s.images.Remove(imagePath)
		}
		return nil, err
	}

	s.events.Emit(EventNewTweet, tweet)
	return tweet, nil
}

// ToggleLike flips userID's like on the tweet and returns the updated tweet.
func (s *TweetService) ToggleLike(ctx context.Context, tweetID, userID uint) (tweet *models.Tweet, err error) {
	ctx, span := observability.StartSpan(ctx, "TweetService", "ToggleLike",
		attribute.Int64("tweet.id", int64(tweetID)))
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.tweets.ToggleLike(ctx, tweetID, userID); err != nil {
		return nil, err
	}
	tweet, err = s.tweets.GetByID(ctx, tweetID)
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventTweetLiked, tweet)
	return tweet, nil
}

// AddComment appends a comment with a snapshot of the commenter.
func (s *TweetService) AddComment(ctx context.Context, tweetID uint, author *models.User, in AddCommentInput) (tweet *models.Tweet, err error) {
	ctx, span := observability.StartSpan(ctx, "TweetService", "AddComment",
		attribute.Int64("tweet.id", int64(tweetID)))
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		TweetID:  tweetID,
		UserID:   author.ID,
		Name:     author.Name,
		Username: author.Username,
		Avatar:   author.Avatar,
		Content:  in.Content,
	}
	if err := s.tweets.AddComment(ctx, comment); err != nil {
		return nil, err
	}

	tweet, err = s.tweets.GetByID(ctx, tweetID)
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventTweetCommented, tweet)
	return tweet, nil
}
