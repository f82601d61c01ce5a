package repository

import (
	"context"
	"errors"

	"murmur/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TweetRepository defines persistence operations for tweets, likes and comments.
type TweetRepository interface {
	List(ctx context.Context) ([]models.Tweet, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Tweet, error)
	GetByID(ctx context.Context, id uint) (*models.Tweet, error)
	Create(ctx context.Context, tweet *models.Tweet) error
	ToggleLike(ctx context.Context, tweetID, userID uint) (bool, error)
	AddComment(ctx context.Context, comment *models.Comment) error
}

type tweetRepository struct {
	db *gorm.DB
}

// NewTweetRepository creates a new tweet repository
func NewTweetRepository(db *gorm.DB) TweetRepository {
	return &tweetRepository{db: db}
}

// List returns every tweet, newest first.
func (r *tweetRepository) List(ctx context.Context) ([]models.Tweet, error) {
	return r.find(ctx, r.db.WithContext(ctx))
}

// ListByUser returns the tweets owned by userID, newest first.
func (r *tweetRepository) ListByUser(ctx context.Context, userID uint) ([]models.Tweet, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID))
}

func (r *tweetRepository) find(ctx context.Context, query *gorm.DB) ([]models.Tweet, error) {
	tweets := []models.Tweet{}
	err := query.
		Preload("Comments", orderComments).
		Order("created_at DESC, id DESC").
		Find(&tweets).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachLikes(ctx, tweets); err != nil {
		return nil, models.NewInternalError(err)
	}
	return tweets, nil
}

func (r *tweetRepository) GetByID(ctx context.Context, id uint) (*models.Tweet, error) {
	var tweet models.Tweet
	err := r.db.WithContext(ctx).
		Preload("Comments", orderComments).
		First(&tweet, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.TweetNotFound(id)
		}
		return nil, models.NewInternalError(err)
	}

	tweets := []models.Tweet{tweet}
	if err := r.attachLikes(ctx, tweets); err != nil {
		return nil, models.NewInternalError(err)
	}
	return &tweets[0], nil
}

func (r *tweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	if err := r.db.WithContext(ctx).Omit("Comments").Create(tweet).Error; err != nil {
		return models.NewInternalError(err)
	}
	if tweet.Likes == nil {
		tweet.Likes = []uint{}
	}
	if tweet.Comments == nil {
		tweet.Comments = []models.Comment{}
	}
	return nil
}

// ToggleLike flips userID's membership in the tweet's like set and reports
// whether the user likes the tweet afterwards. An insert that loses a race
// against a concurrent like from the same user resolves as a removal.
func (r *tweetRepository) ToggleLike(ctx context.Context, tweetID, userID uint) (bool, error) {
	var liked bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTweet(tx, tweetID); err != nil {
			return err
		}

		pair := tx.Where("tweet_id = ? AND user_id = ?", tweetID, userID)
		removed := pair.Delete(&models.TweetLike{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected > 0 {
			liked = false
			return nil
		}

		like := models.TweetLike{TweetID: tweetID, UserID: userID}
		inserted := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
		if inserted.Error != nil {
			return inserted.Error
		}
		if inserted.RowsAffected > 0 {
			liked = true
			return nil
		}

		liked = false
		return tx.Where("tweet_id = ? AND user_id = ?", tweetID, userID).
			Delete(&models.TweetLike{}).Error
	})
	if err != nil {
		return false, wrapTxError(err)
	}
	return liked, nil
}

// AddComment appends a comment to an existing tweet.
func (r *tweetRepository) AddComment(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureTweet(tx, comment.TweetID); err != nil {
			return err
		}
		return tx.Create(comment).Error
	})
	if err != nil {
		return wrapTxError(err)
	}
	return nil
}

// attachLikes fills Likes for each tweet in like order and makes sure both
// collections serialize as arrays.
func (r *tweetRepository) attachLikes(ctx context.Context, tweets []models.Tweet) error {
	if len(tweets) == 0 {
		return nil
	}

	ids := make([]uint, len(tweets))
	for i := range tweets {
		ids[i] = tweets[i].ID
	}

	var likes []models.TweetLike
	if err := r.db.WithContext(ctx).
		Where("tweet_id IN ?", ids).
		Order("created_at ASC, id ASC").
		Find(&likes).Error; err != nil {
		return err
	}

	byTweet := make(map[uint][]uint, len(tweets))
	for _, l := range likes {
		byTweet[l.TweetID] = append(byTweet[l.TweetID], l.UserID)
	}

	for i := range tweets {
		tweets[i].Likes = byTweet[tweets[i].ID]
		if tweets[i].Likes == nil {
			tweets[i].Likes = []uint{}
		}
		if tweets[i].Comments == nil {
			tweets[i].Comments = []models.Comment{}
		}
	}
	return nil
}

func ensureTweet(tx *gorm.DB, tweetID uint) error {
	var count int64
	if err := tx.Model(&models.Tweet{}).Where("id = ?", tweetID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.TweetNotFound(tweetID)
	}
	return nil
}

func orderComments(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}
