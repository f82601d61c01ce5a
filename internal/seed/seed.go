// Package seed provides helpers to create demo data for development.
// Everything goes through the repositories so follower counters, like sets
// and author snapshots stay consistent with what the API would produce.
package seed

import (
	"context"
	"fmt"
	"strings"

	"murmur/internal/cache"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	Users        int
	Tweets       int
	MaxFollows   int
	MaxLikes     int
	MaxComments  int
	ShouldClean  bool
	RandomSeed   int64
	PasswordCost int
}

// Result summarizes what a run created.
type Result struct {
	Users    []*models.User
	Tweets   []*models.Tweet
	Follows  int
	Likes    int
	Comments int
}

// Seeder creates users, tweets and social activity.
type Seeder struct {
	db     *gorm.DB
	cache  *cache.Cache
	users  repository.UserRepository
	tweets repository.TweetRepository
	faker  *gofakeit.Faker
	opts   Options
}

// NewSeeder creates a Seeder bound to db. c is the profile cache the API
// reads through; it may be nil or wrap a nil client.
func NewSeeder(db *gorm.DB, c *cache.Cache, opts Options) *Seeder {
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	if c == nil {
		c = cache.New(nil)
	}
	return &Seeder{
		db:     db,
		cache:  c,
		users:  repository.NewUserRepository(db, c),
		tweets: repository.NewTweetRepository(db),
		faker:  gofakeit.New(opts.RandomSeed),
		opts:   opts,
	}
}

// ClearAll deletes every row of every table, children first, and evicts the
// cached profiles of the deleted users.
func (s *Seeder) ClearAll(ctx context.Context) error {
	var userIDs []uint
	tables := []any{&models.TweetLike{}, &models.Comment{}, &models.Tweet{}, &models.Follow{}, &models.User{}}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for _, table := range tables {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(table).Error; err != nil {
				return fmt.Errorf("clear %T: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.cache.InvalidateUsers(ctx, userIDs...)
	return nil
}

// Run seeds the database according to the options.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	var err error

	if res.Users, err = s.createUsers(ctx); err != nil {
		return nil, err
	}
	if res.Follows, err = s.createFollows(ctx, res.Users); err != nil {
		return nil, err
	}
	if res.Tweets, err = s.createTweets(ctx, res.Users); err != nil {
		return nil, err
	}
	if res.Likes, res.Comments, err = s.createEngagement(ctx, res.Users, res.Tweets); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), s.opts.PasswordCost)
	if err != nil {
		return nil, fmt.Errorf("hash seed password: %w", err)
	}

	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		name := s.faker.FirstName() + " " + s.faker.LastName()
		user := &models.User{
			Username: fmt.Sprintf("%s%d", strings.ToLower(s.faker.Username()), i),
			Password: string(hash),
			Name:     name,
			Avatar:   models.AvatarInitials(name),
			Bio:      s.faker.Sentence(8),
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user %s: %w", user.Username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) createFollows(ctx context.Context, users []*models.User) (int, error) {
	count := 0
	for _, follower := range users {
		for _, target := range s.pick(users, s.opts.MaxFollows) {
			if target.ID == follower.ID {
				continue
			}
			err := s.users.Follow(ctx, follower.ID, target.ID)
			if models.HasReason(err, models.ReasonAlreadyFollowing) {
				continue
			}
			if err != nil {
				return count, fmt.Errorf("follow %d -> %d: %w", follower.ID, target.ID, err)
			}
			count++
		}
	}
	return count, nil
}

func (s *Seeder) createTweets(ctx context.Context, users []*models.User) ([]*models.Tweet, error) {
	if len(users) == 0 {
		return nil, nil
	}

	tweets := make([]*models.Tweet, 0, s.opts.Tweets)
	for i := 0; i < s.opts.Tweets; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		tweet := &models.Tweet{
			UserID:  author.ID,
			Name:    author.Name,
			Handle:  author.Username,
			Avatar:  author.Avatar,
			Content: s.faker.HipsterSentence(s.faker.Number(4, 20)),
		}
		if err := s.tweets.Create(ctx, tweet); err != nil {
			return nil, fmt.Errorf("create tweet: %w", err)
		}
		tweets = append(tweets, tweet)
	}
	return tweets, nil
}

func (s *Seeder) createEngagement(ctx context.Context, users []*models.User, tweets []*models.Tweet) (int, int, error) {
	likes, comments := 0, 0
	for _, tweet := range tweets {
		for _, fan := range s.pick(users, s.opts.MaxLikes) {
			liked, err := s.tweets.ToggleLike(ctx, tweet.ID, fan.ID)
			if err != nil {
				return likes, comments, fmt.Errorf("like tweet %d: %w", tweet.ID, err)
			}
			if liked {
				likes++
			}
		}

		for _, author := range s.pick(users, s.opts.MaxComments) {
			comment := &models.Comment{
				TweetID:  tweet.ID,
				UserID:   author.ID,
				Name:     author.Name,
				Username: author.Username,
				Avatar:   author.Avatar,
				Content:  s.faker.Sentence(s.faker.Number(3, 12)),
			}
			if err := s.tweets.AddComment(ctx, comment); err != nil {
				return likes, comments, fmt.Errorf("comment on tweet %d: %w", tweet.ID, err)
			}
			comments++
		}
	}
	return likes, comments, nil
}

// pick returns up to max distinct random users.
func (s *Seeder) pick(users []*models.User, max int) []*models.User {
	if max <= 0 || len(users) == 0 {
		return nil
	}
	if max > len(users) {
		max = len(users)
	}
	n := s.faker.Number(0, max)
	seen := make(map[uint]bool, n)
	out := make([]*models.User, 0, n)
	for len(out) < n {
		u := users[s.faker.Number(0, len(users)-1)]
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out
}
