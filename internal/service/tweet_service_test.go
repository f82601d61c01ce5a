package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListTweets_EmptyStore(t *testing.T) {
	f := newFixture(t)

	tweets, err := f.tweet.ListTweets(t.Context())
	require.NoError(t, err)
	assert.NotNil(t, tweets)
	assert.Empty(t, tweets)

	mine, err := f.tweet.ListUserTweets(t.Context(), 77)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCreateTweet(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User

	tweet, err := f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{Content: "first"})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", tweet.Name)
	assert.Equal(t, "ann", tweet.Handle)
	assert.Equal(t, "AL", tweet.Avatar)
	assert.Empty(t, tweet.Image)
	assert.Equal(t, []uint{}, tweet.Likes)
	assert.Equal(t, []string{EventNewTweet}, f.events.types())

	_, err = f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{Content: "  \n"})
	assert.True(t, models.HasReason(err, models.ReasonMissingContent))
	assert.Len(t, f.events.types(), 1)
}

func TestCreateTweet_WithImage(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User

	tweet, err := f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{
		Content: "pic",
		Image:   &UploadInput{Filename: "Cat.PNG", Content: pngBytes(t)},
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(tweet.Image, "/uploads/"))
	assert.True(t, strings.HasSuffix(tweet.Image, ".png"))

	_, err = os.Stat(filepath.Join(f.uploads.Dir(), filepath.Base(tweet.Image)))
	assert.NoError(t, err)
}

type failingTweetRepo struct {
	repository.TweetRepository
}

func (failingTweetRepo) Create(context.Context, *models.Tweet) error {
	return models.NewInternalError(errors.New("insert failed"))
}

func TestCreateTweet_RemovesImageOnFailure(t *testing.T) {
	f := newFixture(t)
	svc := NewTweetService(failingTweetRepo{}, f.uploads, f.events)

	_, err := svc.CreateTweet(t.Context(), &models.User{ID: 1, Name: "Ann Lee", Username: "ann"}, CreateTweetInput{
		Content: "pic",
		Image:   &UploadInput{Filename: "cat.png", Content: pngBytes(t)},
	})
	require.Error(t, err)

	entries, err := os.ReadDir(f.uploads.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.events.types())
}

func TestToggleLike_TwiceRestores(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User
	bob := f.signup(t, "bob", "Bob Stone").User
	tweet, err := f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{Content: "like me"})
	require.NoError(t, err)

	liked, err := f.tweet.ToggleLike(t.Context(), tweet.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, liked.Likes)

	unliked, err := f.tweet.ToggleLike(t.Context(), tweet.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, unliked.Likes)

	assert.Equal(t, []string{EventNewTweet, EventTweetLiked, EventTweetLiked}, f.events.types())

	_, err = f.tweet.ToggleLike(t.Context(), 999, bob.ID)
	assert.True(t, models.HasReason(err, models.ReasonTweetNotFound))
}

func TestToggleLike_ConcurrentPairNetsZero(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User
	tweet, err := f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{Content: "race"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.tweet.ToggleLike(context.Background(), tweet.ID, ann.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	reloaded, err := f.tweets.GetByID(t.Context(), tweet.ID)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Likes)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User
	bob := f.signup(t, "bob", "Bob Stone").User
	tweet, err := f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{Content: "talk"})
	require.NoError(t, err)

	updated, err := f.tweet.AddComment(t.Context(), tweet.ID, bob, AddCommentInput{Content: "hi ann"})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	c := updated.Comments[0]
	assert.Equal(t, "bob", c.Username)
	assert.Equal(t, "Bob Stone", c.Name)
	assert.Equal(t, "BS", c.Avatar)
	assert.Equal(t, "hi ann", c.Content)
	assert.False(t, c.CreatedAt.IsZero())

	_, err = f.tweet.AddComment(t.Context(), tweet.ID, bob, AddCommentInput{Content: ""})
	assert.True(t, models.HasReason(err, models.ReasonMissingContent))

	_, err = f.tweet.AddComment(t.Context(), 999, bob, AddCommentInput{Content: "anyone?"})
	assert.True(t, models.HasReason(err, models.ReasonTweetNotFound))

	assert.Equal(t, []string{EventNewTweet, EventTweetCommented}, f.events.types())
}
