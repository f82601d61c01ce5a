package service

import (
	"strings"
	"testing"

	"murmur/internal/cache"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowUnfollow_RestoresState(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User
	bob := f.signup(t, "bob", "Bob Stone").User

	followed, err := f.userSvc.Follow(t.Context(), ann.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, followed.Following)
	assert.Equal(t, "bob", followed.FollowedUsername)

	target, err := f.userSvc.GetProfile(t.Context(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, target.Followers)

	profiles, err := f.userSvc.GetFollowing(t.Context(), ann.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, models.Profile{ID: bob.ID, Username: "bob", Name: "Bob Stone", Avatar: "BS"}, profiles[0])

	unfollowed, err := f.userSvc.Unfollow(t.Context(), ann.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, unfollowed.Following)
	assert.Equal(t, "bob", unfollowed.UnfollowedUsername)

	target, err = f.userSvc.GetProfile(t.Context(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, target.Followers)

	assert.Equal(t, []string{EventUserFollowed, EventUserUnfollowed}, f.events.types())
	evt, ok := f.events.last().Payload.(UnfollowedEvent)
	require.True(t, ok)
	assert.Equal(t, ann.ID, evt.FollowerID)
	assert.Equal(t, bob.ID, evt.FollowedID)
}

func TestFollow_TwiceIsConflictWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User
	bob := f.signup(t, "bob", "Bob Stone").User

	_, err := f.userSvc.Follow(t.Context(), ann.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.userSvc.Follow(t.Context(), ann.ID, bob.ID)
	require.Error(t, err)
	assert.True(t, models.HasReason(err, models.ReasonAlreadyFollowing))
	assert.Equal(t, 400, models.StatusFor(err))

	me, err := f.userSvc.GetProfile(t.Context(), ann.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, me.Following)
	target, err := f.userSvc.GetProfile(t.Context(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, target.Followers)
	assert.Len(t, f.events.types(), 1)
}

func TestFollow_Errors(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User
	bob := f.signup(t, "bob", "Bob Stone").User

	_, err := f.userSvc.Follow(t.Context(), ann.ID, 999)
	assert.True(t, models.HasReason(err, models.ReasonUserNotFound))
	assert.Equal(t, 404, models.StatusFor(err))

	_, err = f.userSvc.Follow(t.Context(), ann.ID, ann.ID)
	assert.True(t, models.HasReason(err, models.ReasonCannotFollowSelf))

	_, err = f.userSvc.Unfollow(t.Context(), ann.ID, bob.ID)
	assert.True(t, models.HasReason(err, models.ReasonNotFollowing))

	_, err = f.userSvc.Unfollow(t.Context(), ann.ID, 999)
	assert.True(t, models.HasReason(err, models.ReasonUserNotFound))

	assert.Empty(t, f.events.types())
}

func TestGetFollowing_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.userSvc.GetFollowing(t.Context(), 42)
	assert.True(t, models.HasReason(err, models.ReasonUserNotFound))
}

func TestUpdateProfile_KeepsSnapshots(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User

	tweet, err := f.tweet.CreateTweet(t.Context(), ann, CreateTweetInput{Content: "hello"})
	require.NoError(t, err)

	name := "Zed Quinn"
	bio := "new bio"
	updated, err := f.userSvc.UpdateProfile(t.Context(), ann.ID, UpdateProfileInput{Name: &name, Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Zed Quinn", updated.Name)
	assert.Equal(t, "ZQ", updated.Avatar)
	assert.Equal(t, "new bio", updated.Bio)

	reloaded, err := f.tweets.GetByID(t.Context(), tweet.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", reloaded.Name)
	assert.Equal(t, "AL", reloaded.Avatar)
}

func TestUpdateProfile_Validation(t *testing.T) {
	f := newFixture(t)
	ann := f.signup(t, "ann", "Ann Lee").User

	_, err := f.userSvc.UpdateProfile(t.Context(), ann.ID, UpdateProfileInput{})
	assert.True(t, models.HasReason(err, models.ReasonMissingField))

	blank := "   "
	_, err = f.userSvc.UpdateProfile(t.Context(), ann.ID, UpdateProfileInput{Name: &blank})
	assert.True(t, models.HasReason(err, models.ReasonMissingField))

	long := strings.Repeat("a", 281)
	_, err = f.userSvc.UpdateProfile(t.Context(), ann.ID, UpdateProfileInput{Bio: &long})
	assert.True(t, models.HasReason(err, models.ReasonInvalidField))

	bio := "only bio"
	updated, err := f.userSvc.UpdateProfile(t.Context(), ann.ID, UpdateProfileInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", updated.Name)
	assert.Equal(t, "only bio", updated.Bio)
}

func TestFollowUnfollow_IgnoresStaleCachedProfile(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	profiles := cache.New(rdb)
	svc := NewUserService(repository.NewUserRepository(f.db, profiles), f.events)
	ctx := t.Context()

	ann := f.signup(t, "ann", "Ann Lee").User
	bob := f.signup(t, "bob", "Bob Stone").User

	_, err := svc.Follow(ctx, ann.ID, bob.ID)
	require.NoError(t, err)

	// A read that loaded before the follow committed wrote its copy back
	// after the invalidation.
	stale := *ann
	stale.Following = []uint{}
	require.NoError(t, profiles.SetJSON(ctx, cache.UserKey(ann.ID), &stale, cache.UserTTL))

	unfollowed, err := svc.Unfollow(ctx, ann.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, unfollowed.Following)

	stale.Following = []uint{bob.ID}
	require.NoError(t, profiles.SetJSON(ctx, cache.UserKey(ann.ID), &stale, cache.UserTTL))

	followed, err := svc.Follow(ctx, ann.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, followed.Following)
}
