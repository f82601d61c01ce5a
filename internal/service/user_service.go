package service

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type UserService struct {
	users  repository.UserRepository
	events EventEmitter
}

// FollowResult is returned by Follow.
type FollowResult struct {
	Following        []uint `json:"following"`
	FollowedUsername string `json:"followedUsername"`
}

// UnfollowResult is returned by Unfollow.
type UnfollowResult struct {
	Following          []uint `json:"following"`
	UnfollowedUsername string `json:"unfollowedUsername"`
}

// FollowedEvent is the user-followed payload.
type FollowedEvent struct {
	FollowerID       uint   `json:"followerId"`
	FollowedID       uint   `json:"followedId"`
	FollowedUsername string `json:"followedUsername"`
	Following        []uint `json:"following"`
}

// UnfollowedEvent is the user-unfollowed payload.
type UnfollowedEvent struct {
	FollowerID         uint   `json:"followerId"`
	FollowedID         uint   `json:"followedId"`
	UnfollowedUsername string `json:"unfollowedUsername"`
	Following          []uint `json:"following"`
}

// UpdateProfileInput changes the caller's display name and/or bio.
type UpdateProfileInput struct {
	Name *string `json:"name" validate:"omitempty,notblank"`
	Bio  *string `json:"bio" validate:"omitempty,max=280"`
}

func NewUserService(users repository.UserRepository, events EventEmitter) *UserService {
	return &UserService{users: users, events: emitterOrNoop(events)}
}

// GetProfile returns the user with its following list.
func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// GetFollowing resolves userID's following list to profiles.
func (s *UserService) GetFollowing(ctx context.Context, userID uint) ([]models.Profile, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.users.ListFollowing(ctx, userID)
}

// Follow makes actorID follow targetID.
func (s *UserService) Follow(ctx context.Context, actorID, targetID uint) (result *FollowResult, err error) {
	ctx, span := observability.StartSpan(ctx, "UserService", "Follow",
		attribute.Int64("user.id", int64(actorID)), attribute.Int64("target.id", int64(targetID)))
	defer func() { observability.EndSpan(span, err) }()

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, models.NewValidationError(models.ReasonCannotFollowSelf, "You cannot follow yourself")
	}

	// The edge insert decides ALREADY_FOLLOWING; a cached profile may lag.
	if err := s.users.Follow(ctx, actorID, targetID); err != nil {
		return nil, err
	}

	following, err := s.followingOf(ctx, actorID)
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventUserFollowed, FollowedEvent{
		FollowerID:       actorID,
		FollowedID:       targetID,
		FollowedUsername: target.Username,
		Following:        following,
	})
	return &FollowResult{Following: following, FollowedUsername: target.Username}, nil
}

// Unfollow removes actorID's follow of targetID.
func (s *UserService) Unfollow(ctx context.Context, actorID, targetID uint) (result *UnfollowResult, err error) {
	ctx, span := observability.StartSpan(ctx, "UserService", "Unfollow",
		attribute.Int64("user.id", int64(actorID)), attribute.Int64("target.id", int64(targetID)))
	defer func() { observability.EndSpan(span, err) }()

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	// The edge delete decides NOT_FOLLOWING.
	if err := s.users.Unfollow(ctx, actorID, targetID); err != nil {
		return nil, err
	}

	following, err := s.followingOf(ctx, actorID)
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventUserUnfollowed, UnfollowedEvent{
		FollowerID:         actorID,
		FollowedID:         targetID,
		UnfollowedUsername: target.Username,
		Following:          following,
	})
	return &UnfollowResult{Following: following, UnfollowedUsername: target.Username}, nil
}

// UpdateProfile changes name (re-deriving the avatar) and/or bio. Existing
// tweets and comments keep the snapshot taken when they were written.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	if in.Name == nil && in.Bio == nil {
		return nil, models.NewValidationError(models.ReasonMissingField, "name or bio is required")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
		user.Avatar = models.AvatarInitials(user.Name)
	}
	if in.Bio != nil {
		user.Bio = *in.Bio
	}
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

func (s *UserService) followingOf(ctx context.Context, userID uint) ([]uint, error) {
	return s.users.FollowingIDs(ctx, userID)
}
