package repository

import (
	"context"
	"errors"

	"murmur/internal/cache"
	"murmur/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users and follow edges.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, user *models.User) error
	ListFollowing(ctx context.Context, userID uint) ([]models.Profile, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	Follow(ctx context.Context, followerID, followedID uint) error
	Unfollow(ctx context.Context, followerID, followedID uint) error
	ReconcileFollowers(ctx context.Context) ([]uint, error)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewUserRepository returns a UserRepository. c may wrap a nil client.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	if c == nil {
		c = cache.New(nil)
	}
	return &userRepository{db: db, cache: c}
}

// GetByID returns the user with its following list materialized.
func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User

	err := r.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		db := r.db.WithContext(ctx)
		if err := db.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.UserNotFound(id)
			}
			return models.NewInternalError(err)
		}
		following, err := followingIDs(db, id)
		if err != nil {
			return models.NewInternalError(err)
		}
		user.Following = following
		return nil
	})
	if err != nil {
		return nil, err
	}
	if user.Following == nil {
		user.Following = []uint{}
	}
	return &user, nil
}

// GetByUsername returns nil, nil when no user has that username.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	db := r.db.WithContext(ctx)
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	following, err := followingIDs(db, user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	user.Following = following
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError(models.ReasonUsernameTaken, "Username already taken")
		}
		return models.NewInternalError(err)
	}
	if user.Following == nil {
		user.Following = []uint{}
	}
	return nil
}

// UpdateProfile persists name, avatar and bio.
func (r *userRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	result := r.db.WithContext(ctx).Model(user).
		Updates(map[string]interface{}{"name": user.Name, "avatar": user.Avatar, "bio": user.Bio})
	if result.Error != nil {
		return models.NewInternalError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.UserNotFound(user.ID)
	}
	r.cache.InvalidateUsers(ctx, user.ID)
	return nil
}

// ListFollowing returns the profiles userID follows, in follow order.
func (r *userRepository) ListFollowing(ctx context.Context, userID uint) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := r.db.WithContext(ctx).
		Table("follows").
		Select("users.id, users.username, users.name, users.avatar").
		Joins("JOIN users ON users.id = follows.followed_id").
		Where("follows.follower_id = ?", userID).
		Order("follows.created_at ASC, follows.id ASC").
		Scan(&profiles).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return profiles, nil
}

// FollowingIDs reads userID's following list straight from the follow edges,
// bypassing the profile cache.
func (r *userRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids, err := followingIDs(r.db.WithContext(ctx), userID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// Follow inserts the edge and bumps the followed user's counter atomically.
func (r *userRepository) Follow(ctx context.Context, followerID, followedID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		edge := models.Follow{FollowerID: followerID, FollowedID: followedID}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewConflictError(models.ReasonAlreadyFollowing, "Already following")
		}
		return tx.Model(&models.User{}).
			Where("id = ?", followedID).
			UpdateColumn("followers", gorm.Expr("followers + 1")).Error
	})
	if err != nil {
		return wrapTxError(err)
	}
	r.cache.InvalidateUsers(ctx, followerID, followedID)
	return nil
}

// Unfollow deletes the edge and decrements the counter, floored at zero.
func (r *userRepository) Unfollow(ctx context.Context, followerID, followedID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("follower_id = ? AND followed_id = ?", followerID, followedID).
			Delete(&models.Follow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.NewConflictError(models.ReasonNotFollowing, "Not following this user")
		}
		return tx.Model(&models.User{}).
			Where("id = ?", followedID).
			UpdateColumn("followers", gorm.Expr("CASE WHEN followers > 0 THEN followers - 1 ELSE 0 END")).Error
	})
	if err != nil {
		return wrapTxError(err)
	}
	r.cache.InvalidateUsers(ctx, followerID, followedID)
	return nil
}

// ReconcileFollowers recomputes every follower counter that disagrees with the
// follow edges and returns the IDs of the users it corrected.
func (r *userRepository) ReconcileFollowers(ctx context.Context) ([]uint, error) {
	const actual = "(SELECT COUNT(*) FROM follows WHERE follows.followed_id = users.id)"

	var repaired []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).
			Where("followers <> "+actual).
			Pluck("id", &repaired).Error; err != nil {
			return err
		}
		if len(repaired) == 0 {
			return nil
		}
		return tx.Model(&models.User{}).
			Where("id IN ?", repaired).
			UpdateColumn("followers", gorm.Expr(actual)).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	r.cache.InvalidateUsers(ctx, repaired...)
	return repaired, nil
}

func followingIDs(db *gorm.DB, userID uint) ([]uint, error) {
	ids := []uint{}
	err := db.Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Order("created_at ASC, id ASC").
		Pluck("followed_id", &ids).Error
	if ids == nil {
		ids = []uint{}
	}
	return ids, err
}

// wrapTxError keeps AppErrors raised inside a transaction and wraps the rest.
func wrapTxError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
