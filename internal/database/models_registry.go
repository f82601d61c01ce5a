package database

import "murmur/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.Tweet{},
		&models.TweetLike{},
		&models.Comment{},
	}
}
