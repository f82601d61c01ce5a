package models

import "time"

// Tweet is a short post. Name, Handle and Avatar are a snapshot of the author
// taken at creation time and are never refreshed.
type Tweet struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"userId"`
	Name      string    `gorm:"not null" json:"name"`
	Handle    string    `gorm:"not null" json:"handle"`
	Avatar    string    `json:"avatar"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Image     string    `json:"image"`
	Likes     []uint    `gorm:"-" json:"likes"`
	Retweets  int       `gorm:"not null;default:0" json:"retweets"`
	Comments  []Comment `gorm:"foreignKey:TweetID" json:"comments"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// Comment is embedded in a tweet and carries a snapshot of the commenter.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TweetID   uint      `gorm:"not null;index" json:"-"`
	UserID    uint      `gorm:"not null" json:"userId"`
	Name      string    `gorm:"not null" json:"name"`
	Username  string    `gorm:"not null" json:"username"`
	Avatar    string    `json:"avatar"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// TweetLike is one membership of a tweet's like set.
// The combination of TweetID and UserID must be unique.
type TweetLike struct {
	ID        uint `gorm:"primaryKey"`
	TweetID   uint `gorm:"not null;uniqueIndex:idx_tweet_like_pair"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_tweet_like_pair"`
	CreatedAt time.Time
}

// Follow is a directed edge from follower to followed.
type Follow struct {
	ID         uint `gorm:"primaryKey"`
	FollowerID uint `gorm:"not null;uniqueIndex:idx_follow_pair;index:idx_follows_follower"`
	FollowedID uint `gorm:"not null;uniqueIndex:idx_follow_pair;index:idx_follows_followed"`
	CreatedAt  time.Time
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}
