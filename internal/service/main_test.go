package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"sync"
	"testing"

	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/middleware"
	"murmur/internal/repository"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "service-test-secret-0123456789abcdef0123456789"

type recordedEvent struct {
	Type    string
	Payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEmitter) Emit(eventType string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: eventType, Payload: payload})
}

func (r *recordingEmitter) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingEmitter) last() recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	db      *gorm.DB
	users   repository.UserRepository
	tweets  repository.TweetRepository
	events  *recordingEmitter
	auth    *AuthService
	userSvc *UserService
	tweet   *TweetService
	uploads *UploadService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(database.Dialector("sqlite://"+filepath.Join(dir, "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	f := &fixture{
		db:      db,
		users:   repository.NewUserRepository(db, nil),
		tweets:  repository.NewTweetRepository(db),
		events:  &recordingEmitter{},
		uploads: NewUploadService(&config.Config{UploadDir: filepath.Join(dir, "uploads")}),
	}
	f.auth = NewAuthService(f.users, middleware.NewTokenManager(testSecret), WithBcryptCost(bcrypt.MinCost))
	f.userSvc = NewUserService(f.users, f.events)
	f.tweet = NewTweetService(f.tweets, f.uploads, f.events)
	return f
}

func (f *fixture) signup(t *testing.T, username, name string) *AuthResult {
	t.Helper()
	res, err := f.auth.Signup(t.Context(), SignupInput{Username: username, Password: "pw-" + username, Name: name})
	require.NoError(t, err)
	return res
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
