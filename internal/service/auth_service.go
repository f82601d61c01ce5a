package service

import (
	"context"

	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
	"murmur/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs bearer tokens for a user.
type TokenIssuer interface {
	Issue(userID uint, username string) (string, error)
}

// AuthService handles signup and login.
type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
	cost   int

	// dummyHash is compared against when the username is unknown so both
	// login failures pay one bcrypt comparison.
	dummyHash []byte
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.cost = cost }
}

// SignupInput is the signup payload.
type SignupInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// LoginInput is the login payload.
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResult is returned by Signup and Login.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer, opts ...AuthOption) *AuthService {
	s := &AuthService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("murmur-timing-guard"), s.cost)
	return s
}

// Signup creates an account and returns it with a fresh token.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (result *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "AuthService", "Signup")
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError(models.ReasonUsernameTaken, "Username already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Password: string(hash),
		Name:     in.Name,
		Avatar:   models.AvatarInitials(in.Name),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login verifies credentials. Unknown usernames and wrong passwords are
// indistinguishable to the caller, including in response time.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (result *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "AuthService", "Login")
	defer func() { observability.EndSpan(span, err) }()

	invalid := models.NewUnauthorizedError(models.ReasonInvalidCredentials, "Invalid credentials")

	user, err := s.users.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, invalid
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user.Following == nil {
		user.Following = []uint{}
	}
	return &AuthResult{User: user, Token: token}, nil
}
