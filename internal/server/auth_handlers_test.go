package server

import (
	"net/http"
	"testing"

	"murmur/internal/middleware"
	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupLoginAuthenticatedCall(t *testing.T) {
	env := newTestEnv(t)

	signed := env.signup(t, "ann", "Ann Lee")
	assert.NotEmpty(t, signed.Token)
	assert.Equal(t, "AL", signed.User.Avatar)
	assert.Equal(t, []uint{}, signed.User.Following)

	var logged authBody
	status := env.doJSON(t, http.MethodPost, "/api/login", map[string]string{
		"username": "ann",
		"password": "secret-ann",
	}, "", &logged)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, signed.User.ID, logged.User.ID)

	var me authBody
	status = env.doJSON(t, http.MethodGet, "/api/users/me", nil, logged.Token, &me.User)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ann", me.User.Username)
}

func TestSignup_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ann", "Ann Lee")

	var body errorBody
	status := env.doJSON(t, http.MethodPost, "/api/signup", map[string]string{
		"username": "ann", "password": "x", "name": "Other",
	}, "", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.ReasonUsernameTaken, body.Reason)

	status = env.doJSON(t, http.MethodPost, "/api/signup", map[string]string{
		"username": "bob", "password": "x",
	}, "", &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.ReasonMissingField, body.Reason)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "ann", "Ann Lee")

	for _, creds := range []map[string]string{
		{"username": "ann", "password": "wrong"},
		{"username": "nobody", "password": "secret-ann"},
	} {
		var body errorBody
		status := env.doJSON(t, http.MethodPost, "/api/login", creds, "", &body)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, models.ReasonInvalidCredentials, body.Reason)
		assert.Equal(t, "Invalid credentials", body.Error)
	}
}

func TestAuthGate(t *testing.T) {
	env := newTestEnv(t)

	var body errorBody
	status := env.doJSON(t, http.MethodGet, "/api/users/me", nil, "", &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.ReasonUnauthorized, body.Reason)

	status = env.doJSON(t, http.MethodGet, "/api/users/me", nil, "not-a-jwt", &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.ReasonInvalidToken, body.Reason)

	// A valid token whose user row is gone.
	ghost, err := middleware.NewTokenManager(testSecret).Issue(4242, "ghost")
	require.NoError(t, err)
	status = env.doJSON(t, http.MethodPost, "/api/tweets", map[string]string{"content": "boo"}, ghost, &body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, models.ReasonUserNotFound, body.Reason)
}
