package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greencity/config"
	"greencity/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileMap map[string]*model.User

func (p profileMap) FindByID(_ context.Context, uid string) (*model.User, error) {
	if u, ok := p[uid]; ok {
		return u, nil
	}
	return nil, model.NotFound("user not found")
}

func newTokens(secret string) *TokenService {
	return NewTokenService(config.JWTConfig{Secret: secret, ExpirationHours: 1})
}

func TestTokenService_IssueAndVerify(t *testing.T) {
	tokens := newTokens("s3cret")
	token, err := tokens.Issue(&model.User{UID: "u1", Email: "a@b.co", FullName: "Ann"})
	require.NoError(t, err)

	identity, err := tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, &model.Identity{UID: "u1", Email: "a@b.co", Name: "Ann"}, identity)
}

func TestTokenService_Rejects(t *testing.T) {
	tokens := newTokens("s3cret")
	valid, err := tokens.Issue(&model.User{UID: "u1"})
	require.NoError(t, err)

	expired := newTokens("s3cret")
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue(&model.User{UID: "u1"})
	require.NoError(t, err)

	testCases := []struct {
		name  string
		token string
		svc   *TokenService
	}{
		{name: "empty", token: "", svc: tokens},
		{name: "garbage", token: "not.a.jwt", svc: tokens},
		{name: "wrong secret", token: valid, svc: newTokens("other")},
		{name: "expired", token: old, svc: tokens},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.svc.Verify(tc.token)
			assert.Error(t, err)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func TestAuthorize(t *testing.T) {
	citizen := &model.User{Role: model.RoleCitizen}
	expert := &model.User{Role: model.RoleExpert}
	authority := &model.User{Role: model.RoleAuthority}

	testCases := []struct {
		name    string
		user    *model.User
		perm    Permission
		allowed bool
	}{
		{"any caller without profile", nil, Authenticated, true},
		{"citizen on open route", citizen, Authenticated, true},
		{"missing profile on gated route", nil, ExpertOrAuthority, false},
		{"citizen denied expert route", citizen, ExpertOrAuthority, false},
		{"expert on expert route", expert, ExpertOrAuthority, true},
		{"authority on expert route", authority, ExpertOrAuthority, true},
		{"expert denied authority route", expert, AuthorityOnly, false},
		{"authority on authority route", authority, AuthorityOnly, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(tc.user, tc.perm)
			if tc.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, model.ErrForbidden))
			assert.Equal(t, "Insufficient permissions", err.Error())
		})
	}
}

func TestMiddleware_Require(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTokens("s3cret")
	profiles := profileMap{
		"citizen":   {UID: "citizen", Role: model.RoleCitizen},
		"authority": {UID: "authority", Role: model.RoleAuthority},
	}
	mw := NewMiddleware(tokens, profiles)

	router := gin.New()
	router.GET("/open", mw.Require(Authenticated), func(c *gin.Context) {
		c.String(http.StatusOK, IdentityFrom(c).UID)
	})
	router.GET("/gated", mw.Require(AuthorityOnly), func(c *gin.Context) {
		c.String(http.StatusOK, string(UserFrom(c).Role))
	})

	tokenFor := func(uid string) string {
		token, err := tokens.Issue(&model.User{UID: uid})
		require.NoError(t, err)
		return token
	}

	testCases := []struct {
		name   string
		path   string
		header string
		code   int
		body   string
	}{
		{name: "no header", path: "/open", code: http.StatusUnauthorized},
		{name: "malformed header", path: "/open", header: "Token abc", code: http.StatusUnauthorized},
		{name: "open route", path: "/open", header: "Bearer " + tokenFor("ghost"), code: http.StatusOK, body: "ghost"},
		{name: "query token", path: "/open?token=" + tokenFor("citizen"), code: http.StatusOK, body: "citizen"},
		{name: "gated without profile", path: "/gated", header: "Bearer " + tokenFor("ghost"), code: http.StatusForbidden},
		{name: "gated wrong role", path: "/gated", header: "Bearer " + tokenFor("citizen"), code: http.StatusForbidden},
		{name: "gated allowed", path: "/gated", header: "Bearer " + tokenFor("authority"), code: http.StatusOK, body: "authority"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.code, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
		})
	}
}
