package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/testhelpers"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/tokens"
)

const testSecret = "test-secret"

func signJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	var gotUser, gotRole string
	handler := JWTAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotRole = GetUser(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signJWT(t, jwt.MapClaims{
		"sub": "user-1", "role": "ADMIN", "exp": time.Now().Add(time.Hour).Unix(),
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", gotUser)
	assert.Equal(t, "ADMIN", gotRole)
}

func TestJWTAuthNumericSubject(t *testing.T) {
	var gotUser string
	handler := JWTAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = GetUser(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signJWT(t, jwt.MapClaims{
		"sub": 42, "exp": time.Now().Add(time.Hour).Unix(),
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", gotUser)
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	handler := JWTAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage":        "Bearer not.a.jwt",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestJWTAuthRejectsExpiredToken(t *testing.T) {
	handler := JWTAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signJWT(t, jwt.MapClaims{
		"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix(),
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExtractInterviewTokenHeaderWinsOverQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?token=from-query", nil)
	assert.Equal(t, "from-query", ExtractInterviewToken(req))

	req.Header.Set("X-Interview-Token", "from-header")
	assert.Equal(t, "from-header", ExtractInterviewToken(req))
}

func newTokenStore(t *testing.T) *tokens.Store {
	t.Helper()
	db := testhelpers.SetupTestDB(t)
	return tokens.NewStore(&repositories.TokenRepository{DB: db})
}

func TestTokenAuthAcceptsValidToken(t *testing.T) {
	store := newTokenStore(t)
	session, err := store.Issue("iv-1", time.Hour)
	assert.NoError(t, err)

	var gotInterview string
	handler := TokenAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInterview = GetSession(r).InterviewID
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Interview-Token", session.Token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "iv-1", gotInterview)
}

func TestTokenAuthRejectsForeignInterviewPath(t *testing.T) {
	store := newTokenStore(t)
	session, err := store.Issue("iv-1", time.Hour)
	assert.NoError(t, err)

	router := chi.NewRouter()
	router.With(TokenAuth(store)).Get("/interviews/{id}", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/interviews/iv-2", nil)
	req.Header.Set("X-Interview-Token", session.Token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// same response as an invalid token, nothing about iv-2 is leaked
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_token")
}

func TestTokenAuthRejectsMissingToken(t *testing.T) {
	store := newTokenStore(t)
	handler := TokenAuth(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
