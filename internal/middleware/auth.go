package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/tokens"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/utils"
)

type contextKey string

const (
	userIDKey  contextKey = "userID"
	roleKey    contextKey = "role"
	emailKey   contextKey = "email"
	sessionKey contextKey = "interviewSession"
)

var (
	ErrMissingAuthHeader = errors.New("missing or malformed Authorization header")
	ErrInvalidJWT        = errors.New("invalid token")
)

// VerifyJWT fetches the Authorization header, validates the JWT, and
// returns the claims if everything is valid.
func VerifyJWT(r *http.Request, secret string) (jwt.MapClaims, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
		return nil, ErrMissingAuthHeader
	}
	tokenStr := strings.TrimPrefix(authz, "Bearer ")

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidJWT
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidJWT
	}
	return claims, nil
}

// JWTAuth guards recruiter/admin endpoints.
func JWTAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := VerifyJWT(r, secret)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code: "unauthorized", Message: "Authentication required",
				})
				return
			}
			userID, err := subjectFromClaims(claims)
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code: "unauthorized", Message: "Authentication required",
				})
				return
			}
			role, _ := claims["role"].(string)
			email, _ := claims["email"].(string)

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			ctx = context.WithValue(ctx, roleKey, role)
			ctx = context.WithValue(ctx, emailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func subjectFromClaims(claims jwt.MapClaims) (string, error) {
	sub, ok := claims["sub"]
	if !ok {
		return "", errors.New("missing sub claim")
	}
	switch v := sub.(type) {
	case string:
		return v, nil
	case float64:
		// JWT numbers get decoded as float64
		return fmt.Sprintf("%d", int64(v)), nil
	default:
		return "", errors.New("invalid sub claim type")
	}
}

// GetUser returns the authenticated platform user from the context.
func GetUser(r *http.Request) (userID, role string) {
	userID, _ = r.Context().Value(userIDKey).(string)
	role, _ = r.Context().Value(roleKey).(string)
	return
}

// GetUserEmail returns the authenticated user's email claim, if the identity
// provider included one.
func GetUserEmail(r *http.Request) string {
	email, _ := r.Context().Value(emailKey).(string)
	return email
}

// ExtractInterviewToken accepts the bearer token as a header or a query
// parameter, equivalently.
func ExtractInterviewToken(r *http.Request) string {
	if t := r.Header.Get("X-Interview-Token"); t != "" {
		return t
	}
	return r.URL.Query().Get("token")
}

// TokenAuth guards the candidate path. The token is re-validated on every
// call; there is no cached notion of validity beyond this lookup. All
// failures surface as the same unauthorized response so the existence of
// interviews is never leaked.
func TokenAuth(store *tokens.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := store.Validate(ExtractInterviewToken(r))
			if err != nil {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code: "invalid_token", Message: "Invalid or expired interview token",
				})
				return
			}

			// A token only ever grants its own interview.
			if id := chi.URLParam(r, "id"); id != "" && id != session.InterviewID {
				utils.JSON(w, http.StatusUnauthorized, models.ErrorResponse{
					Code: "invalid_token", Message: "Invalid or expired interview token",
				})
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession returns the validated interview session from the context.
func GetSession(r *http.Request) *models.InterviewSession {
	session, _ := r.Context().Value(sessionKey).(*models.InterviewSession)
	return session
}
