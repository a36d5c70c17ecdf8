package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/models"
	"github.com/puneetrinity/vantahire-ai-interviewer-sub001/internal/repositories"
)

// ErrInvalidToken covers missing, revoked and expired sessions alike so the
// candidate path never learns which one it was.
var ErrInvalidToken = errors.New("invalid interview token")

const tokenBytes = 32

// Store issues, validates and revokes interview session tokens.
type Store struct {
	repo *repositories.TokenRepository
	now  func() time.Time
}

func NewStore(repo *repositories.TokenRepository) *Store {
	return &Store{repo: repo, now: time.Now}
}

// Issue mints a new session token for an interview. Collisions are not
// handled beyond the unique index; with 32 bytes of entropy a duplicate
// means something is badly wrong upstream.
func (s *Store) Issue(interviewID string, ttl time.Duration) (*models.InterviewSession, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	session := &models.InterviewSession{
		ID:          uuid.New().String(),
		InterviewID: interviewID,
		Token:       hex.EncodeToString(buf),
		ExpiresAt:   s.now().Add(ttl),
	}
	if err := s.repo.Create(session); err != nil {
		return nil, fmt.Errorf("failed to store session token: %w", err)
	}
	return session, nil
}

// Validate resolves a bearer token to its session. It touches last-seen
// metadata but never extends expiry.
func (s *Store) Validate(token string) (*models.InterviewSession, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	session, err := s.repo.GetByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	now := s.now()
	if !session.Valid(now) {
		return nil, ErrInvalidToken
	}
	_ = s.repo.Touch(session.ID, now)
	return session, nil
}

// Revoke invalidates a token. Idempotent.
func (s *Store) Revoke(token string) error {
	return s.repo.Revoke(token, s.now())
}

// RevokeAll kills every live session of an interview at once, the recovery
// path for a leaked invite link. Idempotent.
func (s *Store) RevokeAll(interviewID string) (int64, error) {
	return s.repo.RevokeAllForInterview(interviewID, s.now())
}
