package models

import (
	"time"
)

// Interview statuses. Status only ever moves forward:
// PENDING -> IN_PROGRESS -> COMPLETED | EXPIRED, EXPIRED also reachable from PENDING.
const (
	StatusPending    = "PENDING"
	StatusInProgress = "IN_PROGRESS"
	StatusCompleted  = "COMPLETED"
	StatusExpired    = "EXPIRED"
)

// Interview types.
const (
	TypeText  = "TEXT"
	TypeVoice = "VOICE"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Interview represents one candidate's scheduled AI-driven interview.
type Interview struct {
	ID                string     `gorm:"primaryKey" json:"id"`
	RecruiterID       string     `gorm:"not null;index" json:"recruiterId"`
	RecruiterEmail    *string    `json:"recruiterEmail,omitempty"`
	CandidateEmail    string     `gorm:"not null" json:"candidateEmail"`
	CandidateName     *string    `json:"candidateName,omitempty"`
	CandidatePhone    *string    `json:"candidatePhone,omitempty"`
	CandidateUserID   *string    `json:"candidateUserId,omitempty"`
	JobRole           string     `gorm:"not null" json:"jobRole"`
	JobDescription    string     `gorm:"type:text" json:"jobDescription"`
	Company           string     `json:"company"`
	Type              string     `gorm:"not null;default:TEXT" json:"type"`
	Status            string     `gorm:"not null;default:PENDING;index" json:"status"`
	TimeLimitMinutes  int        `gorm:"not null;default:30" json:"timeLimitMinutes"`
	StartedAt         *time.Time `json:"startedAt,omitempty"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	ExpiresAt         time.Time  `gorm:"not null" json:"expiresAt"`
	Score             *float64   `json:"score,omitempty"`
	TranscriptSummary *string    `gorm:"type:text" json:"transcriptSummary,omitempty"`
	Recommendation    *string    `json:"recommendation,omitempty"`
	RecordingKey      *string    `json:"recordingKey,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Terminal reports whether no further transitions are allowed.
func (i *Interview) Terminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusExpired
}

// InterviewMessage is one line of an interview transcript. Append-only,
// ordered by creation time.
type InterviewMessage struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	InterviewID string    `gorm:"not null;index" json:"interviewId"`
	Role        string    `gorm:"not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

// InterviewSession is an opaque bearer credential granting a candidate
// access to exactly one interview. Valid iff RevokedAt is null and
// ExpiresAt is in the future. Rotation does not revoke earlier sessions.
type InterviewSession struct {
	ID          string     `gorm:"primaryKey" json:"id"`
	InterviewID string     `gorm:"not null;index" json:"interviewId"`
	Token       string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt   time.Time  `gorm:"not null;index" json:"expiresAt"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Valid reports whether the session can still authenticate requests at t.
func (s *InterviewSession) Valid(t time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(t)
}

// UsageCounter tracks per-recruiter interview minutes for the current day.
// Reset by the daily reaper sweep.
type UsageCounter struct {
	RecruiterID string    `gorm:"primaryKey" json:"recruiterId"`
	MinutesUsed int       `gorm:"not null;default:0" json:"minutesUsed"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
