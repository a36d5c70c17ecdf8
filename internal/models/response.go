package models

// ErrorResponse is the uniform error body for HTTP endpoints.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	State   string `json:"state,omitempty"`
}

// CreateInterviewRequest is the recruiter-facing creation payload.
type CreateInterviewRequest struct {
	CandidateEmail   string `json:"candidateEmail"`
	CandidateName    string `json:"candidateName"`
	CandidatePhone   string `json:"candidatePhone"`
	JobRole          string `json:"jobRole"`
	JobDescription   string `json:"jobDescription"`
	Company          string `json:"company"`
	Type             string `json:"type"`
	TimeLimitMinutes int    `json:"timeLimitMinutes"`
	ExpiresInHours   int    `json:"expiresInHours"`
}

// UpdateInterviewRequest edits metadata. Only honored while PENDING.
type UpdateInterviewRequest struct {
	CandidateName    *string `json:"candidateName,omitempty"`
	JobRole          *string `json:"jobRole,omitempty"`
	JobDescription   *string `json:"jobDescription,omitempty"`
	Company          *string `json:"company,omitempty"`
	TimeLimitMinutes *int    `json:"timeLimitMinutes,omitempty"`
}

// InterviewWithToken is returned on create/rotate so the recruiter can
// share the invite link.
type InterviewWithToken struct {
	Interview *Interview `json:"interview"`
	Token     string     `json:"token"`
}

// CandidateMessageRequest is one typed utterance on the text path.
type CandidateMessageRequest struct {
	Content string `json:"content"`
}

// CandidateMessageResponse carries the assistant reply for text interviews.
type CandidateMessageResponse struct {
	Reply string `json:"reply"`
}

// UploadURLResponse carries a presigned recording upload target.
type UploadURLResponse struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// DownloadURLResponse carries a presigned recording download link.
type DownloadURLResponse struct {
	URL string `json:"url"`
}
