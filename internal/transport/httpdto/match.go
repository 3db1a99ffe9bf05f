package httpdto

import (
	"time"

	"tutor-match/internal/domain/match"
)

// AcceptMatchRequest is used for POST /v1/matches/accept. The caller is the tutor.
type AcceptMatchRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
}

// AcceptMatchResponse is returned after a pending like is accepted
type AcceptMatchResponse struct {
	MatchID string `json:"match_id"`
	Status  string `json:"status"`
}

// ListMatchesRequest holds query parameters for listing matches
type ListMatchesRequest struct {
	Status string `form:"status"`
	Order  string `form:"order"`
	Page   int    `form:"page"`
	Limit  int    `form:"limit"`
}

// MatchDTO represents a match in API responses
type MatchDTO struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`
	TutorID      string `json:"tutor_id"`
	Status       string `json:"status"`
	MatchedAt    string `json:"matched_at"`
	LastActivity string `json:"last_activity"`
}

// ListMatchesResponse is returned when listing matches
type ListMatchesResponse struct {
	Matches []MatchDTO `json:"matches"`
	Total   int64      `json:"total"`
	Page    int        `json:"page"`
	Limit   int        `json:"limit"`
}

// CountMatchesResponse is returned for GET /v1/matches/count
type CountMatchesResponse struct {
	Count int64 `json:"count"`
}

func ToMatchDTO(m match.Match) MatchDTO {
	return MatchDTO{
		ID:           m.ID.String(),
		StudentID:    m.StudentID.String(),
		TutorID:      m.TutorID.String(),
		Status:       string(m.Status),
		MatchedAt:    m.MatchedAt.UTC().Format(time.RFC3339),
		LastActivity: m.LastActivity.UTC().Format(time.RFC3339),
	}
}

func ToMatchDTOs(matches []match.Match) []MatchDTO {
	dtos := make([]MatchDTO, len(matches))
	for i, m := range matches {
		dtos[i] = ToMatchDTO(m)
	}
	return dtos
}
