package httpdto

import (
	"tutor-match/internal/services"
)

// SwipeRequest is used for POST /v1/swipes
type SwipeRequest struct {
	TargetID string `json:"target_id" binding:"required,uuid"`
	Action   string `json:"action" binding:"required,swipe_action"`
}

// SwipeResponse is returned after a swipe is recorded
type SwipeResponse struct {
	Success            bool   `json:"success"`
	Status             string `json:"status"`
	MatchID            string `json:"match_id,omitempty"`
	MutualLikeDetected bool   `json:"mutual_like_detected"`
}

func ToSwipeResponse(r services.SwipeResult) SwipeResponse {
	resp := SwipeResponse{
		Success:            true,
		Status:             r.Status,
		MutualLikeDetected: r.MutualLikeDetected,
	}
	if r.Match != nil {
		resp.MatchID = r.Match.ID.String()
	}
	return resp
}
