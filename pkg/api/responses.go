package api

import (
	"time"

	"github.com/codeready-toolchain/botlifecycle/pkg/models"
)

// MeetingResponse is the read-only projection of a models.Meeting returned
// from POST /bots, GET /meetings, and GET /meetings/{id}.
type MeetingResponse struct {
	MeetingID       string     `json:"meeting_id"`
	UserID          string     `json:"user_id"`
	Platform        string     `json:"platform"`
	NativeMeetingID string     `json:"native_meeting_id"`
	MeetingURL      string     `json:"meeting_url"`
	Status          string     `json:"status"`
	BotContainerID  *string    `json:"bot_container_id,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CreatedAt       time.Time  `json:"created_at"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	Language        *string    `json:"language,omitempty"`
	Task            string     `json:"task"`
	BotName         string     `json:"bot_name"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string       `json:"status"`
	Version      string       `json:"version"`
	Store        StoreHealth  `json:"store"`
	Reaper       ReaperHealth `json:"reaper"`
	Orchestrator string       `json:"orchestrator_backend"`
}

// StoreHealth summarizes State Store Gateway reachability.
type StoreHealth struct {
	Reachable bool `json:"reachable"`
	OpenConns int  `json:"open_conns"`
	InUse     int  `json:"in_use"`
	Idle      int  `json:"idle"`
}

// ReaperHealth summarizes the Reaper's last-scan bookkeeping.
type ReaperHealth struct {
	LastScan          time.Time `json:"last_scan"`
	MeetingsRecovered int       `json:"meetings_recovered"`
}

// toMeetingResponse projects a models.Meeting onto its wire shape.
func toMeetingResponse(m *models.Meeting) *MeetingResponse {
	return &MeetingResponse{
		MeetingID:       m.MeetingID,
		UserID:          m.UserID,
		Platform:        string(m.Platform),
		NativeMeetingID: m.NativeMeetingID,
		MeetingURL:      m.MeetingURL,
		Status:          string(m.Status),
		BotContainerID:  m.BotContainerID,
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		UpdatedAt:       m.UpdatedAt,
		CreatedAt:       m.CreatedAt,
		FailureReason:   m.FailureReason,
		Language:        m.Config.Language,
		Task:            string(m.Config.Task),
		BotName:         m.Config.BotName,
	}
}
