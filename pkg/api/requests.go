package api

import "encoding/json"

// StartBotRequest is the body of POST /bots.
type StartBotRequest struct {
	Platform        string          `json:"platform" binding:"required"`
	NativeMeetingID string          `json:"native_meeting_id" binding:"required"`
	MeetingURL      string          `json:"meeting_url"`
	BotName         string          `json:"bot_name"`
	Language        *string         `json:"language"`
	Task            *string         `json:"task"`
	RequestID       string          `json:"request_id"`
	UserID          string          `json:"user_id" binding:"required"`
}

// toAdmissionConfig re-encodes the flattened REST fields into the
// { language?, task?, bot_name? } shape pkg/admission.Controller.parseConfig
// expects, since the wire request and the validated config share field
// names but not envelope shape.
func (r StartBotRequest) toAdmissionConfig() (json.RawMessage, error) {
	cfg := map[string]any{}
	if r.Language != nil {
		cfg["language"] = *r.Language
	}
	if r.Task != nil {
		cfg["task"] = *r.Task
	}
	if r.BotName != "" {
		cfg["bot_name"] = r.BotName
	}
	return json.Marshal(cfg)
}

// ReconfigureRequest is the body of PATCH /bots/{platform}/{native_meeting_id}/config.
type ReconfigureRequest struct {
	Language *string `json:"language"`
	Task     *string `json:"task"`
}

// callbackEnvelope is the minimal shape every worker callback body shares:
// the session_uid capability token.
type callbackEnvelope struct {
	SessionUID string `json:"session_uid" binding:"required"`
}

// startedCallbackRequest is the body of POST /callback/started.
type startedCallbackRequest struct {
	SessionUID string `json:"session_uid" binding:"required"`
}

// joinedCallbackRequest is the body of POST /callback/joined.
type joinedCallbackRequest struct {
	SessionUID string `json:"session_uid" binding:"required"`
}

// heartbeatCallbackRequest is the body of POST /callback/heartbeat.
type heartbeatCallbackRequest struct {
	SessionUID string `json:"session_uid" binding:"required"`
}

// statusCallbackRequest is the body of PATCH /callback/status.
type statusCallbackRequest struct {
	SessionUID string `json:"session_uid" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

// exitedCallbackRequest is the body of POST /callback/exited.
type exitedCallbackRequest struct {
	SessionUID string `json:"session_uid" binding:"required"`
	ExitCode   int    `json:"exit_code"`
	Reason     string `json:"reason"`
}
