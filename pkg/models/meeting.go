// Package models holds the wire and storage types shared by the State Store
// Gateway, the REST API, and the worker contract.
package models

import "time"

// Status is a Meeting's lifecycle state.
type Status string

// Recognized Meeting statuses. The zero value is never valid on a stored row.
const (
	StatusReserved  Status = "reserved"
	StatusStarting  Status = "starting"
	StatusActive    Status = "active"
	StatusStopping  Status = "stopping"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is a DAG sink.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// edges is the allowed-transition DAG.
var edges = map[Status][]Status{
	StatusReserved: {StatusStarting, StatusFailed},
	StatusStarting: {StatusActive, StatusFailed},
	StatusActive:   {StatusStopping, StatusFailed, StatusCompleted},
	StatusStopping: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from → to is an edge of the lifecycle DAG.
func CanTransition(from, to Status) bool {
	for _, allowed := range edges[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionsInto returns every status with a DAG edge into to, in a fixed
// order. Callers derive their compare-and-set from-sets from this so the
// DAG here stays the single definition of legal transitions.
func TransitionsInto(to Status) []Status {
	var from []Status
	for _, f := range []Status{StatusReserved, StatusStarting, StatusActive, StatusStopping} {
		for _, t := range edges[f] {
			if t == to {
				from = append(from, f)
			}
		}
	}
	return from
}

// Platform is the closed set of conferencing platforms the BLM admits bots
// into.
type Platform string

// Recognized platforms.
const (
	PlatformZoom       Platform = "zoom"
	PlatformGoogleMeet Platform = "google_meet"
	PlatformTeams      Platform = "teams"
)

// Valid reports whether p is a recognized platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformZoom, PlatformGoogleMeet, PlatformTeams:
		return true
	default:
		return false
	}
}

// Task is the bot's recording mode.
type Task string

// Recognized tasks.
const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// Valid reports whether t is a recognized task.
func (t Task) Valid() bool {
	return t == TaskTranscribe || t == TaskTranslate
}

// BotConfig is the recognized, enumerated bot config mapping. Unknown keys
// are rejected at the admission boundary, not here.
type BotConfig struct {
	Language *string `json:"language,omitempty"`
	Task     Task    `json:"task"`
	BotName  string  `json:"bot_name"`
}

// Meeting is the single authoritative record for one bot attempt.
type Meeting struct {
	MeetingID       string
	UserID          string
	Platform        Platform
	NativeMeetingID string
	MeetingURL      string
	Status          Status
	BotContainerID  *string
	StartTime       *time.Time
	EndTime         *time.Time
	UpdatedAt       time.Time
	LastHeartbeatAt *time.Time
	CreatedAt       time.Time
	Config          BotConfig
	PendingConfig   *BotConfig
	FailureReason   *string
	RequestID       string
	SessionUID      string
	OwnerInstanceID *string
}

// MeetingSession is created by the worker on first startup callback.
type MeetingSession struct {
	SessionUID       string
	MeetingID        string
	SessionStartTime time.Time
}

// User is consulted but not owned by the BLM.
type User struct {
	UserID            string
	MaxConcurrentBots int
}
