// Package admission implements the admission controller: validation and
// defaulting in front of the store's Reserve operation.
package admission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/codeready-toolchain/botlifecycle/pkg/metrics"
	"github.com/codeready-toolchain/botlifecycle/pkg/models"
	"github.com/codeready-toolchain/botlifecycle/pkg/retry"
	"github.com/codeready-toolchain/botlifecycle/pkg/store"
)

// Request is the raw, unvalidated admission request as decoded from the
// REST API's JSON body.
type Request struct {
	UserID          string          `json:"user_id"`
	Platform        string          `json:"platform"`
	NativeMeetingID string          `json:"native_meeting_id"`
	MeetingURL      string          `json:"meeting_url"`
	RequestID       string          `json:"request_id"`
	Config          json.RawMessage `json:"config"`
}

// rawConfig mirrors models.BotConfig but rejects unrecognized keys.
type rawConfig struct {
	Language *string `json:"language"`
	Task     *string `json:"task"`
	BotName  *string `json:"bot_name"`
}

const maxBotNameRunes = 64

// Controller validates and admits bot start requests.
type Controller struct {
	store                *store.Store
	allowedPlatformHosts map[string][]string
}

// New builds a Controller backed by st, restricting meeting_url validation
// to the given per-platform host allowlist (pkg/config.Config.AllowedPlatformHosts).
func New(st *store.Store, allowedPlatformHosts map[string][]string) *Controller {
	return &Controller{store: st, allowedPlatformHosts: allowedPlatformHosts}
}

// Admit validates req, applies defaults, and — if admitted — reserves a new
// Meeting via the State Store Gateway.
func (c *Controller) Admit(ctx context.Context, req Request) (*models.Meeting, error) {
	platform := models.Platform(req.Platform)
	if !platform.Valid() {
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidPlatform, req.Platform)
	}

	if err := c.validateURL(platform, req.MeetingURL); err != nil {
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	cfg, err := c.parseConfig(req.Config)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if req.UserID == "" {
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrMissingUserID
	}

	var meeting *models.Meeting
	err = retry.DoIf(ctx, retry.DefaultConfig(), 3, store.IsUnavailable, func(ctx context.Context) error {
		var reserveErr error
		meeting, reserveErr = c.store.Reserve(ctx, store.ReserveInput{
			UserID:          req.UserID,
			Platform:        platform,
			NativeMeetingID: req.NativeMeetingID,
			MeetingURL:      req.MeetingURL,
			Config:          cfg,
			RequestID:       req.RequestID,
		})
		return reserveErr
	})
	switch {
	case errors.Is(err, store.ErrLimitExceeded):
		metrics.AdmissionsTotal.WithLabelValues("limit_exceeded").Inc()
	case err != nil:
		metrics.AdmissionsTotal.WithLabelValues("rejected").Inc()
	default:
		metrics.AdmissionsTotal.WithLabelValues("admitted").Inc()
	}
	return meeting, err
}

func (c *Controller) parseConfig(raw json.RawMessage) (models.BotConfig, error) {
	var cfg models.BotConfig
	if len(raw) == 0 {
		cfg.Task = models.TaskTranscribe
		cfg.BotName = "Bot"
		return cfg, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var parsed rawConfig
	if err := dec.Decode(&parsed); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
	}

	cfg.Language = parsed.Language

	if parsed.Task == nil {
		cfg.Task = models.TaskTranscribe
	} else {
		cfg.Task = models.Task(*parsed.Task)
		if !cfg.Task.Valid() {
			return cfg, fmt.Errorf("%w: %q", ErrInvalidTask, *parsed.Task)
		}
	}

	if parsed.BotName == nil || *parsed.BotName == "" {
		cfg.BotName = "Bot"
	} else {
		name := *parsed.BotName
		if !validBotName(name) {
			return cfg, ErrInvalidBotName
		}
		cfg.BotName = name
	}

	return cfg, nil
}

func validBotName(name string) bool {
	runeCount := 0
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
		runeCount++
		if runeCount > maxBotNameRunes {
			return false
		}
	}
	return runeCount >= 1
}

func (c *Controller) validateURL(platform models.Platform, rawURL string) error {
	if rawURL == "" {
		// meeting_url is optional: the worker can resolve the join URL
		// from the platform and native meeting id alone.
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidMeetingURL, rawURL)
	}

	allowed, ok := c.allowedPlatformHosts[string(platform)]
	if !ok {
		return nil
	}
	host := strings.ToLower(parsed.Hostname())
	for _, pattern := range allowed {
		if hostMatches(host, strings.ToLower(pattern)) {
			return nil
		}
	}
	return fmt.Errorf("%w: host %q not allowed for platform %q", ErrInvalidMeetingURL, host, platform)
}

// hostMatches supports a leading "*." wildcard prefix in allowlist entries.
func hostMatches(host, pattern string) bool {
	if strings.HasPrefix(pattern, "*.") {
		suffix := pattern[1:] // keep leading dot
		return strings.HasSuffix(host, suffix) && host != suffix[1:]
	}
	return host == pattern
}
