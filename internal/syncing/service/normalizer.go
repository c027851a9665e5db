package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"leadbridge/internal/syncing/domain"
	"leadbridge/internal/syncing/ports"
)

// SkipInvalidPayload marks webhook bodies that could not be normalized.
const SkipInvalidPayload = "invalid_payload"

// WebhookPayload is the raw body delivered by the engagement platform.
type WebhookPayload struct {
	EventType      string     `json:"event_type"`
	Email          string     `json:"lead_email"`
	CampaignID     string     `json:"campaign_id"`
	CampaignName   string     `json:"campaign_name"`
	ReplyCount     int        `json:"reply_count"`
	OpenCount      int        `json:"open_count"`
	ClickCount     int        `json:"click_count"`
	LastReplyAt    *time.Time `json:"last_reply_at"`
	LastOpenAt     *time.Time `json:"last_open_at"`
	LastClickAt    *time.Time `json:"last_click_at"`
	InterestStatus *int       `json:"interest_status"`
	LeadStatus     *int       `json:"lead_status"`
	Force          bool       `json:"force"`
}

// ParseWebhookPayload normalizes a raw webhook body into a LeadEvent.
// Unknown event type names map to EventUnknown rather than erroring; the
// resolver decides what to do with them.
func ParseWebhookPayload(raw []byte) (domain.LeadEvent, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.LeadEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	if payload.Email == "" {
		return domain.LeadEvent{}, fmt.Errorf("webhook payload missing lead_email")
	}
	if payload.CampaignID == "" {
		return domain.LeadEvent{}, fmt.Errorf("webhook payload missing campaign_id")
	}
	if payload.EventType == "" {
		return domain.LeadEvent{}, fmt.Errorf("webhook payload missing event_type")
	}

	return domain.LeadEvent{
		Email:          payload.Email,
		CampaignID:     payload.CampaignID,
		CampaignName:   payload.CampaignName,
		Type:           domain.ParseEventType(payload.EventType),
		Source:         domain.SourceWebhook,
		ReplyCount:     payload.ReplyCount,
		OpenCount:      payload.OpenCount,
		ClickCount:     payload.ClickCount,
		LastReplyAt:    payload.LastReplyAt,
		LastOpenAt:     payload.LastOpenAt,
		LastClickAt:    payload.LastClickAt,
		InterestStatus: payload.InterestStatus,
		LeadStatus:     payload.LeadStatus,
		Force:          payload.Force,
		RawPayload:     json.RawMessage(raw),
	}, nil
}

// FromSnapshot normalizes a polled lead row into a backfill LeadEvent.
func FromSnapshot(campaign *ports.Campaign, lead ports.OutreachLead, source domain.Source) domain.LeadEvent {
	eventType := domain.EventBackfillSnapshot
	if source == domain.SourceManual {
		eventType = domain.EventManualResync
	}

	event := domain.LeadEvent{
		Email:          lead.Email,
		Type:           eventType,
		Source:         source,
		ReplyCount:     lead.ReplyCount,
		OpenCount:      lead.OpenCount,
		ClickCount:     lead.ClickCount,
		LastReplyAt:    lead.LastReplyAt,
		LastOpenAt:     lead.LastOpenAt,
		LastClickAt:    lead.LastClickAt,
		InterestStatus: lead.InterestStatus,
		LeadStatus:     lead.LeadStatus,
	}
	if campaign != nil {
		event.CampaignID = campaign.ID
		event.CampaignName = campaign.Name
	}
	return event
}

// HandleWebhook is the single real-time entry point. It always returns a
// structured result: malformed payloads resolve to a skip, not an error
// through the transport boundary.
func (s *Service) HandleWebhook(ctx context.Context, raw json.RawMessage) (SyncResult, error) {
	event, err := ParseWebhookPayload(raw)
	if err != nil {
		s.log.WithContext(ctx).Warn("webhook_payload_rejected", "error", err.Error())
		return SyncResult{Skipped: true, SkipReason: SkipInvalidPayload}, nil
	}

	return s.SyncLead(ctx, event)
}
