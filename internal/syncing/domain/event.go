// Package domain provides the core business rules for the syncing bounded
// context: the lead event model, the canonical status set with its priority
// ordering, and the pure status resolver.
package domain

import (
	"encoding/json"
	"time"
)

// Source identifies which ingestion path produced a LeadEvent.
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceBackfill Source = "backfill"
	SourceManual   Source = "manual"
)

// EventType is the closed set of lead event kinds the engine understands.
type EventType string

const (
	// Engagement signals: recorded, but never change CRM status.
	EventEmailSent        EventType = "email_sent"
	EventEmailOpened      EventType = "email_opened"
	EventEmailLinkClicked EventType = "email_link_clicked"
	EventAutoReply        EventType = "auto_reply_received"
	EventOutOfOffice      EventType = "out_of_office"
	EventAccountError     EventType = "account_error"

	// Interest signals.
	EventReplyReceived     EventType = "reply_received"
	EventLeadInterested    EventType = "lead_interested"
	EventLeadNeutral       EventType = "lead_neutral"
	EventLeadNotInterested EventType = "lead_not_interested"
	EventWrongPerson       EventType = "wrong_person"
	EventMeetingBooked     EventType = "meeting_booked"
	EventMeetingCompleted  EventType = "meeting_completed"
	EventClosedWon         EventType = "closed_won"
	EventClosedLost        EventType = "closed_lost"

	// Critical signals: always win, regardless of arrival order.
	EventEmailBounced     EventType = "email_bounced"
	EventLeadUnsubscribed EventType = "lead_unsubscribed"

	// Meta signals.
	EventCampaignCompleted EventType = "campaign_completed"
	EventBackfillSnapshot  EventType = "backfill_snapshot"
	EventManualResync      EventType = "manual_resync"
	EventUnknown           EventType = "unknown"
)

// wireEventNames maps the engagement platform's webhook event names to the
// canonical EventType. Names not present here parse to EventUnknown, which
// the resolver treats as "no sync, skip".
var wireEventNames = map[string]EventType{
	"email_sent":          EventEmailSent,
	"email_opened":        EventEmailOpened,
	"email_link_clicked":  EventEmailLinkClicked,
	"link_clicked":        EventEmailLinkClicked,
	"reply_received":      EventReplyReceived,
	"auto_reply_received": EventAutoReply,
	"out_of_office":       EventOutOfOffice,
	"account_error":       EventAccountError,
	"lead_interested":     EventLeadInterested,
	"lead_neutral":        EventLeadNeutral,
	"lead_not_interested": EventLeadNotInterested,
	"wrong_person":        EventWrongPerson,
	"meeting_booked":      EventMeetingBooked,
	"meeting_completed":   EventMeetingCompleted,
	"closed_won":          EventClosedWon,
	"closed_lost":         EventClosedLost,
	"email_bounced":       EventEmailBounced,
	"lead_unsubscribed":   EventLeadUnsubscribed,
	"campaign_completed":  EventCampaignCompleted,
	"backfill_snapshot":   EventBackfillSnapshot,
	"manual_resync":       EventManualResync,
}

// ParseEventType maps a wire-level event name to an EventType.
func ParseEventType(name string) EventType {
	if t, ok := wireEventNames[name]; ok {
		return t
	}
	return EventUnknown
}

// IsEngagementOnly reports whether the event carries engagement data
// (counters, timestamps) but must never perturb the CRM status.
func (t EventType) IsEngagementOnly() bool {
	switch t {
	case EventEmailSent, EventEmailOpened, EventEmailLinkClicked,
		EventAutoReply, EventOutOfOffice, EventAccountError:
		return true
	}
	return false
}

// Raw interest-status codes reported by the engagement platform on lead
// snapshots. Positive codes are buying signals, negative codes rejections.
const (
	InterestInterested       = 1
	InterestMeetingBooked    = 2
	InterestMeetingCompleted = 3
	InterestClosedWon        = 4
	InterestNotInterested    = -1
	InterestWrongPerson      = -2
	InterestLost             = -3
)

// Raw lead-status codes reported by the engagement platform on snapshots.
const (
	LeadStatusActive       = 1
	LeadStatusPaused       = 2
	LeadStatusCompleted    = 3
	LeadStatusBounced      = -1
	LeadStatusUnsubscribed = -2
)

// LeadEvent is the normalized unit of work consumed by the orchestrator.
// It is constructed fresh per webhook call or per polled lead row and never
// persisted itself; only its resolved outcome reaches the idempotency ledger.
type LeadEvent struct {
	Email        string
	CampaignID   string
	CampaignName string
	Type         EventType
	Source       Source

	ReplyCount int
	OpenCount  int
	ClickCount int

	LastReplyAt *time.Time
	LastOpenAt  *time.Time
	LastClickAt *time.Time

	// InterestStatus and LeadStatus carry the platform's raw codes from a
	// polled snapshot. Nil means the platform reported nothing.
	InterestStatus *int
	LeadStatus     *int

	// Force bypasses the idempotency check and the transition guard.
	Force bool

	// RawPayload is the original wire payload, kept for auditing.
	RawPayload json.RawMessage
}
