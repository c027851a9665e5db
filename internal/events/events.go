// Package events defines the domain events emitted by the syncing engine.
package events

import "leadbridge/platform/events"

// Event names.
const (
	LeadSyncedName           = "lead.synced"
	LeadSyncFailedName       = "lead.sync_failed"
	LeadBlocklistedName      = "lead.blocklisted"
	LeadRemovalScheduledName = "lead.removal_scheduled"
	LeadRemovalCancelledName = "lead.removal_cancelled"
	LeadRemovedName          = "lead.removed"
)

// LeadSynced fires after a lead's status lands in the CRM.
type LeadSynced struct {
	events.BaseEvent
	Email      string `json:"email"`
	CampaignID string `json:"campaign_id"`
	EventType  string `json:"event_type"`
	StatusKey  string `json:"status_key"`
}

func (LeadSynced) EventName() string { return LeadSyncedName }

// LeadSyncFailed fires when a sync attempt ends in a failed ledger row.
type LeadSyncFailed struct {
	events.BaseEvent
	Email      string `json:"email"`
	CampaignID string `json:"campaign_id"`
	EventType  string `json:"event_type"`
	Error      string `json:"error"`
}

func (LeadSyncFailed) EventName() string { return LeadSyncFailedName }

// LeadBlocklisted fires when an email is added to the local blocklist.
type LeadBlocklisted struct {
	events.BaseEvent
	Email  string `json:"email"`
	Reason string `json:"reason"`
}

func (LeadBlocklisted) EventName() string { return LeadBlocklistedName }

// LeadRemovalScheduled fires when a completed lead enters the grace window.
type LeadRemovalScheduled struct {
	events.BaseEvent
	Email      string `json:"email"`
	CampaignID string `json:"campaign_id"`
	DueAt      string `json:"due_at"`
}

func (LeadRemovalScheduled) EventName() string { return LeadRemovalScheduledName }

// LeadRemovalCancelled fires when a late reply pulls a lead out of the
// grace window.
type LeadRemovalCancelled struct {
	events.BaseEvent
	Email      string `json:"email"`
	CampaignID string `json:"campaign_id"`
}

func (LeadRemovalCancelled) EventName() string { return LeadRemovalCancelledName }

// LeadRemoved fires after the cleanup sweep finalizes a removal.
type LeadRemoved struct {
	events.BaseEvent
	Email      string `json:"email"`
	CampaignID string `json:"campaign_id"`
}

func (LeadRemoved) EventName() string { return LeadRemovedName }
