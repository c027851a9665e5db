// Package transport defines request and response DTOs for the syncing
// admin API.
package transport

import (
	"time"

	"leadbridge/internal/syncing/repository"

	"github.com/google/uuid"
)

// TriggerBackfillRequest starts a campaign backfill. Async runs route
// through the task queue; synchronous runs block until the time box or
// the end of the campaign.
type TriggerBackfillRequest struct {
	CampaignID string `json:"campaignId" validate:"required,min=1,max=100"`
	BatchSize  int    `json:"batchSize" validate:"min=0,max=500"`
	MaxLeads   int    `json:"maxLeads" validate:"min=0"`
	Cursor     string `json:"cursor" validate:"max=500"`
	Force      bool   `json:"force"`
	Async      bool   `json:"async"`
}

// TriggerBackfillResponse is returned for queued backfill runs.
type TriggerBackfillResponse struct {
	CampaignID string `json:"campaignId"`
	Queued     bool   `json:"queued"`
}

// RetryFailedRequest re-runs failed sync records through the pipeline.
type RetryFailedRequest struct {
	Limit int `json:"limit" validate:"min=0,max=500"`
}

// ResyncLeadRequest forces one lead through the pipeline from a fresh
// platform snapshot.
type ResyncLeadRequest struct {
	CampaignID string `json:"campaignId" validate:"required,min=1,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Force      bool   `json:"force"`
}

// BlocklistEntryRequest adds a suppression entry.
type BlocklistEntryRequest struct {
	Kind   string `json:"kind" validate:"required,oneof=email domain"`
	Value  string `json:"value" validate:"required,min=1,max=320"`
	Reason string `json:"reason" validate:"max=500"`
}

// SyncRecordResponse is one ledger row as exposed by the admin API. The
// raw payload is omitted; it can be replayed but not browsed.
type SyncRecordResponse struct {
	ID             uuid.UUID  `json:"id"`
	Email          string     `json:"email"`
	CampaignID     string     `json:"campaignId"`
	EventType      string     `json:"eventType"`
	Source         string     `json:"source"`
	Outcome        string     `json:"outcome"`
	SkipReason     *string    `json:"skipReason,omitempty"`
	ErrorMessage   *string    `json:"errorMessage,omitempty"`
	StatusKey      *string    `json:"statusKey,omitempty"`
	CRMOrgID       *string    `json:"crmOrgId,omitempty"`
	CRMPersonID    *string    `json:"crmPersonId,omitempty"`
	ActivitySynced bool       `json:"activitySynced"`
	ActivityCount  int        `json:"activityCount"`
	AttemptCount   int        `json:"attemptCount"`
	SyncedAt       *time.Time `json:"syncedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func ToSyncRecordResponse(rec repository.SyncRecord) SyncRecordResponse {
	return SyncRecordResponse{
		ID:             rec.ID,
		Email:          rec.Email,
		CampaignID:     rec.CampaignID,
		EventType:      rec.EventType,
		Source:         rec.Source,
		Outcome:        rec.Outcome,
		SkipReason:     rec.SkipReason,
		ErrorMessage:   rec.ErrorMessage,
		StatusKey:      rec.StatusKey,
		CRMOrgID:       rec.CRMOrgID,
		CRMPersonID:    rec.CRMPersonID,
		ActivitySynced: rec.ActivitySynced,
		ActivityCount:  rec.ActivityCount,
		AttemptCount:   rec.AttemptCount,
		SyncedAt:       rec.SyncedAt,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func ToSyncRecordResponses(records []repository.SyncRecord) []SyncRecordResponse {
	result := make([]SyncRecordResponse, len(records))
	for i, rec := range records {
		result[i] = ToSyncRecordResponse(rec)
	}
	return result
}

// BlocklistEntryResponse is one suppression entry.
type BlocklistEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	Reason    *string   `json:"reason,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func ToBlocklistResponse(entry repository.BlocklistEntry) BlocklistEntryResponse {
	return BlocklistEntryResponse{
		ID:        entry.ID,
		Kind:      entry.Kind,
		Value:     entry.Value,
		Reason:    entry.Reason,
		Active:    entry.Active,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}

func ToBlocklistResponses(entries []repository.BlocklistEntry) []BlocklistEntryResponse {
	result := make([]BlocklistEntryResponse, len(entries))
	for i, entry := range entries {
		result[i] = ToBlocklistResponse(entry)
	}
	return result
}
