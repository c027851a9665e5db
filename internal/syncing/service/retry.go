package service

import (
	"context"
	"fmt"

	"leadbridge/internal/syncing/repository"
)

// RetryResult reports one out-of-band retry pass over failed ledger rows.
type RetryResult struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// RetryFailed re-runs failed sync records through the pipeline. Records
// carry the original raw payload, so webhook events replay exactly; rows
// without a payload cannot be reconstructed and are counted as skipped.
func (s *Service) RetryFailed(ctx context.Context, limit int) (RetryResult, error) {
	if limit <= 0 {
		limit = 50
	}

	var result RetryResult
	failed, err := s.ledger.ListFailedSyncRecords(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("list failed records: %w", err)
	}

	for _, rec := range failed {
		if len(rec.RawPayload) == 0 {
			result.Skipped++
			continue
		}

		event, err := ParseWebhookPayload(rec.RawPayload)
		if err != nil {
			s.log.Warn("retry_payload_unreadable", "email", rec.Email, "campaign_id", rec.CampaignID)
			result.Skipped++
			continue
		}

		result.Attempted++
		syncResult, err := s.SyncLead(ctx, event)
		switch {
		case err != nil:
			s.log.DatabaseError("retry_sync_lead", err)
			result.Failed++
		case syncResult.Synced:
			result.Synced++
		case syncResult.Error != "":
			result.Failed++
		default:
			result.Skipped++
		}
	}

	return result, nil
}

// ListSyncRecords exposes the ledger for the admin API.
func (s *Service) ListSyncRecords(ctx context.Context, params repository.ListSyncRecordsParams) ([]repository.SyncRecord, error) {
	return s.ledger.ListSyncRecords(ctx, params)
}

// ListBlocklist exposes the local blocklist for the admin API.
func (s *Service) ListBlocklist(ctx context.Context, kind string, limit, offset int) ([]repository.BlocklistEntry, error) {
	return s.blocklist.ListBlocklistEntries(ctx, kind, limit, offset)
}

// AddBlocklistEntry writes through the gate so the engagement platform's
// blocklist stays mirrored.
func (s *Service) AddBlocklistEntry(ctx context.Context, kind, value, reason string) (repository.BlocklistEntry, error) {
	return s.gate.Add(ctx, kind, value, reason)
}

// RemoveBlocklistEntry deactivates a local entry.
func (s *Service) RemoveBlocklistEntry(ctx context.Context, kind, value string) (bool, error) {
	return s.gate.Remove(ctx, kind, value)
}
