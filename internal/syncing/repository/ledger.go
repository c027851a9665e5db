package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sync record outcomes.
const (
	SyncOutcomeSynced  = "synced"
	SyncOutcomeSkipped = "skipped"
	SyncOutcomeFailed  = "failed"
)

// SyncRecord is one row of the idempotency ledger. The table carries a
// UNIQUE(email, campaign_id, event_type) constraint, so re-delivery of the
// same event lands on the same row.
type SyncRecord struct {
	ID             uuid.UUID
	Email          string
	CampaignID     string
	EventType      string
	Source         string
	Outcome        string
	SkipReason     *string
	ErrorMessage   *string
	StatusKey      *string
	CRMOrgID       *string
	CRMPersonID    *string
	ActivitySynced bool
	ActivityCount  int
	ActivityError  *string
	RawPayload     json.RawMessage
	AttemptCount   int
	SyncedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const syncRecordColumns = `
	id, email, campaign_id, event_type, source, outcome, skip_reason,
	error_message, status_key, crm_org_id, crm_person_id,
	activity_synced, activity_count, activity_error,
	raw_payload, attempt_count, synced_at, created_at, updated_at`

func scanSyncRecord(row pgx.Row) (SyncRecord, error) {
	var rec SyncRecord
	err := row.Scan(
		&rec.ID, &rec.Email, &rec.CampaignID, &rec.EventType, &rec.Source,
		&rec.Outcome, &rec.SkipReason, &rec.ErrorMessage, &rec.StatusKey,
		&rec.CRMOrgID, &rec.CRMPersonID,
		&rec.ActivitySynced, &rec.ActivityCount, &rec.ActivityError,
		&rec.RawPayload, &rec.AttemptCount, &rec.SyncedAt,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

// GetSyncRecord returns the ledger row for the (email, campaign, event type)
// key, or ErrNotFound.
func (r *Repository) GetSyncRecord(ctx context.Context, email, campaignID, eventType string) (SyncRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+syncRecordColumns+`
		FROM sync_records
		WHERE email = $1 AND campaign_id = $2 AND event_type = $3
	`, email, campaignID, eventType)

	rec, err := scanSyncRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SyncRecord{}, ErrNotFound
	}
	return rec, err
}

type UpsertSyncRecordParams struct {
	Email          string
	CampaignID     string
	EventType      string
	Source         string
	Outcome        string
	SkipReason     *string
	ErrorMessage   *string
	StatusKey      *string
	CRMOrgID       *string
	CRMPersonID    *string
	ActivitySynced bool
	ActivityCount  int
	ActivityError  *string
	RawPayload     json.RawMessage
}

// UpsertSyncRecord writes the ledger row for the event key. On conflict the
// outcome is overwritten and the attempt counter advances, so a retry that
// succeeds flips a failed row to synced.
func (r *Repository) UpsertSyncRecord(ctx context.Context, params UpsertSyncRecordParams) (SyncRecord, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sync_records (email, campaign_id, event_type, source, outcome, skip_reason, error_message, status_key, crm_org_id, crm_person_id, activity_synced, activity_count, activity_error, raw_payload, attempt_count, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1, CASE WHEN $5 = 'synced' THEN now() END)
		ON CONFLICT (email, campaign_id, event_type) DO UPDATE SET
			source = EXCLUDED.source,
			outcome = EXCLUDED.outcome,
			skip_reason = EXCLUDED.skip_reason,
			error_message = EXCLUDED.error_message,
			status_key = COALESCE(EXCLUDED.status_key, sync_records.status_key),
			crm_org_id = COALESCE(EXCLUDED.crm_org_id, sync_records.crm_org_id),
			crm_person_id = COALESCE(EXCLUDED.crm_person_id, sync_records.crm_person_id),
			activity_synced = EXCLUDED.activity_synced OR sync_records.activity_synced,
			activity_count = GREATEST(EXCLUDED.activity_count, sync_records.activity_count),
			activity_error = EXCLUDED.activity_error,
			raw_payload = COALESCE(EXCLUDED.raw_payload, sync_records.raw_payload),
			attempt_count = sync_records.attempt_count + 1,
			synced_at = CASE WHEN EXCLUDED.outcome = 'synced' THEN now() ELSE sync_records.synced_at END,
			updated_at = now()
		RETURNING `+syncRecordColumns+`
	`, params.Email, params.CampaignID, params.EventType, params.Source,
		params.Outcome, params.SkipReason, params.ErrorMessage, params.StatusKey,
		params.CRMOrgID, params.CRMPersonID, params.ActivitySynced, params.ActivityCount,
		params.ActivityError, params.RawPayload)

	return scanSyncRecord(row)
}

// HasSyncedEmail reports whether any campaign has a synced ledger row for
// the email. Used for cross-campaign dedup.
func (r *Repository) HasSyncedEmail(ctx context.Context, email string, excludeCampaignID string) (bool, error) {
	var has bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sync_records
			WHERE email = $1 AND campaign_id <> $2 AND outcome = 'synced'
		)
	`, email, excludeCampaignID).Scan(&has)
	return has, err
}

// ListFailedSyncRecords returns failed ledger rows for the retry pass,
// oldest first.
func (r *Repository) ListFailedSyncRecords(ctx context.Context, limit int) ([]SyncRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+syncRecordColumns+`
		FROM sync_records
		WHERE outcome = 'failed'
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]SyncRecord, 0)
	for rows.Next() {
		rec, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type ListSyncRecordsParams struct {
	CampaignID string
	Email      string
	Outcome    string
	Limit      int
	Offset     int
}

// ListSyncRecords returns ledger rows matching the optional filters,
// newest first.
func (r *Repository) ListSyncRecords(ctx context.Context, params ListSyncRecordsParams) ([]SyncRecord, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+syncRecordColumns+`
		FROM sync_records
		WHERE ($1 = '' OR campaign_id = $1)
		  AND ($2 = '' OR email = $2)
		  AND ($3 = '' OR outcome = $3)
		ORDER BY updated_at DESC
		LIMIT $4 OFFSET $5
	`, params.CampaignID, params.Email, params.Outcome, limit, params.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]SyncRecord, 0)
	for rows.Next() {
		rec, err := scanSyncRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
