package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LifecycleState tracks a lead through delayed cleanup.
const (
	LifecycleActive                  = "active"
	LifecycleCompletedPendingRemoval = "completed_pending_removal"
	LifecycleRemoved                 = "removed"
)

type Lead struct {
	ID             uuid.UUID
	Email          string
	CampaignID     string
	CampaignName   string
	FirstName      *string
	LastName       *string
	CompanyName    *string
	Phone          *string
	Website        *string
	Title          *string
	StatusKey      *string
	Qualification  *string
	CRMPersonID    *string
	CRMOrgID       *string
	LifecycleState string
	Blocklisted    bool
	ReplyCount     int
	OpenCount      int
	ClickCount     int
	LastReplyAt    *time.Time
	LastOpenAt     *time.Time
	LastClickAt    *time.Time
	RemovalDueAt   *time.Time
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const leadColumns = `
	id, email, campaign_id, campaign_name, first_name, last_name, company_name,
	phone, website, title, status_key, qualification, crm_person_id, crm_org_id,
	lifecycle_state, blocklisted, reply_count, open_count, click_count,
	last_reply_at, last_open_at, last_click_at, removal_due_at, last_synced_at,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.Email, &lead.CampaignID, &lead.CampaignName,
		&lead.FirstName, &lead.LastName, &lead.CompanyName,
		&lead.Phone, &lead.Website, &lead.Title,
		&lead.StatusKey, &lead.Qualification, &lead.CRMPersonID, &lead.CRMOrgID,
		&lead.LifecycleState, &lead.Blocklisted,
		&lead.ReplyCount, &lead.OpenCount, &lead.ClickCount,
		&lead.LastReplyAt, &lead.LastOpenAt, &lead.LastClickAt,
		&lead.RemovalDueAt, &lead.LastSyncedAt,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	return lead, err
}

// GetByEmail returns the lead for email within a campaign, or ErrNotFound.
func (r *Repository) GetByEmail(ctx context.Context, email, campaignID string) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE email = $1 AND campaign_id = $2
	`, email, campaignID)

	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

type UpsertLeadParams struct {
	Email        string
	CampaignID   string
	CampaignName string
	FirstName    *string
	LastName     *string
	CompanyName  *string
	Phone        *string
	Website      *string
	Title        *string
}

// Upsert creates the lead row or refreshes its identity fields. Sync state
// columns are left untouched on conflict.
func (r *Repository) Upsert(ctx context.Context, params UpsertLeadParams) (Lead, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (email, campaign_id, campaign_name, first_name, last_name, company_name, phone, website, title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (email, campaign_id) DO UPDATE SET
			campaign_name = COALESCE(NULLIF(EXCLUDED.campaign_name, ''), leads.campaign_name),
			first_name = COALESCE(EXCLUDED.first_name, leads.first_name),
			last_name = COALESCE(EXCLUDED.last_name, leads.last_name),
			company_name = COALESCE(EXCLUDED.company_name, leads.company_name),
			phone = COALESCE(EXCLUDED.phone, leads.phone),
			website = COALESCE(EXCLUDED.website, leads.website),
			title = COALESCE(EXCLUDED.title, leads.title),
			updated_at = now()
		RETURNING `+leadColumns+`
	`, params.Email, params.CampaignID, params.CampaignName, params.FirstName,
		params.LastName, params.CompanyName, params.Phone, params.Website, params.Title)

	return scanLead(row)
}

type SyncStateParams struct {
	StatusKey     *string
	Qualification *string
	CRMPersonID   *string
	CRMOrgID      *string
}

// UpdateSyncState records the outcome of a successful sync.
func (r *Repository) UpdateSyncState(ctx context.Context, email, campaignID string, params SyncStateParams) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			status_key = COALESCE($3, status_key),
			qualification = COALESCE($4, qualification),
			crm_person_id = COALESCE($5, crm_person_id),
			crm_org_id = COALESCE($6, crm_org_id),
			last_synced_at = now(),
			updated_at = now()
		WHERE email = $1 AND campaign_id = $2
	`, email, campaignID, params.StatusKey, params.Qualification, params.CRMPersonID, params.CRMOrgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type EngagementParams struct {
	ReplyCount  *int
	OpenCount   *int
	ClickCount  *int
	LastReplyAt *time.Time
	LastOpenAt  *time.Time
	LastClickAt *time.Time
}

// RecordEngagement merges engagement counters. Counters only move forward:
// a stale snapshot can never shrink them.
func (r *Repository) RecordEngagement(ctx context.Context, email, campaignID string, params EngagementParams) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			reply_count = GREATEST(reply_count, COALESCE($3, reply_count)),
			open_count = GREATEST(open_count, COALESCE($4, open_count)),
			click_count = GREATEST(click_count, COALESCE($5, click_count)),
			last_reply_at = GREATEST(last_reply_at, $6),
			last_open_at = GREATEST(last_open_at, $7),
			last_click_at = GREATEST(last_click_at, $8),
			updated_at = now()
		WHERE email = $1 AND campaign_id = $2
	`, email, campaignID, params.ReplyCount, params.OpenCount, params.ClickCount,
		params.LastReplyAt, params.LastOpenAt, params.LastClickAt)
	return err
}

// MarkPendingRemoval moves an active lead into the grace window ending at dueAt.
func (r *Repository) MarkPendingRemoval(ctx context.Context, email, campaignID string, dueAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			lifecycle_state = $3,
			removal_due_at = $4,
			updated_at = now()
		WHERE email = $1 AND campaign_id = $2 AND lifecycle_state = $5
	`, email, campaignID, LifecycleCompletedPendingRemoval, dueAt, LifecycleActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelPendingRemoval returns a pending-removal lead to the active state.
func (r *Repository) CancelPendingRemoval(ctx context.Context, email, campaignID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			lifecycle_state = $3,
			removal_due_at = NULL,
			updated_at = now()
		WHERE email = $1 AND campaign_id = $2 AND lifecycle_state = $4
	`, email, campaignID, LifecycleActive, LifecycleCompletedPendingRemoval)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRemoved finalizes the removal of a pending-removal lead.
func (r *Repository) MarkRemoved(ctx context.Context, email, campaignID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET
			lifecycle_state = $3,
			removal_due_at = NULL,
			updated_at = now()
		WHERE email = $1 AND campaign_id = $2 AND lifecycle_state = $4
	`, email, campaignID, LifecycleRemoved, LifecycleCompletedPendingRemoval)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingRemovals returns leads whose grace window expired at or before now.
func (r *Repository) ListPendingRemovals(ctx context.Context, now time.Time, limit int) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE lifecycle_state = $1 AND removal_due_at <= $2
		ORDER BY removal_due_at ASC
		LIMIT $3
	`, LifecycleCompletedPendingRemoval, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// SetBlocklisted flips the blocklist flag on every row for the email,
// across campaigns.
func (r *Repository) SetBlocklisted(ctx context.Context, email string, blocklisted bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET blocklisted = $2, updated_at = now()
		WHERE email = $1
	`, email, blocklisted)
	return err
}

// HasReplyAfter reports whether the lead's last recorded reply is strictly
// after the given time.
func (r *Repository) HasReplyAfter(ctx context.Context, email, campaignID string, after time.Time) (bool, error) {
	var has bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE email = $1 AND campaign_id = $2 AND last_reply_at > $3
		)
	`, email, campaignID, after).Scan(&has)
	return has, err
}
