package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Blocklist entry kinds.
const (
	BlocklistKindEmail  = "email"
	BlocklistKindDomain = "domain"
)

type BlocklistEntry struct {
	ID        uuid.UUID
	Kind      string
	Value     string
	Reason    *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func scanBlocklistEntry(row pgx.Row) (BlocklistEntry, error) {
	var entry BlocklistEntry
	err := row.Scan(&entry.ID, &entry.Kind, &entry.Value, &entry.Reason,
		&entry.Active, &entry.CreatedAt, &entry.UpdatedAt)
	return entry, err
}

// ActiveBlocklistEntry returns the active entry matching the email or its
// domain, exact email match first. One round trip covers both tiers of the
// local check. Returns nil when nothing matches.
func (r *Repository) ActiveBlocklistEntry(ctx context.Context, email, domain string) (*BlocklistEntry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, kind, value, reason, active, created_at, updated_at
		FROM blocklist_entries
		WHERE active = true
		  AND ((kind = 'email' AND value = $1) OR (kind = 'domain' AND value = $2))
		ORDER BY CASE kind WHEN 'email' THEN 0 ELSE 1 END
		LIMIT 1
	`, email, domain)

	entry, err := scanBlocklistEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

type UpsertBlocklistParams struct {
	Kind   string
	Value  string
	Reason *string
}

// UpsertBlocklistEntry creates or reactivates the entry for (kind, value).
func (r *Repository) UpsertBlocklistEntry(ctx context.Context, params UpsertBlocklistParams) (BlocklistEntry, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO blocklist_entries (kind, value, reason, active)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (kind, value) DO UPDATE SET
			reason = COALESCE(EXCLUDED.reason, blocklist_entries.reason),
			active = true,
			updated_at = now()
		RETURNING id, kind, value, reason, active, created_at, updated_at
	`, params.Kind, params.Value, params.Reason)

	return scanBlocklistEntry(row)
}

// DeactivateBlocklistEntry soft-deletes the entry. Returns false when no
// active entry matched.
func (r *Repository) DeactivateBlocklistEntry(ctx context.Context, kind, value string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blocklist_entries SET active = false, updated_at = now()
		WHERE kind = $1 AND value = $2 AND active = true
	`, kind, value)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListBlocklistEntries returns entries, optionally filtered by kind,
// newest first.
func (r *Repository) ListBlocklistEntries(ctx context.Context, kind string, limit, offset int) ([]BlocklistEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, value, reason, active, created_at, updated_at
		FROM blocklist_entries
		WHERE ($1 = '' OR kind = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]BlocklistEntry, 0)
	for rows.Next() {
		entry, err := scanBlocklistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
