// Package service implements the sync engine: status resolution, the
// idempotency ledger, the blocklist gate, the backfill driver and the
// delayed cleanup sweep.
package service

import (
	"context"
	"errors"
	"time"

	"leadbridge/internal/syncing/ports"
	"leadbridge/internal/syncing/repository"
	"leadbridge/platform/config"
	"leadbridge/platform/events"
	"leadbridge/platform/logger"
)

var (
	ErrLeadNotFound   = errors.New("lead not found")
	ErrRecordNotFound = errors.New("sync record not found")
)

// LeadStore is the persistence surface the engine needs for leads.
type LeadStore interface {
	GetByEmail(ctx context.Context, email, campaignID string) (repository.Lead, error)
	Upsert(ctx context.Context, params repository.UpsertLeadParams) (repository.Lead, error)
	UpdateSyncState(ctx context.Context, email, campaignID string, params repository.SyncStateParams) error
	RecordEngagement(ctx context.Context, email, campaignID string, params repository.EngagementParams) error
	MarkPendingRemoval(ctx context.Context, email, campaignID string, dueAt time.Time) error
	CancelPendingRemoval(ctx context.Context, email, campaignID string) (bool, error)
	MarkRemoved(ctx context.Context, email, campaignID string) error
	ListPendingRemovals(ctx context.Context, now time.Time, limit int) ([]repository.Lead, error)
	SetBlocklisted(ctx context.Context, email string, blocklisted bool) error
	HasReplyAfter(ctx context.Context, email, campaignID string, after time.Time) (bool, error)
}

// Ledger is the idempotency ledger keyed by (email, campaign, event type).
type Ledger interface {
	GetSyncRecord(ctx context.Context, email, campaignID, eventType string) (repository.SyncRecord, error)
	UpsertSyncRecord(ctx context.Context, params repository.UpsertSyncRecordParams) (repository.SyncRecord, error)
	HasSyncedEmail(ctx context.Context, email, excludeCampaignID string) (bool, error)
	ListFailedSyncRecords(ctx context.Context, limit int) ([]repository.SyncRecord, error)
	ListSyncRecords(ctx context.Context, params repository.ListSyncRecordsParams) ([]repository.SyncRecord, error)
}

// BlocklistStore is the local blocklist table.
type BlocklistStore interface {
	ActiveBlocklistEntry(ctx context.Context, email, domain string) (*repository.BlocklistEntry, error)
	UpsertBlocklistEntry(ctx context.Context, params repository.UpsertBlocklistParams) (repository.BlocklistEntry, error)
	DeactivateBlocklistEntry(ctx context.Context, kind, value string) (bool, error)
	ListBlocklistEntries(ctx context.Context, kind string, limit, offset int) ([]repository.BlocklistEntry, error)
}

// Service wires the engine together. All remote systems sit behind the
// ports interfaces so the pipeline is testable without network.
type Service struct {
	leads     LeadStore
	ledger    Ledger
	blocklist BlocklistStore
	outreach  ports.OutreachClient
	crm       ports.CRMClient
	gate      *BlocklistGate
	bus       events.Bus
	cfg       config.SyncConfig
	log       *logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

func New(
	leads LeadStore,
	ledger Ledger,
	blocklist BlocklistStore,
	outreach ports.OutreachClient,
	crm ports.CRMClient,
	bus events.Bus,
	cfg config.SyncConfig,
	log *logger.Logger,
) *Service {
	return &Service{
		leads:     leads,
		ledger:    ledger,
		blocklist: blocklist,
		outreach:  outreach,
		crm:       crm,
		gate:      NewBlocklistGate(blocklist, outreach, log),
		bus:       bus,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}
