package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"leadbridge/internal/syncing/ports"
	"leadbridge/internal/syncing/repository"
	"leadbridge/platform/emailaddr"
	"leadbridge/platform/logger"
)

// Blocklist check sources, cheapest first.
const (
	BlockSourceEmail  = "email"
	BlockSourceDomain = "domain"
	BlockSourceRemote = "remote"
)

// BlockCheck is the outcome of a blocklist lookup.
type BlockCheck struct {
	Blocked bool
	Source  string
	Reason  string
}

// BlocklistGate answers "may we contact this address" and owns the write
// path to both the local table and the engagement platform's blocklist.
type BlocklistGate struct {
	store    BlocklistStore
	outreach ports.OutreachClient
	log      *logger.Logger

	// remote lookups for the same address are collapsed so a backfill burst
	// does not hammer the engagement platform with identical queries.
	group singleflight.Group
}

func NewBlocklistGate(store BlocklistStore, outreach ports.OutreachClient, log *logger.Logger) *BlocklistGate {
	return &BlocklistGate{
		store:    store,
		outreach: outreach,
		log:      log,
	}
}

// Check runs the tiers in order: local email entry, local domain entry,
// remote blocklist. A remote lookup failure degrades to "not blocked"
// rather than failing the sync.
func (g *BlocklistGate) Check(ctx context.Context, email string) (BlockCheck, error) {
	domain := emailaddr.Domain(email)

	entry, err := g.store.ActiveBlocklistEntry(ctx, email, domain)
	if err != nil {
		return BlockCheck{}, fmt.Errorf("blocklist lookup: %w", err)
	}
	if entry != nil {
		source := BlockSourceEmail
		if entry.Kind == repository.BlocklistKindDomain {
			source = BlockSourceDomain
		}
		reason := "local blocklist entry"
		if entry.Reason != nil && *entry.Reason != "" {
			reason = *entry.Reason
		}
		return BlockCheck{Blocked: true, Source: source, Reason: reason}, nil
	}

	if g.outreach == nil {
		return BlockCheck{}, nil
	}

	result, err, _ := g.group.Do(email, func() (any, error) {
		return g.outreach.IsBlocked(ctx, email)
	})
	if err != nil {
		g.log.RemoteCallError("outreach", "is_blocked", err)
		return BlockCheck{}, nil
	}
	if result.(bool) {
		return BlockCheck{Blocked: true, Source: BlockSourceRemote, Reason: "engagement platform blocklist"}, nil
	}

	return BlockCheck{}, nil
}

// Add writes a local entry and mirrors it to the engagement platform.
// The local write is authoritative; a remote mirror failure is logged and
// reported back without undoing the local entry.
func (g *BlocklistGate) Add(ctx context.Context, kind, value, reason string) (repository.BlocklistEntry, error) {
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	entry, err := g.store.UpsertBlocklistEntry(ctx, repository.UpsertBlocklistParams{
		Kind:   kind,
		Value:  value,
		Reason: reasonPtr,
	})
	if err != nil {
		return repository.BlocklistEntry{}, fmt.Errorf("blocklist upsert: %w", err)
	}

	if g.outreach != nil {
		if err := g.outreach.AddToBlocklist(ctx, value); err != nil {
			g.log.RemoteCallError("outreach", "add_to_blocklist", err)
		}
	}

	return entry, nil
}

// Remove deactivates a local entry. The engagement platform keeps its copy:
// suppression there is deliberately sticky.
func (g *BlocklistGate) Remove(ctx context.Context, kind, value string) (bool, error) {
	return g.store.DeactivateBlocklistEntry(ctx, kind, value)
}
