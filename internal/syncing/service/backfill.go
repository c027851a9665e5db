package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"leadbridge/internal/syncing/domain"
	"leadbridge/internal/syncing/ports"
	"leadbridge/internal/syncing/repository"
	"leadbridge/platform/emailaddr"
)

// BackfillOptions tunes one backfill run. Zero values fall back to the
// configured defaults.
type BackfillOptions struct {
	BatchSize int
	MaxLeads  int
	Deadline  time.Duration
	Cursor    string
	Source    domain.Source
	Force     bool
}

// BackfillResult reports partial counts even when the run stops early or
// individual leads fail.
type BackfillResult struct {
	CampaignID   string        `json:"campaignId"`
	Processed    int           `json:"processed"`
	Synced       int           `json:"synced"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	StoppedEarly bool          `json:"stoppedEarly"`
	NextCursor   string        `json:"nextCursor,omitempty"`
	Duration     time.Duration `json:"-"`
}

// BackfillCampaign pages through the campaign's leads and feeds each one to
// the sync pipeline. The run is time-boxed: the wall-clock deadline is
// checked before every lead, and an expired deadline stops the run with
// StoppedEarly set and the cursor to resume from. Leads are processed
// sequentially with a fixed inter-lead delay to respect remote rate limits.
func (s *Service) BackfillCampaign(ctx context.Context, campaignID string, opts BackfillOptions) (BackfillResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = s.cfg.GetBackfillBatchSize()
	}
	if opts.MaxLeads <= 0 {
		opts.MaxLeads = s.cfg.GetBackfillMaxLeads()
	}
	if opts.Deadline <= 0 {
		opts.Deadline = s.cfg.GetBackfillDeadline()
	}
	if opts.Source == "" {
		opts.Source = domain.SourceBackfill
	}

	result := BackfillResult{CampaignID: campaignID}
	started := s.now()
	deadline := started.Add(opts.Deadline)
	log := s.log.WithCampaign(campaignID)

	campaign, err := s.outreach.GetCampaign(ctx, campaignID)
	if err != nil {
		return result, fmt.Errorf("get campaign: %w", err)
	}

	limiter := rate.NewLimiter(rate.Every(s.cfg.GetBackfillLeadDelay()), 1)
	cursor := opts.Cursor

	for {
		page, err := s.outreach.ListLeadsByCampaign(ctx, campaignID, cursor, opts.BatchSize)
		if err != nil {
			result.Duration = s.now().Sub(started)
			result.NextCursor = cursor
			return result, fmt.Errorf("list leads: %w", err)
		}

		for _, lead := range page.Leads {
			if s.now().After(deadline) {
				result.StoppedEarly = true
				result.NextCursor = cursor
				result.Duration = s.now().Sub(started)
				log.Info("backfill_deadline_reached", "processed", result.Processed)
				return result, nil
			}
			if opts.MaxLeads > 0 && result.Processed >= opts.MaxLeads {
				result.NextCursor = cursor
				result.Duration = s.now().Sub(started)
				return result, nil
			}
			result.Processed++
			s.backfillLead(ctx, campaign, lead, opts, limiter, &result)
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	result.Duration = s.now().Sub(started)
	log.Info("backfill_completed",
		"processed", result.Processed,
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// backfillLead applies the two-tier skip before paying for any remote call:
// an exact-match ledger hit for this campaign, then (when cross-campaign
// dedup is on) a ledger hit under any other campaign.
func (s *Service) backfillLead(ctx context.Context, campaign *ports.Campaign, lead ports.OutreachLead, opts BackfillOptions, limiter *rate.Limiter, result *BackfillResult) {
	email := emailaddr.Normalize(lead.Email)
	eventType := domain.EventBackfillSnapshot
	if opts.Source == domain.SourceManual {
		eventType = domain.EventManualResync
	}

	if !opts.Force {
		rec, err := s.ledger.GetSyncRecord(ctx, email, campaign.ID, string(eventType))
		if err == nil && rec.Outcome == repository.SyncOutcomeSynced {
			result.Skipped++
			return
		}

		if s.cfg.GetCrossCampaignDedup() {
			synced, err := s.ledger.HasSyncedEmail(ctx, email, campaign.ID)
			if err != nil {
				s.log.DatabaseError("has_synced_email", err)
			} else if synced {
				s.recordSkip(ctx, domain.LeadEvent{
					Email:      email,
					CampaignID: campaign.ID,
					Type:       eventType,
					Source:     opts.Source,
				}, SkipCrossCampaign)
				result.Skipped++
				return
			}
		}
	}

	if _, err := s.leads.Upsert(ctx, upsertParamsFromSnapshot(campaign, lead, email)); err != nil {
		s.log.DatabaseError("upsert_lead", err)
		result.Failed++
		return
	}

	if err := limiter.Wait(ctx); err != nil {
		result.Failed++
		return
	}

	event := FromSnapshot(campaign, lead, opts.Source)
	event.Email = email
	event.Force = opts.Force

	syncResult, err := s.SyncLead(ctx, event)
	switch {
	case err != nil:
		s.log.DatabaseError("sync_lead", err)
		result.Failed++
	case syncResult.Error != "":
		result.Failed++
	case syncResult.Skipped:
		result.Skipped++
	default:
		result.Synced++
	}
}

func upsertParamsFromSnapshot(campaign *ports.Campaign, lead ports.OutreachLead, email string) repository.UpsertLeadParams {
	params := repository.UpsertLeadParams{
		Email:        email,
		CampaignID:   campaign.ID,
		CampaignName: campaign.Name,
	}
	if lead.FirstName != "" {
		params.FirstName = &lead.FirstName
	}
	if lead.LastName != "" {
		params.LastName = &lead.LastName
	}
	if lead.CompanyName != "" {
		params.CompanyName = &lead.CompanyName
	}
	if lead.Phone != "" {
		params.Phone = &lead.Phone
	}
	if lead.Website != "" {
		params.Website = &lead.Website
	}
	if lead.Title != "" {
		params.Title = &lead.Title
	}
	return params
}
