package service

import (
	"context"
	"fmt"

	"leadbridge/internal/syncing/domain"
	"leadbridge/internal/syncing/ports"
	"leadbridge/platform/emailaddr"
)

// ResyncLead pulls a fresh snapshot of one lead from the engagement
// platform and pushes it through the pipeline as a manual event. Manual
// runs bypass the idempotency ledger when force is set.
func (s *Service) ResyncLead(ctx context.Context, campaignID, email string, force bool) (SyncResult, error) {
	email = emailaddr.Normalize(email)

	campaign, err := s.outreach.GetCampaign(ctx, campaignID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("get campaign: %w", err)
	}

	lead, err := s.findLeadSnapshot(ctx, campaignID, email)
	if err != nil {
		return SyncResult{}, err
	}

	if _, err := s.leads.Upsert(ctx, upsertParamsFromSnapshot(campaign, *lead, email)); err != nil {
		return SyncResult{}, fmt.Errorf("upsert lead: %w", err)
	}

	event := FromSnapshot(campaign, *lead, domain.SourceManual)
	event.Email = email
	event.Force = force
	return s.SyncLead(ctx, event)
}

func (s *Service) findLeadSnapshot(ctx context.Context, campaignID, email string) (*ports.OutreachLead, error) {
	cursor := ""
	for {
		page, err := s.outreach.ListLeadsByCampaign(ctx, campaignID, cursor, s.cfg.GetBackfillBatchSize())
		if err != nil {
			return nil, fmt.Errorf("list leads: %w", err)
		}
		for i := range page.Leads {
			if emailaddr.Normalize(page.Leads[i].Email) == email {
				return &page.Leads[i], nil
			}
		}
		if page.NextCursor == "" {
			return nil, ErrLeadNotFound
		}
		cursor = page.NextCursor
	}
}
