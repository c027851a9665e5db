package service

import (
	"context"
	"fmt"

	"leadbridge/internal/events"
	platformevents "leadbridge/platform/events"
)

// SweepResult reports one cleanup pass over expired grace windows.
type SweepResult struct {
	Examined  int `json:"examined"`
	Removed   int `json:"removed"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

const sweepBatchSize = 200

// SweepPendingRemovals promotes leads whose grace window has expired from
// completed_pending_removal to removed, deleting them from the engagement
// platform. A reply recorded after the removal was scheduled cancels it
// instead: a late reply always preempts cleanup.
func (s *Service) SweepPendingRemovals(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	now := s.now()

	pending, err := s.leads.ListPendingRemovals(ctx, now, sweepBatchSize)
	if err != nil {
		return result, fmt.Errorf("list pending removals: %w", err)
	}

	grace := s.cfg.GetCleanupGraceWindow()
	for _, lead := range pending {
		result.Examined++

		// removal_due_at was set to scheduled-time + grace, so subtracting
		// the grace window recovers when the removal was scheduled.
		scheduledAt := lead.RemovalDueAt.Add(-grace)
		replied, err := s.leads.HasReplyAfter(ctx, lead.Email, lead.CampaignID, scheduledAt)
		if err != nil {
			s.log.DatabaseError("has_reply_after", err)
			result.Failed++
			continue
		}
		if replied {
			cancelled, err := s.leads.CancelPendingRemoval(ctx, lead.Email, lead.CampaignID)
			if err != nil {
				s.log.DatabaseError("cancel_pending_removal", err)
				result.Failed++
				continue
			}
			if cancelled {
				result.Cancelled++
				s.bus.Publish(ctx, events.LeadRemovalCancelled{
					BaseEvent:  platformevents.NewBaseEvent(),
					Email:      lead.Email,
					CampaignID: lead.CampaignID,
				})
			}
			continue
		}

		if lead.Blocklisted {
			// Blocklisted leads stay suppressed on the platform, never deleted.
			if err := s.leads.MarkRemoved(ctx, lead.Email, lead.CampaignID); err != nil {
				s.log.DatabaseError("mark_removed", err)
				result.Failed++
				continue
			}
			result.Removed++
			continue
		}

		if err := s.outreach.DeleteLeadByEmail(ctx, lead.CampaignID, lead.Email); err != nil {
			s.log.RemoteCallError("outreach", "delete_lead", err)
			result.Failed++
			continue
		}
		if err := s.leads.MarkRemoved(ctx, lead.Email, lead.CampaignID); err != nil {
			s.log.DatabaseError("mark_removed", err)
			result.Failed++
			continue
		}

		result.Removed++
		s.bus.Publish(ctx, events.LeadRemoved{
			BaseEvent:  platformevents.NewBaseEvent(),
			Email:      lead.Email,
			CampaignID: lead.CampaignID,
		})
	}

	s.log.Info("cleanup_sweep",
		"examined", result.Examined,
		"removed", result.Removed,
		"cancelled", result.Cancelled,
		"failed", result.Failed,
	)
	return result, nil
}
