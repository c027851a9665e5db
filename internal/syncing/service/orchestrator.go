package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadbridge/internal/events"
	"leadbridge/internal/syncing/domain"
	"leadbridge/internal/syncing/ports"
	"leadbridge/internal/syncing/repository"
	"leadbridge/platform/emailaddr"
	platformevents "leadbridge/platform/events"
	"leadbridge/platform/phone"
)

// Skip reasons reported in SyncResult and the ledger.
const (
	SkipInvalidEmail      = "invalid_email"
	SkipUnknownEvent      = "unknown_event_type"
	SkipAlreadySynced     = "already_synced"
	SkipCrossCampaign     = "cross_campaign_duplicate"
	SkipEngagementOnly    = "engagement_only"
	SkipStatusNotUpgraded = "status_not_upgraded"
)

// SyncResult is the structured outcome of one sync attempt. The webhook
// handler returns it verbatim; it never carries a transport-level error.
type SyncResult struct {
	Email       string   `json:"email"`
	CampaignID  string   `json:"campaignId"`
	EventType   string   `json:"eventType"`
	Synced      bool     `json:"synced"`
	Skipped     bool     `json:"skipped"`
	SkipReason  string   `json:"skipReason,omitempty"`
	StatusKey   string   `json:"statusKey,omitempty"`
	CRMOrgID    string   `json:"crmOrgId,omitempty"`
	CRMPersonID string   `json:"crmPersonId,omitempty"`
	SideEffects []string `json:"sideEffectErrors,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// sideEffect is one optional post-commit task. Side effects run after the
// critical path (status decision plus idempotent persistence) and each one
// captures its own error instead of failing the sync.
type sideEffect struct {
	name string
	run  func(ctx context.Context) error
}

// SyncLead drives one LeadEvent through the full pipeline: validation,
// idempotency check, status resolution, blocklist gate, transition guard,
// CRM propagation, ledger persistence and downstream cleanup.
//
// The returned error is reserved for local storage failures. Remote
// failures are folded into the SyncResult and the ledger so an out-of-band
// retry pass can pick them up.
func (s *Service) SyncLead(ctx context.Context, event domain.LeadEvent) (SyncResult, error) {
	result := SyncResult{
		Email:      emailaddr.Normalize(event.Email),
		CampaignID: event.CampaignID,
		EventType:  string(event.Type),
	}
	event.Email = result.Email

	// Input errors resolve to a skip, never a failure.
	if !emailaddr.IsValid(event.Email) {
		return s.skip(ctx, result, SkipInvalidEmail), nil
	}

	resolution := domain.Resolve(event)
	if !resolution.ShouldSync && !resolution.ShouldUpdateEngagement {
		return s.skip(ctx, result, SkipUnknownEvent), nil
	}

	lead, err := s.leads.Upsert(ctx, repository.UpsertLeadParams{
		Email:        event.Email,
		CampaignID:   event.CampaignID,
		CampaignName: event.CampaignName,
	})
	if err != nil {
		return result, fmt.Errorf("upsert lead: %w", err)
	}

	// A reply arriving after a completion event retroactively cancels the
	// scheduled removal.
	if resolution.HasReply {
		cancelled, err := s.leads.CancelPendingRemoval(ctx, event.Email, event.CampaignID)
		if err != nil {
			return result, fmt.Errorf("cancel pending removal: %w", err)
		}
		if cancelled {
			s.bus.Publish(ctx, events.LeadRemovalCancelled{
				BaseEvent:  platformevents.NewBaseEvent(),
				Email:      event.Email,
				CampaignID: event.CampaignID,
			})
		}
	}

	if resolution.ShouldUpdateEngagement {
		if err := s.recordEngagement(ctx, event); err != nil {
			return result, fmt.Errorf("record engagement: %w", err)
		}
	}

	if !resolution.ShouldSync {
		return s.skip(ctx, result, SkipEngagementOnly), nil
	}

	// Idempotency: one applied record per (email, campaign, event type).
	if !event.Force {
		rec, err := s.ledger.GetSyncRecord(ctx, event.Email, event.CampaignID, string(event.Type))
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return result, fmt.Errorf("ledger lookup: %w", err)
		}
		if err == nil && rec.Outcome == repository.SyncOutcomeSynced {
			return s.skip(ctx, result, SkipAlreadySynced), nil
		}
	}

	statusKey := *resolution.StatusKey

	// Blocklist override: a blocked contact always lands on do_not_contact
	// and must stay suppressed on the engagement platform, never deleted.
	check, err := s.gate.Check(ctx, event.Email)
	if err != nil {
		return result, err
	}
	blocked := check.Blocked || resolution.ShouldBlocklist
	if check.Blocked {
		statusKey = domain.StatusDoNotContact
	}

	if !domain.ShouldUpgrade(currentStatus(lead), statusKey, event.Force) {
		s.recordSkip(ctx, event, SkipStatusNotUpgraded)
		return s.skip(ctx, result, SkipStatusNotUpgraded), nil
	}
	result.StatusKey = string(statusKey)

	outcome, err := s.propagate(ctx, event, lead, resolution, statusKey)
	if err != nil {
		return result, err
	}
	result.CRMOrgID = outcome.orgID
	result.CRMPersonID = outcome.personID
	result.SideEffects = outcome.sideEffectErrors

	if outcome.failure != "" {
		result.Error = outcome.failure
		if err := s.recordFailure(ctx, event, statusKey, outcome); err != nil {
			return result, err
		}
		s.bus.Publish(ctx, events.LeadSyncFailed{
			BaseEvent:  platformevents.NewBaseEvent(),
			Email:      event.Email,
			CampaignID: event.CampaignID,
			EventType:  string(event.Type),
			Error:      outcome.failure,
		})
		s.log.SyncEvent(event.Email, event.CampaignID, string(event.Type), false, "")
		return result, nil
	}

	if blocked {
		if err := s.applyBlocklist(ctx, event, check); err != nil {
			return result, err
		}
	}

	if err := s.recordSuccess(ctx, event, statusKey, resolution, outcome); err != nil {
		return result, err
	}

	if err := s.downstreamCleanup(ctx, event, statusKey, blocked); err != nil {
		return result, err
	}

	result.Synced = true
	s.bus.Publish(ctx, events.LeadSynced{
		BaseEvent:  platformevents.NewBaseEvent(),
		Email:      event.Email,
		CampaignID: event.CampaignID,
		EventType:  string(event.Type),
		StatusKey:  string(statusKey),
	})
	s.log.SyncEvent(event.Email, event.CampaignID, string(event.Type), true, "")
	return result, nil
}

func (s *Service) skip(ctx context.Context, result SyncResult, reason string) SyncResult {
	result.Skipped = true
	result.SkipReason = reason
	s.log.WithContext(ctx).SyncEvent(result.Email, result.CampaignID, result.EventType, false, reason)
	return result
}

func currentStatus(lead repository.Lead) *domain.StatusKey {
	if lead.StatusKey == nil || *lead.StatusKey == "" {
		return nil
	}
	key := domain.StatusKey(*lead.StatusKey)
	return &key
}

func (s *Service) recordEngagement(ctx context.Context, event domain.LeadEvent) error {
	params := repository.EngagementParams{
		LastReplyAt: event.LastReplyAt,
		LastOpenAt:  event.LastOpenAt,
		LastClickAt: event.LastClickAt,
	}
	if event.ReplyCount > 0 {
		params.ReplyCount = &event.ReplyCount
	}
	if event.OpenCount > 0 {
		params.OpenCount = &event.OpenCount
	}
	if event.ClickCount > 0 {
		params.ClickCount = &event.ClickCount
	}
	return s.leads.RecordEngagement(ctx, event.Email, event.CampaignID, params)
}

// propagateOutcome collects everything the CRM leg produced.
type propagateOutcome struct {
	orgID            string
	personID         string
	failure          string
	sideEffectErrors []string
	activitySynced   bool
	activityCount    int
	activityError    *string
}

// propagate performs the CRM leg: find-or-create organization and person,
// set the status, then run attribute side effects. Organization, person and
// status are the critical path; everything after is best effort.
func (s *Service) propagate(ctx context.Context, event domain.LeadEvent, lead repository.Lead, resolution domain.StatusResolution, statusKey domain.StatusKey) (propagateOutcome, error) {
	var outcome propagateOutcome

	orgID, err := s.resolveOrganization(ctx, event, lead)
	if err != nil {
		outcome.failure = fmt.Sprintf("find or create organization: %v", err)
		return outcome, nil
	}
	outcome.orgID = orgID

	firstName := strValue(lead.FirstName)
	lastName := strValue(lead.LastName)
	person, err := s.crm.FindOrCreatePerson(ctx, event.Email, firstName, lastName, orgID)
	if err != nil {
		outcome.failure = fmt.Sprintf("find or create person: %v", err)
		return outcome, nil
	}
	outcome.personID = person.ID
	if outcome.orgID == "" {
		outcome.orgID = person.OrgID
	}

	statusResult, err := s.crm.SetStatus(ctx, person.ID, string(statusKey), event.Force)
	if err != nil {
		outcome.failure = fmt.Sprintf("set status: %v", err)
		return outcome, nil
	}
	if statusResult.Skipped {
		// The CRM holding a higher status is agreement, not failure.
		s.log.WithContext(ctx).Info("crm_status_skipped",
			"email", event.Email, "status", string(statusKey), "reason", statusResult.Reason)
	}

	for _, effect := range s.attributeSideEffects(event, lead, resolution, outcome) {
		if err := effect.run(ctx); err != nil {
			s.log.RemoteCallError("crm", effect.name, err)
			outcome.sideEffectErrors = append(outcome.sideEffectErrors, fmt.Sprintf("%s: %v", effect.name, err))
		}
	}

	if resolution.ShouldLogActivity {
		s.syncEmailActivity(ctx, event, &outcome)
	}

	return outcome, nil
}

// resolveOrganization applies freemail detection: consumer mailbox domains
// get no organization unless a configured company name overrides that.
func (s *Service) resolveOrganization(ctx context.Context, event domain.LeadEvent, lead repository.Lead) (string, error) {
	emailDomain := emailaddr.Domain(event.Email)
	name := strValue(lead.CompanyName)

	if emailaddr.IsFreemail(event.Email) {
		override := s.cfg.GetFreemailCompanyName()
		if name == "" {
			name = override
		}
		if name == "" {
			return "", nil
		}
		// Freemail domains never become organization domains.
		org, err := s.crm.FindOrCreateOrganization(ctx, name, "")
		if err != nil {
			return "", err
		}
		return org.ID, nil
	}

	if name == "" {
		name = emailDomain
	}
	org, err := s.crm.FindOrCreateOrganization(ctx, name, emailDomain)
	if err != nil {
		return "", err
	}
	return org.ID, nil
}

func (s *Service) attributeSideEffects(event domain.LeadEvent, lead repository.Lead, resolution domain.StatusResolution, outcome propagateOutcome) []sideEffect {
	var effects []sideEffect

	if outcome.orgID != "" && lead.Website != nil && *lead.Website != "" {
		orgID := outcome.orgID
		website := *lead.Website
		effects = append(effects, sideEffect{
			name: "update_organization",
			run: func(ctx context.Context) error {
				return s.crm.UpdateOrganization(ctx, orgID, ports.OrgUpdate{Website: &website})
			},
		})
	}

	if lead.Phone != nil || lead.Title != nil {
		personID := outcome.personID
		update := ports.PersonUpdate{Title: lead.Title}
		if lead.Phone != nil {
			normalized := phone.NormalizeE164(*lead.Phone)
			update.Phone = &normalized
		}
		effects = append(effects, sideEffect{
			name: "update_person",
			run: func(ctx context.Context) error {
				return s.crm.UpdatePerson(ctx, personID, update)
			},
		})
	}

	if resolution.Qualification != nil {
		personID := outcome.personID
		note := fmt.Sprintf("Campaign %q: %s (%s)", event.CampaignName, event.Type, *resolution.Qualification)
		effects = append(effects, sideEffect{
			name: "add_note",
			run: func(ctx context.Context) error {
				return s.crm.AddNote(ctx, personID, note)
			},
		})
	}

	return effects
}

// syncEmailActivity copies the lead's email thread into the CRM. Best
// effort: partial progress is recorded in the ledger's activity flags.
func (s *Service) syncEmailActivity(ctx context.Context, event domain.LeadEvent, outcome *propagateOutcome) {
	history, err := s.outreach.GetLeadEmailHistory(ctx, event.CampaignID, event.Email)
	if err != nil {
		s.log.RemoteCallError("outreach", "get_lead_email_history", err)
		msg := err.Error()
		outcome.activityError = &msg
		return
	}

	for _, message := range history {
		if err := s.crm.AddEmailActivity(ctx, outcome.personID, message); err != nil {
			s.log.RemoteCallError("crm", "add_email_activity", err)
			msg := err.Error()
			outcome.activityError = &msg
			return
		}
		outcome.activityCount++
	}
	outcome.activitySynced = true
}

func (s *Service) applyBlocklist(ctx context.Context, event domain.LeadEvent, check BlockCheck) error {
	if check.Blocked {
		// Already present locally or remotely; nothing to write.
		return nil
	}

	reason := fmt.Sprintf("event %s", event.Type)
	if _, err := s.gate.Add(ctx, repository.BlocklistKindEmail, event.Email, reason); err != nil {
		return err
	}
	if err := s.leads.SetBlocklisted(ctx, event.Email, true); err != nil {
		return fmt.Errorf("flag lead blocklisted: %w", err)
	}

	s.bus.Publish(ctx, events.LeadBlocklisted{
		BaseEvent: platformevents.NewBaseEvent(),
		Email:     event.Email,
		Reason:    reason,
	})
	return nil
}

func (s *Service) recordSkip(ctx context.Context, event domain.LeadEvent, reason string) {
	_, err := s.ledger.UpsertSyncRecord(ctx, repository.UpsertSyncRecordParams{
		Email:      event.Email,
		CampaignID: event.CampaignID,
		EventType:  string(event.Type),
		Source:     string(event.Source),
		Outcome:    repository.SyncOutcomeSkipped,
		SkipReason: &reason,
		RawPayload: event.RawPayload,
	})
	if err != nil {
		s.log.DatabaseError("upsert_sync_record", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, event domain.LeadEvent, statusKey domain.StatusKey, outcome propagateOutcome) error {
	status := string(statusKey)
	_, err := s.ledger.UpsertSyncRecord(ctx, repository.UpsertSyncRecordParams{
		Email:        event.Email,
		CampaignID:   event.CampaignID,
		EventType:    string(event.Type),
		Source:       string(event.Source),
		Outcome:      repository.SyncOutcomeFailed,
		ErrorMessage: &outcome.failure,
		StatusKey:    &status,
		CRMOrgID:     nilIfEmpty(outcome.orgID),
		CRMPersonID:  nilIfEmpty(outcome.personID),
		RawPayload:   event.RawPayload,
	})
	if err != nil {
		return fmt.Errorf("record failed sync: %w", err)
	}
	return nil
}

func (s *Service) recordSuccess(ctx context.Context, event domain.LeadEvent, statusKey domain.StatusKey, resolution domain.StatusResolution, outcome propagateOutcome) error {
	status := string(statusKey)
	_, err := s.ledger.UpsertSyncRecord(ctx, repository.UpsertSyncRecordParams{
		Email:          event.Email,
		CampaignID:     event.CampaignID,
		EventType:      string(event.Type),
		Source:         string(event.Source),
		Outcome:        repository.SyncOutcomeSynced,
		StatusKey:      &status,
		CRMOrgID:       nilIfEmpty(outcome.orgID),
		CRMPersonID:    nilIfEmpty(outcome.personID),
		ActivitySynced: outcome.activitySynced,
		ActivityCount:  outcome.activityCount,
		ActivityError:  outcome.activityError,
		RawPayload:     event.RawPayload,
	})
	if err != nil {
		return fmt.Errorf("record synced: %w", err)
	}

	var qualification *string
	if resolution.Qualification != nil {
		q := string(*resolution.Qualification)
		qualification = &q
	}
	err = s.leads.UpdateSyncState(ctx, event.Email, event.CampaignID, repository.SyncStateParams{
		StatusKey:     &status,
		Qualification: qualification,
		CRMOrgID:      nilIfEmpty(outcome.orgID),
		CRMPersonID:   nilIfEmpty(outcome.personID),
	})
	if err != nil {
		return fmt.Errorf("update lead sync state: %w", err)
	}
	return nil
}

// downstreamCleanup removes the lead from the engagement platform, except
// when the campaign completed without a reply (the grace window applies) or
// the lead is blocklisted (suppression must persist there).
func (s *Service) downstreamCleanup(ctx context.Context, event domain.LeadEvent, statusKey domain.StatusKey, blocked bool) error {
	if blocked {
		return nil
	}

	if statusKey == domain.StatusCampaignCompleted {
		dueAt := s.now().Add(s.cfg.GetCleanupGraceWindow())
		err := s.leads.MarkPendingRemoval(ctx, event.Email, event.CampaignID, dueAt)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("mark pending removal: %w", err)
		}
		if err == nil {
			s.bus.Publish(ctx, events.LeadRemovalScheduled{
				BaseEvent:  platformevents.NewBaseEvent(),
				Email:      event.Email,
				CampaignID: event.CampaignID,
				DueAt:      dueAt.UTC().Format(time.RFC3339),
			})
		}
		return nil
	}

	if err := s.outreach.DeleteLeadByEmail(ctx, event.CampaignID, event.Email); err != nil {
		s.log.RemoteCallError("outreach", "delete_lead", err)
	}
	return nil
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
