package service

import (
	"context"
	"testing"
	"time"

	"leadbridge/internal/events"
	"leadbridge/internal/syncing/domain"
	"leadbridge/internal/syncing/repository"
)

func webhookEvent(eventType domain.EventType) domain.LeadEvent {
	return domain.LeadEvent{
		Email:        "Jane.Doe@Acme.COM ",
		CampaignID:   "camp-1",
		CampaignName: "Q3 Outreach",
		Type:         eventType,
		Source:       domain.SourceWebhook,
	}
}

func TestSyncLeadHappyPath(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.service.SyncLead(ctx, webhookEvent(domain.EventLeadInterested))
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}

	if !result.Synced || result.Skipped {
		t.Fatalf("result = %+v, want synced", result)
	}
	if result.Email != "jane.doe@acme.com" {
		t.Errorf("email not normalized: %q", result.Email)
	}
	if result.StatusKey != string(domain.StatusInterested) {
		t.Errorf("StatusKey = %q, want interested", result.StatusKey)
	}
	if result.CRMPersonID == "" || result.CRMOrgID == "" {
		t.Errorf("CRM ids missing: %+v", result)
	}

	if len(env.crm.statusCalls) != 1 {
		t.Fatalf("statusCalls = %v, want one", env.crm.statusCalls)
	}

	rec, err := env.ledger.GetSyncRecord(ctx, "jane.doe@acme.com", "camp-1", string(domain.EventLeadInterested))
	if err != nil {
		t.Fatalf("ledger row missing: %v", err)
	}
	if rec.Outcome != repository.SyncOutcomeSynced {
		t.Errorf("ledger outcome = %q, want synced", rec.Outcome)
	}

	lead, err := env.leads.GetByEmail(ctx, "jane.doe@acme.com", "camp-1")
	if err != nil {
		t.Fatalf("lead missing: %v", err)
	}
	if lead.StatusKey == nil || *lead.StatusKey != string(domain.StatusInterested) {
		t.Errorf("lead status = %v, want interested", lead.StatusKey)
	}

	// A positively classified lead leaves the engagement platform.
	if len(env.outreach.deleted) != 1 || env.outreach.deleted[0] != "jane.doe@acme.com" {
		t.Errorf("deleted = %v, want the lead removed", env.outreach.deleted)
	}

	names := env.bus.names()
	if len(names) == 0 || names[len(names)-1] != events.LeadSyncedName {
		t.Errorf("published events = %v, want %s last", names, events.LeadSyncedName)
	}
}

func TestSyncLeadIdempotency(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	event := webhookEvent(domain.EventLeadInterested)

	if _, err := env.service.SyncLead(ctx, event); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	personCalls := env.crm.personCalls

	second, err := env.service.SyncLead(ctx, event)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !second.Skipped || second.SkipReason != SkipAlreadySynced {
		t.Fatalf("second result = %+v, want skip %q", second, SkipAlreadySynced)
	}
	if env.crm.personCalls != personCalls {
		t.Errorf("replay reached the CRM: personCalls %d -> %d", personCalls, env.crm.personCalls)
	}
}

func TestSyncLeadForceBypassesIdempotency(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	event := webhookEvent(domain.EventLeadInterested)

	if _, err := env.service.SyncLead(ctx, event); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	event.Force = true
	result, err := env.service.SyncLead(ctx, event)
	if err != nil {
		t.Fatalf("forced sync: %v", err)
	}
	if !result.Synced {
		t.Errorf("forced replay = %+v, want synced", result)
	}
	if len(env.crm.statusCalls) != 2 {
		t.Errorf("statusCalls = %v, want two", env.crm.statusCalls)
	}
}

func TestSyncLeadMalformedEmailSkips(t *testing.T) {
	env := newTestEnv()
	event := webhookEvent(domain.EventLeadInterested)
	event.Email = "not-an-email"

	result, err := env.service.SyncLead(context.Background(), event)
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipInvalidEmail {
		t.Fatalf("result = %+v, want skip %q", result, SkipInvalidEmail)
	}
	if env.crm.personCalls != 0 || env.crm.orgCalls != 0 {
		t.Error("malformed email must not reach the CRM")
	}
}

func TestSyncLeadEngagementOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	event := webhookEvent(domain.EventEmailOpened)
	event.OpenCount = 3

	result, err := env.service.SyncLead(ctx, event)
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipEngagementOnly {
		t.Fatalf("result = %+v, want skip %q", result, SkipEngagementOnly)
	}

	lead, err := env.leads.GetByEmail(ctx, "jane.doe@acme.com", "camp-1")
	if err != nil {
		t.Fatalf("lead missing: %v", err)
	}
	if lead.OpenCount != 3 {
		t.Errorf("OpenCount = %d, want 3", lead.OpenCount)
	}
	if env.crm.personCalls != 0 {
		t.Error("engagement-only event must not reach the CRM")
	}
}

func TestSyncLeadBlocklistOverride(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	reason := "manual block"
	_, err := env.blocklist.UpsertBlocklistEntry(ctx, repository.UpsertBlocklistParams{
		Kind: repository.BlocklistKindEmail, Value: "jane.doe@acme.com", Reason: &reason,
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := env.service.SyncLead(ctx, webhookEvent(domain.EventLeadInterested))
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}

	if result.StatusKey != string(domain.StatusDoNotContact) {
		t.Errorf("StatusKey = %q, want do_not_contact override", result.StatusKey)
	}
	if len(env.outreach.deleted) != 0 {
		t.Error("blocked lead must stay suppressed on the platform, not be deleted")
	}
}

func TestSyncLeadBounceBlocklists(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.service.SyncLead(ctx, webhookEvent(domain.EventEmailBounced))
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Synced || result.StatusKey != string(domain.StatusDoNotContact) {
		t.Fatalf("result = %+v, want do_not_contact synced", result)
	}

	entry, err := env.blocklist.ActiveBlocklistEntry(ctx, "jane.doe@acme.com", "acme.com")
	if err != nil || entry == nil {
		t.Fatalf("blocklist entry missing, err=%v", err)
	}
	if len(env.outreach.blocklistAdds) != 1 {
		t.Errorf("remote blocklist mirror = %v, want one add", env.outreach.blocklistAdds)
	}
	if len(env.outreach.deleted) != 0 {
		t.Error("bounced lead must not be deleted from the platform")
	}
}

func TestSyncLeadStatusNotUpgraded(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.service.SyncLead(ctx, webhookEvent(domain.EventMeetingBooked)); err != nil {
		t.Fatalf("seed sync: %v", err)
	}
	statusCalls := len(env.crm.statusCalls)

	result, err := env.service.SyncLead(ctx, webhookEvent(domain.EventReplyReceived))
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Skipped || result.SkipReason != SkipStatusNotUpgraded {
		t.Fatalf("result = %+v, want skip %q", result, SkipStatusNotUpgraded)
	}
	if len(env.crm.statusCalls) != statusCalls {
		t.Error("downgrade attempt must not reach the CRM")
	}
}

func TestSyncLeadFreemailSkipsOrganization(t *testing.T) {
	env := newTestEnv()
	event := webhookEvent(domain.EventLeadInterested)
	event.Email = "jane.doe@gmail.com"

	result, err := env.service.SyncLead(context.Background(), event)
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Synced {
		t.Fatalf("result = %+v, want synced", result)
	}
	if env.crm.orgCalls != 0 {
		t.Errorf("orgCalls = %d, freemail lead must not create an organization", env.crm.orgCalls)
	}
	if env.crm.personCalls != 1 {
		t.Errorf("personCalls = %d, want 1", env.crm.personCalls)
	}
}

func TestSyncLeadFreemailCompanyOverride(t *testing.T) {
	env := newTestEnv()
	env.cfg.freemailCompanyName = "Self-Employed"
	event := webhookEvent(domain.EventLeadInterested)
	event.Email = "jane.doe@gmail.com"

	if _, err := env.service.SyncLead(context.Background(), event); err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if _, ok := env.crm.orgs["Self-Employed"]; !ok {
		t.Errorf("orgs = %v, want the configured override used", env.crm.orgs)
	}
}

func TestSyncLeadCRMFailureRecordsFailedAndRetries(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.crm.personErr = errTestUnavailable
	raw := []byte(`{"event_type":"lead_interested","lead_email":"jane.doe@acme.com","campaign_id":"camp-1","campaign_name":"Q3 Outreach"}`)

	result, err := env.service.HandleWebhook(ctx, raw)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if result.Synced || result.Error == "" {
		t.Fatalf("result = %+v, want failure", result)
	}

	rec, err := env.ledger.GetSyncRecord(ctx, "jane.doe@acme.com", "camp-1", string(domain.EventLeadInterested))
	if err != nil {
		t.Fatalf("ledger row missing: %v", err)
	}
	if rec.Outcome != repository.SyncOutcomeFailed {
		t.Fatalf("outcome = %q, want failed", rec.Outcome)
	}

	// The out-of-band pass replays the stored payload once the CRM recovers.
	env.crm.personErr = nil
	retry, err := env.service.RetryFailed(ctx, 10)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retry.Synced != 1 {
		t.Fatalf("retry = %+v, want one synced", retry)
	}

	rec, _ = env.ledger.GetSyncRecord(ctx, "jane.doe@acme.com", "camp-1", string(domain.EventLeadInterested))
	if rec.Outcome != repository.SyncOutcomeSynced {
		t.Errorf("outcome after retry = %q, want synced", rec.Outcome)
	}
}

func TestSyncLeadCampaignCompletedEntersGraceWindow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.service.SyncLead(ctx, webhookEvent(domain.EventCampaignCompleted))
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Synced {
		t.Fatalf("result = %+v, want synced", result)
	}

	lead, err := env.leads.GetByEmail(ctx, "jane.doe@acme.com", "camp-1")
	if err != nil {
		t.Fatalf("lead missing: %v", err)
	}
	if lead.LifecycleState != repository.LifecycleCompletedPendingRemoval {
		t.Errorf("lifecycle = %q, want completed_pending_removal", lead.LifecycleState)
	}
	if lead.RemovalDueAt == nil {
		t.Error("RemovalDueAt not set")
	}
	if len(env.outreach.deleted) != 0 {
		t.Error("completed lead must wait out the grace window, not be deleted")
	}
}

func TestSyncLeadLateReplyCancelsScheduledRemoval(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.service.SyncLead(ctx, webhookEvent(domain.EventCampaignCompleted)); err != nil {
		t.Fatalf("completion sync: %v", err)
	}

	replyAt := time.Now()
	reply := webhookEvent(domain.EventReplyReceived)
	reply.ReplyCount = 1
	reply.LastReplyAt = &replyAt

	if _, err := env.service.SyncLead(ctx, reply); err != nil {
		t.Fatalf("reply sync: %v", err)
	}

	lead, err := env.leads.GetByEmail(ctx, "jane.doe@acme.com", "camp-1")
	if err != nil {
		t.Fatalf("lead missing: %v", err)
	}
	if lead.LifecycleState != repository.LifecycleActive {
		t.Errorf("lifecycle = %q, want active after late reply", lead.LifecycleState)
	}

	for _, name := range env.bus.names() {
		if name == events.LeadRemovalCancelledName {
			return
		}
	}
	t.Error("LeadRemovalCancelled event not published")
}

func TestSyncLeadSideEffectFailureIsNonFatal(t *testing.T) {
	env := newTestEnv()
	env.crm.noteErr = errTestUnavailable

	result, err := env.service.SyncLead(context.Background(), webhookEvent(domain.EventLeadInterested))
	if err != nil {
		t.Fatalf("SyncLead: %v", err)
	}
	if !result.Synced {
		t.Fatalf("result = %+v, side-effect failure must not fail the sync", result)
	}
	if len(result.SideEffects) == 0 {
		t.Error("side-effect error not reported in the result")
	}
}
