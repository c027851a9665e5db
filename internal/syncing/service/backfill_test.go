package service

import (
	"context"
	"testing"
	"time"

	"leadbridge/internal/syncing/domain"
	"leadbridge/internal/syncing/ports"
	"leadbridge/internal/syncing/repository"
)

func snapshotLead(email string, interest *int, replyCount int) ports.OutreachLead {
	return ports.OutreachLead{
		ID:             "ol-" + email,
		Email:          email,
		FirstName:      "Test",
		CompanyName:    "Acme",
		ReplyCount:     replyCount,
		InterestStatus: interest,
	}
}

func TestBackfillCampaignClassifiesAndSyncs(t *testing.T) {
	env := newTestEnv()
	interested := domain.InterestInterested

	env.outreach.pages = []ports.LeadPage{
		{
			Leads: []ports.OutreachLead{
				snapshotLead("a@example.com", &interested, 1),
				snapshotLead("b@example.com", nil, 0),
			},
			NextCursor: "page-2",
		},
		{
			Leads: []ports.OutreachLead{
				snapshotLead("c@example.com", nil, 2),
			},
		},
	}
	env.outreach.pageIndex["page-2"] = 1

	result, err := env.service.BackfillCampaign(context.Background(), "camp-1", BackfillOptions{})
	if err != nil {
		t.Fatalf("BackfillCampaign: %v", err)
	}

	if result.Processed != 3 {
		t.Errorf("Processed = %d, want 3", result.Processed)
	}
	if result.Synced != 3 {
		t.Errorf("Synced = %d, want 3 (result: %+v)", result.Synced, result)
	}
	if result.StoppedEarly {
		t.Error("StoppedEarly = true for a completed run")
	}

	rec, err := env.ledger.GetSyncRecord(context.Background(), "b@example.com", "camp-1", string(domain.EventBackfillSnapshot))
	if err != nil {
		t.Fatalf("ledger row missing: %v", err)
	}
	if rec.StatusKey == nil || *rec.StatusKey != string(domain.StatusCampaignCompleted) {
		t.Errorf("no-reply snapshot status = %v, want campaign_completed", rec.StatusKey)
	}
}

func TestBackfillDeadlineStopsEarly(t *testing.T) {
	env := newTestEnv()
	env.outreach.pages = []ports.LeadPage{
		{Leads: []ports.OutreachLead{
			snapshotLead("a@example.com", nil, 0),
			snapshotLead("b@example.com", nil, 0),
		}},
	}

	// Freeze time past the deadline so the very first per-lead check trips.
	base := time.Now()
	calls := 0
	env.service.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(time.Hour)
	}

	result, err := env.service.BackfillCampaign(context.Background(), "camp-1", BackfillOptions{Deadline: time.Minute})
	if err != nil {
		t.Fatalf("BackfillCampaign: %v", err)
	}
	if !result.StoppedEarly {
		t.Fatalf("result = %+v, want StoppedEarly", result)
	}
	if result.Processed != 0 {
		t.Errorf("Processed = %d, want 0", result.Processed)
	}
	if env.crm.personCalls != 0 {
		t.Error("no CRM work expected after the deadline")
	}
}

func TestBackfillSkipsAlreadySyncedWithoutRemoteCalls(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	status := string(domain.StatusCampaignCompleted)
	_, err := env.ledger.UpsertSyncRecord(ctx, repository.UpsertSyncRecordParams{
		Email:      "a@example.com",
		CampaignID: "camp-1",
		EventType:  string(domain.EventBackfillSnapshot),
		Source:     string(domain.SourceBackfill),
		Outcome:    repository.SyncOutcomeSynced,
		StatusKey:  &status,
	})
	if err != nil {
		t.Fatal(err)
	}

	env.outreach.pages = []ports.LeadPage{
		{Leads: []ports.OutreachLead{snapshotLead("a@example.com", nil, 0)}},
	}

	result, err := env.service.BackfillCampaign(ctx, "camp-1", BackfillOptions{})
	if err != nil {
		t.Fatalf("BackfillCampaign: %v", err)
	}
	if result.Skipped != 1 || result.Synced != 0 {
		t.Fatalf("result = %+v, want one skip", result)
	}
	if env.crm.personCalls != 0 || env.crm.orgCalls != 0 {
		t.Error("already-synced lead must not generate CRM calls")
	}
}

func TestBackfillCrossCampaignDedup(t *testing.T) {
	seed := func(env *testEnv) {
		status := string(domain.StatusInterested)
		_, err := env.ledger.UpsertSyncRecord(context.Background(), repository.UpsertSyncRecordParams{
			Email:      "a@example.com",
			CampaignID: "camp-0",
			EventType:  string(domain.EventLeadInterested),
			Source:     string(domain.SourceWebhook),
			Outcome:    repository.SyncOutcomeSynced,
			StatusKey:  &status,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	t.Run("enabled skips duplicate", func(t *testing.T) {
		env := newTestEnv()
		seed(env)
		env.outreach.pages = []ports.LeadPage{
			{Leads: []ports.OutreachLead{snapshotLead("a@example.com", nil, 0)}},
		}

		result, err := env.service.BackfillCampaign(context.Background(), "camp-1", BackfillOptions{})
		if err != nil {
			t.Fatalf("BackfillCampaign: %v", err)
		}
		if result.Skipped != 1 {
			t.Fatalf("result = %+v, want one cross-campaign skip", result)
		}
		if env.crm.personCalls != 0 {
			t.Error("cross-campaign duplicate must not generate CRM calls")
		}
	})

	t.Run("disabled resyncs per campaign", func(t *testing.T) {
		env := newTestEnv()
		seed(env)
		env.cfg.crossCampaignDedup = false
		env.outreach.pages = []ports.LeadPage{
			{Leads: []ports.OutreachLead{snapshotLead("a@example.com", nil, 0)}},
		}

		result, err := env.service.BackfillCampaign(context.Background(), "camp-1", BackfillOptions{})
		if err != nil {
			t.Fatalf("BackfillCampaign: %v", err)
		}
		if result.Synced != 1 {
			t.Fatalf("result = %+v, want one synced", result)
		}
	})
}

func TestBackfillMaxLeadsCapsRun(t *testing.T) {
	env := newTestEnv()
	env.outreach.pages = []ports.LeadPage{
		{Leads: []ports.OutreachLead{
			snapshotLead("a@example.com", nil, 0),
			snapshotLead("b@example.com", nil, 0),
			snapshotLead("c@example.com", nil, 0),
		}},
	}

	result, err := env.service.BackfillCampaign(context.Background(), "camp-1", BackfillOptions{MaxLeads: 2})
	if err != nil {
		t.Fatalf("BackfillCampaign: %v", err)
	}
	if result.Processed != 2 {
		t.Errorf("Processed = %d, want 2", result.Processed)
	}
	if result.StoppedEarly {
		t.Error("a max-leads cap is not an early stop")
	}
}
