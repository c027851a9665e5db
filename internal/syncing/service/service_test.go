package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"leadbridge/internal/syncing/ports"
	"leadbridge/internal/syncing/repository"
	platformevents "leadbridge/platform/events"
	"leadbridge/platform/logger"

	"github.com/google/uuid"
)

var errTestUnavailable = errors.New("remote unavailable")

// ---- in-memory fakes ----

func leadKey(email, campaignID string) string { return email + "|" + campaignID }

type fakeLeadStore struct {
	mu    sync.Mutex
	leads map[string]repository.Lead
}

func newFakeLeadStore() *fakeLeadStore {
	return &fakeLeadStore{leads: make(map[string]repository.Lead)}
}

func (f *fakeLeadStore) GetByEmail(_ context.Context, email, campaignID string) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadKey(email, campaignID)]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeLeadStore) Upsert(_ context.Context, params repository.UpsertLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := leadKey(params.Email, params.CampaignID)
	lead, ok := f.leads[key]
	if !ok {
		lead = repository.Lead{
			ID:             uuid.New(),
			Email:          params.Email,
			CampaignID:     params.CampaignID,
			LifecycleState: repository.LifecycleActive,
			CreatedAt:      time.Now(),
		}
	}
	if params.CampaignName != "" {
		lead.CampaignName = params.CampaignName
	}
	if params.FirstName != nil {
		lead.FirstName = params.FirstName
	}
	if params.LastName != nil {
		lead.LastName = params.LastName
	}
	if params.CompanyName != nil {
		lead.CompanyName = params.CompanyName
	}
	if params.Phone != nil {
		lead.Phone = params.Phone
	}
	if params.Website != nil {
		lead.Website = params.Website
	}
	if params.Title != nil {
		lead.Title = params.Title
	}
	f.leads[key] = lead
	return lead, nil
}

func (f *fakeLeadStore) UpdateSyncState(_ context.Context, email, campaignID string, params repository.SyncStateParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := leadKey(email, campaignID)
	lead, ok := f.leads[key]
	if !ok {
		return repository.ErrNotFound
	}
	if params.StatusKey != nil {
		lead.StatusKey = params.StatusKey
	}
	if params.Qualification != nil {
		lead.Qualification = params.Qualification
	}
	if params.CRMPersonID != nil {
		lead.CRMPersonID = params.CRMPersonID
	}
	if params.CRMOrgID != nil {
		lead.CRMOrgID = params.CRMOrgID
	}
	now := time.Now()
	lead.LastSyncedAt = &now
	f.leads[key] = lead
	return nil
}

func (f *fakeLeadStore) RecordEngagement(_ context.Context, email, campaignID string, params repository.EngagementParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := leadKey(email, campaignID)
	lead, ok := f.leads[key]
	if !ok {
		return nil
	}
	if params.ReplyCount != nil && *params.ReplyCount > lead.ReplyCount {
		lead.ReplyCount = *params.ReplyCount
	}
	if params.OpenCount != nil && *params.OpenCount > lead.OpenCount {
		lead.OpenCount = *params.OpenCount
	}
	if params.ClickCount != nil && *params.ClickCount > lead.ClickCount {
		lead.ClickCount = *params.ClickCount
	}
	if params.LastReplyAt != nil {
		lead.LastReplyAt = params.LastReplyAt
	}
	f.leads[key] = lead
	return nil
}

func (f *fakeLeadStore) MarkPendingRemoval(_ context.Context, email, campaignID string, dueAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := leadKey(email, campaignID)
	lead, ok := f.leads[key]
	if !ok || lead.LifecycleState != repository.LifecycleActive {
		return repository.ErrNotFound
	}
	lead.LifecycleState = repository.LifecycleCompletedPendingRemoval
	lead.RemovalDueAt = &dueAt
	f.leads[key] = lead
	return nil
}

func (f *fakeLeadStore) CancelPendingRemoval(_ context.Context, email, campaignID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := leadKey(email, campaignID)
	lead, ok := f.leads[key]
	if !ok || lead.LifecycleState != repository.LifecycleCompletedPendingRemoval {
		return false, nil
	}
	lead.LifecycleState = repository.LifecycleActive
	lead.RemovalDueAt = nil
	f.leads[key] = lead
	return true, nil
}

func (f *fakeLeadStore) MarkRemoved(_ context.Context, email, campaignID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := leadKey(email, campaignID)
	lead, ok := f.leads[key]
	if !ok || lead.LifecycleState != repository.LifecycleCompletedPendingRemoval {
		return repository.ErrNotFound
	}
	lead.LifecycleState = repository.LifecycleRemoved
	lead.RemovalDueAt = nil
	f.leads[key] = lead
	return nil
}

func (f *fakeLeadStore) ListPendingRemovals(_ context.Context, now time.Time, limit int) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.LifecycleState == repository.LifecycleCompletedPendingRemoval &&
			lead.RemovalDueAt != nil && !lead.RemovalDueAt.After(now) {
			out = append(out, lead)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLeadStore) SetBlocklisted(_ context.Context, email string, blocklisted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, lead := range f.leads {
		if lead.Email == email {
			lead.Blocklisted = blocklisted
			f.leads[key] = lead
		}
	}
	return nil
}

func (f *fakeLeadStore) HasReplyAfter(_ context.Context, email, campaignID string, after time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadKey(email, campaignID)]
	if !ok || lead.LastReplyAt == nil {
		return false, nil
	}
	return lead.LastReplyAt.After(after), nil
}

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]repository.SyncRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]repository.SyncRecord)}
}

func recordKey(email, campaignID, eventType string) string {
	return email + "|" + campaignID + "|" + eventType
}

func (f *fakeLedger) GetSyncRecord(_ context.Context, email, campaignID, eventType string) (repository.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[recordKey(email, campaignID, eventType)]
	if !ok {
		return repository.SyncRecord{}, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeLedger) UpsertSyncRecord(_ context.Context, params repository.UpsertSyncRecordParams) (repository.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := recordKey(params.Email, params.CampaignID, params.EventType)
	rec, ok := f.records[key]
	if !ok {
		rec = repository.SyncRecord{ID: uuid.New(), Email: params.Email, CampaignID: params.CampaignID, EventType: params.EventType}
	}
	rec.Source = params.Source
	rec.Outcome = params.Outcome
	rec.SkipReason = params.SkipReason
	rec.ErrorMessage = params.ErrorMessage
	if params.StatusKey != nil {
		rec.StatusKey = params.StatusKey
	}
	if params.CRMOrgID != nil {
		rec.CRMOrgID = params.CRMOrgID
	}
	if params.CRMPersonID != nil {
		rec.CRMPersonID = params.CRMPersonID
	}
	rec.ActivitySynced = rec.ActivitySynced || params.ActivitySynced
	if params.ActivityCount > rec.ActivityCount {
		rec.ActivityCount = params.ActivityCount
	}
	rec.ActivityError = params.ActivityError
	if len(params.RawPayload) > 0 {
		rec.RawPayload = params.RawPayload
	}
	rec.AttemptCount++
	rec.UpdatedAt = time.Now()
	f.records[key] = rec
	return rec, nil
}

func (f *fakeLedger) HasSyncedEmail(_ context.Context, email, excludeCampaignID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.Email == email && rec.CampaignID != excludeCampaignID && rec.Outcome == repository.SyncOutcomeSynced {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) ListFailedSyncRecords(_ context.Context, limit int) ([]repository.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.SyncRecord
	for _, rec := range f.records {
		if rec.Outcome == repository.SyncOutcomeFailed {
			out = append(out, rec)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLedger) ListSyncRecords(_ context.Context, params repository.ListSyncRecordsParams) ([]repository.SyncRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.SyncRecord
	for _, rec := range f.records {
		if params.CampaignID != "" && rec.CampaignID != params.CampaignID {
			continue
		}
		if params.Email != "" && rec.Email != params.Email {
			continue
		}
		if params.Outcome != "" && rec.Outcome != params.Outcome {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type fakeBlocklistStore struct {
	mu      sync.Mutex
	entries map[string]repository.BlocklistEntry
}

func newFakeBlocklistStore() *fakeBlocklistStore {
	return &fakeBlocklistStore{entries: make(map[string]repository.BlocklistEntry)}
}

func blockKey(kind, value string) string { return kind + "|" + value }

func (f *fakeBlocklistStore) ActiveBlocklistEntry(_ context.Context, email, domain string) (*repository.BlocklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry, ok := f.entries[blockKey(repository.BlocklistKindEmail, email)]; ok && entry.Active {
		return &entry, nil
	}
	if entry, ok := f.entries[blockKey(repository.BlocklistKindDomain, domain)]; ok && entry.Active {
		return &entry, nil
	}
	return nil, nil
}

func (f *fakeBlocklistStore) UpsertBlocklistEntry(_ context.Context, params repository.UpsertBlocklistParams) (repository.BlocklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := blockKey(params.Kind, params.Value)
	entry, ok := f.entries[key]
	if !ok {
		entry = repository.BlocklistEntry{ID: uuid.New(), Kind: params.Kind, Value: params.Value, CreatedAt: time.Now()}
	}
	entry.Active = true
	if params.Reason != nil {
		entry.Reason = params.Reason
	}
	f.entries[key] = entry
	return entry, nil
}

func (f *fakeBlocklistStore) DeactivateBlocklistEntry(_ context.Context, kind, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := blockKey(kind, value)
	entry, ok := f.entries[key]
	if !ok || !entry.Active {
		return false, nil
	}
	entry.Active = false
	f.entries[key] = entry
	return true, nil
}

func (f *fakeBlocklistStore) ListBlocklistEntries(_ context.Context, kind string, limit, offset int) ([]repository.BlocklistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.BlocklistEntry
	for _, entry := range f.entries {
		if kind == "" || entry.Kind == kind {
			out = append(out, entry)
		}
	}
	return out, nil
}

type fakeOutreach struct {
	mu        sync.Mutex
	campaign  *ports.Campaign
	pages     []ports.LeadPage
	pageIndex map[string]int
	history   map[string][]ports.EmailMessage
	blocked   map[string]bool

	deleted        []string
	blocklistAdds  []string
	listCalls      int
	isBlockedCalls int

	deleteErr    error
	isBlockedErr error
	historyErr   error
}

func newFakeOutreach() *fakeOutreach {
	return &fakeOutreach{
		campaign:  &ports.Campaign{ID: "camp-1", Name: "Q3 Outreach"},
		pageIndex: map[string]int{},
		history:   map[string][]ports.EmailMessage{},
		blocked:   map[string]bool{},
	}
}

func (f *fakeOutreach) GetCampaign(_ context.Context, campaignID string) (*ports.Campaign, error) {
	if f.campaign != nil && f.campaign.ID == campaignID {
		return f.campaign, nil
	}
	return nil, fmt.Errorf("campaign %s not found", campaignID)
}

func (f *fakeOutreach) ListLeadsByCampaign(_ context.Context, _, cursor string, _ int) (*ports.LeadPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	idx := 0
	if cursor != "" {
		idx = f.pageIndex[cursor]
	}
	if idx >= len(f.pages) {
		return &ports.LeadPage{}, nil
	}
	page := f.pages[idx]
	return &page, nil
}

func (f *fakeOutreach) GetLeadEmailHistory(_ context.Context, _, email string) ([]ports.EmailMessage, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[email], nil
}

func (f *fakeOutreach) DeleteLeadByEmail(_ context.Context, _, email string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, email)
	return nil
}

func (f *fakeOutreach) AddToBlocklist(_ context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocklistAdds = append(f.blocklistAdds, value)
	f.blocked[value] = true
	return nil
}

func (f *fakeOutreach) IsBlocked(_ context.Context, value string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isBlockedCalls++
	if f.isBlockedErr != nil {
		return false, f.isBlockedErr
	}
	return f.blocked[value], nil
}

type fakeCRM struct {
	mu      sync.Mutex
	orgs    map[string]string // name -> id
	persons map[string]string // email -> id

	orgCalls    int
	personCalls int
	statusCalls []string
	notes       []string
	activities  int

	orgErr       error
	personErr    error
	setStatusErr error
	noteErr      error
}

func newFakeCRM() *fakeCRM {
	return &fakeCRM{orgs: map[string]string{}, persons: map[string]string{}}
}

func (f *fakeCRM) FindOrCreateOrganization(_ context.Context, name, _ string) (*ports.OrgResult, error) {
	if f.orgErr != nil {
		return nil, f.orgErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orgCalls++
	id, ok := f.orgs[name]
	if !ok {
		id = "org-" + name
		f.orgs[name] = id
	}
	return &ports.OrgResult{ID: id, Name: name, Created: !ok}, nil
}

func (f *fakeCRM) FindOrCreatePerson(_ context.Context, email, _, _, orgID string) (*ports.PersonResult, error) {
	if f.personErr != nil {
		return nil, f.personErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.personCalls++
	id, ok := f.persons[email]
	if !ok {
		id = "person-" + email
		f.persons[email] = id
	}
	return &ports.PersonResult{ID: id, OrgID: orgID, Created: !ok}, nil
}

func (f *fakeCRM) SetStatus(_ context.Context, personID, statusKey string, _ bool) (*ports.StatusResult, error) {
	if f.setStatusErr != nil {
		return nil, f.setStatusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, personID+":"+statusKey)
	return &ports.StatusResult{Success: true}, nil
}

func (f *fakeCRM) UpdateOrganization(_ context.Context, _ string, _ ports.OrgUpdate) error { return nil }

func (f *fakeCRM) UpdatePerson(_ context.Context, _ string, _ ports.PersonUpdate) error { return nil }

func (f *fakeCRM) AddNote(_ context.Context, _, body string) error {
	if f.noteErr != nil {
		return f.noteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, body)
	return nil
}

func (f *fakeCRM) AddEmailActivity(_ context.Context, _ string, _ ports.EmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities++
	return nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []platformevents.Event
}

func (f *fakeBus) Publish(_ context.Context, event platformevents.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBus) PublishSync(ctx context.Context, event platformevents.Event) error {
	f.Publish(ctx, event)
	return nil
}

func (f *fakeBus) Subscribe(string, platformevents.Handler) {}

func (f *fakeBus) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, event := range f.events {
		out = append(out, event.EventName())
	}
	return out
}

type testConfig struct {
	crossCampaignDedup  bool
	freemailCompanyName string
	graceWindow         time.Duration
	batchSize           int
	maxLeads            int
	leadDelay           time.Duration
	deadline            time.Duration
}

func defaultTestConfig() *testConfig {
	return &testConfig{
		crossCampaignDedup: true,
		graceWindow:        240 * time.Hour,
		batchSize:          50,
		leadDelay:          time.Microsecond,
		deadline:           time.Minute,
	}
}

func (c *testConfig) GetCrossCampaignDedup() bool          { return c.crossCampaignDedup }
func (c *testConfig) GetFreemailCompanyName() string       { return c.freemailCompanyName }
func (c *testConfig) GetCleanupGraceWindow() time.Duration { return c.graceWindow }
func (c *testConfig) GetBackfillBatchSize() int            { return c.batchSize }
func (c *testConfig) GetBackfillMaxLeads() int             { return c.maxLeads }
func (c *testConfig) GetBackfillLeadDelay() time.Duration  { return c.leadDelay }
func (c *testConfig) GetBackfillDeadline() time.Duration   { return c.deadline }

type testEnv struct {
	service   *Service
	leads     *fakeLeadStore
	ledger    *fakeLedger
	blocklist *fakeBlocklistStore
	outreach  *fakeOutreach
	crm       *fakeCRM
	bus       *fakeBus
	cfg       *testConfig
}

func newTestEnv() *testEnv {
	env := &testEnv{
		leads:     newFakeLeadStore(),
		ledger:    newFakeLedger(),
		blocklist: newFakeBlocklistStore(),
		outreach:  newFakeOutreach(),
		crm:       newFakeCRM(),
		bus:       &fakeBus{},
		cfg:       defaultTestConfig(),
	}
	env.service = New(
		env.leads, env.ledger, env.blocklist,
		env.outreach, env.crm, env.bus,
		env.cfg, logger.New("test"),
	)
	return env
}
