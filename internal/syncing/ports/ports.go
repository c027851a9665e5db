// Package ports declares the outbound interfaces of the syncing context.
// Concrete HTTP clients live in internal/outreach and internal/crm; the
// service layer depends only on these interfaces.
package ports

import (
	"context"
	"time"
)

// Campaign is the outreach platform's view of a campaign.
type Campaign struct {
	ID     string
	Name   string
	Status string
}

// OutreachLead is a per-campaign lead snapshot as returned by the
// outreach platform's list endpoint.
type OutreachLead struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	CompanyName    string
	Phone          string
	Website        string
	Title          string
	ReplyCount     int
	OpenCount      int
	ClickCount     int
	LastReplyAt    *time.Time
	LastOpenAt     *time.Time
	LastClickAt    *time.Time
	InterestStatus *int
	LeadStatus     *int
}

// LeadPage is one page of a cursor-paged lead listing. An empty
// NextCursor means the listing is exhausted.
type LeadPage struct {
	Leads      []OutreachLead
	NextCursor string
}

// EmailMessage is one message of a lead's email history.
type EmailMessage struct {
	ID        string
	Direction string // "sent" or "received"
	Subject   string
	Body      string
	Timestamp time.Time
}

// OutreachClient talks to the email outreach platform.
type OutreachClient interface {
	GetCampaign(ctx context.Context, campaignID string) (*Campaign, error)
	ListLeadsByCampaign(ctx context.Context, campaignID, cursor string, limit int) (*LeadPage, error)
	GetLeadEmailHistory(ctx context.Context, campaignID, email string) ([]EmailMessage, error)
	DeleteLeadByEmail(ctx context.Context, campaignID, email string) error
	AddToBlocklist(ctx context.Context, value string) error
	IsBlocked(ctx context.Context, value string) (bool, error)
}

// OrgResult reports the outcome of an organization find-or-create.
type OrgResult struct {
	ID      string
	Name    string
	Created bool
}

// PersonResult reports the outcome of a person find-or-create.
type PersonResult struct {
	ID      string
	OrgID   string
	Created bool
}

// StatusResult reports the outcome of a CRM status write. Skipped means
// the CRM refused the transition without it being an error, for example
// when the record already carries a higher status.
type StatusResult struct {
	Success bool
	Skipped bool
	Reason  string
}

// OrgUpdate carries optional enrichment fields for an organization.
// Nil fields are left untouched.
type OrgUpdate struct {
	Website  *string
	Industry *string
}

// PersonUpdate carries optional enrichment fields for a person.
type PersonUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Title     *string
}

// CRMClient talks to the downstream CRM.
type CRMClient interface {
	FindOrCreateOrganization(ctx context.Context, name, domain string) (*OrgResult, error)
	FindOrCreatePerson(ctx context.Context, email, firstName, lastName, orgID string) (*PersonResult, error)
	SetStatus(ctx context.Context, personID, statusKey string, force bool) (*StatusResult, error)
	UpdateOrganization(ctx context.Context, orgID string, update OrgUpdate) error
	UpdatePerson(ctx context.Context, personID string, update PersonUpdate) error
	AddNote(ctx context.Context, personID, body string) error
	AddEmailActivity(ctx context.Context, personID string, message EmailMessage) error
}
