package domain

// StatusKey is the closed set of canonical CRM qualification statuses.
type StatusKey string

const (
	// StatusCampaignCompleted means the campaign finished without a reply.
	StatusCampaignCompleted StatusKey = "campaign_completed"
	// StatusReview means the lead replied but could not be classified.
	StatusReview StatusKey = "review"
	// StatusNotInterested is an explicit negative classification.
	StatusNotInterested StatusKey = "not_interested"
	// StatusInterested is an explicit positive classification.
	StatusInterested StatusKey = "interested"
	// StatusMeetingBooked is a high-value positive classification.
	StatusMeetingBooked StatusKey = "meeting_booked"
	// StatusWon means the deal was closed.
	StatusWon StatusKey = "won"
	// StatusDoNotContact is the terminal negative status. It always wins
	// transition priority: an explicit refusal beats everything.
	StatusDoNotContact StatusKey = "do_not_contact"
)

// statusPriority orders statuses for the transition guard. A proposed status
// only applies when its priority is >= the current one, so a late-arriving
// low-priority backfill snapshot can never downgrade a lead.
var statusPriority = map[StatusKey]int{
	StatusCampaignCompleted: 10,
	StatusReview:            20,
	StatusNotInterested:     30,
	StatusInterested:        40,
	StatusMeetingBooked:     50,
	StatusWon:               60,
	StatusDoNotContact:      100,
}

// Priority returns the numeric transition priority of the status.
// Unknown statuses get priority 0 and therefore never upgrade anything.
func (s StatusKey) Priority() int {
	return statusPriority[s]
}

// IsValid reports whether s is one of the canonical statuses.
func (s StatusKey) IsValid() bool {
	_, ok := statusPriority[s]
	return ok
}

// ShouldUpgrade decides whether moving from current to proposed is allowed.
// A nil current means the lead has no CRM status yet, so anything applies.
// StatusDoNotContact always applies. force bypasses the priority check.
func ShouldUpgrade(current *StatusKey, proposed StatusKey, force bool) bool {
	if force {
		return true
	}
	if proposed == StatusDoNotContact {
		return true
	}
	if current == nil || *current == "" {
		return true
	}
	return proposed.Priority() >= current.Priority()
}

// IsValidTransition reports whether proposed is a canonical status and the
// transition from current is permitted under the priority ordering.
func IsValidTransition(current *StatusKey, proposed StatusKey, force bool) bool {
	if !proposed.IsValid() {
		return false
	}
	return ShouldUpgrade(current, proposed, force)
}
