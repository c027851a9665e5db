package domain

// Resolve maps a LeadEvent to its canonical StatusResolution. It is pure and
// total: every EventType resolves, unknown types resolve to "no sync, skip".
//
// Webhook events name a specific occurrence, so they resolve through a fixed
// per-event table. Backfill and manual snapshots carry raw platform codes and
// resolve through an ordered rule list, first match wins.
func Resolve(event LeadEvent) StatusResolution {
	if event.Source == SourceWebhook && event.Type != EventBackfillSnapshot && event.Type != EventManualResync {
		return resolveWebhook(event)
	}
	return resolveSnapshot(event)
}

// webhookSentiment is the fixed event -> sentiment table for webhook events.
var webhookSentiment = map[EventType]Sentiment{
	EventLeadInterested:    SentimentPositive,
	EventMeetingBooked:     SentimentPositive,
	EventMeetingCompleted:  SentimentPositive,
	EventClosedWon:         SentimentPositive,
	EventLeadNotInterested: SentimentNegative,
	EventClosedLost:        SentimentNegative,
	EventEmailBounced:      SentimentNegative,
	EventLeadUnsubscribed:  SentimentNegative,
	EventWrongPerson:       SentimentNegative,
	EventReplyReceived:     SentimentNeutral,
	EventLeadNeutral:       SentimentNeutral,
	EventAutoReply:         SentimentNeutral,
}

func resolveWebhook(event LeadEvent) StatusResolution {
	sentiment := webhookSentiment[event.Type]

	if event.Type.IsEngagementOnly() {
		return StatusResolution{
			ReplySentiment:         sentiment,
			ShouldUpdateEngagement: true,
		}
	}

	switch event.Type {
	case EventEmailBounced, EventLeadUnsubscribed:
		return StatusResolution{
			StatusKey:              statusPtr(StatusDoNotContact),
			Qualification:          qualificationPtr(QualificationDisqualified),
			ReplySentiment:         sentiment,
			ShouldSync:             true,
			ShouldBlocklist:        true,
			ShouldUpdateEngagement: true,
		}
	case EventMeetingBooked, EventMeetingCompleted:
		return StatusResolution{
			StatusKey:              statusPtr(StatusMeetingBooked),
			Qualification:          qualificationPtr(QualificationQualified),
			HasReply:               true,
			ReplySentiment:         sentiment,
			ShouldSync:             true,
			ShouldLogActivity:      true,
			ShouldUpdateEngagement: true,
		}
	case EventClosedWon:
		return StatusResolution{
			StatusKey:              statusPtr(StatusWon),
			Qualification:          qualificationPtr(QualificationQualified),
			HasReply:               true,
			ReplySentiment:         sentiment,
			ShouldSync:             true,
			ShouldLogActivity:      true,
			ShouldUpdateEngagement: true,
		}
	case EventLeadInterested:
		return StatusResolution{
			StatusKey:              statusPtr(StatusInterested),
			Qualification:          qualificationPtr(QualificationQualified),
			HasReply:               true,
			ReplySentiment:         sentiment,
			ShouldSync:             true,
			ShouldLogActivity:      true,
			ShouldUpdateEngagement: true,
		}
	case EventLeadNotInterested, EventClosedLost, EventWrongPerson:
		return StatusResolution{
			StatusKey:              statusPtr(StatusNotInterested),
			Qualification:          qualificationPtr(QualificationDisqualified),
			HasReply:               true,
			ReplySentiment:         sentiment,
			ShouldSync:             true,
			ShouldUpdateEngagement: true,
		}
	case EventReplyReceived, EventLeadNeutral:
		return StatusResolution{
			StatusKey:              statusPtr(StatusReview),
			Qualification:          qualificationPtr(QualificationReview),
			HasReply:               true,
			ReplySentiment:         sentiment,
			ShouldSync:             true,
			ShouldLogActivity:      true,
			ShouldUpdateEngagement: true,
		}
	case EventCampaignCompleted:
		return StatusResolution{
			StatusKey:              statusPtr(StatusCampaignCompleted),
			Qualification:          qualificationPtr(QualificationEnriched),
			ShouldSync:             true,
			ShouldUpdateEngagement: true,
		}
	}

	// EventUnknown and anything else: no sync, skip.
	return StatusResolution{}
}

// snapshotRule is one entry of the ordered backfill classification list.
// Making the priority order an explicit data structure keeps it visible and
// testable instead of buried in nested conditionals.
type snapshotRule struct {
	name    string
	matches func(LeadEvent) bool
	resolve func(LeadEvent) StatusResolution
}

// snapshotRules is evaluated top to bottom; the first matching rule wins.
var snapshotRules = []snapshotRule{
	{
		name:    "bounced",
		matches: func(e LeadEvent) bool { return hasCode(e.LeadStatus, LeadStatusBounced) },
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:       statusPtr(StatusDoNotContact),
				Qualification:   qualificationPtr(QualificationDisqualified),
				ReplySentiment:  SentimentNegative,
				ShouldSync:      true,
				ShouldBlocklist: true,
			}
		},
	},
	{
		name:    "unsubscribed",
		matches: func(e LeadEvent) bool { return hasCode(e.LeadStatus, LeadStatusUnsubscribed) },
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:       statusPtr(StatusDoNotContact),
				Qualification:   qualificationPtr(QualificationDisqualified),
				ReplySentiment:  SentimentNegative,
				ShouldSync:      true,
				ShouldBlocklist: true,
			}
		},
	},
	{
		name: "meeting_booked",
		matches: func(e LeadEvent) bool {
			return hasCode(e.InterestStatus, InterestMeetingBooked) || hasCode(e.InterestStatus, InterestMeetingCompleted)
		},
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:         statusPtr(StatusMeetingBooked),
				Qualification:     qualificationPtr(QualificationQualified),
				HasReply:          true,
				ReplySentiment:    SentimentPositive,
				ShouldSync:        true,
				ShouldLogActivity: true,
			}
		},
	},
	{
		name:    "closed_won",
		matches: func(e LeadEvent) bool { return hasCode(e.InterestStatus, InterestClosedWon) },
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:         statusPtr(StatusWon),
				Qualification:     qualificationPtr(QualificationQualified),
				HasReply:          true,
				ReplySentiment:    SentimentPositive,
				ShouldSync:        true,
				ShouldLogActivity: true,
			}
		},
	},
	{
		name:    "interested",
		matches: func(e LeadEvent) bool { return hasCode(e.InterestStatus, InterestInterested) },
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:         statusPtr(StatusInterested),
				Qualification:     qualificationPtr(QualificationQualified),
				HasReply:          true,
				ReplySentiment:    SentimentPositive,
				ShouldSync:        true,
				ShouldLogActivity: true,
			}
		},
	},
	{
		name: "not_interested",
		matches: func(e LeadEvent) bool {
			return hasCode(e.InterestStatus, InterestNotInterested) ||
				hasCode(e.InterestStatus, InterestWrongPerson) ||
				hasCode(e.InterestStatus, InterestLost)
		},
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:      statusPtr(StatusNotInterested),
				Qualification:  qualificationPtr(QualificationDisqualified),
				HasReply:       true,
				ReplySentiment: SentimentNegative,
				ShouldSync:     true,
			}
		},
	},
	{
		name:    "unclassified_reply",
		matches: func(e LeadEvent) bool { return e.ReplyCount > 0 },
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:         statusPtr(StatusReview),
				Qualification:     qualificationPtr(QualificationReview),
				HasReply:          true,
				ReplySentiment:    SentimentNeutral,
				ShouldSync:        true,
				ShouldLogActivity: true,
			}
		},
	},
	{
		name:    "completed_no_reply",
		matches: func(LeadEvent) bool { return true },
		resolve: func(LeadEvent) StatusResolution {
			return StatusResolution{
				StatusKey:     statusPtr(StatusCampaignCompleted),
				Qualification: qualificationPtr(QualificationEnriched),
				ShouldSync:    true,
			}
		},
	},
}

func resolveSnapshot(event LeadEvent) StatusResolution {
	for _, rule := range snapshotRules {
		if rule.matches(event) {
			return rule.resolve(event)
		}
	}
	// Unreachable: the last rule always matches.
	return StatusResolution{}
}

func hasCode(value *int, code int) bool {
	return value != nil && *value == code
}
