package domain

// Qualification is a business classification separate from the CRM status.
type Qualification string

const (
	QualificationQualified    Qualification = "qualified"
	QualificationDisqualified Qualification = "disqualified"
	QualificationReview       Qualification = "review"
	QualificationEnriched     Qualification = "enriched"
)

// Sentiment classifies the tone of a lead's reply.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNone     Sentiment = ""
)

// StatusResolution is the resolver's output. It is transient: recomputed on
// every event, never stored as-is.
//
// Invariant: ShouldBlocklist implies StatusKey == StatusDoNotContact.
type StatusResolution struct {
	// StatusKey is the canonical status to apply. Nil means "no status
	// change": the event is engagement-only or unknown.
	StatusKey *StatusKey

	// Qualification is the business classification, when one follows from
	// the event.
	Qualification *Qualification

	HasReply       bool
	ReplySentiment Sentiment

	// Intents for the orchestrator.
	ShouldSync             bool
	ShouldBlocklist        bool
	ShouldLogActivity      bool
	ShouldUpdateEngagement bool
}

func statusPtr(s StatusKey) *StatusKey             { return &s }
func qualificationPtr(q Qualification) *Qualification { return &q }
