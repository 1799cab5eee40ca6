package domain

import "github.com/brightpath/tutorbill/dates"

// =============================================================================
// LEAD SCORING - Derived prioritization for the intake pipeline
// =============================================================================

// LeadStatus tracks where a prospective family sits in the intake pipeline.
type LeadStatus string

const (
	LeadNew         LeadStatus = "new"
	LeadContacted   LeadStatus = "contacted"
	LeadTrialBooked LeadStatus = "trial_booked"
	LeadConverted   LeadStatus = "converted"
	LeadLost        LeadStatus = "lost"
)

// Lead is a prospective family.
type Lead struct {
	ID               string
	Name             string
	Email            string
	Status           LeadStatus
	RequestedService string
	LastContactDate  *dates.Date
	CreatedDate      dates.Date
}

// statusWeights order the pipeline: a booked trial outranks a cold contact.
var statusWeights = map[LeadStatus]int{
	LeadNew:         40,
	LeadContacted:   55,
	LeadTrialBooked: 80,
	LeadConverted:   0,
	LeadLost:        0,
}

// Score computes a 0-100 priority for follow-up, as of a given day.
// Converted and lost leads always score 0.
//
// Components:
//   - pipeline status weight (up to 80)
//   - contact recency: full 20 points within 3 days of last contact,
//     decaying to 0 at 14 days; never-contacted leads get 10 so they
//     surface above stale ones
func (l Lead) Score(asOf dates.Date) int {
	base, ok := statusWeights[l.Status]
	if !ok || base == 0 {
		return 0
	}

	recency := 10
	if l.LastContactDate != nil {
		days := dates.DaysBetween(*l.LastContactDate, asOf)
		switch {
		case days < 0:
			recency = 20 // contact scheduled in the future
		case days <= 3:
			recency = 20
		case days >= 14:
			recency = 0
		default:
			recency = 20 - (days-3)*2
		}
	}

	score := base + recency
	if score > 100 {
		score = 100
	}
	return score
}
