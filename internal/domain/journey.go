package domain

import "time"

// JourneyCompletionBonusExp is granted once when a journey finishes.
const JourneyCompletionBonusExp = 500

// Journey is either a reusable template (no owning user) or a personal
// instance copied from a template. Once FinishedAt is set, progress is frozen.
type Journey struct {
	ID                    string
	UserID                *string
	TemplateID            *string
	StartCity             string
	EndCity               string
	Description           string
	Difficulty            string
	TotalDistanceMiles    float64
	PersonalProgressMiles float64
	IsTemplate            bool
	IsActive              bool
	StartedAt             time.Time
	FinishedAt            *time.Time
	Version               int64
}

// NewPersonalJourney instantiates a template for a user with zero progress.
func NewPersonalJourney(id string, userID string, template Journey, now time.Time) Journey {
	templateID := template.ID
	return Journey{
		ID:                 id,
		UserID:             &userID,
		TemplateID:         &templateID,
		StartCity:          template.StartCity,
		EndCity:            template.EndCity,
		Description:        template.Description,
		Difficulty:         template.Difficulty,
		TotalDistanceMiles: template.TotalDistanceMiles,
		IsActive:           true,
		StartedAt:          now,
	}
}

// Name describes the route.
func (j *Journey) Name() string {
	return j.StartCity + " to " + j.EndCity
}

// ProgressPercent returns completion as a percentage of the target distance.
func (j *Journey) ProgressPercent() float64 {
	if j.TotalDistanceMiles == 0 {
		return 0
	}
	return j.PersonalProgressMiles / j.TotalDistanceMiles * 100
}

// advance adds miles and finishes the journey on the first crossing of the
// target distance. A journey completes at most once.
func (j *Journey) advance(miles float64, now time.Time) bool {
	j.PersonalProgressMiles += miles
	if j.PersonalProgressMiles >= j.TotalDistanceMiles && j.FinishedAt == nil {
		j.FinishedAt = &now
		j.IsActive = false
		return true
	}
	return false
}
