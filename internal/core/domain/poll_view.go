package domain

import "time"

// PollView is a read-only projection of a persisted PollState.
type PollView struct {
	ID                 string       `json:"id"`
	Question           string       `json:"question"`
	Expiry             *time.Time   `json:"expiry,omitempty"`
	EndedAt            *time.Time   `json:"endedAt,omitempty"`
	Ended              bool         `json:"ended"`
	MajorityAnswerID   *string      `json:"majorityAnswerId"`
	MajorityAnswerText string       `json:"majorityAnswerText,omitempty"`
	Answers            []AnswerView `json:"answers"`
}

type AnswerView struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	TotalCount int      `json:"totalCount"`
	Voters     []string `json:"voters"`
}

type PollListing struct {
	LastUpdated time.Time  `json:"lastUpdated"`
	Polls       []PollView `json:"polls"`
}
