package domain

import (
	"time"
)

// PollItem is a poll as returned by one fetch of the channel listing.
type PollItem struct {
	ID        string
	ChannelID string
	Question  string
	Answers   []PollAnswer
	Expiry    *time.Time
	EndedAt   *time.Time
	// Counts holds the aggregate count per answer in the provider's order.
	Counts []AnswerCount
}

type PollAnswer struct {
	ID   string
	Text string
}

type AnswerCount struct {
	AnswerID string
	Count    int
}

// AnswerText returns the text for answerID, or "" when the poll has no such answer.
func (p PollItem) AnswerText(answerID string) string {
	for _, a := range p.Answers {
		if a.ID == answerID {
			return a.Text
		}
	}
	return ""
}

// Ended reports whether the poll's end time is at or before now.
func (p PollItem) Ended(now time.Time) bool {
	return p.EndedAt != nil && !p.EndedAt.After(now)
}

// RespondentSet lists who chose one answer of one poll.
type RespondentSet struct {
	PollID   string
	AnswerID string
	Names    []string
	Count    int
}

// PollState is the accumulated, persisted view of one poll.
type PollState struct {
	Question           string                  `json:"question"`
	Answers            map[string]*AnswerState `json:"answers"`
	Expiry             *time.Time              `json:"expiry"`
	EndedAt            *time.Time              `json:"ended_at"`
	MajorityAnswerID   *string                 `json:"majorityAnswerId"`
	MajorityAnswerText string                  `json:"mostVotedAnswerText"`
	// LoggedEnded never reverts to false once set.
	LoggedEnded bool `json:"loggedEnded"`
}

type AnswerState struct {
	Text       string   `json:"text"`
	TotalCount int      `json:"totalCount"`
	Voters     []string `json:"voters"`
}

// HasVoter reports whether handle is listed as a voter for this answer.
func (a *AnswerState) HasVoter(handle string) bool {
	for _, v := range a.Voters {
		if v == handle {
			return true
		}
	}
	return false
}

// AddVoter appends handle with set semantics and bumps the count.
func (a *AnswerState) AddVoter(handle string) {
	if !a.HasVoter(handle) {
		a.Voters = append(a.Voters, handle)
	}
	a.TotalCount++
}

// MarkEnded sets LoggedEnded and reports whether it changed.
func (s *PollState) MarkEnded() bool {
	if s.LoggedEnded {
		return false
	}
	s.LoggedEnded = true
	return true
}

// FindVoter returns the answer id handle voted for, if any.
func (s *PollState) FindVoter(handle string) (string, bool) {
	for id, a := range s.Answers {
		if a.HasVoter(handle) {
			return id, true
		}
	}
	return "", false
}

// PollDocument is the whole persisted poll state.
type PollDocument struct {
	LastUpdated time.Time             `json:"lastUpdated"`
	Polls       map[string]*PollState `json:"polls"`
}

func NewPollDocument() *PollDocument {
	return &PollDocument{Polls: make(map[string]*PollState)}
}
