package domain

import (
	"time"

	"github.com/google/uuid"
)

// CycleSummary partitions identities by what happened to them in one cycle.
// It is only used for reporting.
type CycleSummary struct {
	CycleID         uuid.UUID `json:"cycleId"`
	StartedAt       time.Time `json:"startedAt"`
	FinishedAt      time.Time `json:"finishedAt"`
	TotalIdentities int       `json:"totalIdentities"`
	NewPolls        int       `json:"newPolls"`
	ActivePolls     int       `json:"activePolls"`
	// EarlyExit is set when no new polls were found and voting was skipped.
	EarlyExit bool `json:"earlyExit"`

	Voted              []string  `json:"voted"`
	AlreadyOnMajority  []string  `json:"alreadyOnMajority"`
	AlreadyOffMajority []string  `json:"alreadyOffMajority"`
	VoteFailed         []Failure `json:"voteFailed"`
	SkippedConfig      []Failure `json:"skippedConfig"`
	TokenFailed        []Failure `json:"tokenFailed"`
}

// Failure names an identity and why it landed in a failure bucket. Poll is
// empty for identity-wide failures.
type Failure struct {
	Identity string `json:"identity"`
	Poll     string `json:"poll,omitempty"`
	Reason   string `json:"reason"`
}

func NewCycleSummary(startedAt time.Time, totalIdentities int) *CycleSummary {
	return &CycleSummary{
		CycleID:         uuid.New(),
		StartedAt:       startedAt,
		TotalIdentities: totalIdentities,
	}
}

func (s *CycleSummary) AddVoted(name string) {
	s.Voted = appendUnique(s.Voted, name)
}

// AddAlready records an identity that had voted before this cycle. An
// identity lands in at most one of the two "already" buckets.
func (s *CycleSummary) AddAlready(name string, onMajority bool) {
	if contains(s.AlreadyOnMajority, name) || contains(s.AlreadyOffMajority, name) {
		return
	}
	if onMajority {
		s.AlreadyOnMajority = append(s.AlreadyOnMajority, name)
	} else {
		s.AlreadyOffMajority = append(s.AlreadyOffMajority, name)
	}
}

func (s *CycleSummary) AddVoteFailed(name, poll, reason string) {
	s.VoteFailed = append(s.VoteFailed, Failure{Identity: name, Poll: poll, Reason: reason})
}

func (s *CycleSummary) AddSkipped(name, reason string) {
	s.SkippedConfig = append(s.SkippedConfig, Failure{Identity: name, Reason: reason})
}

func (s *CycleSummary) AddTokenFailed(name, reason string) {
	for _, f := range s.TokenFailed {
		if f.Identity == name {
			return
		}
	}
	s.TokenFailed = append(s.TokenFailed, Failure{Identity: name, Reason: reason})
}

// Names returns the distinct identity names in failures, in order.
func Names(failures []Failure) []string {
	var names []string
	for _, f := range failures {
		names = appendUnique(names, f.Identity)
	}
	return names
}

func appendUnique(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// VoteNotice describes one successful vote, for per-vote notifications.
type VoteNotice struct {
	Identity      string
	NotifyAddress string
	Question      string
	Answer        string
}
