package notifier

import (
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

const (
	KindVote    = "vote"
	KindSummary = "summary"
)

// Message is the JSON envelope published by the webhook and redis notifiers.
type Message struct {
	Kind    string       `json:"kind"`
	To      string       `json:"to,omitempty"`
	Text    string       `json:"text"`
	SentAt  time.Time    `json:"sentAt"`
	CycleID string       `json:"cycleId,omitempty"`
	Vote    *voteBody    `json:"vote,omitempty"`
	Summary *summaryBody `json:"summary,omitempty"`
}

type voteBody struct {
	Identity string `json:"identity"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type summaryBody struct {
	TotalIdentities    int              `json:"totalIdentities"`
	NewPolls           int              `json:"newPolls"`
	ActivePolls        int              `json:"activePolls"`
	EarlyExit          bool             `json:"earlyExit"`
	Voted              []string         `json:"voted"`
	AlreadyOnMajority  []string         `json:"alreadyOnMajority"`
	AlreadyOffMajority []string         `json:"alreadyOffMajority"`
	VoteFailed         []domain.Failure `json:"voteFailed"`
	SkippedConfig      []domain.Failure `json:"skippedConfig"`
	TokenFailed        []domain.Failure `json:"tokenFailed"`
}

func voteMessage(n domain.VoteNotice, now time.Time) Message {
	return Message{
		Kind:   KindVote,
		To:     n.NotifyAddress,
		Text:   FormatVote(n),
		SentAt: now,
		Vote:   &voteBody{Identity: n.Identity, Question: n.Question, Answer: n.Answer},
	}
}

func summaryMessage(to string, s *domain.CycleSummary, loc *time.Location, now time.Time) Message {
	return Message{
		Kind:    KindSummary,
		To:      to,
		Text:    FormatSummary(s, loc),
		SentAt:  now,
		CycleID: s.CycleID.String(),
		Summary: &summaryBody{
			TotalIdentities:    s.TotalIdentities,
			NewPolls:           s.NewPolls,
			ActivePolls:        s.ActivePolls,
			EarlyExit:          s.EarlyExit,
			Voted:              s.Voted,
			AlreadyOnMajority:  s.AlreadyOnMajority,
			AlreadyOffMajority: s.AlreadyOffMajority,
			VoteFailed:         s.VoteFailed,
			SkippedConfig:      s.SkippedConfig,
			TokenFailed:        s.TokenFailed,
		},
	}
}
