package discord

import (
	"strconv"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

type message struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id"`
	Poll      *messagePoll `json:"poll"`
}

type messagePoll struct {
	Question struct {
		Text string `json:"text"`
	} `json:"question"`
	Answers []struct {
		AnswerID  int `json:"answer_id"`
		PollMedia struct {
			Text string `json:"text"`
		} `json:"poll_media"`
	} `json:"answers"`
	Expiry  *time.Time   `json:"expiry"`
	Results *pollResults `json:"results"`
}

type pollResults struct {
	IsFinalized  bool       `json:"is_finalized"`
	EndedAt      *time.Time `json:"ended_at"`
	AnswerCounts []struct {
		ID      int  `json:"id"`
		Count   int  `json:"count"`
		MeVoted bool `json:"me_voted"`
	} `json:"answer_counts"`
}

type respondentsPage struct {
	Users []struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"users"`
}

type voteRequest struct {
	AnswerIDs []string `json:"answer_ids"`
}

// toPollItem converts a message carrying a poll. A finalized poll without an
// explicit end time is considered ended at its expiry.
func (m message) toPollItem() domain.PollItem {
	item := domain.PollItem{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Question:  m.Poll.Question.Text,
		Expiry:    m.Poll.Expiry,
	}
	for _, a := range m.Poll.Answers {
		item.Answers = append(item.Answers, domain.PollAnswer{
			ID:   strconv.Itoa(a.AnswerID),
			Text: a.PollMedia.Text,
		})
	}
	if r := m.Poll.Results; r != nil {
		item.EndedAt = r.EndedAt
		if item.EndedAt == nil && r.IsFinalized {
			item.EndedAt = m.Poll.Expiry
		}
		for _, c := range r.AnswerCounts {
			item.Counts = append(item.Counts, domain.AnswerCount{
				AnswerID: strconv.Itoa(c.ID),
				Count:    c.Count,
			})
		}
	}
	return item
}
