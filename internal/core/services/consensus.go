package services

import (
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// MajorityAnswer returns the answer with the strictly highest count. Ties go
// to the answer the provider listed first. ok is false when the poll has no
// counts at all.
func MajorityAnswer(item domain.PollItem) (answerID string, ok bool) {
	best := -1
	for _, c := range item.Counts {
		if c.Count > best {
			best = c.Count
			answerID = c.AnswerID
		}
	}
	return answerID, best >= 0
}

// newPollIDs returns the ids in items that doc does not know yet, in
// snapshot order.
func newPollIDs(doc *domain.PollDocument, items []domain.PollItem) []string {
	var ids []string
	for _, item := range items {
		if _, known := doc.Polls[item.ID]; !known {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
