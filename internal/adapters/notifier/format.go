// Package notifier delivers vote and cycle-summary messages. Delivery is
// best effort: callers log failures and move on.
package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

const summaryTimeLayout = "2006-01-02 15:04 MST"

// FormatVote renders the message sent to an identity after it voted.
func FormatVote(n domain.VoteNotice) string {
	return fmt.Sprintf("*%s* voted on \"%s\"\nAnswer: %s", n.Identity, n.Question, n.Answer)
}

// FormatSummary renders the operator's end-of-cycle report in loc.
func FormatSummary(s *domain.CycleSummary, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*Poll voter cycle summary (%s)*\n\n", s.FinishedAt.In(loc).Format(summaryTimeLayout))

	if s.EarlyExit || (s.NewPolls == 0 && s.ActivePolls == 0) {
		b.WriteString("No new active polls found that need a vote.")
		return b.String()
	}

	fmt.Fprintf(&b, "*Identities (%d total)*:\n", s.TotalIdentities)
	writeNames(&b, "Voted", s.Voted)
	writeNames(&b, "Already voted (majority)", s.AlreadyOnMajority)
	writeNames(&b, "Already voted (not majority)", s.AlreadyOffMajority)

	fmt.Fprintf(&b, "*Vote failed:* (%d)\n", len(domain.Names(s.VoteFailed)))
	if len(s.VoteFailed) == 0 {
		b.WriteString("- none\n")
	}
	for _, f := range s.VoteFailed {
		reason := f.Reason
		if reason == "" {
			reason = "unknown"
		}
		fmt.Fprintf(&b, "- %s (poll: \"%s\", reason: %s)\n", f.Identity, f.Poll, reason)
	}
	b.WriteString("\n")

	skipped := domain.Names(s.SkippedConfig)
	tokenFailed := domain.Names(s.TokenFailed)
	fmt.Fprintf(&b, "*Skipped (credential/config):* (%d)\n", len(skipped)+len(tokenFailed))
	for _, name := range skipped {
		fmt.Fprintf(&b, "- %s (reason: no username configured)\n", name)
	}
	for _, name := range tokenFailed {
		fmt.Fprintf(&b, "- %s (reason: credential refresh failed)\n", name)
	}
	if len(skipped)+len(tokenFailed) == 0 {
		b.WriteString("- none\n")
	}
	return b.String()
}

func writeNames(b *strings.Builder, title string, names []string) {
	fmt.Fprintf(b, "*%s:* (%d)\n", title, len(names))
	if len(names) == 0 {
		b.WriteString("- none\n\n")
		return
	}
	for _, name := range names {
		fmt.Fprintf(b, "- %s\n", name)
	}
	b.WriteString("\n")
}
