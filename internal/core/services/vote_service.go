package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

// voteAs walks the open polls for one identity and votes the majority answer
// wherever the identity's handle is not yet listed. Only context
// cancellation is returned; everything else is recorded in summary.
func (s *syncService) voteAs(ctx context.Context, logger *slog.Logger, channelID string, identity domain.Identity, doc *domain.PollDocument, active []string, summary *domain.CycleSummary) error {
	logger = logger.With("identity", identity.ID)

	if identity.Handle == "" {
		logger.Warn("identity has no username configured, skipping")
		summary.AddSkipped(identity.ID, fmt.Sprintf("%v: username", domain.ErrConfigMissingField))
		return nil
	}

	credential, err := s.sessions.EnsureCredential(ctx, identity)
	if err != nil {
		logger.Error("no credential for identity", "error", err)
		summary.AddTokenFailed(identity.ID, err.Error())
		return nil
	}

	refreshed := false
	pending := 0
	for i, pollID := range active {
		if i > 0 {
			if err := s.sleeper.Sleep(ctx, s.throttle.BetweenPolls); err != nil {
				return err
			}
		}

		state, ok := doc.Polls[pollID]
		if !ok {
			logger.Warn("active poll missing from state", "poll_id", pollID)
			continue
		}

		if votedFor, found := state.FindVoter(identity.Handle); found {
			onMajority := state.MajorityAnswerID != nil && *state.MajorityAnswerID == votedFor
			logger.Info("already voted", "poll_id", pollID, "on_majority", onMajority)
			summary.AddAlready(identity.ID, onMajority)
			continue
		}
		pending++

		if state.MajorityAnswerID == nil {
			logger.Warn("no majority answer, not voting", "poll_id", pollID)
			summary.AddVoteFailed(identity.ID, state.Question, "no majority answer")
			continue
		}
		majority := *state.MajorityAnswerID

		err := s.gateway.SubmitVote(ctx, credential, channelID, pollID, majority)
		if errors.Is(err, domain.ErrUnauthorized) {
			if refreshed {
				logger.Error("credential rejected again after refresh, giving up on identity")
				summary.AddTokenFailed(identity.ID, "credential rejected after refresh")
				return nil
			}
			refreshed = true
			credential, err = s.sessions.Invalidate(ctx, identity)
			if err != nil {
				logger.Error("failed to refresh credential", "error", err)
				summary.AddTokenFailed(identity.ID, err.Error())
				return nil
			}
			err = s.gateway.SubmitVote(ctx, credential, channelID, pollID, majority)
			if errors.Is(err, domain.ErrUnauthorized) {
				logger.Error("fresh credential rejected, giving up on identity")
				summary.AddTokenFailed(identity.ID, "credential rejected after refresh")
				return nil
			}
		}

		if err != nil {
			reason := err.Error()
			var rejected *domain.VoteRejectedError
			if errors.As(err, &rejected) {
				reason = fmt.Sprintf("status %d", rejected.StatusCode)
			}
			logger.Error("vote failed", "poll_id", pollID, "error", err)
			summary.AddVoteFailed(identity.ID, state.Question, reason)
		} else {
			s.recordVote(ctx, logger, identity, state, majority)
			summary.AddVoted(identity.ID)
		}

		if err := s.sleeper.Sleep(ctx, s.throttle.AfterVote); err != nil {
			return err
		}
	}

	if pending == 0 && len(active) > 0 {
		logger.Info("all active polls already voted")
	}
	return nil
}

// recordVote makes the vote visible to identities later in the same cycle
// without asking the remote again.
func (s *syncService) recordVote(ctx context.Context, logger *slog.Logger, identity domain.Identity, state *domain.PollState, answerID string) {
	answer, ok := state.Answers[answerID]
	if !ok {
		answer = &domain.AnswerState{Text: state.MajorityAnswerText}
		state.Answers[answerID] = answer
	}
	answer.AddVoter(identity.Handle)
	logger.Info("voted", "question", state.Question, "answer", answer.Text)

	if s.notifier == nil {
		return
	}
	notice := domain.VoteNotice{
		Identity:      identity.Name(),
		NotifyAddress: identity.NotifyAddress,
		Question:      state.Question,
		Answer:        answer.Text,
	}
	if err := s.notifier.NotifyVote(ctx, notice); err != nil {
		logger.Error("failed to deliver vote notice", "error", err)
	}
}
