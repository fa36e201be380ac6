package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/clock"
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

// Throttle holds the fixed pauses inserted between remote calls. They pace
// requests per credential; they are not a retry backoff.
type Throttle struct {
	BetweenAnswers    time.Duration
	BetweenPolls      time.Duration
	AfterVote         time.Duration
	BetweenIdentities time.Duration
}

func DefaultThrottle() Throttle {
	return Throttle{
		BetweenAnswers:    500 * time.Millisecond,
		BetweenPolls:      time.Second,
		AfterVote:         3 * time.Second,
		BetweenIdentities: 5 * time.Second,
	}
}

type SyncDeps struct {
	Settings ports.SettingsSource
	Sessions ports.SessionManager
	Gateway  ports.PollGateway
	Polls    ports.PollStateRepository
	Notifier ports.Notifier
	Sleeper  ports.Sleeper
	Throttle Throttle
	Now      func() time.Time
	Logger   *slog.Logger
}

type syncService struct {
	settings ports.SettingsSource
	sessions ports.SessionManager
	gateway  ports.PollGateway
	polls    ports.PollStateRepository
	notifier ports.Notifier
	sleeper  ports.Sleeper
	throttle Throttle
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.RWMutex
	last *domain.CycleSummary
}

// SyncEngine is both the cycle runner and the source of the last summary.
type SyncEngine interface {
	ports.SyncService
	ports.SummaryReader
}

func NewSyncService(deps SyncDeps) SyncEngine {
	s := &syncService{
		settings: deps.Settings,
		sessions: deps.Sessions,
		gateway:  deps.Gateway,
		polls:    deps.Polls,
		notifier: deps.Notifier,
		sleeper:  deps.Sleeper,
		throttle: deps.Throttle,
		now:      deps.Now,
		logger:   deps.Logger,
	}
	if s.sleeper == nil {
		s.sleeper = clock.Real()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *syncService) LastSummary() *domain.CycleSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// RunCycle performs one fetch, merge, vote and report pass. Identity and
// poll level failures end up in the summary; an error is returned only when
// the cycle could not run at all.
func (s *syncService) RunCycle(ctx context.Context) (*domain.CycleSummary, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	summary := domain.NewCycleSummary(s.now(), len(settings.Identities))
	logger := s.logger.With("cycle_id", summary.CycleID.String(), "channel_id", settings.ChannelID)
	logger.Info("starting cycle", "identities", len(settings.Identities))

	if len(settings.Identities) == 0 {
		return nil, fmt.Errorf("%w: no identities configured", domain.ErrNoValidReader)
	}

	doc, err := s.polls.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll state: %w", err)
	}

	reader, items, err := s.bootstrap(ctx, logger, settings)
	if err != nil {
		return nil, err
	}

	newIDs := newPollIDs(doc, items)
	summary.NewPolls = len(newIDs)

	if len(newIDs) == 0 {
		logger.Info("no new polls, refreshing end state only", "polls", len(items))
		s.refreshEndState(logger, doc, items)
		if err := s.save(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to save poll state: %w", err)
		}
		summary.EarlyExit = true
		s.finish(ctx, logger, settings, summary)
		return summary, nil
	}

	logger.Info("found new polls", "count", len(newIDs))
	active, err := s.merge(ctx, logger, reader, settings.ChannelID, doc, items)
	if err != nil {
		return nil, err
	}
	summary.ActivePolls = len(active)

	if err := s.save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save merged poll state: %w", err)
	}

	for i, identity := range settings.Identities {
		if i > 0 {
			if err := s.sleeper.Sleep(ctx, s.throttle.BetweenIdentities); err != nil {
				return nil, err
			}
		}
		if err := s.voteAs(ctx, logger, settings.ChannelID, identity, doc, active, summary); err != nil {
			return nil, err
		}
	}

	if err := s.save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save poll state after voting: %w", err)
	}

	s.finish(ctx, logger, settings, summary)
	return summary, nil
}

// bootstrap picks the first identity whose credential can list the channel.
// That credential reads respondents for the rest of the cycle.
func (s *syncService) bootstrap(ctx context.Context, logger *slog.Logger, settings *domain.Settings) (string, []domain.PollItem, error) {
	for _, identity := range settings.Identities {
		credential, err := s.sessions.EnsureCredential(ctx, identity)
		if err != nil {
			logger.Warn("cannot use identity as reader", "identity", identity.ID, "error", err)
			continue
		}

		items, err := s.gateway.ListRecentItems(ctx, credential, settings.ChannelID)
		if errors.Is(err, domain.ErrUnauthorized) {
			credential, err = s.sessions.Invalidate(ctx, identity)
			if err != nil {
				logger.Warn("cannot refresh reader credential", "identity", identity.ID, "error", err)
				continue
			}
			items, err = s.gateway.ListRecentItems(ctx, credential, settings.ChannelID)
		}
		if err != nil {
			logger.Warn("listing channel failed", "identity", identity.ID, "error", err)
			continue
		}

		logger.Info("using reader identity", "identity", identity.ID, "polls", len(items))
		return credential, items, nil
	}
	return "", nil, domain.ErrNoValidReader
}

func (s *syncService) refreshEndState(logger *slog.Logger, doc *domain.PollDocument, items []domain.PollItem) {
	now := s.now()
	for _, item := range items {
		state, ok := doc.Polls[item.ID]
		if !ok {
			continue
		}
		state.EndedAt = item.EndedAt
		if item.Ended(now) && state.MarkEnded() {
			logger.Info("poll has ended", "poll_id", item.ID, "question", item.Question)
		}
	}
}

// merge folds the snapshot into doc, replacing every answer's respondents
// with what the remote reports now. It returns the ids of polls still open.
func (s *syncService) merge(ctx context.Context, logger *slog.Logger, reader, channelID string, doc *domain.PollDocument, items []domain.PollItem) ([]string, error) {
	now := s.now()
	var active []string

	for _, item := range items {
		ended := item.Ended(now)
		state, ok := doc.Polls[item.ID]
		if !ok {
			state = &domain.PollState{
				Answers:     make(map[string]*domain.AnswerState),
				EndedAt:     item.EndedAt,
				LoggedEnded: ended,
			}
			doc.Polls[item.ID] = state
		} else if item.EndedAt != nil {
			state.EndedAt = item.EndedAt
		}
		state.Question = item.Question
		state.Expiry = item.Expiry
		if ended && state.MarkEnded() {
			logger.Info("poll has ended", "poll_id", item.ID, "question", item.Question)
		}
		if state.Answers == nil {
			state.Answers = make(map[string]*domain.AnswerState)
		}

		if majority, ok := MajorityAnswer(item); ok {
			state.MajorityAnswerID = &majority
			state.MajorityAnswerText = item.AnswerText(majority)
		} else {
			state.MajorityAnswerID = nil
			state.MajorityAnswerText = ""
		}

		for _, answer := range item.Answers {
			answerState, ok := state.Answers[answer.ID]
			if !ok {
				answerState = &domain.AnswerState{}
				state.Answers[answer.ID] = answerState
			}
			answerState.Text = answer.Text

			set, err := s.gateway.ListRespondents(ctx, reader, channelID, item.ID, answer.ID)
			if err != nil {
				logger.Warn("respondents unknown, recording none",
					"poll_id", item.ID, "answer_id", answer.ID, "error", err)
				answerState.TotalCount = 0
				answerState.Voters = []string{}
			} else {
				answerState.TotalCount = set.Count
				answerState.Voters = uniqueNames(set.Names)
			}

			if err := s.sleeper.Sleep(ctx, s.throttle.BetweenAnswers); err != nil {
				return nil, err
			}
		}

		if !ended {
			active = append(active, item.ID)
		}
	}
	return active, nil
}

// save stamps doc with the current time and persists it.
func (s *syncService) save(ctx context.Context, doc *domain.PollDocument) error {
	doc.LastUpdated = s.now()
	return s.polls.Save(ctx, doc)
}

func (s *syncService) finish(ctx context.Context, logger *slog.Logger, settings *domain.Settings, summary *domain.CycleSummary) {
	summary.FinishedAt = s.now()

	s.mu.Lock()
	s.last = summary
	s.mu.Unlock()

	logger.Info("cycle finished",
		"voted", len(summary.Voted),
		"already_on_majority", len(summary.AlreadyOnMajority),
		"already_off_majority", len(summary.AlreadyOffMajority),
		"vote_failed", len(summary.VoteFailed),
		"skipped_config", len(summary.SkippedConfig),
		"token_failed", len(summary.TokenFailed),
	)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySummary(ctx, settings.OperatorAddress, summary); err != nil {
		logger.Error("failed to deliver cycle summary", "error", err)
	}
}
