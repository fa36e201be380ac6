package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

type staticSettings struct {
	settings domain.Settings
}

func (s *staticSettings) Settings(ctx context.Context) (*domain.Settings, error) {
	copied := s.settings
	return &copied, nil
}

type memoryPolls struct {
	doc   *domain.PollDocument
	saves int
}

func (m *memoryPolls) Load(ctx context.Context) (*domain.PollDocument, error) {
	if m.doc == nil {
		m.doc = domain.NewPollDocument()
	}
	return m.doc, nil
}

func (m *memoryPolls) Save(ctx context.Context, doc *domain.PollDocument) error {
	m.doc = doc
	m.saves++
	return nil
}

// fakeSessions hands out "<id>-token" and "<id>-token-<n>" after the nth
// invalidation.
type fakeSessions struct {
	ensureErr     map[string]error
	invalidateErr map[string]error
	invalidated   map[string]int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		ensureErr:     map[string]error{},
		invalidateErr: map[string]error{},
		invalidated:   map[string]int{},
	}
}

func (f *fakeSessions) EnsureCredential(ctx context.Context, identity domain.Identity) (string, error) {
	if err := f.ensureErr[identity.ID]; err != nil {
		return "", err
	}
	if n := f.invalidated[identity.ID]; n > 0 {
		return fmt.Sprintf("%s-token-%d", identity.ID, n), nil
	}
	return identity.ID + "-token", nil
}

func (f *fakeSessions) Invalidate(ctx context.Context, identity domain.Identity) (string, error) {
	f.invalidated[identity.ID]++
	if err := f.invalidateErr[identity.ID]; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-token-%d", identity.ID, f.invalidated[identity.ID]), nil
}

type voteCall struct {
	Credential string
	PollID     string
	AnswerID   string
}

type fakeGateway struct {
	mu sync.Mutex

	items       []domain.PollItem
	listFn      func(credential string) error
	respondents map[string]domain.RespondentSet
	failAnswers map[string]error
	voteFn      func(call voteCall) error

	listCalls       []string
	respondentCalls []string
	votes           []voteCall
}

func respondentKey(pollID, answerID string) string { return pollID + "/" + answerID }

func (g *fakeGateway) ListRecentItems(ctx context.Context, credential, channelID string) ([]domain.PollItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls = append(g.listCalls, credential)
	if g.listFn != nil {
		if err := g.listFn(credential); err != nil {
			return nil, err
		}
	}
	return g.items, nil
}

func (g *fakeGateway) ListRespondents(ctx context.Context, credential, channelID, pollID, answerID string) (domain.RespondentSet, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := respondentKey(pollID, answerID)
	g.respondentCalls = append(g.respondentCalls, key)
	if err := g.failAnswers[key]; err != nil {
		return domain.RespondentSet{}, err
	}
	set, ok := g.respondents[key]
	if !ok {
		return domain.RespondentSet{PollID: pollID, AnswerID: answerID}, nil
	}
	return set, nil
}

func (g *fakeGateway) SubmitVote(ctx context.Context, credential, channelID, pollID, answerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	call := voteCall{Credential: credential, PollID: pollID, AnswerID: answerID}
	g.votes = append(g.votes, call)
	if g.voteFn != nil {
		return g.voteFn(call)
	}
	return nil
}

type recordingNotifier struct {
	votes     []domain.VoteNotice
	summaries []*domain.CycleSummary
	err       error
}

func (n *recordingNotifier) NotifyVote(ctx context.Context, notice domain.VoteNotice) error {
	n.votes = append(n.votes, notice)
	return n.err
}

func (n *recordingNotifier) NotifySummary(ctx context.Context, operatorAddress string, summary *domain.CycleSummary) error {
	n.summaries = append(n.summaries, summary)
	return n.err
}
