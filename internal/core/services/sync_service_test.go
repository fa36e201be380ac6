package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pollvoter/internal/clock"
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	settings *staticSettings
	sessions *fakeSessions
	gateway  *fakeGateway
	polls    *memoryPolls
	notifier *recordingNotifier
	sleeper  *clock.Recorder
	engine   SyncEngine
}

func newTestEnv(identities ...domain.Identity) *testEnv {
	env := &testEnv{
		settings: &staticSettings{settings: domain.Settings{
			ChannelID:       "chan-1",
			Identities:      identities,
			OperatorAddress: "operator",
		}},
		sessions: newFakeSessions(),
		gateway:  &fakeGateway{respondents: map[string]domain.RespondentSet{}, failAnswers: map[string]error{}},
		polls:    &memoryPolls{},
		notifier: &recordingNotifier{},
		sleeper:  &clock.Recorder{},
	}
	env.engine = NewSyncService(SyncDeps{
		Settings: env.settings,
		Sessions: env.sessions,
		Gateway:  env.gateway,
		Polls:    env.polls,
		Notifier: env.notifier,
		Sleeper:  env.sleeper,
		Throttle: DefaultThrottle(),
		Now:      func() time.Time { return testNow },
	})
	return env
}

func identity(id, handle string) domain.Identity {
	return domain.Identity{ID: id, Handle: handle}
}

func pollItem(id string, endedAt *time.Time, counts ...domain.AnswerCount) domain.PollItem {
	item := domain.PollItem{ID: id, ChannelID: "chan-1", Question: "question " + id, EndedAt: endedAt, Counts: counts}
	for _, c := range counts {
		item.Answers = append(item.Answers, domain.PollAnswer{ID: c.AnswerID, Text: "answer " + c.AnswerID})
	}
	return item
}

func count(answerID string, n int) domain.AnswerCount {
	return domain.AnswerCount{AnswerID: answerID, Count: n}
}

func respondents(pollID, answerID string, total int, names ...string) domain.RespondentSet {
	return domain.RespondentSet{PollID: pollID, AnswerID: answerID, Names: names, Count: total}
}

func TestRunCycle_EndToEnd(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"), identity("I2", "u2"))
	env.gateway.items = []domain.PollItem{pollItem("P1", nil, count("A", 2), count("B", 5))}
	env.gateway.respondents[respondentKey("P1", "A")] = respondents("P1", "A", 2, "x1", "x2")
	env.gateway.respondents[respondentKey("P1", "B")] = respondents("P1", "B", 5, "u2")

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, env.gateway.votes, 1)
	assert.Equal(t, voteCall{Credential: "I1-token", PollID: "P1", AnswerID: "B"}, env.gateway.votes[0])

	state := env.polls.doc.Polls["P1"]
	require.NotNil(t, state)
	require.NotNil(t, state.MajorityAnswerID)
	assert.Equal(t, "B", *state.MajorityAnswerID)
	assert.Equal(t, "answer B", state.MajorityAnswerText)
	assert.Equal(t, []string{"u2", "u1"}, state.Answers["B"].Voters)
	assert.Equal(t, 6, state.Answers["B"].TotalCount)

	assert.Equal(t, []string{"I1"}, summary.Voted)
	assert.Equal(t, []string{"I2"}, summary.AlreadyOnMajority)
	assert.Empty(t, summary.AlreadyOffMajority)
	assert.Equal(t, 1, summary.NewPolls)
	assert.Equal(t, 1, summary.ActivePolls)
	assert.False(t, summary.EarlyExit)

	// merged state, then final state
	assert.Equal(t, 2, env.polls.saves)
	assert.True(t, testNow.Equal(env.polls.doc.LastUpdated))

	require.Len(t, env.notifier.votes, 1)
	assert.Equal(t, domain.VoteNotice{Identity: "I1", Question: "question P1", Answer: "answer B"}, env.notifier.votes[0])
	require.Len(t, env.notifier.summaries, 1)
	assert.Same(t, summary, env.notifier.summaries[0])
	assert.Same(t, summary, env.engine.LastSummary())

	assert.Contains(t, env.sleeper.Sleeps(), 3*time.Second)
	assert.Contains(t, env.sleeper.Sleeps(), 5*time.Second)
}

func TestRunCycle_EmptySnapshotIsANoOp(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.EarlyExit)
	assert.Empty(t, env.gateway.respondentCalls)
	assert.Empty(t, env.gateway.votes)
	assert.Equal(t, 1, env.polls.saves)
	assert.Empty(t, env.polls.doc.Polls)
}

func TestRunCycle_LoggedEndedIsSticky(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	past := testNow.Add(-time.Hour)
	env.polls.doc = domain.NewPollDocument()
	env.polls.doc.Polls["P1"] = &domain.PollState{Question: "q", EndedAt: &past, LoggedEnded: true, Answers: map[string]*domain.AnswerState{}}
	env.polls.doc.Polls["P2"] = &domain.PollState{Question: "q2", Answers: map[string]*domain.AnswerState{}}

	// The remote drops P1's end time; P2 has now ended.
	env.gateway.items = []domain.PollItem{
		pollItem("P1", nil, count("A", 1)),
		pollItem("P2", &past, count("A", 1)),
	}

	for range 2 {
		summary, err := env.engine.RunCycle(context.Background())
		require.NoError(t, err)
		assert.True(t, summary.EarlyExit)
	}

	assert.True(t, env.polls.doc.Polls["P1"].LoggedEnded)
	assert.Nil(t, env.polls.doc.Polls["P1"].EndedAt)
	assert.True(t, env.polls.doc.Polls["P2"].LoggedEnded)
	assert.Empty(t, env.gateway.respondentCalls)
	assert.Empty(t, env.gateway.votes)
}

func TestRunCycle_RespondentsAreReplacedNotMerged(t *testing.T) {
	// No handle, so the identity only reads and never votes.
	env := newTestEnv(identity("I1", ""))
	env.polls.doc = domain.NewPollDocument()
	env.polls.doc.Polls["PX"] = &domain.PollState{
		Question: "old",
		Answers: map[string]*domain.AnswerState{
			"X": {Text: "x", TotalCount: 1, Voters: []string{"alice"}},
		},
	}
	env.gateway.items = []domain.PollItem{
		pollItem("PX", nil, count("X", 1)),
		pollItem("PNEW", nil, count("Y", 0)),
	}
	env.gateway.respondents[respondentKey("PX", "X")] = respondents("PX", "X", 1, "bob")

	_, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	answer := env.polls.doc.Polls["PX"].Answers["X"]
	assert.Equal(t, []string{"bob"}, answer.Voters)
	assert.Equal(t, 1, answer.TotalCount)
	assert.Equal(t, "question PX", env.polls.doc.Polls["PX"].Question)
}

func TestRunCycle_PaginationFailureRecordsNoRespondents(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	env.gateway.items = []domain.PollItem{pollItem("P1", nil, count("A", 3), count("B", 1))}
	env.gateway.failAnswers[respondentKey("P1", "A")] = domain.ErrPaginationInterrupted
	env.gateway.respondents[respondentKey("P1", "B")] = respondents("P1", "B", 1, "u1")

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	answer := env.polls.doc.Polls["P1"].Answers["A"]
	assert.Empty(t, answer.Voters)
	assert.Equal(t, 0, answer.TotalCount)
	assert.Equal(t, []string{"I1"}, summary.AlreadyOffMajority)
	assert.Empty(t, env.gateway.votes)
}

func TestRunCycle_NeverVotesWhenHandleAlreadyListed(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	env.gateway.items = []domain.PollItem{pollItem("P1", nil, count("A", 1), count("B", 4))}
	env.gateway.respondents[respondentKey("P1", "A")] = respondents("P1", "A", 1, "u1")
	env.gateway.respondents[respondentKey("P1", "B")] = respondents("P1", "B", 4, "v1", "v2", "v3", "v4")

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, env.gateway.votes)
	assert.Equal(t, []string{"I1"}, summary.AlreadyOffMajority)
	assert.Empty(t, summary.Voted)
}

func TestRunCycle_UnauthorizedRefreshesOnceThenGivesUp(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	env.gateway.items = []domain.PollItem{
		pollItem("P1", nil, count("A", 1)),
		pollItem("P2", nil, count("A", 1)),
	}
	env.gateway.voteFn = func(voteCall) error { return domain.ErrUnauthorized }

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, env.sessions.invalidated["I1"])
	assert.Equal(t, []voteCall{
		{Credential: "I1-token", PollID: "P1", AnswerID: "A"},
		{Credential: "I1-token-1", PollID: "P1", AnswerID: "A"},
	}, env.gateway.votes)
	require.Len(t, summary.TokenFailed, 1)
	assert.Equal(t, "I1", summary.TokenFailed[0].Identity)
	assert.Empty(t, summary.Voted)
}

func TestRunCycle_UnauthorizedRefreshThenContinues(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	env.gateway.items = []domain.PollItem{
		pollItem("P1", nil, count("A", 1)),
		pollItem("P2", nil, count("A", 1)),
	}
	env.gateway.voteFn = func(call voteCall) error {
		if call.Credential == "I1-token" {
			return domain.ErrUnauthorized
		}
		return nil
	}

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []voteCall{
		{Credential: "I1-token", PollID: "P1", AnswerID: "A"},
		{Credential: "I1-token-1", PollID: "P1", AnswerID: "A"},
		{Credential: "I1-token-1", PollID: "P2", AnswerID: "A"},
	}, env.gateway.votes)
	assert.Equal(t, []string{"I1"}, summary.Voted)
	assert.Empty(t, summary.TokenFailed)
}

func TestRunCycle_RejectedVoteDoesNotStopIdentity(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	env.gateway.items = []domain.PollItem{
		pollItem("P1", nil, count("A", 1)),
		pollItem("P2", nil, count("A", 1)),
	}
	env.gateway.voteFn = func(call voteCall) error {
		if call.PollID == "P1" {
			return &domain.VoteRejectedError{StatusCode: 400, Body: "bad"}
		}
		return nil
	}

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.VoteFailed, 1)
	assert.Equal(t, domain.Failure{Identity: "I1", Poll: "question P1", Reason: "status 400"}, summary.VoteFailed[0])
	assert.Equal(t, []string{"I1"}, summary.Voted)
	assert.Empty(t, env.polls.doc.Polls["P1"].Answers["A"].Voters)
	assert.Equal(t, []string{"u1"}, env.polls.doc.Polls["P2"].Answers["A"].Voters)
}

func TestRunCycle_EndedPollsAreNotVoted(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	past := testNow.Add(-time.Minute)
	env.gateway.items = []domain.PollItem{pollItem("P1", &past, count("A", 1))}

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.True(t, env.polls.doc.Polls["P1"].LoggedEnded)
	assert.Equal(t, 0, summary.ActivePolls)
	assert.Empty(t, env.gateway.votes)
}

func TestRunCycle_NoMajorityIsAVoteFailure(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	item := pollItem("P1", nil)
	item.Answers = []domain.PollAnswer{{ID: "A", Text: "a"}}
	env.gateway.items = []domain.PollItem{item}

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Nil(t, env.polls.doc.Polls["P1"].MajorityAnswerID)
	require.Len(t, summary.VoteFailed, 1)
	assert.Equal(t, "no majority answer", summary.VoteFailed[0].Reason)
	assert.Empty(t, env.gateway.votes)
}

func TestRunCycle_SkipsAndTokenFailures(t *testing.T) {
	env := newTestEnv(identity("I1", ""), identity("I2", "u2"), identity("I3", "u3"))
	env.sessions.ensureErr["I3"] = domain.ErrLoginFailed
	env.gateway.items = []domain.PollItem{pollItem("P1", nil, count("A", 1))}

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.SkippedConfig, 1)
	assert.Equal(t, "I1", summary.SkippedConfig[0].Identity)
	assert.Contains(t, summary.SkippedConfig[0].Reason, domain.ErrConfigMissingField.Error())
	require.Len(t, summary.TokenFailed, 1)
	assert.Equal(t, "I3", summary.TokenFailed[0].Identity)
	assert.Equal(t, []string{"I2"}, summary.Voted)

	// I1 still serves as the reader even though it cannot vote.
	assert.Equal(t, []string{"I1-token"}, env.gateway.listCalls)
}

func TestRunCycle_ReaderBootstrapFallsThrough(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"), identity("I2", "u2"))
	env.gateway.listFn = func(credential string) error {
		if credential == "I2-token" {
			return nil
		}
		return domain.ErrUnauthorized
	}

	_, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"I1-token", "I1-token-1", "I2-token"}, env.gateway.listCalls)
	assert.Equal(t, 1, env.sessions.invalidated["I1"])
}

func TestRunCycle_NoValidReaderMutatesNothing(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"), identity("I2", "u2"))
	env.gateway.listFn = func(string) error { return &domain.HTTPError{StatusCode: 500} }

	summary, err := env.engine.RunCycle(context.Background())
	require.ErrorIs(t, err, domain.ErrNoValidReader)
	assert.Nil(t, summary)
	assert.Equal(t, 0, env.polls.saves)
	assert.Empty(t, env.notifier.summaries)
}

func TestRunCycle_NotifierFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(identity("I1", "u1"))
	env.notifier.err = errors.New("smtp down")
	env.gateway.items = []domain.PollItem{pollItem("P1", nil, count("A", 1))}

	summary, err := env.engine.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"I1"}, summary.Voted)
}
