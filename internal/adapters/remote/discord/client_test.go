package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pollvoter/internal/clock"
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
)

const testToken = "token-abc"

type fakeAPI struct {
	mu          sync.Mutex
	messages    []map[string]any
	respondents map[string][]map[string]string
	failAfter   string
	voteStatus  int
	votes       []string
	headers     []http.Header
	afterSeen   []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{respondents: map[string][]map[string]string{}, voteStatus: http.StatusNoContent}
}

func (f *fakeAPI) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.headers = append(f.headers, r.Header.Clone())
			f.mu.Unlock()
			if r.Header.Get("Authorization") != testToken {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/channels/{channel}/messages", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.messages)
	})
	r.Get("/channels/{channel}/polls/{poll}/answers/{answer}", func(w http.ResponseWriter, r *http.Request) {
		after := r.URL.Query().Get("after")
		f.mu.Lock()
		f.afterSeen = append(f.afterSeen, after)
		f.mu.Unlock()
		if f.failAfter != "" && after == f.failAfter {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		users := f.respondents[chi.URLParam(r, "poll")+"/"+chi.URLParam(r, "answer")]
		start := 0
		if after != "" {
			for i, u := range users {
				if u["id"] == after {
					start = i + 1
				}
			}
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		end := min(start+limit, len(users))
		_ = json.NewEncoder(w).Encode(map[string]any{"users": users[start:end]})
	})
	r.Put("/channels/{channel}/polls/{poll}/answers/@me", func(w http.ResponseWriter, r *http.Request) {
		var body voteRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.votes = append(f.votes, chi.URLParam(r, "poll")+":"+body.AnswerIDs[0])
		f.mu.Unlock()
		w.WriteHeader(f.voteStatus)
		if f.voteStatus != http.StatusNoContent {
			_, _ = w.Write([]byte(`{"message":"nope"}`))
		}
	})
	return r
}

func newTestClient(t *testing.T, api *fakeAPI, sleeper *clock.Recorder) *Client {
	t.Helper()
	srv := httptest.NewServer(api.router())
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL:   srv.URL,
		PageDelay: 500 * time.Millisecond,
		Sleeper:   sleeper,
	})
	require.NoError(t, err)
	return c
}

func users(n int) []map[string]string {
	out := make([]map[string]string, n)
	for i := range out {
		out[i] = map[string]string{"id": fmt.Sprintf("%d", 1000+i), "username": fmt.Sprintf("user%d", i)}
	}
	return out
}

func TestListRecentItemsKeepsOnlyPolls(t *testing.T) {
	api := newFakeAPI()
	api.messages = []map[string]any{
		{"id": "m1", "channel_id": "c1", "content": "hello"},
		{
			"id": "m2", "channel_id": "c1",
			"poll": map[string]any{
				"question": map[string]any{"text": "Lunch?"},
				"answers": []map[string]any{
					{"answer_id": 1, "poll_media": map[string]any{"text": "Pizza"}},
					{"answer_id": 2, "poll_media": map[string]any{"text": "Sushi"}},
				},
				"expiry": "2026-03-02T12:00:00Z",
				"results": map[string]any{
					"is_finalized": false,
					"answer_counts": []map[string]any{
						{"id": 1, "count": 2, "me_voted": false},
						{"id": 2, "count": 5, "me_voted": true},
					},
				},
			},
		},
	}
	c := newTestClient(t, api, &clock.Recorder{})

	items, err := c.ListRecentItems(context.Background(), testToken, "c1")
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "m2", item.ID)
	assert.Equal(t, "c1", item.ChannelID)
	assert.Equal(t, "Lunch?", item.Question)
	assert.Equal(t, []domain.PollAnswer{{ID: "1", Text: "Pizza"}, {ID: "2", Text: "Sushi"}}, item.Answers)
	assert.Equal(t, []domain.AnswerCount{{AnswerID: "1", Count: 2}, {AnswerID: "2", Count: 5}}, item.Counts)
	require.NotNil(t, item.Expiry)
	assert.Nil(t, item.EndedAt)

	require.NotEmpty(t, api.headers)
	assert.Equal(t, testToken, api.headers[0].Get("Authorization"))
	assert.Equal(t, DefaultUserAgent, api.headers[0].Get("User-Agent"))
}

func TestListRecentItemsFinalizedUsesExpiry(t *testing.T) {
	api := newFakeAPI()
	api.messages = []map[string]any{{
		"id": "m1", "channel_id": "c1",
		"poll": map[string]any{
			"question": map[string]any{"text": "Done?"},
			"expiry":   "2026-03-01T08:00:00Z",
			"results":  map[string]any{"is_finalized": true},
		},
	}}
	c := newTestClient(t, api, &clock.Recorder{})

	items, err := c.ListRecentItems(context.Background(), testToken, "c1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].EndedAt)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), items[0].EndedAt.UTC())
}

func TestListRecentItemsUnauthorized(t *testing.T) {
	c := newTestClient(t, newFakeAPI(), &clock.Recorder{})

	_, err := c.ListRecentItems(context.Background(), "stale", "c1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestListRespondentsPaginates(t *testing.T) {
	api := newFakeAPI()
	api.respondents["m1/2"] = users(230)
	sleeper := &clock.Recorder{}
	c := newTestClient(t, api, sleeper)

	set, err := c.ListRespondents(context.Background(), testToken, "c1", "m1", "2")
	require.NoError(t, err)

	assert.Equal(t, "m1", set.PollID)
	assert.Equal(t, "2", set.AnswerID)
	assert.Equal(t, 230, set.Count)
	require.Len(t, set.Names, 230)
	assert.Equal(t, "user0", set.Names[0])
	assert.Equal(t, "user229", set.Names[229])

	assert.Equal(t, []string{"", "1099", "1199"}, api.afterSeen)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, sleeper.Sleeps())
}

func TestListRespondentsStopsOnEmptyPage(t *testing.T) {
	api := newFakeAPI()
	api.respondents["m1/1"] = users(100)
	c := newTestClient(t, api, &clock.Recorder{})

	set, err := c.ListRespondents(context.Background(), testToken, "c1", "m1", "1")
	require.NoError(t, err)
	assert.Equal(t, 100, set.Count)
	assert.Equal(t, []string{"", "1099"}, api.afterSeen)
}

func TestListRespondentsNoVoters(t *testing.T) {
	c := newTestClient(t, newFakeAPI(), &clock.Recorder{})

	set, err := c.ListRespondents(context.Background(), testToken, "c1", "m1", "1")
	require.NoError(t, err)
	assert.Zero(t, set.Count)
	assert.Empty(t, set.Names)
}

func TestListRespondentsPageFailureDiscardsPartial(t *testing.T) {
	api := newFakeAPI()
	api.respondents["m1/1"] = users(150)
	api.failAfter = "1099"
	c := newTestClient(t, api, &clock.Recorder{})

	set, err := c.ListRespondents(context.Background(), testToken, "c1", "m1", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPaginationInterrupted)

	var httpErr *domain.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Empty(t, set.Names)
}

func TestSubmitVote(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(t, api, &clock.Recorder{})

	err := c.SubmitVote(context.Background(), testToken, "c1", "m1", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1:2"}, api.votes)
}

func TestSubmitVoteRejected(t *testing.T) {
	api := newFakeAPI()
	api.voteStatus = http.StatusBadRequest
	c := newTestClient(t, api, &clock.Recorder{})

	err := c.SubmitVote(context.Background(), testToken, "c1", "m1", "2")

	var rejected *domain.VoteRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	assert.Contains(t, rejected.Body, "nope")
}

func TestSubmitVoteNonNoContentSuccessIsRejected(t *testing.T) {
	api := newFakeAPI()
	api.voteStatus = http.StatusOK
	c := newTestClient(t, api, &clock.Recorder{})

	err := c.SubmitVote(context.Background(), testToken, "c1", "m1", "2")

	var rejected *domain.VoteRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, http.StatusOK, rejected.StatusCode)
}

func TestSubmitVoteUnauthorized(t *testing.T) {
	c := newTestClient(t, newFakeAPI(), &clock.Recorder{})

	err := c.SubmitVote(context.Background(), "stale", "c1", "m1", "2")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient(ClientConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultUserAgent, c.userAgent)
	assert.NotNil(t, c.httpClient)
}
