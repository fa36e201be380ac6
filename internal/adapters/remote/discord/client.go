// Package discord implements the poll gateway against the Discord v9 REST
// API. Every call carries the caller's credential; the client holds no
// per-identity state.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vncsmyrnk/pollvoter/internal/clock"
	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

const (
	DefaultBaseURL   = "https://discord.com/api/v9"
	DefaultUserAgent = "Mozilla/5.0"

	messagesPageSize    = 50
	respondentsPageSize = 100

	maxResponseSize int64 = 16 << 20
)

type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string
	// PageDelay is the pause between respondent pages.
	PageDelay time.Duration
	Sleeper   ports.Sleeper
	Logger    *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	pageDelay  time.Duration
	sleeper    ports.Sleeper
	logger     *slog.Logger
}

func NewClient(config ClientConfig) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("discord: invalid base URL %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: config.HTTPClient,
		userAgent:  config.UserAgent,
		pageDelay:  config.PageDelay,
		sleeper:    config.Sleeper,
		logger:     config.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.sleeper == nil {
		c.sleeper = clock.Real()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

var _ ports.PollGateway = (*Client)(nil)

// ListRecentItems returns the polls among the most recent channel messages.
func (c *Client) ListRecentItems(ctx context.Context, credential, channelID string) ([]domain.PollItem, error) {
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	query := url.Values{"limit": {strconv.Itoa(messagesPageSize)}}

	var messages []message
	if err := c.getJSON(ctx, credential, path, query, &messages); err != nil {
		return nil, fmt.Errorf("discord: list messages: %w", err)
	}

	var items []domain.PollItem
	for _, m := range messages {
		if m.Poll == nil {
			continue
		}
		if m.ChannelID == "" {
			m.ChannelID = channelID
		}
		items = append(items, m.toPollItem())
	}
	c.logger.Debug("listed channel", "channel_id", channelID, "messages", len(messages), "polls", len(items))
	return items, nil
}

// ListRespondents pages through every voter of one answer. Any failing page
// discards what was gathered so far.
func (c *Client) ListRespondents(ctx context.Context, credential, channelID, pollID, answerID string) (domain.RespondentSet, error) {
	path := fmt.Sprintf("/channels/%s/polls/%s/answers/%s",
		url.PathEscape(channelID), url.PathEscape(pollID), url.PathEscape(answerID))

	var names []string
	after := ""
	for {
		query := url.Values{"limit": {strconv.Itoa(respondentsPageSize)}}
		if after != "" {
			query.Set("after", after)
		}

		var page respondentsPage
		if err := c.getJSON(ctx, credential, path, query, &page); err != nil {
			return domain.RespondentSet{}, fmt.Errorf("%w: poll %s answer %s: %w",
				domain.ErrPaginationInterrupted, pollID, answerID, err)
		}
		if len(page.Users) == 0 {
			break
		}

		for _, u := range page.Users {
			names = append(names, u.Username)
		}
		after = page.Users[len(page.Users)-1].ID

		if len(page.Users) < respondentsPageSize {
			break
		}
		if err := c.sleeper.Sleep(ctx, c.pageDelay); err != nil {
			return domain.RespondentSet{}, fmt.Errorf("%w: %w", domain.ErrPaginationInterrupted, err)
		}
	}

	return domain.RespondentSet{
		PollID:   pollID,
		AnswerID: answerID,
		Names:    names,
		Count:    len(names),
	}, nil
}

// SubmitVote answers the poll as the credential's owner. Only 204 counts as
// success.
func (c *Client) SubmitVote(ctx context.Context, credential, channelID, pollID, answerID string) error {
	path := fmt.Sprintf("/channels/%s/polls/%s/answers/@me", url.PathEscape(channelID), url.PathEscape(pollID))
	body, err := json.Marshal(voteRequest{AnswerIDs: []string{answerID}})
	if err != nil {
		return fmt.Errorf("discord: encode vote: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, credential, path, nil, body)
	if err != nil {
		return fmt.Errorf("discord: submit vote: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	default:
		return &domain.VoteRejectedError{StatusCode: resp.StatusCode, Body: errorBody(resp.Body)}
	}
}

func (c *Client) getJSON(ctx context.Context, credential, path string, query url.Values, v any) error {
	resp, err := c.do(ctx, http.MethodGet, credential, path, query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return domain.ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.HTTPError{StatusCode: resp.StatusCode, Body: errorBody(resp.Body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, credential, path string, query url.Values, body []byte) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	// The API expects the raw token, without a scheme prefix.
	req.Header.Set("Authorization", credential)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func errorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, 4096))
	return strings.TrimSpace(string(data))
}
