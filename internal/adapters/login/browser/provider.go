// Package browser obtains credentials by driving the web login page in a
// Chrome instance and capturing the Authorization header the page sends once
// signed in.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

const (
	DefaultLoginURL = "https://discord.com/login"

	emailSelector     = `input[name="email"]`
	passwordSelector  = `input[name="password"]`
	submitSelector    = `button[type="submit"]`
	challengeSelector = `input[autocomplete="one-time-code"]`
)

type Config struct {
	LoginURL string
	Headless bool
	// ChallengeTimeout bounds the wait for the two-factor prompt. When it
	// elapses the login is assumed to need no second factor.
	ChallengeTimeout time.Duration
	// SettleDelay bounds the wait for an authenticated request after the
	// form has been submitted.
	SettleDelay time.Duration
	// BaseDir holds per-identity browser profiles for identities that do
	// not configure their own.
	BaseDir string
	// ExecAllocatorOptions are appended to chromedp's defaults.
	ExecAllocatorOptions []chromedp.ExecAllocatorOption
	Now                  func() time.Time
	Logger               *slog.Logger
}

type Provider struct {
	cfg    Config
	logger *slog.Logger
}

func NewProvider(cfg Config) *Provider {
	if cfg.LoginURL == "" {
		cfg.LoginURL = DefaultLoginURL
	}
	if cfg.ChallengeTimeout <= 0 {
		cfg.ChallengeTimeout = 15 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 10 * time.Second
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = filepath.Join(os.TempDir(), "pollvoter-profiles")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{cfg: cfg, logger: logger}
}

var _ ports.LoginProvider = (*Provider)(nil)

// Login signs in as identity from a fresh profile and returns the captured
// credential.
func (p *Provider) Login(ctx context.Context, identity domain.Identity) (string, error) {
	if err := validate(identity); err != nil {
		return "", err
	}

	dir := p.profileDir(identity)
	if err := resetDir(dir); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLoginFailed, err)
	}

	log := p.logger.With("identity", identity.ID)
	log.Info("starting browser login", "profile", dir, "headless", p.cfg.Headless)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(dir),
		chromedp.Flag("headless", p.cfg.Headless),
	)
	opts = append(opts, p.cfg.ExecAllocatorOptions...)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	capture := newTokenCapture()
	chromedp.ListenTarget(browserCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			capture.offer(authorizationHeader(e.Request.Headers))
		case *network.EventRequestWillBeSentExtraInfo:
			capture.offer(authorizationHeader(e.Headers))
		}
	})

	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(p.cfg.LoginURL),
		chromedp.WaitVisible(emailSelector, chromedp.ByQuery),
		chromedp.SendKeys(emailSelector, identity.Email, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, identity.Password, chromedp.ByQuery),
		chromedp.Click(submitSelector, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: submitting login form: %w", domain.ErrLoginFailed, err)
	}

	if err := p.answerChallenge(browserCtx, identity, log); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLoginFailed, err)
	}

	token, err := capture.wait(browserCtx, p.cfg.SettleDelay)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrLoginFailed, err)
	}
	log.Info("browser login captured credential")
	return token, nil
}

func (p *Provider) answerChallenge(ctx context.Context, identity domain.Identity, log *slog.Logger) error {
	waitCtx, cancel := context.WithTimeout(ctx, p.cfg.ChallengeTimeout)
	defer cancel()

	err := chromedp.Run(waitCtx, chromedp.WaitVisible(challengeSelector, chromedp.ByQuery))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug("no two-factor prompt shown")
		return nil
	}

	if identity.TwoFactorSecret == "" {
		return errors.New("two-factor prompt shown but no secret configured")
	}
	code, err := oneTimeCode(identity.TwoFactorSecret, p.cfg.Now())
	if err != nil {
		return err
	}

	log.Info("answering two-factor prompt")
	return chromedp.Run(ctx,
		chromedp.SendKeys(challengeSelector, code, chromedp.ByQuery),
		chromedp.Click(submitSelector, chromedp.ByQuery),
	)
}

func (p *Provider) profileDir(identity domain.Identity) string {
	if identity.UserDataDir != "" {
		return identity.UserDataDir
	}
	return filepath.Join(p.cfg.BaseDir, identity.ID)
}

func validate(identity domain.Identity) error {
	var missing []string
	if identity.Email == "" {
		missing = append(missing, "email")
	}
	if identity.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s has no %s", domain.ErrConfigMissingField, identity.ID, strings.Join(missing, ", "))
	}
	return nil
}

// resetDir wipes any previous profile so no stale session is reused.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing profile %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating profile %s: %w", dir, err)
	}
	return nil
}

func authorizationHeader(headers network.Headers) string {
	for k, v := range headers {
		if !strings.EqualFold(k, "authorization") {
			continue
		}
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// tokenCapture keeps the first non-empty credential seen.
type tokenCapture struct {
	once  sync.Once
	token string
	ready chan struct{}
}

func newTokenCapture() *tokenCapture {
	return &tokenCapture{ready: make(chan struct{})}
}

func (c *tokenCapture) offer(token string) {
	if token == "" {
		return
	}
	c.once.Do(func() {
		c.token = token
		close(c.ready)
	})
}

func (c *tokenCapture) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.ready:
		return c.token, nil
	case <-timer.C:
		return "", fmt.Errorf("no authorization header seen within %s", timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
