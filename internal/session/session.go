package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/prosparity/linkedin-bot/internal/browser"
	"go.uber.org/zap"
)

var (
	// ErrMissingCredentials means email or password was absent.
	ErrMissingCredentials = errors.New("missing linkedin credentials")
	// ErrAuthTimeout means the logged-in indicator never appeared.
	ErrAuthTimeout = errors.New("timed out waiting for authenticated state")
	// ErrAuthRejected means LinkedIn showed an error state instead of
	// logging the account in. Not retried: a relogin is an operator call.
	ErrAuthRejected = errors.New("login rejected by host")
	// ErrNotAuthenticated guards outbound actions attempted without a session.
	ErrNotAuthenticated = errors.New("session not authenticated")
)

const (
	loginURL = "https://www.linkedin.com/login"

	selEmailField    = "#username"
	selPasswordField = "#password"
	selLoginSubmit   = "button[type=submit]"
	selAuthIndicator = ".global-nav__me"
	selLoginError    = ".form__label--error, #error-for-password"

	// DefaultAuthTimeout bounds the wait for the logged-in indicator.
	DefaultAuthTimeout = 10 * time.Second
	// DefaultStepTimeout bounds a single locate+act UI step.
	DefaultStepTimeout = 10 * time.Second

	retryBackoff = 500 * time.Millisecond
)

// Credentials are the operator-supplied LinkedIn login details.
type Credentials struct {
	Email    string
	Password string
}

// Step is one UI interaction executed under PerformBounded. The timeout is
// the budget for the element lookups the step performs.
type Step func(timeout time.Duration) error

// Controller owns the authenticated browsing session. It is the only
// component allowed to mutate the authenticated flag, and it guarantees the
// underlying browser is released on every exit path via Close.
type Controller struct {
	drv           browser.Driver
	logger        *zap.Logger
	authenticated bool
	startedAt     time.Time
	authTimeout   time.Duration
}

func New(drv browser.Driver, logger *zap.Logger) *Controller {
	return &Controller{
		drv:         drv,
		logger:      logger,
		authTimeout: DefaultAuthTimeout,
	}
}

// Driver exposes the browser primitives for components that iterate page
// content themselves. All state-changing steps should still go through
// PerformBounded.
func (c *Controller) Driver() browser.Driver {
	return c.drv
}

// Login signs the account in and waits for the authenticated indicator.
func (c *Controller) Login(creds Credentials) error {
	if creds.Email == "" || creds.Password == "" {
		return ErrMissingCredentials
	}

	if err := c.drv.Navigate(loginURL, DefaultStepTimeout); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}

	email, err := c.drv.Locate(selEmailField, DefaultStepTimeout)
	if err != nil {
		return fmt.Errorf("locate email field: %w", err)
	}
	if err := email.Input(creds.Email); err != nil {
		return fmt.Errorf("enter email: %w", err)
	}

	password, err := c.drv.Locate(selPasswordField, DefaultStepTimeout)
	if err != nil {
		return fmt.Errorf("locate password field: %w", err)
	}
	if err := password.Input(creds.Password); err != nil {
		return fmt.Errorf("enter password: %w", err)
	}
	if err := password.PressEnter(); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	if !c.drv.Visible(selAuthIndicator, c.authTimeout) {
		if c.drv.Visible(selLoginError, time.Second) {
			return ErrAuthRejected
		}
		return ErrAuthTimeout
	}

	c.authenticated = true
	c.startedAt = time.Now()
	c.logger.Info("logged in", zap.String("email", creds.Email))
	return nil
}

// EnsureAuthenticated is a cheap liveness check used before any outbound
// action. It never re-authenticates: after a suspected lockout, reusing the
// credentials silently is the wrong move.
func (c *Controller) EnsureAuthenticated() bool {
	return c.authenticated
}

// StartedAt reports when the session authenticated.
func (c *Controller) StartedAt() time.Time {
	return c.startedAt
}

// PerformBounded executes a single UI step with the given timeout, retrying
// transient failures (element missing or not interactable) up to maxRetries
// times with a flat backoff. Non-transient errors propagate immediately.
func (c *Controller) PerformBounded(name string, timeout time.Duration, maxRetries int, step Step) error {
	if !c.authenticated {
		return ErrNotAuthenticated
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryBackoff)
		}
		err = step(timeout)
		if err == nil {
			return nil
		}
		if !browser.IsTransient(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		c.logger.Debug("retrying ui step",
			zap.String("step", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return fmt.Errorf("%s after %d retries: %w", name, maxRetries, err)
}

// Close tears the session down and releases the browser. Safe to call on
// every exit path, including after a failed login.
func (c *Controller) Close() error {
	c.authenticated = false
	if c.drv == nil {
		return nil
	}
	if err := c.drv.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
