package session

import (
	"errors"
	"testing"
	"time"

	"github.com/prosparity/linkedin-bot/internal/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeElement struct {
	inputs   []string
	enters   int
	inputErr error
}

func (e *fakeElement) Click() error { return nil }

func (e *fakeElement) Input(text string) error {
	if e.inputErr != nil {
		return e.inputErr
	}
	e.inputs = append(e.inputs, text)
	return nil
}

func (e *fakeElement) PressEnter() error {
	e.enters++
	return nil
}

func (e *fakeElement) Text() (string, error)                { return "", nil }
func (e *fakeElement) Attribute(name string) (string, error) { return "", nil }
func (e *fakeElement) Visible() bool                        { return true }

type fakeDriver struct {
	elements  map[string]*fakeElement
	visible   map[string]bool
	navigated []string
	closed    bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		elements: map[string]*fakeElement{},
		visible:  map[string]bool{},
	}
}

func (d *fakeDriver) Navigate(url string, timeout time.Duration) error {
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *fakeDriver) Locate(selector string, timeout time.Duration) (browser.Element, error) {
	el, ok := d.elements[selector]
	if !ok {
		return nil, browser.ErrNotFound
	}
	return el, nil
}

func (d *fakeDriver) LocateAll(selector string, timeout time.Duration) ([]browser.Element, error) {
	el, ok := d.elements[selector]
	if !ok {
		return nil, browser.ErrNotFound
	}
	return []browser.Element{el}, nil
}

func (d *fakeDriver) Visible(selector string, timeout time.Duration) bool {
	return d.visible[selector]
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func loginReadyDriver() *fakeDriver {
	drv := newFakeDriver()
	drv.elements[selEmailField] = &fakeElement{}
	drv.elements[selPasswordField] = &fakeElement{}
	drv.visible[selAuthIndicator] = true
	return drv
}

func TestLoginRequiresCredentials(t *testing.T) {
	ctrl := New(newFakeDriver(), zap.NewNop())

	assert.ErrorIs(t, ctrl.Login(Credentials{Email: "a@b.com"}), ErrMissingCredentials)
	assert.ErrorIs(t, ctrl.Login(Credentials{Password: "secret"}), ErrMissingCredentials)
	assert.False(t, ctrl.EnsureAuthenticated())
}

func TestLoginSuccess(t *testing.T) {
	drv := loginReadyDriver()
	ctrl := New(drv, zap.NewNop())

	err := ctrl.Login(Credentials{Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)

	assert.True(t, ctrl.EnsureAuthenticated())
	assert.Equal(t, []string{loginURL}, drv.navigated)
	assert.Equal(t, []string{"a@b.com"}, drv.elements[selEmailField].inputs)
	assert.Equal(t, []string{"secret"}, drv.elements[selPasswordField].inputs)
	assert.Equal(t, 1, drv.elements[selPasswordField].enters)
	assert.False(t, ctrl.StartedAt().IsZero())
}

func TestLoginRejected(t *testing.T) {
	drv := loginReadyDriver()
	drv.visible[selAuthIndicator] = false
	drv.visible[selLoginError] = true
	ctrl := New(drv, zap.NewNop())

	err := ctrl.Login(Credentials{Email: "a@b.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.False(t, ctrl.EnsureAuthenticated())
}

func TestLoginTimeout(t *testing.T) {
	drv := loginReadyDriver()
	drv.visible[selAuthIndicator] = false
	ctrl := New(drv, zap.NewNop())
	ctrl.authTimeout = time.Millisecond

	err := ctrl.Login(Credentials{Email: "a@b.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrAuthTimeout)
	assert.False(t, ctrl.EnsureAuthenticated())
}

func TestPerformBoundedRequiresAuth(t *testing.T) {
	ctrl := New(newFakeDriver(), zap.NewNop())

	err := ctrl.PerformBounded("noop", time.Second, 0, func(time.Duration) error {
		t.Fatal("step must not run without a session")
		return nil
	})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func authedController(t *testing.T) *Controller {
	t.Helper()
	ctrl := New(loginReadyDriver(), zap.NewNop())
	require.NoError(t, ctrl.Login(Credentials{Email: "a@b.com", Password: "secret"}))
	return ctrl
}

func TestPerformBoundedRetriesTransient(t *testing.T) {
	ctrl := authedController(t)

	attempts := 0
	err := ctrl.PerformBounded("click", time.Second, 2, func(time.Duration) error {
		attempts++
		if attempts < 3 {
			return browser.ErrNotFound
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPerformBoundedExhaustsRetries(t *testing.T) {
	ctrl := authedController(t)

	attempts := 0
	err := ctrl.PerformBounded("click", time.Second, 1, func(time.Duration) error {
		attempts++
		return browser.ErrNotInteractable
	})
	assert.ErrorIs(t, err, browser.ErrNotInteractable)
	assert.Equal(t, 2, attempts)
}

func TestPerformBoundedNonTransientPropagates(t *testing.T) {
	ctrl := authedController(t)

	fatal := errors.New("page crashed")
	attempts := 0
	err := ctrl.PerformBounded("click", time.Second, 3, func(time.Duration) error {
		attempts++
		return fatal
	})
	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts, "non-transient errors are never retried")
}

func TestCloseDropsAuthentication(t *testing.T) {
	drv := loginReadyDriver()
	ctrl := New(drv, zap.NewNop())
	require.NoError(t, ctrl.Login(Credentials{Email: "a@b.com", Password: "secret"}))

	require.NoError(t, ctrl.Close())
	assert.True(t, drv.closed)
	assert.False(t, ctrl.EnsureAuthenticated())
}
