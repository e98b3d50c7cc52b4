// Package browser wraps go-rod behind the small primitive surface the rest
// of the bot is allowed to touch: locate an element within a timeout, act on
// it, and check page-state indicators. Nothing above this package inspects
// raw markup.
package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

var (
	// ErrNotFound means the selector did not resolve within its timeout.
	ErrNotFound = errors.New("element not found")
	// ErrNotInteractable means the element exists but could not be acted on
	// (covered, detached, or still animating).
	ErrNotInteractable = errors.New("element not interactable")
)

// IsTransient reports whether an error is worth retrying: the element may
// appear or settle on a later attempt. Anything else propagates immediately.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotInteractable)
}

// Element is a located, interactable page element.
type Element interface {
	Click() error
	Input(text string) error
	PressEnter() error
	Text() (string, error)
	Attribute(name string) (string, error)
	Visible() bool
}

// Driver is the collaborator contract for browser primitives.
type Driver interface {
	Navigate(url string, timeout time.Duration) error
	Locate(selector string, timeout time.Duration) (Element, error)
	LocateAll(selector string, timeout time.Duration) ([]Element, error)
	Visible(selector string, timeout time.Duration) bool
	Close() error
}

// Config holds browser launch settings.
type Config struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

// Chrome drives a launched Chrome instance through go-rod.
type Chrome struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *zap.Logger
}

// LaunchChrome starts Chrome and opens a blank page. Close releases the
// page, the browser connection, and the launched process.
func LaunchChrome(cfg Config, logger *zap.Logger) (*Chrome, error) {
	l := launcher.New().Headless(cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("create page: %w", err)
	}

	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width == 0 {
		width = 1920
	}
	if height == 0 {
		height = 1080
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logger.Warn("failed to set viewport", zap.Error(err))
	}

	return &Chrome{launcher: l, browser: browser, page: page, logger: logger}, nil
}

func (c *Chrome) Navigate(url string, timeout time.Duration) error {
	page := c.page.Timeout(timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s to load: %w", url, err)
	}
	return nil
}

func (c *Chrome) Locate(selector string, timeout time.Duration) (Element, error) {
	el, err := c.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return &chromeElement{el: el}, nil
}

func (c *Chrome) LocateAll(selector string, timeout time.Duration) ([]Element, error) {
	// Element waits for at least one match; Elements alone returns
	// immediately with whatever is currently attached.
	if _, err := c.page.Timeout(timeout).Element(selector); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	els, err := c.page.Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &chromeElement{el: el})
	}
	return out, nil
}

func (c *Chrome) Visible(selector string, timeout time.Duration) bool {
	el, err := c.page.Timeout(timeout).Element(selector)
	if err != nil {
		return false
	}
	visible, err := el.Visible()
	return err == nil && visible
}

func (c *Chrome) Close() error {
	if c.page != nil {
		_ = c.page.Close()
		c.page = nil
	}
	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.launcher != nil {
		c.launcher.Cleanup()
		c.launcher = nil
	}
	return err
}

type chromeElement struct {
	el *rod.Element
}

func (e *chromeElement) Click() error {
	if err := e.el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	return nil
}

func (e *chromeElement) Input(text string) error {
	if err := e.el.Input(text); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	return nil
}

func (e *chromeElement) PressEnter() error {
	if err := e.el.Type(input.Enter); err != nil {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}
	return nil
}

func (e *chromeElement) Text() (string, error) {
	text, err := e.el.Text()
	if err != nil {
		return "", fmt.Errorf("read element text: %w", err)
	}
	return text, nil
}

func (e *chromeElement) Attribute(name string) (string, error) {
	val, err := e.el.Attribute(name)
	if err != nil || val == nil {
		return "", fmt.Errorf("%w: attribute %s", ErrNotFound, name)
	}
	return *val, nil
}

func (e *chromeElement) Visible() bool {
	visible, err := e.el.Visible()
	return err == nil && visible
}
