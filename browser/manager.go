// Package browser bridges vind to a live Chrome page through Rod: it owns
// the browser process, opens tabs, snapshots the DOM into documents,
// streams page input as registration events, draws the target overlay
// and clicks bound elements.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser manager.
type Config struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty launches a local Chrome.
	Remote string `yaml:"remote"`

	// Headless hides the local Chrome window. Registration needs a
	// visible window; run mode does not.
	Headless bool `yaml:"headless"`

	// Stealth creates pages with go-rod/stealth evasions applied.
	Stealth bool `yaml:"stealth"`

	// ResourceBlocking lists resource types to block: images, fonts, media,
	// stylesheets. Scripts and documents cannot be blocked.
	ResourceBlocking []string `yaml:"resource_blocking"`

	// NavTimeout bounds navigation and load. Default: 30s.
	NavTimeout time.Duration `yaml:"nav_timeout"`
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
}

// Manager manages the Chrome lifecycle.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch Chrome.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Start launches Chrome (or connects to a remote instance). A started
// Manager returns the running browser.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.browser != nil {
		return m.browser, nil
	}

	var wsURL string
	if m.cfg.Remote != "" {
		wsURL = m.cfg.Remote
		m.logger.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.logger.Info("browser: launched local chrome", "url", wsURL, "headless", m.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Browser returns the current Rod browser handle, nil before Start.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close shuts Chrome down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanup()
	return nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			m.logger.Warn("browser: close", "error", err)
		}
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}
