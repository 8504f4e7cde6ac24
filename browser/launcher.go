package browser

import (
	"context"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/quizwalker/config"
	"github.com/use-agent/quizwalker/models"
)

// Launcher starts a dedicated browser for every Session it opens.
// It is safe for concurrent use; sessions share nothing.
type Launcher struct {
	cfg config.BrowserConfig
	log *slog.Logger
}

// NewLauncher creates a Launcher. A nil logger falls back to slog.Default().
func NewLauncher(cfg config.BrowserConfig, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{cfg: cfg, log: logger}
}

// Open launches a browser, connects to it and prepares one page.
//
// Order matters:
//  1. Launch + connect        - process owned by the session
//  2. Page                    - the single tab the walk drives
//  3. Stealth injection       - must precede navigation to take effect
//  4. Hijack mount            - resource blocking, also before navigation
//  5. Console capture         - subscribed before navigation so no log is missed
//
// On any failure everything acquired so far is released.
func (l *Launcher) Open(ctx context.Context) (*Session, error) {
	// ── 1. Launch ─────────────────────────────────────────────────────
	lc := launcher.New().
		Context(ctx).
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		lc = lc.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.Proxy != "" {
		lc = lc.Proxy(l.cfg.Proxy)
	}
	if l.cfg.Maximized {
		lc.Set(flags.Flag("start-maximized"))
	}
	if l.cfg.Stealth {
		lc.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		lc.Delete(flags.Flag("enable-automation"))
	}
	lc.Set(flags.Flag("disable-popup-blocking"))
	lc.Set(flags.Flag("disable-component-update"))
	lc.Set(flags.Flag("disable-default-apps"))
	lc.Set(flags.Flag("no-first-run"))

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, models.NewWalkError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	l.log.Info("browser launched", "controlURL", controlURL, "headless", l.cfg.Headless)

	b := rod.New().ControlURL(controlURL)
	if l.cfg.Maximized {
		// Keep the real window size instead of rod's emulated default device.
		b = b.NoDefaultDevice()
	}
	if err := b.Connect(); err != nil {
		lc.Kill()
		return nil, models.NewWalkError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	s := &Session{browser: b, launcher: lc, log: l.log}

	// ── 2. Page ───────────────────────────────────────────────────────
	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, models.NewWalkError(models.ErrCodeBrowserCrash, "failed to create page", err)
	}
	s.page = page

	// ── 3. Stealth ────────────────────────────────────────────────────
	if l.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			l.log.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// ── 4. Hijack ─────────────────────────────────────────────────────
	s.router = setupHijack(page, l.cfg.BlockedResourceTypes)

	// ── 5. Console capture ────────────────────────────────────────────
	if l.cfg.CaptureConsole {
		s.console = captureConsole(page)
	}

	return s, nil
}
