package browser

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
	defaultUserAgent      = "Mozilla/5.0 (compatible; HomeClaw-Gateway/1.0)"

	gotoTimeoutMs   = 30000
	actionTimeoutMs = 5000
)

// snapshotJS tags every interactive element with a stable ref attribute and
// returns one record per element. Ref selectors survive until the next
// snapshot rewrites the attributes.
const snapshotJS = `(max) => {
  const nodes = document.querySelectorAll('a[href], button, input, textarea, [role="button"], [onclick], [contenteditable="true"]');
  return Array.from(nodes).slice(0, max).map((el, i) => {
    el.setAttribute('data-hc-ref', String(i));
    const text = (el.innerText || el.value || el.placeholder || el.getAttribute('aria-label') || '').trim().slice(0, 80);
    return { ref: i, selector: '[data-hc-ref="' + i + '"]', text: text || '(no text)', tag: el.tagName.toLowerCase() };
  });
}`

// PlaywrightDriver drives a single Chromium process through Playwright and
// hands out one browser context per pool key. The browser is launched lazily
// on first use.
type PlaywrightDriver struct {
	headless bool
	log      *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

func NewPlaywrightDriver(headless bool, log *zap.Logger) *PlaywrightDriver {
	return &PlaywrightDriver{headless: headless, log: log}
}

func (d *PlaywrightDriver) ensureBrowser() (playwright.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil && d.browser.IsConnected() {
		return d.browser, nil
	}

	if d.pw == nil {
		opts := &playwright.RunOptions{
			Verbose: false,
			Stdout:  io.Discard,
			Stderr:  io.Discard,
		}
		if err := playwright.Install(opts); err != nil {
			return nil, fmt.Errorf("playwright install: %w", err)
		}
		pw, err := playwright.Run(opts)
		if err != nil {
			return nil, fmt.Errorf("playwright start: %w", err)
		}
		d.pw = pw
	}

	browser, err := d.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.headless),
		Args:     []string{"--no-sandbox", "--disable-setuid-sandbox"},
	})
	if err != nil {
		return nil, fmt.Errorf("chromium launch: %w", err)
	}
	d.log.Info("chromium launched", zap.Bool("headless", d.headless))
	d.browser = browser
	return browser, nil
}

// NewContext creates a fresh context with the default viewport and a single
// page, no residual emulation state.
func (d *PlaywrightDriver) NewContext() (Context, error) {
	browser, err := d.ensureBrowser()
	if err != nil {
		return nil, err
	}
	ctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: defaultViewportWidth, Height: defaultViewportHeight},
		UserAgent: playwright.String(defaultUserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := ctx.NewPage()
	if err != nil {
		_ = ctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &pwContext{ctx: ctx, page: page}, nil
}

func (d *PlaywrightDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			return err
		}
		d.pw = nil
	}
	return nil
}

// pwContext adapts a Playwright browser context + page to the Context
// interface. Locale and basic-auth are carried as header state because
// Playwright fixes them at context creation; the merged header set is
// re-applied on every change.
type pwContext struct {
	ctx  playwright.BrowserContext
	page playwright.Page

	mu         sync.Mutex
	extra      map[string]string
	locale     string
	authHeader string
}

func (c *pwContext) Goto(url string) error {
	_, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(gotoTimeoutMs),
	})
	return err
}

func (c *pwContext) PageText() (string, error) {
	v, err := c.page.Evaluate(`() => (document.body && document.body.innerText) || ''`)
	if err != nil {
		return "", err
	}
	text, _ := v.(string)
	return text, nil
}

func (c *pwContext) Elements(max int) ([]Element, error) {
	v, err := c.page.Evaluate(snapshotJS, max)
	if err != nil {
		return nil, err
	}
	items, _ := v.([]interface{})
	elements := make([]Element, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		el := Element{}
		if ref, ok := m["ref"].(float64); ok {
			el.Ref = int(ref)
		}
		el.Selector, _ = m["selector"].(string)
		el.Text, _ = m["text"].(string)
		el.Tag, _ = m["tag"].(string)
		elements = append(elements, el)
	}
	return elements, nil
}

func (c *pwContext) Click(selector string) error {
	return c.page.Click(selector, playwright.PageClickOptions{Timeout: playwright.Float(actionTimeoutMs)})
}

func (c *pwContext) Fill(selector, text string) error {
	return c.page.Fill(selector, text, playwright.PageFillOptions{Timeout: playwright.Float(actionTimeoutMs)})
}

func (c *pwContext) Scroll(selector string, deltaY int) error {
	if selector == "" {
		_, err := c.page.Evaluate(`d => window.scrollBy(0, d)`, deltaY)
		return err
	}
	_, err := c.page.Locator(selector).First().Evaluate(`(el, d) => el.scrollBy(0, d)`, deltaY)
	return err
}

func (c *pwContext) SetViewport(width, height int) error {
	return c.page.SetViewportSize(width, height)
}

func (c *pwContext) SetColorScheme(scheme string) error {
	var cs *playwright.ColorScheme
	switch scheme {
	case "dark":
		cs = playwright.ColorSchemeDark
	case "light":
		cs = playwright.ColorSchemeLight
	case "no-preference":
		cs = playwright.ColorSchemeNoPreference
	case "":
		cs = playwright.ColorSchemeNoOverride
	default:
		return fmt.Errorf("unsupported color scheme %q", scheme)
	}
	return c.page.EmulateMedia(playwright.PageEmulateMediaOptions{ColorScheme: cs})
}

func (c *pwContext) SetGeolocation(g *Geolocation) error {
	if g == nil {
		return c.ctx.SetGeolocation(nil)
	}
	// Permission errors are non-fatal; the override itself still applies.
	_ = c.ctx.GrantPermissions([]string{"geolocation"})
	return c.ctx.SetGeolocation(&playwright.Geolocation{
		Latitude:  g.Latitude,
		Longitude: g.Longitude,
		Accuracy:  g.Accuracy,
	})
}

func (c *pwContext) SetTimezone(timezone string) error {
	cdp, err := c.ctx.NewCDPSession(c.page)
	if err != nil {
		return err
	}
	defer cdp.Detach()
	_, err = cdp.Send("Emulation.setTimezoneOverride", map[string]interface{}{"timezoneId": timezone})
	return err
}

func (c *pwContext) SetLocale(locale string) error {
	c.mu.Lock()
	c.locale = locale
	c.mu.Unlock()
	return c.applyHeaders()
}

func (c *pwContext) SetOffline(offline bool) error {
	return c.ctx.SetOffline(offline)
}

func (c *pwContext) SetExtraHeaders(headers map[string]string) error {
	c.mu.Lock()
	c.extra = headers
	c.mu.Unlock()
	return c.applyHeaders()
}

func (c *pwContext) SetCredentials(cred *Credentials) error {
	c.mu.Lock()
	if cred == nil {
		c.authHeader = ""
	} else {
		raw := cred.Username + ":" + cred.Password
		c.authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	}
	c.mu.Unlock()
	return c.applyHeaders()
}

func (c *pwContext) applyHeaders() error {
	c.mu.Lock()
	merged := make(map[string]string, len(c.extra)+2)
	for k, v := range c.extra {
		merged[k] = v
	}
	if c.locale != "" {
		merged["Accept-Language"] = c.locale
	}
	if c.authHeader != "" {
		merged["Authorization"] = c.authHeader
	}
	c.mu.Unlock()
	return c.ctx.SetExtraHTTPHeaders(merged)
}

func (c *pwContext) Close() error {
	return c.ctx.Close()
}
