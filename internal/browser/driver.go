// Package browser pools per-session automation contexts and executes
// capability operations against them. The DOM engine itself is reached only
// through the Driver and Context interfaces so it stays swappable in tests.
package browser

// Element describes one interactive element found by a snapshot. Selector is
// derived from the stable Ref index, so a later click or fill can target the
// element without re-reading the DOM.
type Element struct {
	Ref      int
	Selector string
	Text     string
	Tag      string
}

// Geolocation is a coordinate override applied to a context
type Geolocation struct {
	Latitude  float64
	Longitude float64
	Accuracy  *float64
}

// Credentials carries HTTP basic-auth credentials for a context
type Credentials struct {
	Username string
	Password string
}

// Context is one live automation context: a single page plus mutable
// emulation state. A nil Geolocation or Credentials clears the override.
type Context interface {
	Goto(url string) error
	PageText() (string, error)
	Elements(max int) ([]Element, error)
	Click(selector string) error
	Fill(selector, text string) error
	Scroll(selector string, deltaY int) error
	SetViewport(width, height int) error
	SetColorScheme(scheme string) error
	SetGeolocation(g *Geolocation) error
	SetTimezone(timezone string) error
	SetLocale(locale string) error
	SetOffline(offline bool) error
	SetExtraHeaders(headers map[string]string) error
	SetCredentials(c *Credentials) error
	Close() error
}

// Driver creates automation contexts. Implementations own the underlying
// browser process.
type Driver interface {
	NewContext() (Context, error)
	Close() error
}
