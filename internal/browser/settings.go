package browser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/homeclaw/gateway/internal/param"
	"github.com/homeclaw/gateway/internal/session"
	"github.com/homeclaw/gateway/pkg/models"
)

// Viewport is a device screen size for emulation
type Viewport struct {
	Width  int
	Height int
}

// DeviceViewports maps known device names to their viewport dimensions.
// User agent is fixed at context creation; only the viewport is emulated.
var DeviceViewports = map[string]Viewport{
	"iPhone 14":         {Width: 390, Height: 844},
	"iPhone 14 Pro":     {Width: 393, Height: 852},
	"iPhone SE":         {Width: 375, Height: 667},
	"Pixel 5":           {Width: 393, Height: 851},
	"Galaxy S9+":        {Width: 412, Height: 846},
	"iPad Pro":          {Width: 1024, Height: 1366},
	"iPad (gen 7)":      {Width: 810, Height: 1080},
	"Desktop 1280x720":  {Width: 1280, Height: 720},
	"Desktop 1920x1080": {Width: 1920, Height: 1080},
}

// SupportedDeviceNames lists the known device names, sorted for stable output
func SupportedDeviceNames() []string {
	names := make([]string, 0, len(DeviceViewports))
	for name := range DeviceViewports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (d *Dispatcher) context(params map[string]any, userID string) (Context, error) {
	key := session.KeyFromParams(params, userID)
	return d.pool.Get(key)
}

// SetColorScheme emulates prefers-color-scheme: dark, light, no-preference,
// or none to clear the override.
func (d *Dispatcher) SetColorScheme(params map[string]any, userID string) models.ActionResult {
	raw := strings.ToLower(param.String(params, "color_scheme", "colorScheme"))
	scheme := raw
	if raw == "none" {
		scheme = ""
	}
	switch scheme {
	case "", "dark", "light", "no-preference":
	default:
		return models.Fail("color_scheme must be dark, light, no-preference, or none")
	}
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.SetColorScheme(scheme); err != nil {
		return models.Fail(err.Error())
	}
	if scheme == "" {
		return models.OK("Color scheme set to none")
	}
	return models.OK("Color scheme set to " + scheme)
}

// SetGeolocation overrides the context geolocation, or clears it with clear=true
func (d *Dispatcher) SetGeolocation(params map[string]any, userID string) models.ActionResult {
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if param.Bool(params, "clear") {
		if err := ctx.SetGeolocation(nil); err != nil {
			return models.Fail(err.Error())
		}
		return models.OK("Geolocation cleared")
	}
	lat, latOK := param.Float(params, "latitude")
	lon, lonOK := param.Float(params, "longitude")
	if !latOK || !lonOK {
		return models.Fail("latitude and longitude are required (numbers)")
	}
	g := &Geolocation{Latitude: lat, Longitude: lon}
	if acc, ok := param.Float(params, "accuracy"); ok {
		g.Accuracy = &acc
	}
	if err := ctx.SetGeolocation(g); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK(fmt.Sprintf("Geolocation set to %v, %v", lat, lon))
}

// SetTimezone overrides the context timezone
func (d *Dispatcher) SetTimezone(params map[string]any, userID string) models.ActionResult {
	timezone := param.String(params, "timezone", "timezoneId")
	if timezone == "" {
		return models.Fail("timezone is required (e.g. America/New_York)")
	}
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.SetTimezone(timezone); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("Timezone set to " + timezone)
}

// SetLocale sets the Accept-Language header for the context
func (d *Dispatcher) SetLocale(params map[string]any, userID string) models.ActionResult {
	locale := param.String(params, "locale")
	if locale == "" {
		return models.Fail("locale is required (e.g. en-US)")
	}
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.SetLocale(locale); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("Locale (Accept-Language) set to " + locale)
}

// SetDevice applies a known device's viewport; unknown names are rejected
// with the supported list.
func (d *Dispatcher) SetDevice(params map[string]any, userID string) models.ActionResult {
	device := param.String(params, "device", "deviceName")
	if device == "" {
		return models.Fail("device is required (e.g. iPhone 14, Desktop 1920x1080)")
	}
	viewport, ok := DeviceViewports[device]
	if !ok {
		return models.Fail("Unknown device. Supported: " + strings.Join(SupportedDeviceNames(), ", "))
	}
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.SetViewport(viewport.Width, viewport.Height); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK(fmt.Sprintf("Viewport set to %s (%dx%d)", device, viewport.Width, viewport.Height))
}

// SetOffline toggles network emulation for the context
func (d *Dispatcher) SetOffline(params map[string]any, userID string) models.ActionResult {
	offline := param.Bool(params, "offline")
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.SetOffline(offline); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK(fmt.Sprintf("Offline mode set to %t", offline))
}

// SetExtraHeaders replaces the extra HTTP headers sent by the context
func (d *Dispatcher) SetExtraHeaders(params map[string]any, userID string) models.ActionResult {
	headers := param.Map(params, "headers", "extra_headers")
	if headers == nil {
		return models.Fail("headers (object) is required")
	}
	normalized := make(map[string]string, len(headers))
	for k, v := range headers {
		if v != nil {
			normalized[k] = fmt.Sprintf("%v", v)
		}
	}
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if err := ctx.SetExtraHeaders(normalized); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK(fmt.Sprintf("Extra HTTP headers set (%d headers)", len(normalized)))
}

// SetCredentials sets HTTP basic-auth credentials, or clears them with clear=true
func (d *Dispatcher) SetCredentials(params map[string]any, userID string) models.ActionResult {
	ctx, err := d.context(params, userID)
	if err != nil {
		return models.Fail(err.Error())
	}
	if param.Bool(params, "clear") {
		if err := ctx.SetCredentials(nil); err != nil {
			return models.Fail(err.Error())
		}
		return models.OK("HTTP credentials cleared")
	}
	username := param.String(params, "username")
	if username == "" {
		return models.Fail("username is required for HTTP credentials")
	}
	password := ""
	if v, ok := params["password"]; ok && v != nil {
		password = fmt.Sprintf("%v", v)
	}
	if err := ctx.SetCredentials(&Credentials{Username: username, Password: password}); err != nil {
		return models.Fail(err.Error())
	}
	return models.OK("HTTP credentials set")
}
