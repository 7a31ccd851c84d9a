package browser

// Test doubles for the Driver/Context interfaces so action and settings
// behavior can be exercised without a real browser.

type fakeContext struct {
	id int

	pageText   string
	elements   []Element
	failWith   error
	lastURL    string
	lastClick  string
	lastFill   [2]string
	lastScroll struct {
		selector string
		delta    int
	}
	viewport    [2]int
	colorScheme *string
	geolocation *Geolocation
	geoCleared  bool
	timezone    string
	locale      string
	offline     bool
	headers     map[string]string
	credentials *Credentials
	credCleared bool
	closed      bool
}

func (c *fakeContext) Goto(url string) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.lastURL = url
	return nil
}

func (c *fakeContext) PageText() (string, error) {
	if c.failWith != nil {
		return "", c.failWith
	}
	return c.pageText, nil
}

func (c *fakeContext) Elements(max int) ([]Element, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	if len(c.elements) > max {
		return c.elements[:max], nil
	}
	return c.elements, nil
}

func (c *fakeContext) Click(selector string) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.lastClick = selector
	return nil
}

func (c *fakeContext) Fill(selector, text string) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.lastFill = [2]string{selector, text}
	return nil
}

func (c *fakeContext) Scroll(selector string, deltaY int) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.lastScroll.selector = selector
	c.lastScroll.delta = deltaY
	return nil
}

func (c *fakeContext) SetViewport(width, height int) error {
	c.viewport = [2]int{width, height}
	return nil
}

func (c *fakeContext) SetColorScheme(scheme string) error {
	c.colorScheme = &scheme
	return nil
}

func (c *fakeContext) SetGeolocation(g *Geolocation) error {
	if g == nil {
		c.geoCleared = true
		c.geolocation = nil
		return nil
	}
	c.geolocation = g
	return nil
}

func (c *fakeContext) SetTimezone(timezone string) error {
	c.timezone = timezone
	return nil
}

func (c *fakeContext) SetLocale(locale string) error {
	c.locale = locale
	return nil
}

func (c *fakeContext) SetOffline(offline bool) error {
	c.offline = offline
	return nil
}

func (c *fakeContext) SetExtraHeaders(headers map[string]string) error {
	c.headers = headers
	return nil
}

func (c *fakeContext) SetCredentials(cred *Credentials) error {
	if cred == nil {
		c.credCleared = true
		c.credentials = nil
		return nil
	}
	c.credentials = cred
	return nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

type fakeDriver struct {
	created []*fakeContext
	next    func(*fakeContext)
}

func (d *fakeDriver) NewContext() (Context, error) {
	ctx := &fakeContext{id: len(d.created)}
	if d.next != nil {
		d.next(ctx)
	}
	d.created = append(d.created, ctx)
	return ctx, nil
}

func (d *fakeDriver) Close() error { return nil }
