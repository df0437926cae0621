package agent

import "strings"

// Defaults written when no catalog entry matches.
const (
	DefaultCatalogDevice  = "Desktop"
	DefaultCatalogBrowser = "Chrome"
)

// Devices are the device tokens a client may send verbatim.
var Devices = []string{
	"Desktop",
	"Mobile",
	"Tablet",
	"Smart TV",
	"Console",
	"Wearable",
}

// Browsers are the browser tokens a client may send verbatim.
var Browsers = []string{
	"Chrome",
	"Firefox",
	"Safari",
	"Edge",
	"Opera",
	"Brave",
	"Vivaldi",
	"Samsung Internet",
	"Internet Explorer",
}

// KnownAgent is a full user-agent string with its fixed classification.
type KnownAgent struct {
	UserAgent string
	Device    string
	Browser   string
}

// Agents are full user-agent strings recognised by exact match.
var Agents = []KnownAgent{
	{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Device:    "Desktop",
		Browser:   "Chrome",
	},
	{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		Device:    "Desktop",
		Browser:   "Safari",
	},
	{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		Device:    "Desktop",
		Browser:   "Firefox",
	},
	{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
		Device:    "Desktop",
		Browser:   "Edge",
	},
	{
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		Device:    "Mobile",
		Browser:   "Safari",
	},
	{
		UserAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
		Device:    "Mobile",
		Browser:   "Chrome",
	},
	{
		UserAgent: "Mozilla/5.0 (Linux; Android 14; SM-S918B) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/24.0 Chrome/117.0.0.0 Mobile Safari/537.36",
		Device:    "Mobile",
		Browser:   "Samsung Internet",
	},
	{
		UserAgent: "Mozilla/5.0 (iPad; CPU OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
		Device:    "Tablet",
		Browser:   "Safari",
	},
}

// Catalog classifies user agents by case-insensitive exact match against
// Devices, Browsers and Agents.
type Catalog struct {
	devices  []string
	browsers []string
	agents   []KnownAgent
}

// NewCatalog creates a catalog classifier over the built-in lists.
func NewCatalog() *Catalog {
	return &Catalog{devices: Devices, browsers: Browsers, agents: Agents}
}

// Classify returns the catalog entry matching ua, or the catalog defaults.
func (c *Catalog) Classify(ua string) Result {
	ua = strings.TrimSpace(ua)
	res := Result{Device: DefaultCatalogDevice, Browser: DefaultCatalogBrowser}

	if ua == "" {
		return res
	}

	for _, known := range c.agents {
		if strings.EqualFold(known.UserAgent, ua) {
			return Result{Device: known.Device, Browser: known.Browser}
		}
	}

	if device, ok := matchToken(c.devices, ua); ok {
		res.Device = device
	}
	if browser, ok := matchToken(c.browsers, ua); ok {
		res.Browser = browser
	}

	return res
}

func matchToken(tokens []string, value string) (string, bool) {
	for _, token := range tokens {
		if strings.EqualFold(token, value) {
			return token, true
		}
	}
	return "", false
}
