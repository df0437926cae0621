package agent

import (
	"strings"

	"github.com/mileusna/useragent"
)

// Defaults written when parsing yields nothing.
const (
	DefaultParsedDevice  = "desktop"
	DefaultParsedBrowser = "unknown"
)

// Device tokens produced by Parser.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceBot     = "bot"
)

// Parser classifies user agents with github.com/mileusna/useragent.
type Parser struct{}

// NewParser creates a parsing classifier.
func NewParser() *Parser {
	return &Parser{}
}

// Classify parses ua and returns its device type and browser name.
func (p *Parser) Classify(ua string) Result {
	res := Result{Device: DefaultParsedDevice, Browser: DefaultParsedBrowser}

	ua = strings.TrimSpace(ua)
	if ua == "" {
		return res
	}

	parsed := useragent.Parse(ua)

	switch {
	case parsed.Bot:
		res.Device = DeviceBot
	case parsed.Tablet:
		res.Device = DeviceTablet
	case parsed.Mobile:
		res.Device = DeviceMobile
	case parsed.Desktop:
		res.Device = DeviceDesktop
	}

	if name := strings.TrimSpace(parsed.Name); name != "" {
		res.Browser = name
	}

	return res
}
