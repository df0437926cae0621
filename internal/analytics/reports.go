package analytics

import (
	"encoding/json"
	"time"

	"github.com/penshort/linkpulse/internal/model"
)

// Report names used for latency metrics.
const (
	ReportTopLinks       = "top_links"
	ReportGeographic     = "geographic"
	ReportDeviceBrowser  = "device_browser"
	ReportConversionRate = "conversion_rate"
	ReportTimeSeries     = "time_series"
	ReportGeneral        = "general"
	ReportLinkStats      = "link_stats"
	ReportClicks         = "clicks"
)

// TopLinksQuery selects a page of the most clicked links in a period.
type TopLinksQuery struct {
	Period string
	Page   int
	Limit  int
}

// TopLink is one row of the top links report.
type TopLink struct {
	Rank        int         `json:"rank"`
	LinkID      string      `json:"linkId"`
	Link        *model.Link `json:"link,omitempty"`
	ClicksCount int64       `json:"clicksCount"`
	Percentage  string      `json:"percentage"`
}

// Page describes the position of a page in a paginated report.
type Page struct {
	TotalPages      int  `json:"totalPages"`
	CurrentPage     int  `json:"currentPage"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
}

func newPage(total int64, page, limit int) Page {
	pages := totalPages(total, limit)
	return Page{
		TotalPages:      pages,
		CurrentPage:     page,
		HasNextPage:     page < pages,
		HasPreviousPage: page > 1,
	}
}

// TopLinksReport is a page of links ordered by clicks in a period.
type TopLinksReport struct {
	Period        string    `json:"period"`
	Since         time.Time `json:"since"`
	QuantityLinks int64     `json:"quantityLinks"`
	Page
	TopLinks []TopLink `json:"topLinks"`
}

// CountryEntry is a ranked country with its ISO 3166-1 alpha-2 code when
// the name is recognised.
type CountryEntry struct {
	RankedEntry
	Code string `json:"code,omitempty"`
}

// GeoStats summarises each dimension of the geographic report.
type GeoStats struct {
	UniqueCountries int    `json:"uniqueCountries"`
	UniqueCities    int    `json:"uniqueCities"`
	UniqueDevices   int    `json:"uniqueDevices"`
	UniqueBrowsers  int    `json:"uniqueBrowsers"`
	CountryClicks   int64  `json:"countryClicks"`
	CityClicks      int64  `json:"cityClicks"`
	DeviceClicks    int64  `json:"deviceClicks"`
	BrowserClicks   int64  `json:"browserClicks"`
	TotalClicks     int64  `json:"totalClicks"`
	TopCountry      string `json:"topCountry"`
	TopCity         string `json:"topCity"`
	TopDevice       string `json:"topDevice"`
	TopBrowser      string `json:"topBrowser"`
}

// GeoRankings holds the ranked lists of the geographic report.
type GeoRankings struct {
	TopCountries []CountryEntry `json:"topCountries"`
	TopCities    []RankedEntry  `json:"topCities"`
	TopDevices   []RankedEntry  `json:"topDevices"`
	TopBrowsers  []RankedEntry  `json:"topBrowsers"`
}

// DataIntegrity flags clicks missing from the country dimension.
type DataIntegrity struct {
	TotalClicks       int64 `json:"totalClicks"`
	CountryClicks     int64 `json:"countryClicks"`
	CityClicks        int64 `json:"cityClicks"`
	HasIncompleteData bool  `json:"hasIncompleteData"`
}

// GeoMetadata describes how the geographic report was produced.
type GeoMetadata struct {
	QueryLimit    int           `json:"queryLimit"`
	DeviceLimit   int           `json:"deviceLimit"`
	Timestamp     time.Time     `json:"timestamp"`
	DataIntegrity DataIntegrity `json:"dataIntegrity"`
}

// GeographicReport is the all-time distribution of clicks by location,
// device and browser.
type GeographicReport struct {
	Stats    GeoStats    `json:"stats"`
	Rankings GeoRankings `json:"rankings"`
	Metadata GeoMetadata `json:"metadata"`
}

// DeviceStats summarises devices and browsers seen in clicks.
type DeviceStats struct {
	TotalDevices   int      `json:"totalDevices"`
	TotalBrowsers  int      `json:"totalBrowsers"`
	UniqueDevices  []string `json:"uniqueDevices"`
	UniqueBrowsers []string `json:"uniqueBrowsers"`
	TotalRecords   int64    `json:"totalRecords"`
}

// ReportMetadata carries the generation time of a report.
type ReportMetadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// DeviceBrowserReport is the all-time device and browser distribution.
type DeviceBrowserReport struct {
	DeviceStats         DeviceStats      `json:"deviceStats"`
	DeviceTotals        map[string]int64 `json:"deviceTotals"`
	DeviceDistribution  []RankedEntry    `json:"deviceDistribution"`
	BrowserDistribution []RankedEntry    `json:"browserDistribution"`
	Metadata            ReportMetadata   `json:"metadata"`
}

// NoLinksMessage explains an empty conversion report.
const NoLinksMessage = "no links have been registered"

// Rate is a ratio formatted with two decimals. An empty Rate encodes as
// the number 0.
type Rate string

// MarshalJSON implements json.Marshaler.
func (r Rate) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("0"), nil
	}
	return json.Marshal(string(r))
}

// ConversionReport relates clicks to links.
type ConversionReport struct {
	Message        string    `json:"message,omitempty"`
	TotalLinks     int64     `json:"totalLinks"`
	TotalClicks    int64     `json:"totalClicks"`
	ConversionRate Rate      `json:"conversionRate"`
	ClickRatio     string    `json:"clickRatio,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// TimeSeriesQuery selects a page of links created in an optional window.
type TimeSeriesQuery struct {
	Page      int
	Limit     int
	StartDate *time.Time
	EndDate   *time.Time
}

// TimeSeriesReport lists links with their clicks and owners, oldest first.
type TimeSeriesReport struct {
	QuantityLinks int64 `json:"quantityLinks"`
	Page
	TimeSeries []*model.LinkWithClicks `json:"timeSeries"`
}

// RoleCount is the number of users holding a role.
type RoleCount struct {
	Role  model.Role `json:"role"`
	Count int64      `json:"count"`
}

// GeneralReport holds system-wide totals.
type GeneralReport struct {
	TotalLinks        int64       `json:"totalLinks"`
	TotalClicks       int64       `json:"totalClicks"`
	TotalUsers        int64       `json:"totalUsers"`
	TotalPremiumUsers int64       `json:"totalPremiumUsers"`
	TotalFreeUsers    int64       `json:"totalFreeUsers"`
	TotalGuestUsers   int64       `json:"totalGuestUsers"`
	TotalAdminUsers   int64       `json:"totalAdminUsers"`
	DistributionUsers []RoleCount `json:"distributionUsers"`
}

// DailyCount is the number of clicks on one UTC day.
type DailyCount struct {
	Date   string `json:"date"`
	Clicks int64  `json:"clicks"`
}

// LinkStatsReport describes the clicks of a single link.
type LinkStatsReport struct {
	Link         *model.Link         `json:"link"`
	TotalClicks  int64               `json:"totalClicks"`
	TopCountries []RankedEntry       `json:"topCountries"`
	TopCities    []RankedEntry       `json:"topCities"`
	Devices      []RankedEntry       `json:"devices"`
	Browsers     []RankedEntry       `json:"browsers"`
	Daily        []DailyCount        `json:"daily"`
	RecentClicks []*model.ClickEvent `json:"recentClicks"`
}

// ClickListQuery selects a page of clicks, newest first. The dimension
// fields match case-insensitively by substring; UserID matches exactly.
type ClickListQuery struct {
	Page    int
	Limit   int
	Country string
	City    string
	Device  string
	Browser string
	UserID  string
}

// ClickListReport is a page of clicks with their links and users.
type ClickListReport struct {
	QuantityClicks int64 `json:"quantityClicks"`
	Page
	Clicks []*model.ClickDetail `json:"clicks"`
}
