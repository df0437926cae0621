package model

import "time"

// Dimension is a click attribute clicks can be grouped by.
type Dimension string

// Supported dimensions.
const (
	DimensionCountry Dimension = "country"
	DimensionCity    Dimension = "city"
	DimensionDevice  Dimension = "device"
	DimensionBrowser Dimension = "browser"
	DimensionLink    Dimension = "link"
	DimensionDay     Dimension = "day"
)

// Dimensions lists every supported dimension.
var Dimensions = []Dimension{
	DimensionCountry,
	DimensionCity,
	DimensionDevice,
	DimensionBrowser,
	DimensionLink,
	DimensionDay,
}

// Valid reports whether d is a supported dimension.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// DayLayout formats values of DimensionDay.
const DayLayout = "2006-01-02"

// ClickFilter restricts which clicks are aggregated.
// A zero value matches every click.
type ClickFilter struct {
	// Since keeps clicks created at or after this instant.
	Since *time.Time
	// LinkID keeps clicks of a single link.
	LinkID string
	// UserID keeps clicks attributed to a single user.
	UserID string

	// Country, City, Device and Browser keep clicks whose value contains
	// the given text, ignoring case.
	Country string
	City    string
	Device  string
	Browser string
}

// Bucket is one group of a dimensional aggregation.
type Bucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}
