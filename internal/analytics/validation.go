package analytics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/penshort/linkpulse/internal/apperr"
)

// periodHours maps each accepted period to its window in hours.
var periodHours = map[string]int{
	"1h":  1,
	"12h": 12,
	"24h": 24,
	"7d":  7 * 24,
	"30d": 30 * 24,
	"90d": 90 * 24,
	"1y":  365 * 24,
}

// Periods lists the accepted period names, shortest first.
func Periods() []string {
	out := make([]string, 0, len(periodHours))
	for p := range periodHours {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return periodHours[out[i]] < periodHours[out[j]] })
	return out
}

// PeriodDuration returns the window of a period name.
func PeriodDuration(period string) (time.Duration, error) {
	hours, ok := periodHours[strings.TrimSpace(period)]
	if !ok {
		return 0, apperr.InvalidArgument("period",
			fmt.Sprintf("must be one of %s", strings.Join(Periods(), ", ")))
	}
	return time.Duration(hours) * time.Hour, nil
}

// pagination resolves page and limit. Zero selects the default; other
// values outside [1, maxLimit] are rejected, as are pages whose offset
// would not fit in an int.
func pagination(page, limit, defaultLimit, maxLimit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if page < 1 {
		return 0, 0, apperr.InvalidArgument("page", "must be at least 1")
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, apperr.InvalidArgument("limit", fmt.Sprintf("must be between 1 and %d", maxLimit))
	}
	if page > math.MaxInt/limit {
		return 0, 0, apperr.InvalidArgument("page", fmt.Sprintf("must be at most %d for limit %d", math.MaxInt/limit, limit))
	}
	return page, limit, nil
}

// totalPages is ceil(total/limit).
func totalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func validateRange(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		return apperr.InvalidArgument("startDate", "must not be after endDate")
	}
	return nil
}
