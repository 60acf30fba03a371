// Package datetime implements timezone tools backed by the embedded tz database.
package datetime

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"google.golang.org/genai"

	"geminilab/internal/tools"
	"geminilab/internal/tools/middleware"
	"geminilab/internal/tools/shared"
	"geminilab/pkg/errors"
)

// CommonTimezones are suggested when a timezone is not recognized
var CommonTimezones = []string{
	"UTC", "America/New_York", "America/Los_Angeles",
	"Europe/London", "Europe/Paris", "Asia/Tokyo",
	"Asia/Shanghai", "Australia/Sydney",
}

// Clock answers time questions relative to now
type Clock struct {
	now func() time.Time
}

// NewClock creates a clock; nil means time.Now
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// CurrentTime renders the current time in timezone
func (c *Clock) CurrentTime(timezone string) string {
	loc, err := loadLocation(timezone)
	if err != nil {
		return fmt.Sprintf("Unknown timezone: %s. Try one of these: %s", timezone, strings.Join(CommonTimezones, ", "))
	}
	return fmt.Sprintf("Current time in %s: %s", timezone, c.now().In(loc).Format("2006-01-02 15:04:05 MST"))
}

// TimeDifference compares the current UTC offsets of two timezones
func (c *Clock) TimeDifference(timezone1, timezone2 string) string {
	loc1, err := loadLocation(timezone1)
	if err != nil {
		return "Unknown timezone in request: " + timezone1
	}
	loc2, err := loadLocation(timezone2)
	if err != nil {
		return "Unknown timezone in request: " + timezone2
	}

	now := c.now()
	_, offset1 := now.In(loc1).Zone()
	_, offset2 := now.In(loc2).Zone()
	diff := float64(offset1-offset2) / 3600

	switch {
	case diff == 0:
		return fmt.Sprintf("%s and %s are in the same timezone (no difference).", timezone1, timezone2)
	case diff > 0:
		return fmt.Sprintf("%s is %.1f hours ahead of %s.", timezone1, math.Abs(diff), timezone2)
	default:
		return fmt.Sprintf("%s is %.1f hours behind %s.", timezone1, math.Abs(diff), timezone2)
	}
}

// loadLocation rejects "Local", which time.LoadLocation would accept
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, errors.Newf("unknown time zone %q", name)
	}
	return time.LoadLocation(name)
}

// NewCurrentTimeTool is get_current_time
func NewCurrentTimeTool(deps shared.Deps) tools.Tool {
	clock := NewClock(deps.Clock())
	params := tools.ObjectSchema(map[string]*genai.Schema{
		"timezone": tools.StringProperty("Timezone name (e.g., 'America/New_York', 'Asia/Tokyo', 'UTC'). Defaults to UTC if not specified."),
	})

	return deps.Build(middleware.NewFactory("get_current_time",
		"Get the current date and time in a specific timezone. Supports all standard timezone names like 'America/New_York', 'Europe/London', 'Asia/Tokyo', etc.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			return clock.CurrentTime(tools.StringArg(args, "timezone", "UTC")), nil
		})).Build()
}

// NewTimeDifferenceTool is get_time_difference
func NewTimeDifferenceTool(deps shared.Deps) tools.Tool {
	clock := NewClock(deps.Clock())
	params := tools.ObjectSchema(map[string]*genai.Schema{
		"timezone1": tools.StringProperty("First timezone name"),
		"timezone2": tools.StringProperty("Second timezone name"),
	}, "timezone1", "timezone2")

	return deps.Build(middleware.NewFactory("get_time_difference",
		"Calculate the time difference between two timezones. Useful for scheduling across time zones.",
		params,
		func(ctx context.Context, args map[string]any) (any, error) {
			tz1, err := tools.RequiredString(args, "timezone1")
			if err != nil {
				return nil, err
			}
			tz2, err := tools.RequiredString(args, "timezone2")
			if err != nil {
				return nil, err
			}
			return clock.TimeDifference(tz1, tz2), nil
		})).Build()
}
