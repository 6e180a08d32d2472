// Package markethours knows the trading sessions of Shanghai Futures
// Exchange metal contracts. All times are China Standard Time.
package markethours

import (
	"fmt"
	"time"
)

// CST is China Standard Time (UTC+8).
var CST = time.FixedZone("CST", 8*3600)

// Session is one trading window in minutes after midnight. A night session
// ends after midnight when End < Start.
type Session struct {
	Name  string
	Start int
	End   int
}

func (s Session) contains(minute int) bool {
	if s.End < s.Start {
		return minute >= s.Start || minute < s.End
	}
	return minute >= s.Start && minute < s.End
}

func (s Session) String() string {
	return fmt.Sprintf("%s %s-%s", s.Name, hhmm(s.Start), hhmm(s.End))
}

// Sessions are the day and night windows for precious metals.
var Sessions = []Session{
	{Name: "morning", Start: 9 * 60, End: 10*60 + 15},
	{Name: "mid-morning", Start: 10*60 + 30, End: 11*60 + 30},
	{Name: "afternoon", Start: 13*60 + 30, End: 15 * 60},
	{Name: "night", Start: 21 * 60, End: 2*60 + 30},
}

// Calendar answers trading-time questions. Holidays are trading days with
// no sessions, keyed by "2006-01-02".
type Calendar struct {
	holidays map[string]bool
}

// NewCalendar creates a Calendar. Malformed holiday dates are an error.
func NewCalendar(holidays []string) (*Calendar, error) {
	c := &Calendar{holidays: make(map[string]bool, len(holidays))}
	for _, h := range holidays {
		d, err := time.ParseInLocation("2006-01-02", h, CST)
		if err != nil {
			return nil, fmt.Errorf("holiday %q: %w", h, err)
		}
		c.holidays[d.Format("2006-01-02")] = true
	}
	return c, nil
}

// IsHoliday reports whether the CST date of t is a configured holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	return c.holidays[t.In(CST).Format("2006-01-02")]
}

// IsTradingDay reports whether the CST date of t is a weekday and not a
// holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	wd := t.In(CST).Weekday()
	return wd != time.Saturday && wd != time.Sunday && !c.IsHoliday(t)
}

// SessionAt returns the session open at t. The part of a night session
// after midnight belongs to the previous evening, so Saturday 01:00 is
// Friday's night session and Monday 01:00 is closed.
func (c *Calendar) SessionAt(t time.Time) (Session, bool) {
	local := t.In(CST)
	minute := local.Hour()*60 + local.Minute()
	for _, s := range Sessions {
		if !s.contains(minute) {
			continue
		}
		day := local
		if s.End < s.Start && minute < s.End {
			day = local.AddDate(0, 0, -1)
		}
		if c.IsTradingDay(day) {
			return s, true
		}
	}
	return Session{}, false
}

// IsOpen reports whether any session is open at t.
func (c *Calendar) IsOpen(t time.Time) bool {
	_, ok := c.SessionAt(t)
	return ok
}

// NextOpen returns the start of the next session strictly after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(CST)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, CST)
	for d := 0; d < 15; d++ {
		day := midnight.AddDate(0, 0, d)
		if !c.IsTradingDay(day) {
			continue
		}
		for _, s := range Sessions {
			open := day.Add(time.Duration(s.Start) * time.Minute)
			if open.After(local) {
				return open
			}
		}
	}
	return midnight.AddDate(0, 0, 15)
}

// Status is a short human readable market state.
func (c *Calendar) Status(t time.Time) string {
	if s, ok := c.SessionAt(t); ok {
		return "open, " + s.Name + " session"
	}
	next := c.NextOpen(t)
	return fmt.Sprintf("closed, opens %s %s (in %s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func hhmm(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
