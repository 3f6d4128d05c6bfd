// Package analytics computes momentum metrics from accumulated update
// history. Every function is a pure function of its inputs: "now" is always
// passed explicitly, nothing here reads a clock, performs I/O, or mutates
// its arguments, so all of it is safe to recompute on every read.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/p-blackswan/pulsetrack/internal/project"
)

// HealthLabel buckets a health score for display.
type HealthLabel string

const (
	HealthExcellent      HealthLabel = "excellent"
	HealthGood           HealthLabel = "good"
	HealthNeedsAttention HealthLabel = "needs-attention"
	HealthCritical       HealthLabel = "critical"
)

// Health score penalties.
const (
	penaltyPerBlocker   = 10
	penaltyNoRecent     = 30
	penaltyHasAlerts    = 20
	recentWindow        = 7 * 24 * time.Hour
)

// Streaks holds day-based continuity metrics.
type Streaks struct {
	Current int `json:"current"`
	Longest int `json:"longest"`
}

// DayCount is one histogram bucket.
type DayCount struct {
	Date  string `json:"date"` // 2006-01-02
	Count int    `json:"count"`
}

// TagCount is one tag-frequency entry.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// day collapses a timestamp to its calendar day in now's location.
func day(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// UpdateStreaks computes the current and longest update streaks across the
// given updates. Both are day-based: multiple updates on one day count once.
// The current streak continues through yesterday when today has no update yet.
func UpdateStreaks(updates []project.Update, now time.Time) Streaks {
	if len(updates) == 0 {
		return Streaks{}
	}

	loc := now.Location()
	seen := make(map[time.Time]bool, len(updates))
	for _, u := range updates {
		seen[day(u.Timestamp, loc)] = true
	}
	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	today := day(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	current := 0
	if days[0].Equal(today) || days[0].Equal(yesterday) {
		current = 1
		for i := 1; i < len(days); i++ {
			if days[i-1].AddDate(0, 0, -1).Equal(days[i]) {
				current++
			} else {
				break
			}
		}
	}

	longest := 1
	run := 1
	for i := 1; i < len(days); i++ {
		if days[i-1].AddDate(0, 0, -1).Equal(days[i]) {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 1
		}
	}

	return Streaks{Current: current, Longest: longest}
}

// WeeklyVelocity counts updates newer than seven days before now.
func WeeklyVelocity(updates []project.Update, now time.Time) int {
	cutoff := now.Add(-recentWindow)
	n := 0
	for _, u := range updates {
		if u.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

// CompletionRate returns completed/(completed+blockers) as a rounded
// percentage, and 0 when the denominator is 0.
func CompletionRate(completed, blockers int) int {
	total := completed + blockers
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ProjectCompletionRate computes the completion rate over the current states
// of the given projects. Projects without a state contribute nothing.
func ProjectCompletionRate(projects []*project.Project) int {
	completed, blockers := 0, 0
	for _, p := range projects {
		if p.CurrentState == nil {
			continue
		}
		s := p.CurrentState.Normalized()
		completed += len(s.Completed)
		blockers += len(s.Blockers)
	}
	return CompletionRate(completed, blockers)
}

// HealthScore scores a single project in [0,100]: 100 minus 10 per current
// blocker, minus 30 with no update in the last 7 days, minus 20 when any risk
// alerts are recorded.
func HealthScore(p *project.Project, now time.Time) int {
	score := 100

	if p.CurrentState != nil {
		score -= penaltyPerBlocker * len(p.CurrentState.Normalized().Blockers)
	}
	if WeeklyVelocity(p.Updates, now) == 0 {
		score -= penaltyNoRecent
	}
	if len(p.RiskAlerts) > 0 {
		score -= penaltyHasAlerts
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// LabelFor buckets a health score.
func LabelFor(score int) HealthLabel {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 60:
		return HealthGood
	case score >= 40:
		return HealthNeedsAttention
	default:
		return HealthCritical
	}
}

// DayOfWeekHistogram buckets updates by weekday, 0=Sunday through 6=Saturday.
func DayOfWeekHistogram(updates []project.Update, loc *time.Location) [7]int {
	var buckets [7]int
	for _, u := range updates {
		buckets[int(u.Timestamp.In(loc).Weekday())]++
	}
	return buckets
}

// LastSevenDays buckets updates by each of the last 7 calendar days ending at
// now's day, oldest first. Days without updates appear with a zero count.
func LastSevenDays(updates []project.Update, now time.Time) []DayCount {
	loc := now.Location()
	today := day(now, loc)

	counts := make(map[time.Time]int, len(updates))
	for _, u := range updates {
		counts[day(u.Timestamp, loc)]++
	}

	out := make([]DayCount, 0, 7)
	for i := 6; i >= 0; i-- {
		d := today.AddDate(0, 0, -i)
		out = append(out, DayCount{Date: d.Format("2006-01-02"), Count: counts[d]})
	}
	return out
}

// TagFrequency counts tag occurrences across updates, sorted by descending
// count with ties broken alphabetically.
func TagFrequency(updates []project.Update) []TagCount {
	counts := map[string]int{}
	for _, u := range updates {
		for _, tag := range u.Tags {
			counts[tag]++
		}
	}

	out := make([]TagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}
