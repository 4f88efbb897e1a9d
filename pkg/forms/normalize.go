package forms

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var expertiseSep = regexp.MustCompile(`[,;\n]+`)

// ParseExpertise splits free text such as "Carbon accounting; ESG, LCA"
// into trimmed, deduplicated tags, keeping first-seen order.
func ParseExpertise(s string) []string {
	l := &List{}
	for _, part := range expertiseSep.Split(s, -1) {
		l.Add(part)
	}
	return l.Items()
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidHexColor reports whether s is #rgb or #rrggbb.
func ValidHexColor(s string) bool {
	return hexColor.MatchString(strings.TrimSpace(s))
}

// NormalizeHexColor returns s as lowercase #rrggbb. A missing leading '#'
// is tolerated.
func NormalizeHexColor(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s != "" && !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if !ValidHexColor(s) {
		return "", false
	}
	s = strings.ToLower(s)
	if len(s) == 4 {
		s = string([]byte{'#', s[1], s[1], s[2], s[2], s[3], s[3]})
	}
	return s, true
}

// TimeAgo formats the distance between t and now in words ("3 days ago").
// Future times and distances under a minute read "just now".
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}

	units := []struct {
		size time.Duration
		name string
	}{
		{365 * 24 * time.Hour, "year"},
		{30 * 24 * time.Hour, "month"},
		{7 * 24 * time.Hour, "week"},
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d >= u.size {
			n := int(d / u.size)
			if n == 1 {
				return fmt.Sprintf("1 %s ago", u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}
