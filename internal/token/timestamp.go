package token

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
}

var msDate = regexp.MustCompile(`^/Date\((-?\d+)(?:[+-]\d{4})?\)/$`)

// ParseTimestamp decodes the token endpoint's timeStamp. It accepts RFC 3339
// strings, zone-less date-times (read in loc), "/Date(ms)/" literals and epoch
// seconds or milliseconds. Anything else yields fallback.
func ParseTimestamp(raw json.RawMessage, loc *time.Location, fallback time.Time) time.Time {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return fallback
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return fallback
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		return fallback
	}

	if m := msDate.FindStringSubmatch(s); m != nil {
		ms, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return time.UnixMilli(ms).In(loc)
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).In(loc)
		}
		return time.Unix(n, 0).In(loc)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc)
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t
		}
	}
	return fallback
}
