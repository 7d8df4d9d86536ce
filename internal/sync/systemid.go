package sync

import (
	"strconv"
	"strings"
)

// BuildID namespaces a local id with the site id so several sites can share
// one remote account: site 1, course 7 becomes "1_7".
// A zero or negative local id means "none" and yields "".
func BuildID(siteID, localID int64) string {
	if localID <= 0 {
		return ""
	}
	return strconv.FormatInt(siteID, 10) + "_" + strconv.FormatInt(localID, 10)
}

// ParseID splits a namespaced id back into its parts.
func ParseID(id string) (siteID, localID int64, ok bool) {
	site, local, found := strings.Cut(strings.TrimSpace(id), "_")
	if !found {
		return 0, 0, false
	}
	s, err := strconv.ParseInt(site, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	l, err := strconv.ParseInt(local, 10, 64)
	if err != nil || l <= 0 {
		return 0, 0, false
	}
	return s, l, true
}
