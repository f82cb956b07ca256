package gitsync

import (
	"regexp"
	"sort"
	"strconv"
)

// LTSTag is the marker tag that bounds how far back the offered version list
// goes. Versions older than the release it points at stay hidden.
const LTSTag = "lts"

var tagPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)(?:\.(\d+))?([a-zA-Z0-9.-]*)$`)

// Version is a parsed release tag.
type Version struct {
	Tag    string
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

// ParseTag parses a release tag. Tags that do not look like versions
// (branch mirrors, the lts marker, arbitrary labels) report false.
func ParseTag(tag string) (Version, bool) {
	m := tagPattern.FindStringSubmatch(tag)
	if m == nil {
		return Version{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch := 0
	if m[3] != "" {
		patch, _ = strconv.Atoi(m[3])
	}
	return Version{Tag: tag, Major: major, Minor: minor, Patch: patch, Suffix: m[4]}, true
}

// Less orders versions ascending. A version without a suffix ranks above the
// same version with one, so 1.2.0 sorts after 1.2.0-rc1.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	if v.Patch != o.Patch {
		return v.Patch < o.Patch
	}
	if (v.Suffix == "") != (o.Suffix == "") {
		return v.Suffix != ""
	}
	return v.Suffix < o.Suffix
}

// SortTags filters tags down to parseable versions and returns them newest
// first.
func SortTags(tags []string) []string {
	versions := make([]Version, 0, len(tags))
	for _, t := range tags {
		if v, ok := ParseTag(t); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[j].Less(versions[i])
	})
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.Tag
	}
	return out
}

// ClipToLTS truncates a newest-first version list after the entry that shares
// a commit with the lts marker, dropping everything older. When no version
// matches, the list is returned unchanged.
func ClipToLTS(sorted []string, tagHash map[string]string, ltsHash string) []string {
	if ltsHash == "" {
		return sorted
	}
	for i, tag := range sorted {
		if tagHash[tag] == ltsHash {
			return sorted[:i+1]
		}
	}
	return sorted
}
