package gitsync

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag  string
		ok   bool
		want Version
	}{
		{"v1.2.3", true, Version{Tag: "v1.2.3", Major: 1, Minor: 2, Patch: 3}},
		{"1.2.3", true, Version{Tag: "1.2.3", Major: 1, Minor: 2, Patch: 3}},
		{"v2.0", true, Version{Tag: "v2.0", Major: 2, Minor: 0}},
		{"v1.9.9-rc1", true, Version{Tag: "v1.9.9-rc1", Major: 1, Minor: 9, Patch: 9, Suffix: "-rc1"}},
		{"lts", false, Version{}},
		{"main", false, Version{}},
		{"v1", false, Version{}},
		{"", false, Version{}},
	}
	for _, tt := range tests {
		got, ok := ParseTag(tt.tag)
		assert.Equal(t, tt.ok, ok, tt.tag)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.tag)
		}
	}
}

func TestSortTagsNewestFirst(t *testing.T) {
	tags := []string{"v1.9.9-rc1", "main", "2.0", "v1.9.9", "lts", "v1.10.0"}
	assert.Equal(t, []string{"2.0", "v1.10.0", "v1.9.9", "v1.9.9-rc1"}, SortTags(tags))
}

func TestSortTagsSuffixRanksBelowRelease(t *testing.T) {
	got := SortTags([]string{"v1.0.0-alpha", "v1.0.0", "v1.0.0-beta"})
	assert.Equal(t, []string{"v1.0.0", "v1.0.0-beta", "v1.0.0-alpha"}, got)
}

func TestClipToLTS(t *testing.T) {
	sorted := []string{"v1.2.0", "v1.1.0", "v1.0.0"}
	hashes := map[string]string{
		"v1.2.0": "c",
		"v1.1.0": "b",
		"v1.0.0": "a",
	}

	assert.Equal(t, []string{"v1.2.0", "v1.1.0"}, ClipToLTS(sorted, hashes, "b"))
	assert.Equal(t, sorted, ClipToLTS(sorted, hashes, ""), "no lts marker")
	assert.Equal(t, sorted, ClipToLTS(sorted, hashes, "zz"), "lts on an untagged commit")
}

func TestSortTagsProperties(t *testing.T) {
	tagGen := rapid.OneOf(
		rapid.Custom(func(t *rapid.T) string {
			major := rapid.IntRange(0, 20).Draw(t, "major")
			minor := rapid.IntRange(0, 20).Draw(t, "minor")
			patch := rapid.IntRange(0, 20).Draw(t, "patch")
			suffix := rapid.SampledFrom([]string{"", "-rc1", "-rc2", "-beta", ".post1"}).Draw(t, "suffix")
			prefix := rapid.SampledFrom([]string{"", "v"}).Draw(t, "prefix")
			if rapid.Bool().Draw(t, "twopart") {
				return formatTag(prefix, major, minor, -1, suffix)
			}
			return formatTag(prefix, major, minor, patch, suffix)
		}),
		rapid.SampledFrom([]string{"lts", "main", "release", "v1", ""}),
	)

	rapid.Check(t, func(t *rapid.T) {
		tags := rapid.SliceOfN(tagGen, 0, 30).Draw(t, "tags")
		sorted := SortTags(tags)

		assert.Equal(t, sorted, SortTags(sorted), "sorting is idempotent")

		for i := 1; i < len(sorted); i++ {
			a, _ := ParseTag(sorted[i-1])
			b, _ := ParseTag(sorted[i])
			assert.False(t, a.Less(b), "%s must not rank below %s", sorted[i-1], sorted[i])
		}

		parseable := 0
		for _, tag := range tags {
			if _, ok := ParseTag(tag); ok {
				parseable++
			}
		}
		assert.Len(t, sorted, parseable, "only unparseable tags are dropped")
	})
}

func formatTag(prefix string, major, minor, patch int, suffix string) string {
	if patch < 0 {
		return fmt.Sprintf("%s%d.%d%s", prefix, major, minor, suffix)
	}
	return fmt.Sprintf("%s%d.%d.%d%s", prefix, major, minor, patch, suffix)
}

func TestOrderingAcrossMajors(t *testing.T) {
	two, ok := ParseTag("2.0")
	require.True(t, ok)
	nine, ok := ParseTag("1.9.9")
	require.True(t, ok)
	rc, ok := ParseTag("1.9.9-rc1")
	require.True(t, ok)

	assert.True(t, nine.Less(two))
	assert.True(t, rc.Less(nine))
	assert.False(t, two.Less(rc))
}
