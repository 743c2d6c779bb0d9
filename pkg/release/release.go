// Package release implements the tag-driven release workflow for Orca SDKs:
// classifying git tags into releases and pre-releases, generating release
// notes, publishing source-control releases with asset attachments, and
// gating package-index uploads so pre-releases never reach the index.
package release

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// preReleaseMarkers are the substrings whose presence anywhere in a tag marks
// it as a pre-release. The check is deliberately a plain substring match, so
// a tag like v1.2.3-beta.1 is caught by "b" without any semver parsing.
var preReleaseMarkers = []string{"a", "b", "rc", "+"}

// Release is a classified release tag.
type Release struct {
	// Tag is the git tag the release was cut from, e.g. v1.2.3.
	Tag string

	// Version is the tag without its leading v, e.g. 1.2.3.
	Version string

	// Prerelease reports whether the tag carries a pre-release marker.
	// Pre-releases are published to source control but never to the
	// package index.
	Prerelease bool

	// Notes is the markdown release body. Left empty, the publisher asks
	// the host to generate notes from the commit history.
	Notes string

	// Assets lists paths of built distribution files to attach to the
	// release and, for full releases, upload to the package index.
	Assets []string
}

// IsPrerelease reports whether tag contains any pre-release marker
// ("a", "b", "rc", or "+") as a literal substring.
func IsPrerelease(tag string) bool {
	for _, marker := range preReleaseMarkers {
		if strings.Contains(tag, marker) {
			return true
		}
	}
	return false
}

// tagRE matches release tags: v<major>.<minor>.<patch> followed by any
// suffix. Only the numeric head is validated; suffixes are free-form so
// Python-style pre-release tags like v1.2.3a1 and v1.2.3rc1 classify.
var tagRE = regexp.MustCompile(`^v\d+\.\d+\.\d+`)

// Classify parses a release tag of the form v<major>.<minor>.<patch> with an
// optional suffix. The version is the tag minus its leading v, untouched
// otherwise; the tag is a pre-release iff IsPrerelease reports so.
func Classify(tag string) (Release, error) {
	if !tagRE.MatchString(tag) {
		return Release{}, fmt.Errorf("tag %q is not of the form v<major>.<minor>.<patch>[suffix]", tag)
	}
	return Release{
		Tag:        tag,
		Version:    strings.TrimPrefix(tag, "v"),
		Prerelease: IsPrerelease(tag),
	}, nil
}

// IsSemverPrerelease reports whether tag parses as semver and carries a
// pre-release or build-metadata portion. It is stricter than IsPrerelease:
// v1.0.0-beta is a pre-release under both, while v2.0.0 (no marker
// substrings, no semver pre-release) is a release under both, and a
// hypothetical tag whose digits happen to contain a marker differs. The
// publishing gate uses IsPrerelease; this helper exists for tooling that
// wants semver-accurate classification.
func IsSemverPrerelease(tag string) (bool, error) {
	v, err := semver.NewVersion(strings.TrimPrefix(tag, "v"))
	if err != nil {
		return false, fmt.Errorf("tag %q is not a semantic version tag: %w", tag, err)
	}
	return v.Prerelease() != "" || v.Metadata() != "", nil
}

// Change is one entry in a release's notes.
type Change struct {
	// Summary is the one-line description, typically the commit subject.
	Summary string

	// Category groups the change in the notes, e.g. "Added" or "Fixed".
	// Uncategorized changes land under "Changed".
	Category string
}

// noteCategoryOrder fixes the section order of generated notes.
var noteCategoryOrder = []string{"Added", "Changed", "Fixed", "Removed"}

// BuildNotes renders markdown release notes for a release from its changes.
// Pre-releases get a warning banner noting they are not published to the
// package index.
func BuildNotes(rel Release, changes []Change) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n", rel.Tag)
	if rel.Prerelease {
		sb.WriteString("\n> Pre-release: not published to the package index.\n")
	}

	byCategory := make(map[string][]Change)
	for _, ch := range changes {
		cat := ch.Category
		if cat == "" {
			cat = "Changed"
		}
		byCategory[cat] = append(byCategory[cat], ch)
	}

	categories := make([]string, 0, len(byCategory))
	for _, cat := range noteCategoryOrder {
		if _, ok := byCategory[cat]; ok {
			categories = append(categories, cat)
		}
	}
	var extra []string
	for cat := range byCategory {
		if !containsString(noteCategoryOrder, cat) {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	categories = append(categories, extra...)

	for _, cat := range categories {
		fmt.Fprintf(&sb, "\n### %s\n\n", cat)
		for _, ch := range byCategory[cat] {
			fmt.Fprintf(&sb, "- %s\n", ch.Summary)
		}
	}
	return sb.String()
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
