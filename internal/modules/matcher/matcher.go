package matcher

import (
	"strings"

	"github.com/justinchung712/swe-repo-notify/internal/models"
)

// RepoKind identifies which tracked job board a posting came from.
type RepoKind string

const (
	RepoNewGrad    RepoKind = "new_grad"
	RepoInternship RepoKind = "internship"
)

// Posting is the slice of a job listing the matcher looks at. Postings are
// produced by an external ingestion pipeline and are not persisted here.
type Posting struct {
	ID        string   `json:"id"`
	Repo      RepoKind `json:"repo"`
	Title     string   `json:"title"`
	Company   string   `json:"company"`
	TechStack string   `json:"tech_stack"`
	Locations []string `json:"locations"`
	URL       string   `json:"url"`
}

// Matches decides whether a posting satisfies a subscriber's preferences.
//
// Order: repo gate, then receive_all, then keywords. Keyword fields are
// compared against their corresponding posting attribute only (role against
// the title, tech against the tech-stack text, location against any listed
// location); a single hit in any non-empty field is a match. Empty fields
// impose no constraint, but a set with all three fields empty and
// receive_all off matches nothing.
//
// This function is a stable contract: dispatch behavior must be exactly
// reproducible from the stored preference set.
func Matches(p Posting, prefs *models.PreferenceSetModel) bool {
	if prefs == nil {
		return false
	}

	switch p.Repo {
	case RepoNewGrad:
		if !prefs.SubscribeNewGrad {
			return false
		}
	case RepoInternship:
		if !prefs.SubscribeInternship {
			return false
		}
	default:
		return false
	}

	if prefs.ReceiveAll {
		return true
	}

	if len(prefs.RoleKeywords) == 0 && len(prefs.TechKeywords) == 0 && len(prefs.LocationKeywords) == 0 {
		return false
	}

	if anyKeywordIn(prefs.RoleKeywords, p.Title) {
		return true
	}
	if anyKeywordIn(prefs.TechKeywords, p.TechStack) {
		return true
	}
	return locationHit(prefs.LocationKeywords, p.Locations)
}

// norm lower-cases and collapses runs of whitespace, so that
// "New  York" matches "new york, ny".
func norm(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// anyKeywordIn reports whether any keyword appears as a substring of text.
func anyKeywordIn(keywords []string, text string) bool {
	if len(keywords) == 0 {
		return false
	}
	t := norm(text)
	if t == "" {
		return false
	}
	for _, kw := range keywords {
		k := norm(kw)
		if k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}

// locationHit requires at least one keyword contained in at least one of the
// posting's locations, e.g. "new york" hits "New York, NY" and "remote"
// hits "Remote".
func locationHit(keywords, locations []string) bool {
	if len(keywords) == 0 {
		return false
	}
	for _, loc := range locations {
		if anyKeywordIn(keywords, loc) {
			return true
		}
	}
	return false
}
