package matcher

import (
	"testing"

	"github.com/justinchung712/swe-repo-notify/internal/models"
)

func prefs(mutate func(*models.PreferenceSetModel)) *models.PreferenceSetModel {
	p := &models.PreferenceSetModel{
		SubscribeNewGrad:    true,
		SubscribeInternship: true,
	}
	if mutate != nil {
		mutate(p)
	}
	return p
}

func TestMatchesRepoGate(t *testing.T) {
	posting := Posting{ID: "p1", Repo: RepoNewGrad, Title: "Software Engineer"}

	p := prefs(func(p *models.PreferenceSetModel) {
		p.SubscribeNewGrad = false
		p.ReceiveAll = true
	})
	if Matches(posting, p) {
		t.Fatal("posting from a disabled repo must not match even with receive_all")
	}

	p = prefs(func(p *models.PreferenceSetModel) {
		p.SubscribeInternship = false
		p.ReceiveAll = true
	})
	if !Matches(posting, p) {
		t.Fatal("new-grad posting should pass when new_grad is enabled")
	}

	unknown := Posting{ID: "p2", Repo: RepoKind("other"), Title: "Software Engineer"}
	if Matches(unknown, prefs(func(p *models.PreferenceSetModel) { p.ReceiveAll = true })) {
		t.Fatal("posting from an unknown repo must never match")
	}
}

func TestMatchesReceiveAll(t *testing.T) {
	posting := Posting{ID: "p1", Repo: RepoInternship, Title: "Totally Unrelated"}
	p := prefs(func(p *models.PreferenceSetModel) {
		p.ReceiveAll = true
		p.RoleKeywords = models.StringArray{"no-such-role"}
	})
	if !Matches(posting, p) {
		t.Fatal("receive_all must match regardless of keywords")
	}
}

func TestMatchesAllFieldsEmpty(t *testing.T) {
	posting := Posting{ID: "p1", Repo: RepoNewGrad, Title: "Software Engineer"}
	if Matches(posting, prefs(nil)) {
		t.Fatal("all keyword fields empty with receive_all off must match nothing")
	}
}

func TestMatchesNilPrefs(t *testing.T) {
	if Matches(Posting{ID: "p1", Repo: RepoNewGrad}, nil) {
		t.Fatal("nil preference set must not match")
	}
}

func TestMatchesKeywordFields(t *testing.T) {
	posting := Posting{
		ID:        "p1",
		Repo:      RepoNewGrad,
		Title:     "Backend Engineer, Payments",
		TechStack: "Go, Kubernetes, PostgreSQL",
		Locations: []string{"New York, NY", "Remote"},
	}

	tests := []struct {
		name   string
		mutate func(*models.PreferenceSetModel)
		want   bool
	}{
		{
			name:   "role keyword hits title",
			mutate: func(p *models.PreferenceSetModel) { p.RoleKeywords = models.StringArray{"backend"} },
			want:   true,
		},
		{
			name:   "role keyword does not look at tech stack",
			mutate: func(p *models.PreferenceSetModel) { p.RoleKeywords = models.StringArray{"kubernetes"} },
			want:   false,
		},
		{
			name:   "tech keyword hits tech stack",
			mutate: func(p *models.PreferenceSetModel) { p.TechKeywords = models.StringArray{"postgresql"} },
			want:   true,
		},
		{
			name:   "location keyword hits any listed location",
			mutate: func(p *models.PreferenceSetModel) { p.LocationKeywords = models.StringArray{"remote"} },
			want:   true,
		},
		{
			name: "one hit among several misses is enough",
			mutate: func(p *models.PreferenceSetModel) {
				p.RoleKeywords = models.StringArray{"frontend"}
				p.TechKeywords = models.StringArray{"rust"}
				p.LocationKeywords = models.StringArray{"new york"}
			},
			want: true,
		},
		{
			name: "all non-empty fields miss",
			mutate: func(p *models.PreferenceSetModel) {
				p.RoleKeywords = models.StringArray{"frontend"}
				p.TechKeywords = models.StringArray{"rust"}
				p.LocationKeywords = models.StringArray{"london"}
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(posting, prefs(tt.mutate)); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchesNormalization(t *testing.T) {
	posting := Posting{
		ID:        "p1",
		Repo:      RepoNewGrad,
		Title:     "Senior  SOFTWARE\tEngineer",
		Locations: []string{"San  Francisco, CA"},
	}

	p := prefs(func(p *models.PreferenceSetModel) {
		p.RoleKeywords = models.StringArray{"software engineer"}
	})
	if !Matches(posting, p) {
		t.Fatal("matching must be case-insensitive and whitespace-collapsed")
	}

	p = prefs(func(p *models.PreferenceSetModel) {
		p.LocationKeywords = models.StringArray{"san francisco"}
	})
	if !Matches(posting, p) {
		t.Fatal("location matching must collapse interior whitespace")
	}
}

func TestMatchesSubstringSemantics(t *testing.T) {
	posting := Posting{ID: "p1", Repo: RepoNewGrad, Title: "DevOps Engineering Intern"}
	p := prefs(func(p *models.PreferenceSetModel) {
		p.RoleKeywords = models.StringArray{"engineer"}
	})
	// Plain substring: "engineer" is contained in "engineering".
	if !Matches(posting, p) {
		t.Fatal("keywords match as substrings, not whole words")
	}
}
