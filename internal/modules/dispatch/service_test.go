package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinchung712/swe-repo-notify/internal/models"
	"github.com/justinchung712/swe-repo-notify/internal/modules/matcher"
	"github.com/justinchung712/swe-repo-notify/internal/modules/token"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/deliverq"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/testutil"
)

type fakeDeliverer struct {
	tasks []deliverq.Task
}

func (f *fakeDeliverer) Enqueue(_ context.Context, task deliverq.Task) error {
	f.tasks = append(f.tasks, task)
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeDeliverer) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	deliver := &fakeDeliverer{}
	svc := NewService(db, token.NewService(db), deliver, "https://notify.example.com", zap.NewNop())
	return svc, db, deliver
}

type seedOpts struct {
	email    string
	phone    string
	verified bool
	sms      bool
	prefs    *models.PreferenceSetModel
}

func seed(t *testing.T, db *gorm.DB, o seedOpts) *models.SubscriberModel {
	t.Helper()
	sub := &models.SubscriberModel{
		Verified:    o.verified,
		NotifyEmail: o.email != "",
		NotifySMS:   o.sms,
	}
	if o.email != "" {
		sub.Email = &o.email
	}
	if o.phone != "" {
		sub.Phone = &o.phone
	}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to seed subscriber: %v", err)
	}
	if o.prefs != nil {
		o.prefs.SubscriberID = sub.ID
		if err := db.Create(o.prefs).Error; err != nil {
			t.Fatalf("failed to seed prefs: %v", err)
		}
	}
	return sub
}

func postings() []matcher.Posting {
	return []matcher.Posting{
		{
			ID:        "ng-1",
			Repo:      matcher.RepoNewGrad,
			Title:     "Backend Engineer",
			Company:   "Acme",
			TechStack: "Go, PostgreSQL",
			Locations: []string{"Remote"},
			URL:       "https://jobs.example.com/ng-1",
		},
		{
			ID:        "ng-2",
			Repo:      matcher.RepoNewGrad,
			Title:     "Frontend Engineer",
			Company:   "Umbrella",
			TechStack: "TypeScript, React",
			Locations: []string{"New York, NY"},
			URL:       "https://jobs.example.com/ng-2",
		},
	}
}

func TestRunRejectsUnknownRepo(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Run(context.Background(), matcher.RepoKind("other"), "Other", postings())
	if !errors.Is(err, ErrUnknownRepo) {
		t.Fatalf("Run error = %v, want ErrUnknownRepo", err)
	}
}

func TestRunOneSummaryPerSubscriber(t *testing.T) {
	svc, db, deliver := newTestService(t)

	seed(t, db, seedOpts{
		email:    "alice@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, ReceiveAll: true},
	})

	stats, err := svc.Run(context.Background(), matcher.RepoNewGrad, "New Grad", postings())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.SubscribersNotified != 1 {
		t.Fatalf("subscribers notified = %d, want 1", stats.SubscribersNotified)
	}
	if stats.PostingsSent != 2 {
		t.Fatalf("postings sent = %d, want 2", stats.PostingsSent)
	}

	// Both matching postings ride in one email summary.
	if len(deliver.tasks) != 1 {
		t.Fatalf("delivered tasks = %d, want 1", len(deliver.tasks))
	}
	task := deliver.tasks[0]
	if task.Channel != deliverq.ChannelEmail {
		t.Fatalf("channel = %q, want email", task.Channel)
	}
	if !strings.Contains(task.Text, "Backend Engineer") || !strings.Contains(task.Text, "Frontend Engineer") {
		t.Fatalf("summary body incomplete: %q", task.Text)
	}
	if !strings.Contains(task.Text, "/edit?") || !strings.Contains(task.Text, "/unsubscribe?") {
		t.Fatal("summary must carry edit and unsubscribe links")
	}
	if !strings.Contains(task.Subject, "2 new matches") {
		t.Fatalf("subject = %q", task.Subject)
	}
}

func TestRunNeverNotifiesTwiceForAPosting(t *testing.T) {
	svc, db, deliver := newTestService(t)

	seed(t, db, seedOpts{
		email:    "alice@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, ReceiveAll: true},
	})

	ctx := context.Background()
	if _, err := svc.Run(ctx, matcher.RepoNewGrad, "New Grad", postings()); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	deliver.tasks = nil

	stats, err := svc.Run(ctx, matcher.RepoNewGrad, "New Grad", postings())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if stats.SubscribersNotified != 0 || stats.PostingsSent != 0 {
		t.Fatalf("repeat run stats = %+v, want all zero", stats)
	}
	if len(deliver.tasks) != 0 {
		t.Fatal("repeat run must deliver nothing")
	}
}

func TestRunSkipsIneligibleSubscribers(t *testing.T) {
	svc, db, deliver := newTestService(t)

	prefs := func() *models.PreferenceSetModel {
		return &models.PreferenceSetModel{SubscribeNewGrad: true, ReceiveAll: true}
	}

	// Unverified.
	seed(t, db, seedOpts{email: "unverified@example.com", prefs: prefs()})
	// No channel enabled.
	noChan := seed(t, db, seedOpts{email: "off@example.com", verified: true, prefs: prefs()})
	if err := db.Model(noChan).Update("notify_email", false).Error; err != nil {
		t.Fatalf("failed to disable channel: %v", err)
	}
	// Verified but no preference set stored.
	seed(t, db, seedOpts{email: "empty@example.com", verified: true})
	// Wrong board.
	seed(t, db, seedOpts{
		email:    "intern@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeInternship: true, ReceiveAll: true},
	})
	// Keywords that miss everything.
	seed(t, db, seedOpts{
		email:    "picky@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, RoleKeywords: models.StringArray{"compiler"}},
	})

	stats, err := svc.Run(context.Background(), matcher.RepoNewGrad, "New Grad", postings())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.SubscribersNotified != 0 {
		t.Fatalf("subscribers notified = %d, want 0", stats.SubscribersNotified)
	}
	if len(deliver.tasks) != 0 {
		t.Fatalf("tasks delivered to ineligible subscribers: %d", len(deliver.tasks))
	}
}

func TestRunFiltersPerSubscriber(t *testing.T) {
	svc, db, deliver := newTestService(t)

	seed(t, db, seedOpts{
		email:    "backend@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, RoleKeywords: models.StringArray{"backend"}},
	})
	seed(t, db, seedOpts{
		email:    "all@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, ReceiveAll: true},
	})

	stats, err := svc.Run(context.Background(), matcher.RepoNewGrad, "New Grad", postings())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.SubscribersNotified != 2 {
		t.Fatalf("subscribers notified = %d, want 2", stats.SubscribersNotified)
	}
	if stats.PostingsSent != 3 {
		t.Fatalf("postings sent = %d, want 3 (1 filtered + 2 receive_all)", stats.PostingsSent)
	}

	for _, task := range deliver.tasks {
		if task.To == "backend@example.com" && strings.Contains(task.Text, "Frontend Engineer") {
			t.Fatal("keyword subscriber received a non-matching posting")
		}
	}
}

func TestRunDeliversSMS(t *testing.T) {
	svc, db, deliver := newTestService(t)

	seed(t, db, seedOpts{
		phone:    "+14155550100",
		sms:      true,
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, ReceiveAll: true},
	})

	if _, err := svc.Run(context.Background(), matcher.RepoNewGrad, "New Grad", postings()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(deliver.tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(deliver.tasks))
	}
	task := deliver.tasks[0]
	if task.Channel != deliverq.ChannelSMS || task.To != "+14155550100" {
		t.Fatalf("task = %+v", task)
	}
	if !strings.Contains(task.Text, "reply STOP") {
		t.Fatal("sms body must carry the STOP notice")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	svc, db, deliver := newTestService(t)

	seed(t, db, seedOpts{
		email:    "alice@example.com",
		verified: true,
		prefs:    &models.PreferenceSetModel{SubscribeNewGrad: true, ReceiveAll: true},
	})

	stats, err := svc.Run(context.Background(), matcher.RepoNewGrad, "New Grad", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.PostingsConsidered != 0 || len(deliver.tasks) != 0 {
		t.Fatalf("empty batch produced work: %+v, %d tasks", stats, len(deliver.tasks))
	}
}
