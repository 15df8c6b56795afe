package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justinchung712/swe-repo-notify/internal/models"
	"github.com/justinchung712/swe-repo-notify/internal/modules/matcher"
	"github.com/justinchung712/swe-repo-notify/internal/modules/token"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/deliverq"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/links"
)

// Deliverer enqueues an outbound message; implemented by deliverq.Queue.
type Deliverer interface {
	Enqueue(ctx context.Context, task deliverq.Task) error
}

// Service is the notification side of the dispatch pipeline: given a batch
// of new postings for one board, it matches them against every active
// verified subscriber, dedupes per (subscriber, posting), and sends at most
// one summary per subscriber per run. Posting ingestion lives outside this
// service; batches arrive through the admin API.
type Service struct {
	db      *gorm.DB
	tokens  *token.Service
	deliver Deliverer
	baseURL string
	logger  *zap.Logger
}

func NewService(db *gorm.DB, tokenSvc *token.Service, deliver Deliverer, baseURL string, logger *zap.Logger) *Service {
	return &Service{db: db, tokens: tokenSvc, deliver: deliver, baseURL: baseURL, logger: logger}
}

// Run dispatches one batch of postings for a board.
func (s *Service) Run(ctx context.Context, repo matcher.RepoKind, label string, postings []matcher.Posting) (Stats, error) {
	stats := Stats{Repo: string(repo), PostingsConsidered: len(postings)}
	if repo != matcher.RepoNewGrad && repo != matcher.RepoInternship {
		return stats, fmt.Errorf("%w: %q", ErrUnknownRepo, repo)
	}
	if len(postings) == 0 {
		return stats, nil
	}

	var subs []models.SubscriberModel
	if err := s.db.
		Where("verified = ?", true).
		Where("notify_email = ? OR notify_sms = ?", true, true).
		Find(&subs).Error; err != nil {
		return stats, err
	}

	for i := range subs {
		sub := &subs[i]
		prefs, err := s.prefsFor(sub.ID)
		if err != nil {
			return stats, err
		}
		if prefs == nil {
			continue
		}

		var fresh []matcher.Posting
		for _, p := range postings {
			if p.Repo != repo || !matcher.Matches(p, prefs) {
				continue
			}
			sent, err := s.markSent(sub.ID, p.ID)
			if err != nil {
				return stats, err
			}
			if sent {
				fresh = append(fresh, p)
			}
		}
		if len(fresh) == 0 {
			continue
		}

		s.notify(ctx, sub, fresh, label)
		stats.SubscribersNotified++
		stats.PostingsSent += len(fresh)
	}

	s.logger.Info("dispatch run complete",
		zap.String("repo", string(repo)),
		zap.Int("postings", stats.PostingsConsidered),
		zap.Int("subscribers_notified", stats.SubscribersNotified),
		zap.Int("postings_sent", stats.PostingsSent),
	)
	return stats, nil
}

func (s *Service) prefsFor(subscriberID string) (*models.PreferenceSetModel, error) {
	var set models.PreferenceSetModel
	err := s.db.Where("subscriber_id = ?", subscriberID).First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// markSent records the (subscriber, posting) pair, returning false when it
// was already recorded by an earlier run. Marking happens before sending so
// a crash can only under-notify, never double-notify.
func (s *Service) markSent(subscriberID, postingID string) (bool, error) {
	row := models.SentNotificationModel{
		SubscriberID: subscriberID,
		PostingID:    postingID,
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// notify enqueues one summary per enabled channel. Each summary carries a
// fresh edit link and unsubscribe link.
func (s *Service) notify(ctx context.Context, sub *models.SubscriberModel, jobs []matcher.Posting, label string) {
	editLink := s.link(sub.ID, models.TokenPurposeEdit, "/edit")
	unsubLink := s.link(sub.ID, models.TokenPurposeUnsubscribe, "/unsubscribe")

	subject := fmt.Sprintf("[%s] %d new %s for you", label, len(jobs), plural(len(jobs)))
	text := textBody(jobs, label, editLink, unsubLink)

	if sub.NotifyEmail && sub.Email != nil {
		s.enqueue(ctx, deliverq.Task{
			Channel: deliverq.ChannelEmail,
			To:      *sub.Email,
			Subject: subject,
			HTML:    htmlBody(jobs, label, editLink, unsubLink),
			Text:    text,
		})
	}
	if sub.NotifySMS && sub.Phone != nil {
		s.enqueue(ctx, deliverq.Task{
			Channel: deliverq.ChannelSMS,
			To:      *sub.Phone,
			Text:    text,
		})
	}
}

func (s *Service) link(subscriberID string, purpose models.TokenPurpose, path string) string {
	tok, err := s.tokens.Issue(subscriberID, purpose)
	if err != nil {
		s.logger.Error("token issuance failed",
			zap.String("subscriber_id", subscriberID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return ""
	}
	url, err := links.BuildTokenURL(s.baseURL, path, tok.Value)
	if err != nil {
		s.logger.Error("link build failed", zap.Error(err))
		return ""
	}
	return url
}

func (s *Service) enqueue(ctx context.Context, task deliverq.Task) {
	if err := s.deliver.Enqueue(ctx, task); err != nil {
		s.logger.Error("delivery enqueue failed", zap.String("channel", string(task.Channel)), zap.Error(err))
	}
}

func plural(n int) string {
	if n == 1 {
		return "match"
	}
	return "matches"
}

// textBody is SMS-safe and email-compatible plain text: one line per job.
func textBody(jobs []matcher.Posting, label, editLink, unsubLink string) string {
	lines := []string{fmt.Sprintf("%s: %d new %s", label, len(jobs), plural(len(jobs)))}
	for _, j := range jobs {
		loc := ""
		if len(j.Locations) > 0 {
			loc = " - " + strings.Join(j.Locations, ", ")
		}
		lines = append(lines, fmt.Sprintf("- %s @ %s%s -> %s", j.Title, j.Company, loc, j.URL))
	}
	lines = append(lines, "")
	if editLink != "" {
		lines = append(lines, "Edit your preferences: "+editLink)
	}
	if unsubLink != "" {
		lines = append(lines, "Unsubscribe: "+unsubLink)
	}
	lines = append(lines, "SMS: reply STOP to opt out.")
	return strings.Join(lines, "\n")
}

func htmlBody(jobs []matcher.Posting, label, editLink, unsubLink string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<div><p><strong>%s:</strong> %d new %s</p><ul>",
		html.EscapeString(label), len(jobs), plural(len(jobs)))
	for _, j := range jobs {
		loc := ""
		if len(j.Locations) > 0 {
			loc = " &middot; " + html.EscapeString(strings.Join(j.Locations, ", "))
		}
		fmt.Fprintf(&b, "<li><a href=%q>%s</a> @ %s%s</li>",
			j.URL, html.EscapeString(j.Title), html.EscapeString(j.Company), loc)
	}
	b.WriteString("</ul><p>")
	if editLink != "" {
		fmt.Fprintf(&b, "<a href=%q>Edit your preferences</a>", editLink)
	}
	if unsubLink != "" {
		if editLink != "" {
			b.WriteString(" &middot; ")
		}
		fmt.Fprintf(&b, "<a href=%q>Unsubscribe</a>", unsubLink)
	}
	b.WriteString("</p></div>")
	return b.String()
}
