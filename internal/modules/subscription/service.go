package subscription

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinchung712/swe-repo-notify/internal/models"
	"github.com/justinchung712/swe-repo-notify/internal/modules/identity"
	"github.com/justinchung712/swe-repo-notify/internal/modules/preference"
	"github.com/justinchung712/swe-repo-notify/internal/modules/token"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/deliverq"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/links"
)

// Deliverer enqueues an outbound message; implemented by deliverq.Queue.
// Delivery is fire-and-forget: enqueue failures are logged and never fail
// the caller-visible operation.
type Deliverer interface {
	Enqueue(ctx context.Context, task deliverq.Task) error
}

// Service composes identity resolution, preference storage and token
// issuance behind the four operations the front end calls.
type Service struct {
	db       *gorm.DB
	identity *identity.Service
	prefs    *preference.Service
	tokens   *token.Service
	deliver  Deliverer
	baseURL  string
	logger   *zap.Logger
}

func NewService(
	db *gorm.DB,
	identitySvc *identity.Service,
	prefSvc *preference.Service,
	tokenSvc *token.Service,
	deliver Deliverer,
	baseURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		db:       db,
		identity: identitySvc,
		prefs:    prefSvc,
		tokens:   tokenSvc,
		deliver:  deliver,
		baseURL:  baseURL,
		logger:   logger,
	}
}

// Subscribe resolves (or creates) the subscriber, replaces its preference
// set and updates its notify channels. New or still-unverified contacts get
// a fresh verify link; the status distinguishes only brand-new contacts.
func (s *Service) Subscribe(ctx context.Context, dto SubscribeDTO) (string, []string, error) {
	if !dto.NotifyEmail && !dto.NotifySMS {
		return "", nil, ErrNoChannel
	}

	sub, created, err := s.identity.Resolve(dto.Email, dto.Phone, dto.NotifyEmail, dto.NotifySMS)
	if err != nil {
		return "", nil, err
	}

	if sub.NotifyEmail != dto.NotifyEmail || sub.NotifySMS != dto.NotifySMS {
		sub.NotifyEmail = dto.NotifyEmail
		sub.NotifySMS = dto.NotifySMS
		if err := s.db.Model(sub).Updates(map[string]interface{}{
			"notify_email": dto.NotifyEmail,
			"notify_sms":   dto.NotifySMS,
		}).Error; err != nil {
			return "", nil, err
		}
	}

	warnings, err := s.prefs.Upsert(sub.ID, dto.Prefs.toInput())
	if err != nil {
		return "", nil, err
	}

	if !sub.Verified {
		s.sendLink(ctx, sub, models.TokenPurposeVerify)
	}

	if created {
		return StatusVerificationSent, warnings, nil
	}
	return StatusUpdated, warnings, nil
}

// RequestEditLink issues and delivers an edit token when the contact is a
// known verified subscriber, and does nothing otherwise. The caller gets
// the same answer either way; callers must not be able to probe which
// contacts are registered.
func (s *Service) RequestEditLink(ctx context.Context, dto RequestEditLinkDTO) error {
	sub, err := s.identity.Find(dto.Email, dto.Phone)
	if err != nil {
		// Malformed input is reported; a missing record is not.
		return err
	}
	if sub == nil || !sub.Verified {
		return nil
	}
	s.sendLink(ctx, sub, models.TokenPurposeEdit)
	return nil
}

// UpdatePrefs redeems an edit token and replaces the owner's preferences.
func (s *Service) UpdatePrefs(ctx context.Context, tokenValue string, prefs PrefsDTO) ([]string, error) {
	sub, err := s.tokens.Redeem(tokenValue, models.TokenPurposeEdit)
	if err != nil {
		return nil, err
	}
	return s.prefs.Upsert(sub.ID, prefs.toInput())
}

// UnsubscribeConfirm redeems an unsubscribe token and turns off the
// requested channels. Channels are only ever disabled here, never
// re-enabled; preferences stay stored so a later re-subscribe restores
// them. A subscriber with both channels off is inactive for dispatch.
func (s *Service) UnsubscribeConfirm(ctx context.Context, dto UnsubscribeConfirmDTO) error {
	sub, err := s.tokens.Redeem(dto.Token, models.TokenPurposeUnsubscribe)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if dto.DisableEmail && sub.NotifyEmail {
		updates["notify_email"] = false
	}
	if dto.DisableSMS && sub.NotifySMS {
		updates["notify_sms"] = false
	}
	if len(updates) == 0 {
		return nil
	}
	return s.db.Model(sub).Updates(updates).Error
}

// Verify redeems a verify token and marks the subscriber verified.
func (s *Service) Verify(ctx context.Context, tokenValue string) error {
	sub, err := s.tokens.Redeem(tokenValue, models.TokenPurposeVerify)
	if err != nil {
		return err
	}
	if sub.Verified {
		return nil
	}
	return s.db.Model(sub).Update("verified", true).Error
}

// sendLink issues a purpose token and enqueues its delivery to every
// contact the subscriber has. Failures are logged, never propagated: the
// operation that triggered the link must not fail because delivery did.
func (s *Service) sendLink(ctx context.Context, sub *models.SubscriberModel, purpose models.TokenPurpose) {
	tok, err := s.tokens.Issue(sub.ID, purpose)
	if err != nil {
		s.logger.Error("token issuance failed",
			zap.String("subscriber_id", sub.ID),
			zap.String("purpose", string(purpose)),
			zap.Error(err),
		)
		return
	}

	var path, subject string
	switch purpose {
	case models.TokenPurposeVerify:
		path, subject = "/verify", "Verify your subscription"
	case models.TokenPurposeEdit:
		path, subject = "/edit", "Edit your notification preferences"
	case models.TokenPurposeUnsubscribe:
		path, subject = "/unsubscribe", "Unsubscribe"
	}

	link, err := links.BuildTokenURL(s.baseURL, path, tok.Value)
	if err != nil {
		s.logger.Error("link build failed", zap.String("purpose", string(purpose)), zap.Error(err))
		return
	}
	body := fmt.Sprintf("Tap to continue: %s\nThis link expires in 15 minutes.", link)

	if sub.Email != nil {
		s.enqueue(ctx, deliverq.Task{
			Channel: deliverq.ChannelEmail,
			To:      *sub.Email,
			Subject: subject,
			Text:    body,
		})
	}
	if sub.Phone != nil {
		s.enqueue(ctx, deliverq.Task{
			Channel: deliverq.ChannelSMS,
			To:      *sub.Phone,
			Text:    body,
		})
	}
}

func (s *Service) enqueue(ctx context.Context, task deliverq.Task) {
	if err := s.deliver.Enqueue(ctx, task); err != nil {
		s.logger.Error("delivery enqueue failed", zap.String("channel", string(task.Channel)), zap.Error(err))
	}
}
