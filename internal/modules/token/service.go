package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/justinchung712/swe-repo-notify/internal/models"
)

// Service issues and redeems the single-use, purpose-scoped link tokens
// that gate verify/edit/unsubscribe operations. Tokens are strictly
// single-use for every purpose; a resubmitted link fails and re-issuance
// is the retry path.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Issue creates a fresh token for the subscriber and revokes any prior
// unconsumed token of the same purpose, so only the newest delivered link
// works.
func (s *Service) Issue(subscriberID string, purpose models.TokenPurpose) (*models.TokenModel, error) {
	value, err := randomValue()
	if err != nil {
		return nil, err
	}

	tok := &models.TokenModel{
		Value:        value,
		SubscriberID: subscriberID,
		Purpose:      purpose,
		ExpiresAt:    s.now().Add(TTL),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TokenModel{}).
			Where("subscriber_id = ? AND purpose = ? AND consumed = ? AND revoked = ?",
				subscriberID, purpose, false, false).
			Update("revoked", true).Error; err != nil {
			return err
		}
		return tx.Create(tok).Error
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Redeem validates a token value against the expected purpose and, when
// valid, atomically marks it consumed and returns the owning subscriber.
// The consumption check and mark are one guarded UPDATE so two concurrent
// redemptions can never both succeed.
func (s *Service) Redeem(value string, purpose models.TokenPurpose) (*models.SubscriberModel, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}

	var tok models.TokenModel
	if err := s.db.Where("value = ?", value).First(&tok).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	switch {
	case tok.Purpose != purpose:
		return nil, ErrTokenPurpose
	case tok.Revoked:
		return nil, ErrTokenRevoked
	case tok.Consumed:
		return nil, ErrTokenUsed
	case s.now().After(tok.ExpiresAt):
		return nil, ErrTokenExpired
	}

	res := s.db.Model(&models.TokenModel{}).
		Where("id = ? AND consumed = ? AND revoked = ?", tok.ID, false, false).
		Update("consumed", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the race to a concurrent redemption.
		return nil, ErrTokenUsed
	}

	var sub models.SubscriberModel
	if err := s.db.First(&sub, "id = ?", tok.SubscriberID).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// PurgeStale deletes consumed, revoked and long-expired tokens. Expiry is
// enforced lazily at redemption; this is housekeeping only.
func (s *Service) PurgeStale(olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.Unscoped().
		Where("consumed = ? OR revoked = ? OR expires_at < ?", true, true, cutoff).
		Where("created_at < ?", cutoff).
		Delete(&models.TokenModel{})
	return res.RowsAffected, res.Error
}

func randomValue() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
