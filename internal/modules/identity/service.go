package identity

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/justinchung712/swe-repo-notify/internal/models"
)

const lockStripes = 64

// Service maps an (email, phone) pair to a single canonical subscriber,
// creating or merging records as needed. Email and phone are independent
// join keys, not a composite key: a request is resolved to an existing
// record whenever either key matches one.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	locks  [lockStripes]sync.Mutex
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone trims a phone number and strips interior spaces and
// dashes; the result must be E.164.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	return phone
}

func normalizePair(email, phone string) (string, string, error) {
	email = NormalizeEmail(email)
	phone = NormalizePhone(phone)
	if email == "" && phone == "" {
		return "", "", ErrInvalidInput
	}
	if phone != "" && !phoneRe.MatchString(phone) {
		return "", "", fmt.Errorf("%w: phone must be E.164", ErrInvalidInput)
	}
	return email, phone, nil
}

// Find looks up an existing subscriber by email or phone without creating
// anything. Returns (nil, nil) when no record matches.
func (s *Service) Find(email, phone string) (*models.SubscriberModel, error) {
	email, phone, err := normalizePair(email, phone)
	if err != nil {
		return nil, err
	}
	byEmail, byPhone, err := s.lookup(s.db, email, phone)
	if err != nil {
		return nil, err
	}
	if byEmail != nil {
		return byEmail, nil
	}
	return byPhone, nil
}

// Resolve returns the canonical subscriber for the given contact pair,
// creating a record (with the given notify defaults) when neither key
// matches, and merging when the keys independently match two different
// records. The created flag reports whether a new record was made.
//
// Resolution for the same contact keys is serialized through striped locks,
// with the unique indexes on subscribers(email) and subscribers(phone) as
// the backstop; a duplicate-key race is retried once.
func (s *Service) Resolve(email, phone string, notifyEmail, notifySMS bool) (*models.SubscriberModel, bool, error) {
	email, phone, err := normalizePair(email, phone)
	if err != nil {
		return nil, false, err
	}

	unlock := s.lockKeys(email, phone)
	defer unlock()

	sub, created, err := s.resolveOnce(email, phone, notifyEmail, notifySMS)
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		sub, created, err = s.resolveOnce(email, phone, notifyEmail, notifySMS)
		if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, ErrConflict
		}
	}
	return sub, created, err
}

func (s *Service) resolveOnce(email, phone string, notifyEmail, notifySMS bool) (*models.SubscriberModel, bool, error) {
	var out *models.SubscriberModel
	created := false

	err := s.db.Transaction(func(tx *gorm.DB) error {
		byEmail, byPhone, err := s.lookup(tx, email, phone)
		if err != nil {
			return err
		}

		switch {
		case byEmail == nil && byPhone == nil:
			sub := &models.SubscriberModel{
				NotifyEmail: notifyEmail,
				NotifySMS:   notifySMS,
			}
			if email != "" {
				sub.Email = &email
			}
			if phone != "" {
				sub.Phone = &phone
			}
			if err := tx.Create(sub).Error; err != nil {
				return err
			}
			out = sub
			created = true
			return nil

		case byEmail != nil && byPhone != nil && byEmail.ID != byPhone.ID:
			survivor, err := s.merge(tx, byEmail, byPhone)
			if err != nil {
				return err
			}
			out = survivor
			return nil

		default:
			sub := byEmail
			if sub == nil {
				sub = byPhone
			}
			return s.fillContact(tx, sub, email, phone, &out)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

// fillContact attaches a newly supplied contact key to an existing record
// that lacks it (e.g. a phone added to an email-only subscription).
func (s *Service) fillContact(tx *gorm.DB, sub *models.SubscriberModel, email, phone string, out **models.SubscriberModel) error {
	updates := map[string]interface{}{}
	if email != "" && sub.Email == nil {
		sub.Email = &email
		updates["email"] = email
	}
	if phone != "" && sub.Phone == nil {
		sub.Phone = &phone
		updates["phone"] = phone
	}
	if len(updates) > 0 {
		if err := tx.Model(sub).Updates(updates).Error; err != nil {
			return err
		}
	}
	*out = sub
	return nil
}

// merge folds two partially matching records into one. The older record
// survives; it inherits the other's missing contact key, notify channels
// are OR-ed, preference subscriptions and keywords are unioned, and the
// absorbed record's outstanding tokens are reassigned so that no delivered
// link dies with the merge.
func (s *Service) merge(tx *gorm.DB, a, b *models.SubscriberModel) (*models.SubscriberModel, error) {
	survivor, absorbed := a, b
	if b.CreatedAt.Before(a.CreatedAt) || (b.CreatedAt.Equal(a.CreatedAt) && b.ID < a.ID) {
		survivor, absorbed = b, a
	}

	updates := map[string]interface{}{}
	if survivor.Email == nil && absorbed.Email != nil {
		survivor.Email = absorbed.Email
		updates["email"] = *absorbed.Email
	}
	if survivor.Phone == nil && absorbed.Phone != nil {
		survivor.Phone = absorbed.Phone
		updates["phone"] = *absorbed.Phone
	}
	if absorbed.NotifyEmail && !survivor.NotifyEmail {
		survivor.NotifyEmail = true
		updates["notify_email"] = true
	}
	if absorbed.NotifySMS && !survivor.NotifySMS {
		survivor.NotifySMS = true
		updates["notify_sms"] = true
	}
	if absorbed.Verified && !survivor.Verified {
		survivor.Verified = true
		updates["verified"] = true
	}

	audit := &models.MergeAuditModel{
		SurvivorID:    survivor.ID,
		AbsorbedID:    absorbed.ID,
		AbsorbedEmail: absorbed.Email,
		AbsorbedPhone: absorbed.Phone,
	}
	if err := tx.Create(audit).Error; err != nil {
		return nil, err
	}

	// The absorbed row must be gone before the survivor claims its unique
	// contact keys. Hard delete: a soft-deleted row would still hold the
	// unique index entries.
	if err := tx.Unscoped().Delete(absorbed).Error; err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := tx.Model(survivor).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if err := tx.Model(&models.TokenModel{}).
		Where("subscriber_id = ?", absorbed.ID).
		Update("subscriber_id", survivor.ID).Error; err != nil {
		return nil, err
	}

	if err := s.mergePreferences(tx, survivor.ID, absorbed.ID); err != nil {
		return nil, err
	}

	s.logger.Info("merged duplicate subscribers",
		zap.String("survivor_id", survivor.ID),
		zap.String("absorbed_id", absorbed.ID),
	)
	return survivor, nil
}

func (s *Service) mergePreferences(tx *gorm.DB, survivorID, absorbedID string) error {
	var absorbed models.PreferenceSetModel
	err := tx.Where("subscriber_id = ?", absorbedID).First(&absorbed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var kept models.PreferenceSetModel
	err = tx.Where("subscriber_id = ?", survivorID).First(&kept).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Survivor had none; the absorbed set moves over whole.
		return tx.Model(&absorbed).Update("subscriber_id", survivorID).Error
	}
	if err != nil {
		return err
	}

	kept.SubscribeNewGrad = kept.SubscribeNewGrad || absorbed.SubscribeNewGrad
	kept.SubscribeInternship = kept.SubscribeInternship || absorbed.SubscribeInternship
	kept.ReceiveAll = kept.ReceiveAll || absorbed.ReceiveAll
	kept.RoleKeywords = unionKeywords(kept.RoleKeywords, absorbed.RoleKeywords)
	kept.TechKeywords = unionKeywords(kept.TechKeywords, absorbed.TechKeywords)
	kept.LocationKeywords = unionKeywords(kept.LocationKeywords, absorbed.LocationKeywords)

	if err := tx.Save(&kept).Error; err != nil {
		return err
	}
	return tx.Unscoped().Delete(&absorbed).Error
}

func unionKeywords(a, b models.StringArray) models.StringArray {
	seen := make(map[string]struct{}, len(a))
	out := make(models.StringArray, 0, len(a)+len(b))
	for _, kw := range a {
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	for _, kw := range b {
		if _, ok := seen[kw]; !ok {
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

func (s *Service) lookup(db *gorm.DB, email, phone string) (byEmail, byPhone *models.SubscriberModel, err error) {
	if email != "" {
		var sub models.SubscriberModel
		err := db.Where("email = ?", email).First(&sub).Error
		if err == nil {
			byEmail = &sub
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}
	if phone != "" {
		var sub models.SubscriberModel
		err := db.Where("phone = ?", phone).First(&sub).Error
		if err == nil {
			byPhone = &sub
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}
	return byEmail, byPhone, nil
}

// lockKeys serializes resolution per contact key across goroutines.
// Stripes are taken in ascending order to avoid lock-order inversion.
func (s *Service) lockKeys(keys ...string) func() {
	stripes := make([]int, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(key))
		stripes = append(stripes, int(h.Sum32()%lockStripes))
	}
	sort.Ints(stripes)

	locked := make([]int, 0, len(stripes))
	prev := -1
	for _, idx := range stripes {
		if idx == prev {
			continue
		}
		s.locks[idx].Lock()
		locked = append(locked, idx)
		prev = idx
	}
	return func() {
		for i := len(locked) - 1; i >= 0; i-- {
			s.locks[locked[i]].Unlock()
		}
	}
}
