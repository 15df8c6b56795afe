package preference

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/justinchung712/swe-repo-notify/internal/models"
)

// Service stores one preference set per subscriber, replaced wholesale on
// every write.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Upsert replaces the subscriber's stored preference set with the given
// payload. Idempotent: repeating the same payload leaves the same state.
// Returned warnings are caller-visible but do not block the write.
func (s *Service) Upsert(subscriberID string, in Input) ([]string, error) {
	set := models.PreferenceSetModel{
		SubscriberID:        subscriberID,
		SubscribeNewGrad:    in.SubscribeNewGrad,
		SubscribeInternship: in.SubscribeInternship,
		ReceiveAll:          in.ReceiveAll,
		RoleKeywords:        normalizeKeywords(in.RoleKeywords),
		TechKeywords:        normalizeKeywords(in.TechKeywords),
		LocationKeywords:    normalizeKeywords(in.LocationKeywords),
	}

	for field, kws := range map[string]models.StringArray{
		"role_keywords":     set.RoleKeywords,
		"tech_keywords":     set.TechKeywords,
		"location_keywords": set.LocationKeywords,
	} {
		if len(kws) > maxKeywordsPerField {
			return nil, fmt.Errorf("%w: %s exceeds %d entries", ErrValidation, field, maxKeywordsPerField)
		}
	}

	var warnings []string
	if !in.SubscribeNewGrad && !in.SubscribeInternship {
		warnings = append(warnings, WarnNoRepoEnabled)
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscriber_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"subscribe_new_grad", "subscribe_internship", "receive_all",
			"role_keywords", "tech_keywords", "location_keywords", "updated_at",
		}),
	}).Create(&set).Error
	if err != nil {
		return nil, err
	}
	return warnings, nil
}

// Get returns the stored preference set for a subscriber.
func (s *Service) Get(subscriberID string) (*models.PreferenceSetModel, error) {
	var set models.PreferenceSetModel
	if err := s.db.Where("subscriber_id = ?", subscriberID).First(&set).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &set, nil
}

// normalizeKeywords trims, lower-cases and dedupes, dropping empties.
// First-seen order is preserved so round-trips are stable.
func normalizeKeywords(in []string) models.StringArray {
	out := make(models.StringArray, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
