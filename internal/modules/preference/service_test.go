package preference

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/justinchung712/swe-repo-notify/internal/models"
	"github.com/justinchung712/swe-repo-notify/internal/pkg/testutil"
	"gorm.io/gorm"
)

func createSubscriber(t *testing.T, db *gorm.DB) string {
	t.Helper()
	email := "bob@example.com"
	sub := &models.SubscriberModel{Email: &email, NotifyEmail: true}
	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("failed to create subscriber: %v", err)
	}
	return sub.ID
}

func TestUpsertNormalizesKeywords(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	subID := createSubscriber(t, db)

	warnings, err := svc.Upsert(subID, Input{
		SubscribeNewGrad: true,
		RoleKeywords:     []string{"  Backend ", "backend", "", "SRE", "sre "},
		TechKeywords:     []string{"Go", "  "},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	set, err := svc.Get(subID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if want := (models.StringArray{"backend", "sre"}); !reflect.DeepEqual(set.RoleKeywords, want) {
		t.Fatalf("role keywords = %v, want %v", set.RoleKeywords, want)
	}
	if want := (models.StringArray{"go"}); !reflect.DeepEqual(set.TechKeywords, want) {
		t.Fatalf("tech keywords = %v, want %v", set.TechKeywords, want)
	}
	if len(set.LocationKeywords) != 0 {
		t.Fatalf("location keywords = %v, want empty", set.LocationKeywords)
	}
}

func TestUpsertReplacesWholesale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	subID := createSubscriber(t, db)

	if _, err := svc.Upsert(subID, Input{
		SubscribeNewGrad: true,
		ReceiveAll:       true,
		RoleKeywords:     []string{"backend"},
		LocationKeywords: []string{"remote"},
	}); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	// Omitted fields mean empty, not unchanged.
	if _, err := svc.Upsert(subID, Input{
		SubscribeInternship: true,
		TechKeywords:        []string{"go"},
	}); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	set, err := svc.Get(subID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if set.SubscribeNewGrad || !set.SubscribeInternship || set.ReceiveAll {
		t.Fatalf("repo flags not replaced: %+v", set)
	}
	if len(set.RoleKeywords) != 0 || len(set.LocationKeywords) != 0 {
		t.Fatal("keyword fields from the prior write survived a replace")
	}
	if want := (models.StringArray{"go"}); !reflect.DeepEqual(set.TechKeywords, want) {
		t.Fatalf("tech keywords = %v, want %v", set.TechKeywords, want)
	}

	var count int64
	if err := db.Model(&models.PreferenceSetModel{}).Where("subscriber_id = ?", subID).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("preference rows = %d, want exactly 1", count)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	subID := createSubscriber(t, db)

	in := Input{
		SubscribeNewGrad: true,
		RoleKeywords:     []string{"backend", "platform"},
	}
	if _, err := svc.Upsert(subID, in); err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}
	first, err := svc.Get(subID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if _, err := svc.Upsert(subID, in); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	second, err := svc.Get(subID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if first.ID != second.ID {
		t.Fatal("repeat Upsert created a new row")
	}
	if !reflect.DeepEqual(first.RoleKeywords, second.RoleKeywords) {
		t.Fatalf("repeat Upsert changed keywords: %v vs %v", first.RoleKeywords, second.RoleKeywords)
	}
}

func TestUpsertKeywordCap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	subID := createSubscriber(t, db)

	over := make([]string, maxKeywordsPerField+1)
	for i := range over {
		over[i] = fmt.Sprintf("kw-%d", i)
	}
	_, err := svc.Upsert(subID, Input{SubscribeNewGrad: true, TechKeywords: over})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Upsert error = %v, want ErrValidation", err)
	}

	// Duplicates collapse before the cap applies.
	atCap := make([]string, 0, maxKeywordsPerField*2)
	for i := 0; i < maxKeywordsPerField; i++ {
		kw := fmt.Sprintf("kw-%d", i)
		atCap = append(atCap, kw, kw)
	}
	if _, err := svc.Upsert(subID, Input{SubscribeNewGrad: true, TechKeywords: atCap}); err != nil {
		t.Fatalf("Upsert at cap after dedupe failed: %v", err)
	}
}

func TestUpsertWarnsWhenNoRepoEnabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)
	subID := createSubscriber(t, db)

	warnings, err := svc.Upsert(subID, Input{ReceiveAll: true})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if len(warnings) != 1 || warnings[0] != WarnNoRepoEnabled {
		t.Fatalf("warnings = %v, want [%q]", warnings, WarnNoRepoEnabled)
	}

	// The set is stored anyway.
	if _, err := svc.Get(subID); err != nil {
		t.Fatalf("Get after warned Upsert failed: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewService(db)

	if _, err := svc.Get("00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}
}
