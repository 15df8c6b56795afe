package models

import "time"

// TokenPurpose scopes a link token to a single operation.
type TokenPurpose string

const (
	TokenPurposeVerify      TokenPurpose = "verify"
	TokenPurposeEdit        TokenPurpose = "edit"
	TokenPurposeUnsubscribe TokenPurpose = "unsubscribe"
)

// TokenModel is a single-use, time-bounded credential mailed (or texted) to
// a subscriber. Value is never logged. A token is redeemable iff it is not
// consumed, not revoked and not past ExpiresAt; expiry is evaluated lazily
// at redemption time.
type TokenModel struct {
	Base
	Value        string       `json:"-"          gorm:"uniqueIndex;not null"`
	SubscriberID string       `json:"-"          gorm:"type:char(36);index;not null"`
	Purpose      TokenPurpose `json:"purpose"    gorm:"type:varchar(16);index;not null"`
	ExpiresAt    time.Time    `json:"expires_at" gorm:"not null"`
	Consumed     bool         `json:"consumed"   gorm:"default:false"`
	Revoked      bool         `json:"revoked"    gorm:"default:false"` // superseded by a newer same-purpose token
}

func (TokenModel) TableName() string { return "tokens" }

// SentNotificationModel dedupes dispatch: at most one notification per
// (subscriber, posting) pair, ever.
type SentNotificationModel struct {
	Base
	SubscriberID string `json:"subscriber_id" gorm:"type:char(36);uniqueIndex:idx_sent_subscriber_posting;not null"`
	PostingID    string `json:"posting_id"    gorm:"uniqueIndex:idx_sent_subscriber_posting;not null"`
}

func (SentNotificationModel) TableName() string { return "sent_notifications" }
