package models

// SubscriberModel is a contact receiving job-posting notifications,
// identified by email and/or phone. Both columns are nullable unique keys:
// either may be absent, but resolution never creates a row with neither.
type SubscriberModel struct {
	Base
	Email       *string `json:"email"        gorm:"uniqueIndex"`
	Phone       *string `json:"phone"        gorm:"uniqueIndex"` // E.164
	Verified    bool    `json:"verified"     gorm:"default:false"`
	NotifyEmail bool    `json:"notify_email" gorm:"default:false"`
	NotifySMS   bool    `json:"notify_sms"   gorm:"default:false"`
}

func (SubscriberModel) TableName() string { return "subscribers" }

// Active reports whether the subscriber still has a delivery channel
// enabled. Dispatch must skip inactive subscribers regardless of their
// stored preferences.
func (s *SubscriberModel) Active() bool {
	return s.NotifyEmail || s.NotifySMS
}

// PreferenceSetModel holds a subscriber's notification filters. Exactly one
// row per subscriber; updates replace the row wholesale, never patch it.
type PreferenceSetModel struct {
	Base
	SubscriberID        string      `json:"-"                    gorm:"type:char(36);uniqueIndex;not null"`
	SubscribeNewGrad    bool        `json:"subscribe_new_grad"   gorm:"default:false"`
	SubscribeInternship bool        `json:"subscribe_internship" gorm:"default:false"`
	ReceiveAll          bool        `json:"receive_all"          gorm:"default:false"`
	RoleKeywords        StringArray `json:"role_keywords"        gorm:"type:text"`
	TechKeywords        StringArray `json:"tech_keywords"        gorm:"type:text"`
	LocationKeywords    StringArray `json:"location_keywords"    gorm:"type:text"`
}

func (PreferenceSetModel) TableName() string { return "preference_sets" }

// MergeAuditModel records an identity merge: the absorbed subscriber's row
// is gone afterwards, so its contact details are copied here.
type MergeAuditModel struct {
	Base
	SurvivorID    string  `json:"survivor_id" gorm:"type:char(36);index;not null"`
	AbsorbedID    string  `json:"absorbed_id" gorm:"type:char(36);not null"`
	AbsorbedEmail *string `json:"absorbed_email"`
	AbsorbedPhone *string `json:"absorbed_phone"`
}

func (MergeAuditModel) TableName() string { return "merge_audits" }
