package subscription

import (
	"errors"

	"github.com/justinchung712/swe-repo-notify/internal/modules/preference"
)

// PrefsDTO mirrors the wire shape of a preference payload. List fields that
// the caller omits bind to nil and are stored as empty: payloads replace
// the stored set in full, they never patch it.
type PrefsDTO struct {
	SubscribeNewGrad    bool     `json:"subscribe_new_grad"`
	SubscribeInternship bool     `json:"subscribe_internship"`
	ReceiveAll          bool     `json:"receive_all"`
	TechKeywords        []string `json:"tech_keywords"`
	RoleKeywords        []string `json:"role_keywords"`
	LocationKeywords    []string `json:"location_keywords"`
}

func (d PrefsDTO) toInput() preference.Input {
	return preference.Input{
		SubscribeNewGrad:    d.SubscribeNewGrad,
		SubscribeInternship: d.SubscribeInternship,
		ReceiveAll:          d.ReceiveAll,
		TechKeywords:        d.TechKeywords,
		RoleKeywords:        d.RoleKeywords,
		LocationKeywords:    d.LocationKeywords,
	}
}

type SubscribeDTO struct {
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	NotifyEmail bool     `json:"notify_email"`
	NotifySMS   bool     `json:"notify_sms"`
	Prefs       PrefsDTO `json:"prefs"`
}

type RequestEditLinkDTO struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type UpdatePrefsDTO struct {
	Token string `json:"token" binding:"required"`
	PrefsDTO
}

type UnsubscribeConfirmDTO struct {
	Token        string `json:"token" binding:"required"`
	DisableEmail bool   `json:"disable_email"`
	DisableSMS   bool   `json:"disable_sms"`
}

// Subscribe statuses.
const (
	StatusVerificationSent = "verification_sent"
	StatusUpdated          = "updated"
)

// ErrNoChannel rejects a subscribe with every notify channel off.
var ErrNoChannel = errors.New("enable at least one notification channel")
