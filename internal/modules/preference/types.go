package preference

import "errors"

// Input is one wholesale preference payload. An omitted list field means
// "empty", never "unchanged": the stored set is always replaced in full.
type Input struct {
	SubscribeNewGrad    bool
	SubscribeInternship bool
	ReceiveAll          bool
	RoleKeywords        []string
	TechKeywords        []string
	LocationKeywords    []string
}

// maxKeywordsPerField bounds matcher cost per subscriber.
const maxKeywordsPerField = 100

// WarnNoRepoEnabled is returned to callers who store a set with neither
// board subscription on: legal, but nothing will ever be dispatched.
const WarnNoRepoEnabled = "no job board selected; you will not receive any notifications until one is enabled"

var (
	ErrValidation = errors.New("invalid preference set")
	ErrNotFound   = errors.New("preference set not found")
)
