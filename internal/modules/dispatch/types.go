package dispatch

import "errors"

// Stats summarizes one dispatch run, for logs and the admin response.
type Stats struct {
	Repo                string `json:"repo"`
	PostingsConsidered  int    `json:"postings_considered"`
	SubscribersNotified int    `json:"subscribers_notified"`
	PostingsSent        int    `json:"postings_sent"`
}

// ErrUnknownRepo rejects a run for a board the matcher does not know.
var ErrUnknownRepo = errors.New("unknown repo kind")
