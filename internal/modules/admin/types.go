package admin

import (
	"github.com/justinchung712/swe-repo-notify/internal/modules/matcher"
)

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// DispatchDTO is one batch of freshly ingested postings for a board.
type DispatchDTO struct {
	Repo     matcher.RepoKind  `json:"repo"     binding:"required"`
	Label    string            `json:"label"`
	Postings []matcher.Posting `json:"postings" binding:"required"`
}
