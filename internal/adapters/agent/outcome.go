package agent

import "github.com/okian/scout/internal/domain/result"

// Error codes the extraction agent reports, plus the transport-level
// codes this client synthesizes.
const (
	CodeUnreadableFormat = "UNREADABLE_FORMAT"
	CodeSiteBlocked      = "SITE_BLOCKED"
	CodeLayoutChanged    = "LAYOUT_CHANGED"
	CodeTimeout          = "TIMEOUT"
	CodeConnectionError  = "CONNECTION_ERROR"
	CodeModelNotFound    = "MODEL_NOT_FOUND"
)

// Outcome is the sealed result of one extraction attempt. Exactly one
// of Success, NotFound, or Failure comes back from Extract.
type Outcome interface {
	outcome()
}

// Success carries a normalized extraction result.
type Success struct {
	Result result.Result
}

// NotFound means the agent reached the source but the model is absent.
type NotFound struct {
	Message string
}

// Failure means the extraction could not complete.
type Failure struct {
	Code    string
	Message string
}

func (Success) outcome()  {}
func (NotFound) outcome() {}
func (Failure) outcome()  {}
