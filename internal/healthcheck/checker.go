package healthcheck

import "context"

const (
	// StatusOK indicates check passed.
	StatusOK = "ok"
	// StatusWarn indicates check completed with warning.
	StatusWarn = "warn"
	// StatusError indicates check failed.
	StatusError = "error"
	// StatusUnknown indicates check result is not yet known.
	StatusUnknown = "unknown"
)

// CheckResult is one runtime check item produced by a checker.
type CheckResult struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Subtitle string         `json:"subtitle,omitempty"`
	Status   string         `json:"status"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Checker evaluates one or more runtime checks.
type Checker interface {
	ListChecks(ctx context.Context) []CheckResult
}
