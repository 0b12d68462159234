package schemas

import (
	"regexp"
	"time"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidSessionID reports whether id satisfies the session naming rules.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// SessionInfo is the externally visible view of a session.
type SessionInfo struct {
	SessionID  string            `json:"session_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastAccess time.Time         `json:"last_access"`
	TTLSeconds int64             `json:"ttl_seconds"`
}
