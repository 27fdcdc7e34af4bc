package event

import "time"

type Type string

const (
	TypeAccountRegistered   Type = "account.registered"
	TypeAccountCreatedOAuth Type = "account.created_oauth"
	TypeLoginSucceeded      Type = "login.succeeded"
	TypeLoginFailed         Type = "login.failed"
	TypeSessionIssued       Type = "session.issued"
	TypeSessionRefreshed    Type = "session.refreshed"
	TypeSessionRejected     Type = "session.refresh_rejected"
	TypeSessionRevoked      Type = "session.revoked"
	TypeCodeIssued          Type = "verification.code_issued"
	TypeCodeChecked         Type = "verification.code_checked"
	TypePasswordReset       Type = "password.reset"
	TypeAffiliationVerified Type = "affiliation.verified"
	TypeAffiliationUnlinked Type = "affiliation.unlinked"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	ActorID   string    `json:"actor_id,omitempty"`
	Status    string    `json:"status"`
	Resource  string    `json:"resource,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // channel and unsubscribe function
}
