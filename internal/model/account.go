package model

import (
	"strings"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is the narrow user record the auth flows read and write.
type Account struct {
	ID                      string    `json:"_id"`
	Username                string    `json:"username"`
	Email                   string    `json:"email"`
	PasswordHash            string    `json:"-"`
	GoogleID                string    `json:"-"`
	Name                    string    `json:"name,omitempty"`
	Picture                 string    `json:"picture,omitempty"`
	Roles                   []string  `json:"roles"`
	RefreshToken            string    `json:"-"`
	AffiliatedEmail         string    `json:"affiliatedEmail,omitempty"`
	AffiliatedEmailVerified bool      `json:"affiliatedEmailVerified"`
	CreatedAt               time.Time `json:"createdAt"`
	UpdatedAt               time.Time `json:"updatedAt"`
}

// AccessClaims is what an access token proves about its bearer.
type AccessClaims struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
}

type AuditEntry struct {
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id,omitempty"`
	Status     string    `json:"status"`
	Resource   string    `json:"resource,omitempty"`
	IP         string    `json:"ip,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// HasRole reports whether the token grants role, ignoring case and
// surrounding spaces.
func (c AccessClaims) HasRole(role string) bool {
	role = strings.TrimSpace(role)
	for _, granted := range c.Roles {
		if strings.EqualFold(granted, role) {
			return true
		}
	}
	return false
}
