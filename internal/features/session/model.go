package session

import "time"

// Credentials is the opaque credential bundle passed through to SurveyCTO.
// Scoped per session, never stored globally.
type Credentials struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ServerURL string `json:"server_url"`
}

// SessionInfo is one authenticated SurveyCTO session
type SessionInfo struct {
	ID          string
	Credentials Credentials
	ExpiresAt   time.Time
}

type CreateSessionRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	ServerURL string `json:"server_url"`
}

type SessionResponse struct {
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
