package session

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"surveysync/pkg/utils"

	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("session token is invalid or expired")

type SessionService interface {
	Create(username, password, serverURL string) (token string, info *SessionInfo, err error)
	Resolve(sessionID string) (*SessionInfo, error)
}

type SessionServiceImpl struct {
	mu       sync.RWMutex
	sessions map[string]*SessionInfo
	ttl      time.Duration
}

func NewSessionService() SessionService {
	return &SessionServiceImpl{
		sessions: make(map[string]*SessionInfo),
		ttl:      time.Hour,
	}
}

func (s *SessionServiceImpl) Create(username, password, serverURL string) (string, *SessionInfo, error) {
	info := &SessionInfo{
		ID: uuid.NewString(),
		Credentials: Credentials{
			Username:  username,
			Password:  password,
			ServerURL: normalizeServerURL(serverURL),
		},
		ExpiresAt: time.Now().Add(s.ttl),
	}

	token, err := utils.GenerateSessionToken(info.ID, info.Credentials.ServerURL)
	if err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	s.sessions[info.ID] = info
	s.mu.Unlock()

	return token, info, nil
}

func (s *SessionServiceImpl) Resolve(sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	info, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}
	if time.Now().After(info.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}
	return info, nil
}

// normalizeServerURL defaults bare hostnames to https and strips trailing slashes
func normalizeServerURL(serverURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(serverURL), "/")
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		return "https://" + strings.Trim(trimmed, "/")
	}
	return trimmed
}
