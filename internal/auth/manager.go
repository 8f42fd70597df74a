// Package auth issues, validates, and revokes the opaque tokens every
// authenticated message carries. Tokens are plain UUID v4 values, never
// JWTs: this system has no passwords and no claims to encode, only an
// opaque identity to bind.
package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"league-coordinator/internal/models"
	"league-coordinator/internal/protocol"
)

// agentStore is the slice of *repositories.AgentRepository the manager
// needs; a narrow interface keeps the manager unit-testable without a
// live database.
type agentStore interface {
	GetByID(ctx context.Context, leagueID string, agentType models.AgentType, agentID string) (*models.AgentRegistration, error)
	GetByToken(ctx context.Context, token string) (*models.AgentRegistration, error)
	UpdateStatus(ctx context.Context, leagueID string, agentType models.AgentType, agentID string, status models.AgentStatus) error
}

// Identity is what validate/verify_sender resolve a token to.
type Identity struct {
	AgentID   string
	AgentType models.AgentType
}

// Sender is the envelope sender string this identity must present.
func (i Identity) Sender() string {
	return string(i.AgentType) + ":" + i.AgentID
}

// Manager issues, validates, and revokes opaque tokens, bound to sender
// identity. It is a process-wide singleton: mutations are serialized by
// mu, and lookups fall through to the repository so a
// restarted LM rebuilds the token table from persistence.
type Manager struct {
	mu         sync.Mutex
	byAgentKey map[string]string // "agentType:agentID" -> token, in-memory fast path
	agents     agentStore
}

func NewManager(agents agentStore) *Manager {
	return &Manager{
		byAgentKey: make(map[string]string),
		agents:     agents,
	}
}

func agentKey(agentType models.AgentType, agentID string) string {
	return string(agentType) + ":" + agentID
}

// Issue returns the token for (agentID, agentType): the cached one, else
// the one on the persisted registration, else a newly generated one that
// is only cached here (the caller stores it with the registration row).
// A second call for the same agent
// returns the same token unless Revoke was called in between — the
// idempotence registration retries rely on.
func (m *Manager) Issue(ctx context.Context, leagueID string, agentType models.AgentType, agentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := agentKey(agentType, agentID)
	if token, ok := m.byAgentKey[key]; ok {
		return token, nil
	}

	existing, err := m.agents.GetByID(ctx, leagueID, agentType, agentID)
	if err != nil {
		return "", fmt.Errorf("auth manager: lookup existing registration: %w", err)
	}
	if existing != nil {
		m.byAgentKey[key] = existing.AuthToken
		return existing.AuthToken, nil
	}

	token := uuid.New().String()
	m.byAgentKey[key] = token
	return token, nil
}

// Validate resolves a token to the identity it was issued to. A token
// whose persisted registration has been marked SHUTDOWN by Revoke no
// longer authenticates, even though the row itself is kept.
func (m *Manager) Validate(ctx context.Context, token string) (*Identity, error) {
	reg, err := m.agents.GetByToken(ctx, token)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeInvalidToken, "unknown or revoked token").Wrap(err)
	}
	if reg.Status == models.AgentShutdown {
		return nil, protocol.NewCodedError(protocol.CodeInvalidToken, "token has been revoked")
	}
	return &Identity{AgentID: reg.AgentID, AgentType: reg.AgentType}, nil
}

// VerifySender checks that the decoded token identity matches the
// envelope's sender string exactly.
func (m *Manager) VerifySender(ctx context.Context, token, sender string) (*Identity, error) {
	identity, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if identity.Sender() != sender {
		return nil, protocol.NewCodedError(protocol.CodeAuthSenderMismatch, "token identity does not match envelope sender").
			WithData(map[string]interface{}{"sender": sender})
	}
	return identity, nil
}

// Revoke removes the in-memory fast-path mapping for a token, so the next
// Issue for that agent mints a fresh one, and marks the persisted
// registration SHUTDOWN so Validate immediately stops accepting it. A
// token with no matching persisted row (never registered, or already
// gone) is a no-op rather than an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	m.mu.Lock()
	for k, v := range m.byAgentKey {
		if v == token {
			delete(m.byAgentKey, k)
			break
		}
	}
	m.mu.Unlock()

	reg, err := m.agents.GetByToken(ctx, token)
	if err != nil {
		return nil
	}
	return m.agents.UpdateStatus(ctx, reg.LeagueID, reg.AgentType, reg.AgentID, models.AgentShutdown)
}

// RevokeAgent removes the mapping for a specific agent identity and marks
// its persisted registration SHUTDOWN.
func (m *Manager) RevokeAgent(ctx context.Context, leagueID string, agentType models.AgentType, agentID string) error {
	m.mu.Lock()
	delete(m.byAgentKey, agentKey(agentType, agentID))
	m.mu.Unlock()
	return m.agents.UpdateStatus(ctx, leagueID, agentType, agentID, models.AgentShutdown)
}
