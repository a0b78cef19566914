package grantInfo

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"share-service/internal/apperrors"
)

type Kind string

const (
	KindUser Kind = "user"
	KindLink Kind = "link"
)

// TokenLength is the length of a rendered share token: 32 random bytes,
// hex-encoded.
const TokenLength = 64

// Grant attaches one file to either a named grantee (KindUser) or an
// anonymous capability token (KindLink). Exactly one of GranteeID/Token is
// set, which the constructors enforce. Active only ever goes true -> false,
// through revocation.
type Grant struct {
	ID        uuid.UUID  `json:"id"`
	FileID    uuid.UUID  `json:"file_id"`
	OwnerID   uint32     `json:"owner_id"`
	Kind      Kind       `json:"kind"`
	GranteeID *uint32    `json:"grantee_id,omitempty"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
}

func NewUserGrant(fileID uuid.UUID, ownerID, granteeID uint32, expiresAt *time.Time) (*Grant, error) {
	if err := checkExpiry(expiresAt); err != nil {
		return nil, err
	}
	return &Grant{
		ID:        uuid.New(),
		FileID:    fileID,
		OwnerID:   ownerID,
		Kind:      KindUser,
		GranteeID: &granteeID,
		ExpiresAt: expiresAt,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}

func NewLinkGrant(fileID uuid.UUID, ownerID uint32, token string, expiresAt *time.Time) (*Grant, error) {
	if len(token) < TokenLength {
		return nil, fmt.Errorf("%w: share token too short", apperrors.ErrValidation)
	}
	if err := checkExpiry(expiresAt); err != nil {
		return nil, err
	}
	return &Grant{
		ID:        uuid.New(),
		FileID:    fileID,
		OwnerID:   ownerID,
		Kind:      KindLink,
		Token:     token,
		ExpiresAt: expiresAt,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}

func checkExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(time.Now()) {
		return fmt.Errorf("%w: expiry must be in the future", apperrors.ErrValidation)
	}
	return nil
}

// ValidAt reports whether the grant authorizes access at the given instant.
// The expiry boundary is exclusive: a grant is already invalid at exactly
// ExpiresAt.
func (g *Grant) ValidAt(now time.Time) bool {
	if !g.Active {
		return false
	}
	return g.ExpiresAt == nil || now.Before(*g.ExpiresAt)
}
