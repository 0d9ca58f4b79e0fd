package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// RevocationStore tracks token ids that were revoked before expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, sid string, until time.Time) error
	IsRevoked(ctx context.Context, sid string) (bool, error)
}

type Service struct {
	jwt          *JWTManager
	revocations  RevocationStore
	allowedRoles []string
}

// NewService only issues and accepts tokens for allowedRoles.
func NewService(jwtManager *JWTManager, allowedRoles []string) *Service {
	roles := make([]string, 0, len(allowedRoles))
	for _, role := range allowedRoles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}

	return &Service{
		jwt:          jwtManager,
		allowedRoles: roles,
	}
}

func (s *Service) AttachRevocations(store RevocationStore) {
	s.revocations = store
}

func (s *Service) AllowedRoles() []string {
	return slices.Clone(s.allowedRoles)
}

func (s *Service) IssueAdminToken(subject, role string, ttl time.Duration) (string, AccessClaims, error) {
	if s.jwt == nil {
		return "", AccessClaims{}, fmt.Errorf("jwt manager is nil")
	}
	if !s.roleAllowed(role) {
		return "", AccessClaims{}, fmt.Errorf("%w: role %q", ErrForbidden, role)
	}
	return s.jwt.GenerateAccessToken(subject, role, ttl)
}

func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	if s.jwt == nil {
		return AccessClaims{}, fmt.Errorf("jwt manager is nil")
	}

	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return AccessClaims{}, err
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.SID)
		if err != nil {
			return AccessClaims{}, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return AccessClaims{}, ErrUnauthorized
		}
	}

	return claims, nil
}

// Revoke blocks the token until it would have expired anyway.
func (s *Service) Revoke(ctx context.Context, accessToken string) error {
	if s.revocations == nil {
		return fmt.Errorf("revocation store is not configured")
	}

	claims, err := s.jwt.ParseAccessToken(accessToken)
	if err != nil {
		return err
	}
	return s.revocations.Revoke(ctx, claims.SID, claims.ExpiresAt)
}

func (s *Service) roleAllowed(role string) bool {
	return slices.Contains(s.allowedRoles, strings.ToUpper(strings.TrimSpace(role)))
}
