// Package access resolves caller roles and answers transition permission questions.
package access

import (
	"context"
	"errors"
	"fmt"

	"fieldbooking/internal/domain"

	"github.com/rs/zerolog"
)

// RoleRepository stores user roles by name.
type RoleRepository interface {
	GetUserRole(ctx context.Context, userID int64) (string, error)
	SetUserRole(ctx context.Context, userID int64, role string) error
}

// Service resolves roles from storage and guards role management.
type Service struct {
	roles  RoleRepository
	logger zerolog.Logger
}

// NewService creates a new access control service.
func NewService(roles RoleRepository, logger zerolog.Logger) *Service {
	return &Service{
		roles:  roles,
		logger: logger.With().Str("component", "access").Logger(),
	}
}

// RoleOf returns the role of a user. Unknown users are guests.
func (s *Service) RoleOf(ctx context.Context, userID int64) (Role, error) {
	if userID <= 0 {
		return RoleGuest, nil
	}

	name, err := s.roles.GetUserRole(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return RoleGuest, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve role of %d: %w", userID, err)
	}

	role, err := ParseRole(name)
	if err != nil {
		s.logger.Warn().Int64("user_id", userID).Str("role", name).Msg("unknown stored role, treating as guest")
		return RoleGuest, nil
	}
	return role, nil
}

// Require fails with AccessDeniedError when the user is below floor.
func (s *Service) Require(ctx context.Context, userID int64, floor Role) (Role, error) {
	role, err := s.RoleOf(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !role.AtLeast(floor) {
		return role, &AccessDeniedError{Reason: fmt.Sprintf("requires %s role", floor)}
	}
	return role, nil
}

// SetUserRole assigns role to userID on behalf of actorID. Only managers and
// supervisors may assign roles, and only roles strictly below their own.
func (s *Service) SetUserRole(ctx context.Context, actorID, userID int64, role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %d", int(role))
	}

	actorRole, err := s.Require(ctx, actorID, RoleManager)
	if err != nil {
		return err
	}
	if role >= actorRole {
		return &AccessDeniedError{Reason: fmt.Sprintf("%s cannot assign %s", actorRole, role)}
	}

	if current, err := s.RoleOf(ctx, userID); err != nil {
		return err
	} else if current >= actorRole {
		return &AccessDeniedError{Reason: fmt.Sprintf("%s cannot change a %s", actorRole, current)}
	}

	if err := s.roles.SetUserRole(ctx, userID, role.String()); err != nil {
		return fmt.Errorf("set role: %w", err)
	}

	s.logger.Info().
		Int64("user_id", userID).
		Int64("changed_by", actorID).
		Str("role", role.String()).
		Msg("user role changed")
	return nil
}

// AccessDeniedError is returned when user access is denied.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
