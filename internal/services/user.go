package services

import (
	"context"
	"errors"
	"log"

	"github.com/teamtrack/apiserver/internal/apperr"
	"github.com/teamtrack/apiserver/internal/notify"
	"github.com/teamtrack/apiserver/internal/store"
	"github.com/teamtrack/apiserver/types"
)

// UserService implements account lifecycle: self-registration, the admin
// approval queue, role-scoped reads and profile updates. Push notifications
// are best-effort; a broker outage never fails the request.
type UserService struct {
	users    UserRepository
	notifier notify.Notifier
}

func NewUserService(users UserRepository, notifier notify.Notifier) *UserService {
	return &UserService{users: users, notifier: notifier}
}

// Register creates an unapproved account. The caller provides the password
// hash; plaintext never reaches this layer. New accounts cannot log in until
// an admin approves them.
func (s *UserService) Register(ctx context.Context, user types.User) (types.User, error) {
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	if user.Role != types.RoleUser && user.Role != types.RoleLead {
		return types.User{}, apperr.Validation("Role must be user or lead")
	}

	user.Approved = false
	user.IsActive = true

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, apperr.Conflict("Email already registered")
		}
		return types.User{}, apperr.Internal(err)
	}

	if err := s.notifier.Welcome(ctx, created.DeviceToken, created.Name); err != nil {
		log.Printf("users: welcome notification for user %d failed: %v", created.ID, err)
	}
	return created, nil
}

// Approve marks a pending account approved. Admin only.
func (s *UserService) Approve(ctx context.Context, principal types.Principal, userID int) (types.User, error) {
	if err := requireAdmin(principal); err != nil {
		return types.User{}, err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if user.Approved {
		return user, nil
	}

	user.Approved = true
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, apperr.Internal(err)
	}

	if err := s.notifier.AccountApproved(ctx, updated.DeviceToken, updated.Name); err != nil {
		log.Printf("users: approval notification for user %d failed: %v", updated.ID, err)
	}
	return updated, nil
}

// Reject removes a pending account. Admin only. Approved accounts cannot be
// rejected; deactivate them instead.
func (s *UserService) Reject(ctx context.Context, principal types.Principal, userID int) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.Approved {
		return apperr.Validation("Approved accounts cannot be rejected")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return apperr.Internal(err)
	}

	if err := s.notifier.AccountRejected(ctx, user.DeviceToken, user.Name); err != nil {
		log.Printf("users: rejection notification for user %d failed: %v", user.ID, err)
	}
	return nil
}

// ListPending returns accounts awaiting approval. Admin only.
func (s *UserService) ListPending(ctx context.Context, principal types.Principal) ([]types.User, error) {
	if err := requireAdmin(principal); err != nil {
		return nil, err
	}
	users, err := s.users.ListPending(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return users, nil
}

// List returns users with optional department filtering. Admins see every
// department; leads are confined to their own. Regular users cannot list.
func (s *UserService) List(ctx context.Context, principal types.Principal, department string, offset, limit int) ([]types.User, int, error) {
	switch {
	case principal.IsAdmin():
	case principal.Role == types.RoleLead:
		department = principal.Department
	default:
		return nil, 0, apperr.Forbidden("Not authorized to list users")
	}

	users, total, err := s.users.List(ctx, department, offset, limit)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return users, total, nil
}

// Get returns a user. Users read their own record; leads and admins read
// anyone's.
func (s *UserService) Get(ctx context.Context, principal types.Principal, userID int) (types.User, error) {
	if !principal.IsAdmin() && principal.Role != types.RoleLead && principal.ID != userID {
		return types.User{}, apperr.Forbidden("Not authorized to view this user")
	}
	return s.getUser(ctx, userID)
}

// UpdateUserInput carries optional profile fields. Role, department and the
// active flag are admin-only; the rest may be changed by the account owner.
type UpdateUserInput struct {
	Name         *string
	DeviceToken  *string
	PasswordHash *string
	Role         *string
	Department   *string
	IsActive     *bool
}

// Update edits a user record. Owners may edit their own profile fields, and
// leads may edit profile fields of users in their department; admins may
// additionally change role, department and the active flag. The password is
// owner-or-admin only.
func (s *UserService) Update(ctx context.Context, principal types.Principal, userID int, in UpdateUserInput) (types.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	owner := !principal.IsAdmin() && principal.ID == userID
	deptLead := !principal.IsAdmin() && principal.Role == types.RoleLead && principal.Department == user.Department
	if !owner && !deptLead && !principal.IsAdmin() {
		return types.User{}, apperr.Forbidden("Not authorized to update this user")
	}

	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.DeviceToken != nil {
		user.DeviceToken = *in.DeviceToken
	}
	if in.PasswordHash != nil {
		if !owner && !principal.IsAdmin() {
			return types.User{}, apperr.Forbidden("Only the account owner can change the password")
		}
		user.PasswordHash = *in.PasswordHash
	}

	if in.Role != nil || in.Department != nil || in.IsActive != nil {
		if err := requireAdmin(principal); err != nil {
			return types.User{}, err
		}
		if in.Role != nil {
			if *in.Role != types.RoleUser && *in.Role != types.RoleLead {
				return types.User{}, apperr.Validation("Role must be user or lead")
			}
			user.Role = *in.Role
		}
		if in.Department != nil {
			user.Department = *in.Department
		}
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, apperr.Conflict("Email already registered")
		}
		return types.User{}, apperr.Internal(err)
	}
	return updated, nil
}

// Delete removes an account. Admin only. Project history referencing the
// user is kept for the statistics ledger.
func (s *UserService) Delete(ctx context.Context, principal types.Principal, userID int) error {
	if err := requireAdmin(principal); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(err)
	}
	return nil
}

func (s *UserService) getUser(ctx context.Context, id int) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.NotFound("User not found")
		}
		return types.User{}, apperr.Internal(err)
	}
	return user, nil
}
