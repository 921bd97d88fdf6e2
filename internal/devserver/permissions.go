package devserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/clk-66/spectrus-go/payload"
)

// ErrForbidden is returned when a user lacks a required permission.
type ErrForbidden struct {
	Permission uint64
}

func (e ErrForbidden) Error() string {
	return "forbidden: missing permission " + strconv.FormatUint(e.Permission, 10)
}

// hasPermission reports whether userID holds every bit in perm. The guild
// owner and holders of Administrator pass every check. Non-members hold
// nothing.
func (s *Server) hasPermission(ctx context.Context, userID string, perm uint64) (bool, error) {
	g, err := s.store.Guild(ctx)
	if err != nil {
		return false, err
	}
	if g.OwnerID == userID {
		return true, nil
	}
	bits, err := s.store.MemberPermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	if bits&payload.PermAdministrator != 0 {
		return true, nil
	}
	return bits&perm == perm, nil
}

// requirePermission is hasPermission with a typed error on denial.
func (s *Server) requirePermission(ctx context.Context, userID string, perm uint64) error {
	ok, err := s.hasPermission(ctx, userID, perm)
	if err != nil {
		return fmt.Errorf("permission check: %w", err)
	}
	if !ok {
		return ErrForbidden{Permission: perm}
	}
	return nil
}
