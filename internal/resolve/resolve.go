// Package resolve validates the account/facility identifiers supplied
// with a chat request before any tool runs against them.
//
// Resolution never widens scope: a request that supplies only an
// account id stays account-scoped, and a facility-only request is
// passed through untouched so downstream lookups can report an unknown
// facility as a domain result rather than a request failure.
package resolve

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/evolyn/concierge/internal/store"
)

// Typed resolution failures. Callers branch on these to choose between
// request rejection and a polite in-conversation refusal.
var (
	ErrMissingContext          = errors.New("at least one of account_id or facility_id is required")
	ErrFacilityNotFound        = errors.New("facility not found")
	ErrAccountFacilityMismatch = errors.New("facility does not belong to account")
)

// Context is the validated identifier set for a single request. Fields
// left empty were not supplied by the caller.
type Context struct {
	UserID     string
	AccountID  string
	FacilityID string
}

// Resolver checks request identifiers against the record store.
type Resolver struct {
	store *store.Store
}

func New(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve validates the identifier combination for a request. It is a
// pure read: calling it twice with the same inputs yields the same
// result.
//
// Rules:
//   - neither id supplied: ErrMissingContext
//   - both supplied: the facility must exist and belong to the account,
//     otherwise ErrFacilityNotFound / ErrAccountFacilityMismatch
//   - one id supplied: passed through as-is; existence is checked later
//     by whichever tool needs the row
func (r *Resolver) Resolve(userID, accountID, facilityID string) (Context, error) {
	ctx := Context{UserID: userID, AccountID: accountID, FacilityID: facilityID}

	if accountID == "" && facilityID == "" {
		return Context{}, ErrMissingContext
	}

	if accountID != "" && facilityID != "" {
		owner, err := r.store.FacilityAccount(facilityID)
		if errors.Is(err, sql.ErrNoRows) {
			return Context{}, ErrFacilityNotFound
		}
		if err != nil {
			return Context{}, fmt.Errorf("resolve facility %s: %w", facilityID, err)
		}
		if owner != accountID {
			return Context{}, ErrAccountFacilityMismatch
		}
	}

	return ctx, nil
}

// AccountForFacility looks up the owning account of a facility. It is
// used when a facility-scoped request needs account data, and returns
// ErrFacilityNotFound for an unknown facility.
func (r *Resolver) AccountForFacility(facilityID string) (string, error) {
	owner, err := r.store.FacilityAccount(facilityID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFacilityNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve facility %s: %w", facilityID, err)
	}
	return owner, nil
}
