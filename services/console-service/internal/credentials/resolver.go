// Package credentials decides whether a supplied password unlocks an actor.
package credentials

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/settings"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultMasterPassword     = "admin123"
	DefaultSuperAdminPassword = "admin123"
	DefaultPassword           = "123456"

	masterKey      = "master_password"
	actorKeyPrefix = "actor_password:"
)

var (
	ErrWrongPassword     = errors.New("wrong_password")
	ErrResetNotConfirmed = errors.New("master password reset not confirmed")
	ErrEmptyPassword     = errors.New("password must not be empty")
	ErrNotPermitted      = errors.New("actor may not change this password")
)

// Resolver checks, in order, the master password, the actor's stored password
// and the role default. Stored passwords are bcrypt hashes.
type Resolver struct {
	store  settings.Store
	cost   int
	logger *slog.Logger
}

func NewResolver(store settings.Store, logger *slog.Logger, bcryptCost int) *Resolver {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Resolver{store: store, cost: bcryptCost, logger: logger}
}

// Authenticate returns nil when supplied unlocks actor and ErrWrongPassword
// otherwise. Any other error means the settings store failed.
func (r *Resolver) Authenticate(ctx context.Context, actor salon.Actor, supplied string) error {
	ok, err := r.matches(ctx, masterKey, DefaultMasterPassword, supplied)
	if err != nil {
		return err
	}
	if ok {
		r.logger.Info("auth_event", "event", "login_master_override", "actor_id", actor.ActorID(), "role", actor.AccessLevel())
		return nil
	}

	ok, err = r.matches(ctx, actorKeyPrefix+actor.ActorID(), roleDefault(actor), supplied)
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Info("auth_event", "event", "login_failed", "actor_id", actor.ActorID(), "role", actor.AccessLevel())
		return ErrWrongPassword
	}
	r.logger.Info("auth_event", "event", "login_succeeded", "actor_id", actor.ActorID(), "role", actor.AccessLevel())
	return nil
}

// ResetMasterPassword restores the master password to its default. It requires
// explicit confirmation and no prior authentication.
func (r *Resolver) ResetMasterPassword(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return ErrResetNotConfirmed
	}
	if err := r.setHash(ctx, masterKey, DefaultMasterPassword); err != nil {
		return err
	}
	r.logger.Warn("auth_event", "event", "master_password_reset")
	return nil
}

// SetMasterPassword is reserved to super admins.
func (r *Resolver) SetMasterPassword(ctx context.Context, by salon.Actor, password string) error {
	if _, ok := by.(salon.SuperAdmin); !ok {
		return ErrNotPermitted
	}
	if err := r.setHash(ctx, masterKey, password); err != nil {
		return err
	}
	r.logger.Info("auth_event", "event", "master_password_changed", "by", by.ActorID())
	return nil
}

// SetActorPassword stores a password for target. Administrators may set the
// password of professionals and admins, only a super admin may set another
// super admin's, and professionals may only change their own.
func (r *Resolver) SetActorPassword(ctx context.Context, by, target salon.Actor, password string) error {
	if by == nil || target == nil {
		return fmt.Errorf("%w: actor is required", ErrNotPermitted)
	}
	if !canSetPassword(by, target) {
		return ErrNotPermitted
	}
	if err := r.setHash(ctx, actorKeyPrefix+target.ActorID(), password); err != nil {
		return err
	}
	r.logger.Info("auth_event", "event", "actor_password_changed", "actor_id", target.ActorID(), "by", by.ActorID())
	return nil
}

func canSetPassword(by, target salon.Actor) bool {
	if by.ActorID() == target.ActorID() {
		return true
	}
	switch by.(type) {
	case salon.SuperAdmin:
		return true
	case salon.Admin:
		_, targetIsSuper := target.(salon.SuperAdmin)
		return !targetIsSuper
	default:
		return false
	}
}

// SetPasswordDirect writes a password without an acting identity, for operator tooling.
func (r *Resolver) SetPasswordDirect(ctx context.Context, actorID, password string) error {
	if strings.TrimSpace(actorID) == "" {
		return fmt.Errorf("%w: actor id is required", ErrNotPermitted)
	}
	return r.setHash(ctx, actorKeyPrefix+actorID, password)
}

func (r *Resolver) matches(ctx context.Context, key, fallback, supplied string) (bool, error) {
	hash, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if !ok {
		return subtle.ConstantTimeCompare([]byte(fallback), []byte(supplied)) == 1, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(supplied)) == nil, nil
}

func (r *Resolver) setHash(ctx context.Context, key, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, key, string(hash))
}

func roleDefault(actor salon.Actor) string {
	switch actor.(type) {
	case salon.SuperAdmin:
		return DefaultSuperAdminPassword
	default:
		return DefaultPassword
	}
}
