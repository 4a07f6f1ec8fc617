// Package access implements capability-based authorization. A Control is
// built once per request for the current actor and passed explicitly into
// every service call; services never look up a "current user" on their own.
package access

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Role names a privilege granted on top of ownership.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is the authenticated actor supplied by the identity provider.
type User struct {
	ID    uuid.UUID
	Email string
	Roles []Role
}

// Owned is implemented by entities that belong to exactly one user.
type Owned interface {
	OwnerID() uuid.UUID
}

// Control answers what the bound actor may do. A Control bound to no user
// denies everything.
type Control interface {
	User() *User
	CanCreateAs(userID uuid.UUID) bool
	CanRead(entity Owned) bool
	CanUpdate(entity Owned) bool
	CanDelete(entity Owned) bool
	HasRole(role Role) bool
}

// New returns the Control for user, choosing the policy from the user's
// roles. A nil user yields an anonymous Control.
func New(user *User) Control {
	base := ownerControl{user: user}
	if user != nil && slices.Contains(user.Roles, RoleAdmin) {
		return adminControl{ownerControl: base}
	}
	return base
}

// Anonymous returns a Control with no user attached.
func Anonymous() Control {
	return ownerControl{}
}

// ownerControl grants read, update and delete on entities the user owns.
type ownerControl struct {
	user *User
}

func (c ownerControl) User() *User { return c.user }

func (c ownerControl) CanCreateAs(userID uuid.UUID) bool {
	return c.user != nil && c.user.ID == userID
}

func (c ownerControl) owns(entity Owned) bool {
	return c.user != nil && entity != nil && entity.OwnerID() == c.user.ID
}

func (c ownerControl) CanRead(entity Owned) bool   { return c.owns(entity) }
func (c ownerControl) CanUpdate(entity Owned) bool { return c.owns(entity) }
func (c ownerControl) CanDelete(entity Owned) bool { return c.owns(entity) }

func (c ownerControl) HasRole(role Role) bool {
	return c.user != nil && slices.Contains(c.user.Roles, role)
}

// adminControl extends ownership to every entity. Creation stays
// self-only: an admin never creates on another user's behalf.
type adminControl struct {
	ownerControl
}

func (c adminControl) CanRead(entity Owned) bool   { return entity != nil }
func (c adminControl) CanUpdate(entity Owned) bool { return entity != nil }
func (c adminControl) CanDelete(entity Owned) bool { return entity != nil }

type contextKey struct{}

// WithControl stores ac in ctx for the HTTP layer.
func WithControl(ctx context.Context, ac Control) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the Control stored by WithControl, or an anonymous
// Control if none was stored.
func FromContext(ctx context.Context) Control {
	if ac, ok := ctx.Value(contextKey{}).(Control); ok && ac != nil {
		return ac
	}
	return Anonymous()
}
