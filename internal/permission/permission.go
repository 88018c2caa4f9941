// Package permission implements the configuration permission calculus:
// who may modify, rename, or delete a transfer configuration.
package permission

import (
	"github.com/fieldshift-labs/fieldshift/pkg/core"
)

// User is the identity a permission check runs against. It is passed
// explicitly into every check; there is no ambient current-user state.
type User struct {
	Username  string
	Superuser bool
}

// Membership answers whether a username is currently a member of a
// project. Injected so the host platform's user directory stays outside
// the engine.
type Membership interface {
	IsMember(projectID, username string) bool
}

// Checker evaluates configuration permissions.
type Checker struct {
	members Membership
}

// NewChecker creates a permission checker backed by the given membership
// lookup.
func NewChecker(members Membership) *Checker {
	return &Checker{members: members}
}

// CanModify reports whether the user may change a configuration's
// settings. Owners and superusers may; other project members may not.
func (c *Checker) CanModify(user User, cfg *core.TransferConfig) error {
	if user.Superuser || user.Username == cfg.Owner {
		return nil
	}
	return &core.PermissionError{User: user.Username, Action: "modify", Config: cfg.Name}
}

// CanDelete reports whether the user may delete a configuration. Owners
// and superusers may; a non-owner member may when the recorded owner is no
// longer a member of the project.
func (c *Checker) CanDelete(user User, cfg *core.TransferConfig) error {
	if user.Superuser || user.Username == cfg.Owner {
		return nil
	}
	if c.members.IsMember(cfg.ProjectID, user.Username) && !c.members.IsMember(cfg.ProjectID, cfg.Owner) {
		return nil
	}
	return &core.PermissionError{User: user.Username, Action: "delete", Config: cfg.Name}
}

// CanRename follows the delete rule: renaming is destructive to anything
// referencing the configuration by name.
func (c *Checker) CanRename(user User, cfg *core.TransferConfig) error {
	if user.Superuser || user.Username == cfg.Owner {
		return nil
	}
	if c.members.IsMember(cfg.ProjectID, user.Username) && !c.members.IsMember(cfg.ProjectID, cfg.Owner) {
		return nil
	}
	return &core.PermissionError{User: user.Username, Action: "rename", Config: cfg.Name}
}
