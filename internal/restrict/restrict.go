// Package restrict decides whether a member may run a command.
package restrict

import (
	"strings"

	"configbot/internal/store"

	"github.com/samber/lo"
)

// Rule names reported when a check fails.
const (
	FailAll      = "all"
	FailUser     = "user id"
	FailAnyRoles = "any roles"
	FailAllRoles = "all roles"
	FailChannel  = "channel id"
)

// Subject is who is asking and where.
type Subject struct {
	UserID    string
	Roles     []string
	ChannelID string
}

// Evaluate returns the failed rule names joined by ";". An empty string
// means the subject is allowed. A category that is not configured passes.
func Evaluate(rules store.Restrictions, subject Subject) string {
	if rules.All != nil {
		if *rules.All {
			return ""
		}
		return FailAll
	}

	var failed []string
	if len(rules.Users) > 0 && !lo.Contains(rules.Users, store.ID(subject.UserID)) {
		failed = append(failed, FailUser)
	}
	roles := store.IDs(subject.Roles)
	if len(rules.AnyRoles) > 0 && !lo.Some(roles, rules.AnyRoles) {
		failed = append(failed, FailAnyRoles)
	}
	if len(rules.AllRoles) > 0 && !lo.Every(roles, rules.AllRoles) {
		failed = append(failed, FailAllRoles)
	}
	if len(rules.Channels) > 0 && !lo.Contains(rules.Channels, store.ID(subject.ChannelID)) {
		failed = append(failed, FailChannel)
	}
	return strings.Join(failed, ";")
}

// Allowed is Evaluate(rules, subject) == "".
func Allowed(rules store.Restrictions, subject Subject) bool {
	return Evaluate(rules, subject) == ""
}
