// Package warning maps members to warning levels by the roles they hold.
package warning

import (
	"configbot/internal/store"

	"github.com/samber/lo"
)

// LevelFor returns the highest level whose roles the member all holds, in
// any order. Levels are numbered from 1; 0 means no warning level.
func LevelFor(levels []store.WarningLevel, roles []string) int {
	held := store.IDs(roles)
	current := 0
	for i, level := range levels {
		if len(level.Roles) == 0 {
			continue
		}
		if lo.Every(held, level.Roles) {
			current = i + 1
		}
	}
	return current
}

// RolesFor returns the role ids of a level, or nil when out of range.
func RolesFor(levels []store.WarningLevel, level int) []string {
	if level < 1 || level > len(levels) {
		return nil
	}
	return lo.Map(levels[level-1].Roles, func(id store.ID, _ int) string { return string(id) })
}

// Transition is the role change that moves a member between levels.
type Transition struct {
	From   int
	To     int
	Add    []string
	Remove []string
}

// Next describes a warn: moving one level up. It returns false at the top.
func Next(levels []store.WarningLevel, roles []string) (Transition, bool) {
	from := LevelFor(levels, roles)
	if from >= len(levels) {
		return Transition{From: from, To: from}, false
	}
	return transition(levels, roles, from, from+1), true
}

// Previous describes an unwarn: moving one level down. It returns false
// when the member has no level.
func Previous(levels []store.WarningLevel, roles []string) (Transition, bool) {
	from := LevelFor(levels, roles)
	if from == 0 {
		return Transition{}, false
	}
	return transition(levels, roles, from, from-1), true
}

func transition(levels []store.WarningLevel, roles []string, from, to int) Transition {
	current := RolesFor(levels, from)
	target := RolesFor(levels, to)
	return Transition{
		From:   from,
		To:     to,
		Add:    lo.Filter(target, func(id string, _ int) bool { return !lo.Contains(roles, id) }),
		Remove: lo.Filter(current, func(id string, _ int) bool { return !lo.Contains(target, id) }),
	}
}
