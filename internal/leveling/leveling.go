// Package leveling awards experience for messages and moves members between
// levels inside their configured bounds.
package leveling

import (
	"sort"
	"sync"
	"time"

	"configbot/internal/store"
	"configbot/internal/utils"

	"emperror.dev/errors"
	"go.uber.org/zap"
)

// Result describes what one update did.
type Result struct {
	XP      int
	Level   int
	Counted bool
	LevelUp bool
	Reset   bool
}

type Engine struct {
	store  *store.Store
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	window  time.Duration
	windows *utils.WindowSet
}

func New(st *store.Store, logger *zap.Logger) *Engine {
	return &Engine{store: st, logger: logger, now: time.Now}
}

func (e *Engine) WithClock(now func() time.Time) {
	e.now = now
}

// State returns a member's stored experience and level.
func (e *Engine) State(userID string) (int, int) {
	state, _ := e.store.UserLevel(store.ID(userID))
	return state.XP, state.Level
}

// Bounds returns the level range for a member. A per-user bound wins; else
// the widest range over the member's roles; else the global range.
func (e *Engine) Bounds(userID string, roles []string) (int, int) {
	return bounds(e.store.LevelRules(), userID, roles)
}

func bounds(rules store.LevelRules, userID string, roles []string) (int, int) {
	id := store.ID(userID)
	minLevel, hasMin := rules.UsersMin[id]
	maxLevel, hasMax := rules.UsersMax[id]

	if !hasMin {
		minLevel, hasMin = roleBound(rules.RolesMin, roles, func(a, b int) bool { return a < b })
	}
	if !hasMax {
		maxLevel, hasMax = roleBound(rules.RolesMax, roles, func(a, b int) bool { return a > b })
	}
	if !hasMin {
		minLevel = rules.GlobalMin
	}
	if !hasMax {
		maxLevel = rules.GlobalMax
		if maxLevel <= 0 && len(rules.LevelXP) > 0 {
			maxLevel = len(rules.LevelXP) - 1
		}
	}
	return minLevel, maxLevel
}

func roleBound(byRole map[store.ID]int, roles []string, better func(a, b int) bool) (int, bool) {
	found := false
	bound := 0
	for _, role := range store.IDs(roles) {
		value, ok := byRole[role]
		if !ok {
			continue
		}
		if !found || better(value, bound) {
			bound = value
			found = true
		}
	}
	return bound, found
}

// LevelForXP returns the highest level whose threshold xp has reached.
func LevelForXP(thresholds []int, xp int) int {
	level := sort.Search(len(thresholds), func(i int) bool { return thresholds[i] > xp }) - 1
	return max(level, 0)
}

func threshold(thresholds []int, level int) int {
	if level < 0 || level >= len(thresholds) {
		return 0
	}
	return thresholds[level]
}

// OnMessage credits a member for one message and saves the levels document
// when anything changed.
func (e *Engine) OnMessage(userID string, roles []string) (Result, error) {
	rules := e.store.LevelRules()
	if !e.allow(userID, rules.Cooldown) {
		xp, level := e.State(userID)
		return Result{XP: xp, Level: level}, nil
	}

	e.mu.Lock()
	state, _ := e.store.UserLevel(store.ID(userID))
	minLevel, maxLevel := bounds(rules, userID, roles)
	res := Result{Counted: true}

	if minLevel > state.Level || state.Level > maxLevel || minLevel == maxLevel {
		state = store.UserLevel{XP: threshold(rules.LevelXP, minLevel), Level: minLevel}
		res.Reset = true
	} else {
		state.XP += rules.XPPerMessage
		next := state.Level + 1
		if next < len(rules.LevelXP) && next <= maxLevel && state.XP >= rules.LevelXP[next] {
			state.Level = next
			res.LevelUp = true
		}
	}
	e.store.SetUserLevel(store.ID(userID), state)
	e.mu.Unlock()

	res.XP, res.Level = state.XP, state.Level
	if err := e.store.SaveLevels(); err != nil {
		return res, errors.WithMessage(err, "save levels")
	}
	if res.LevelUp {
		e.logger.Debug("level up", zap.String("user_id", userID), zap.Int("level", res.Level))
	}
	return res, nil
}

// SetXP overwrites a member's experience and derives the level from the
// thresholds, clamped to the member's bounds.
func (e *Engine) SetXP(userID string, roles []string, xp int) (Result, error) {
	rules := e.store.LevelRules()
	xp = max(xp, 0)
	minLevel, maxLevel := bounds(rules, userID, roles)
	level := min(max(LevelForXP(rules.LevelXP, xp), minLevel), max(maxLevel, minLevel))

	e.mu.Lock()
	e.store.SetUserLevel(store.ID(userID), store.UserLevel{XP: xp, Level: level})
	e.mu.Unlock()

	if err := e.store.SaveLevels(); err != nil {
		return Result{}, errors.WithMessage(err, "save levels")
	}
	return Result{XP: xp, Level: level, Counted: true}, nil
}

func (e *Engine) allow(userID string, cd store.Cooldown) bool {
	if cd.Messages <= 0 || cd.WindowSeconds <= 0 {
		return true
	}
	window := time.Duration(cd.WindowSeconds) * time.Second
	e.mu.Lock()
	if e.windows == nil || e.window != window {
		e.window = window
		e.windows = utils.NewWindowSet(window)
	}
	windows := e.windows
	e.mu.Unlock()
	return windows.Allow(userID, cd.Messages, e.now())
}
