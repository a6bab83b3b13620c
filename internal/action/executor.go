package action

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"configbot/internal/audit"
	"configbot/internal/dispatch"
	"configbot/internal/platform"
	"configbot/internal/result"
	"configbot/internal/schedule"
	"configbot/internal/store"
	"configbot/internal/utils"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const defaultReversalTimeout = 15 * time.Second

// CommandInvoker runs a command on behalf of an action.
type CommandInvoker interface {
	Invoke(ctx context.Context, origin *dispatch.Origin, name string, args []string) error
}

// Journal records outcomes.
type Journal interface {
	Record(ctx context.Context, e audit.Entry)
}

// Outcome is the result of one effect.
type Outcome struct {
	Action string
	Effect string
	Op     string
	Target string
	Status result.Status
	Err    error
	// Reversal is the scheduler key of the pending undo, if one was scheduled.
	Reversal string
}

type Executor struct {
	platform  platform.Platform
	dispatch  *dispatch.Dispatcher
	store     *store.Store
	scheduler *schedule.Scheduler
	journal   Journal
	invoker   CommandInvoker
	logger    *zap.Logger
	timeout   time.Duration

	mu      sync.RWMutex
	records map[string]Record
}

// NewExecutor parses every configured action. Any invalid record fails
// construction.
func NewExecutor(p platform.Platform, d *dispatch.Dispatcher, st *store.Store, sched *schedule.Scheduler, logger *zap.Logger) (*Executor, error) {
	e := &Executor{
		platform:  p,
		dispatch:  d,
		store:     st,
		scheduler: sched,
		logger:    logger,
		timeout:   defaultReversalTimeout,
	}
	if err := e.Load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Executor) WithJournal(j Journal) *Executor {
	e.journal = j
	return e
}

func (e *Executor) WithInvoker(inv CommandInvoker) *Executor {
	e.invoker = inv
	return e
}

// WithReversalTimeout bounds each reversal's platform calls and journaling.
func (e *Executor) WithReversalTimeout(d time.Duration) *Executor {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// Load re-parses the action records from the store.
func (e *Executor) Load() error {
	records, err := ParseAll(e.store.Actions())
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.records = records
	e.mu.Unlock()
	return nil
}

func (e *Executor) Record(name string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.records[name]
	return r, ok
}

func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.records))
	for name := range e.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pending lists scheduled reversals.
func (e *Executor) Pending() []schedule.Entry {
	return e.scheduler.Pending()
}

// CancelReversal drops a pending reversal so the effect stays in place.
func (e *Executor) CancelReversal(key string) bool {
	return e.scheduler.Cancel(key)
}

// Close cancels every pending reversal.
func (e *Executor) Close() int {
	n := e.scheduler.Close()
	if n > 0 {
		e.logger.Info("pending reversals cancelled", zap.Int("count", n))
	}
	return n
}

// ReversalKey identifies the reversal of one effect.
func ReversalKey(guildID, action, op, target string) string {
	return strings.Join([]string{guildID, action, op, target}, "/")
}

// Execute runs the named action. args fill /1/, /2/, ... in every string of
// the record.
func (e *Executor) Execute(ctx context.Context, origin *dispatch.Origin, name string, args []string) []Outcome {
	if origin == nil {
		origin = &dispatch.Origin{}
	}
	record, ok := e.Record(name)
	if !ok {
		out := classify(Outcome{Action: name}, result.NotConfigured("action", "unknown action "+name))
		e.journalOutcome(ctx, origin, out)
		return []Outcome{out}
	}

	x := e.newExpander(origin, args)
	var outcomes []Outcome
	for _, effect := range record.Effects() {
		var batch []Outcome
		if err := ctx.Err(); err != nil {
			batch = []Outcome{classify(Outcome{Action: name, Effect: effect.Category()}, err)}
		} else {
			switch eff := effect.(type) {
			case MessagesEffect:
				batch = e.runMessages(ctx, origin, name, eff, x)
			case CommandsEffect:
				batch = e.runCommands(ctx, origin, name, eff, x)
			case UserOp:
				batch = []Outcome{e.runUser(origin, name, eff, x)}
			case GuildOp:
				batch = []Outcome{e.runGuild(origin, name, eff, x)}
			}
		}
		for _, out := range batch {
			e.journalOutcome(ctx, origin, out)
		}
		outcomes = append(outcomes, batch...)
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes
}

// Apply runs one member operation outside a configured action, the way the
// moderation commands do. The outcome is journaled and a duration schedules
// its reversal.
func (e *Executor) Apply(ctx context.Context, origin *dispatch.Origin, name string, op UserOp) Outcome {
	if origin == nil {
		origin = &dispatch.Origin{}
	}
	out := e.runUser(origin, name, op, &expander{})
	e.journalOutcome(ctx, origin, out)
	return out
}

func (e *Executor) runMessages(ctx context.Context, origin *dispatch.Origin, name string, eff MessagesEffect, x *expander) []Outcome {
	var outcomes []Outcome
	for _, command := range x.expandAll(eff.Commands) {
		out := Outcome{Action: name, Effect: CategoryMessages, Op: command, Target: origin.UserID()}
		var err error
		if e.dispatch == nil {
			err = result.NotConfigured("messages", "no dispatcher")
		} else {
			err = e.dispatch.SendDM(ctx, origin, command, nil).Err()
		}
		outcomes = append(outcomes, classify(out, err))
	}
	return outcomes
}

func (e *Executor) runCommands(ctx context.Context, origin *dispatch.Origin, name string, eff CommandsEffect, x *expander) []Outcome {
	var outcomes []Outcome
	for _, call := range eff.Calls {
		command := x.expand(call.Name)
		out := Outcome{Action: name, Effect: CategoryCommands, Op: command}
		var err error
		if e.invoker == nil {
			err = result.NotConfigured("commands", "no command invoker")
		} else {
			err = e.invoker.Invoke(ctx, origin, command, x.expandAll(call.Args))
		}
		outcomes = append(outcomes, classify(out, err))
	}
	return outcomes
}

// undo reverts one applied effect.
type undo func() error

func (e *Executor) runUser(origin *dispatch.Origin, name string, op UserOp, x *expander) Outcome {
	guildID := origin.GuildID
	target := origin.UserID()
	if op.Target != "" {
		target = utils.MentionID(x.expand(op.Target))
	}
	out := Outcome{Action: name, Effect: CategoryUser, Op: string(op.Op), Target: target}
	if guildID == "" {
		return classify(out, result.NotConfigured(string(op.Op), "not in a guild"))
	}
	if target == "" {
		return classify(out, result.NotConfigured(string(op.Op), store.KeyInvalidMember))
	}

	role := ""
	if op.Op.role() {
		role = utils.MentionID(x.expand(op.Role))
		if role == "" {
			return classify(out, result.NotConfigured(string(op.Op), store.KeyInvalidRole))
		}
	}
	reason := x.expand(op.Reason)
	reversalReason := x.expand(op.ReversalReason)
	p := e.platform

	var (
		err    error
		revert undo
	)
	switch op.Op {
	case Ban:
		err = p.Ban(guildID, target, reason)
		revert = func() error { return p.Unban(guildID, target) }
	case Unban:
		err = p.Unban(guildID, target)
		revert = func() error { return p.Ban(guildID, target, reversalReason) }
	case Kick:
		err = p.Kick(guildID, target, reason)
	case RoleAdd:
		err = p.AddRole(guildID, target, role)
		revert = func() error { return p.RemoveRole(guildID, target, role) }
	case RoleRemove:
		err = p.RemoveRole(guildID, target, role)
		revert = func() error { return p.AddRole(guildID, target, role) }
	case Timeout:
		var until time.Time
		if until, err = e.timeoutEnd(op, x); err == nil {
			err = p.Timeout(guildID, target, &until)
		}
		revert = func() error { return p.Timeout(guildID, target, nil) }
	case TimeoutRemove:
		var prior *time.Time
		if m, mErr := p.Member(guildID, target); mErr == nil && m != nil {
			prior = m.CommunicationDisabledUntil
		}
		err = p.Timeout(guildID, target, nil)
		revert = func() error {
			until, ok := e.restoredTimeout(prior, op, x)
			if !ok {
				return result.NotConfigured("timeout", "no timeout to restore")
			}
			return p.Timeout(guildID, target, &until)
		}
	case Deafen:
		err = p.Deafen(guildID, target, true)
		revert = func() error { return p.Deafen(guildID, target, false) }
	case DeafenRemove:
		err = p.Deafen(guildID, target, false)
		revert = func() error { return p.Deafen(guildID, target, true) }
	case Mute:
		err = p.Mute(guildID, target, true)
		revert = func() error { return p.Mute(guildID, target, false) }
	case MuteRemove:
		err = p.Mute(guildID, target, false)
		revert = func() error { return p.Mute(guildID, target, true) }
	}

	out = classify(out, err)
	if err == nil && op.Duration > 0 && op.Op.Reversible() {
		out.Reversal = e.scheduleReversal(origin, out, reversalReason, op.Duration, revert)
	}
	return out
}

func (e *Executor) timeoutEnd(op UserOp, x *expander) (time.Time, error) {
	if until := strings.TrimSpace(x.expand(op.Until)); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, result.NotConfigured("timeout", "invalid until "+until)
		}
		return t, nil
	}
	if op.Length <= 0 {
		return time.Time{}, result.NotConfigured("timeout", "no length")
	}
	return e.scheduler.Now().Add(op.Length), nil
}

// restoredTimeout picks the end of a timeout being put back: the prior one
// if it has not passed yet, otherwise the configured until or length.
func (e *Executor) restoredTimeout(prior *time.Time, op UserOp, x *expander) (time.Time, bool) {
	now := e.scheduler.Now()
	if prior != nil && prior.After(now) {
		return *prior, true
	}
	if t, err := e.timeoutEnd(op, x); err == nil && t.After(now) {
		return t, true
	}
	return time.Time{}, false
}

func (e *Executor) runGuild(origin *dispatch.Origin, name string, op GuildOp, x *expander) Outcome {
	guildID := origin.GuildID
	out := Outcome{Action: name, Effect: CategoryGuild, Op: string(op.Op)}
	if guildID == "" {
		return classify(out, result.NotConfigured(string(op.Op), "not in a guild"))
	}
	p := e.platform
	reason := x.expand(op.ReversalReason)

	var (
		err    error
		revert undo
	)
	switch op.Op {
	case RoleCreate:
		var role *discordgo.Role
		role, err = p.CreateRole(guildID, roleParams(op.Spec, x))
		if err == nil && role != nil {
			out.Target = role.ID
			roleID := role.ID
			revert = func() error { return p.DeleteRole(guildID, roleID) }
		}

	case RoleDelete:
		roleID := utils.MentionID(x.expand(op.Role))
		out.Target = roleID
		if roleID == "" {
			err = result.NotConfigured(string(op.Op), store.KeyInvalidRole)
			break
		}
		// Capture everything needed to recreate the role before deleting it.
		prior, roleErr := p.Role(guildID, roleID)
		if roleErr != nil {
			err = roleErr
			break
		}
		var holders []string
		if op.GiveBack {
			if holders, err = p.RoleMembers(guildID, roleID); err != nil {
				break
			}
		}
		if err = p.DeleteRole(guildID, roleID); err != nil {
			break
		}
		snapshot := *prior
		revert = func() error { return e.recreateRole(guildID, &snapshot, holders) }

	case RoleEdit:
		roleID := utils.MentionID(x.expand(op.Role))
		out.Target = roleID
		if roleID == "" {
			err = result.NotConfigured(string(op.Op), store.KeyInvalidRole)
			break
		}
		prior, roleErr := p.Role(guildID, roleID)
		if roleErr != nil {
			err = roleErr
			break
		}
		snapshot := *prior
		if _, err = p.EditRole(guildID, roleID, roleParams(op.Spec, x)); err != nil {
			break
		}
		revert = func() error {
			_, err := p.EditRole(guildID, roleID, paramsFromRole(&snapshot))
			return err
		}

	case GuildEdit:
		out.Target = guildID
		prior, guildErr := p.Guild(guildID)
		if guildErr != nil {
			err = guildErr
			break
		}
		priorName, priorLevel := prior.Name, prior.VerificationLevel
		params := &discordgo.GuildParams{Name: x.expand(op.GuildName)}
		if op.Verification != nil {
			level := discordgo.VerificationLevel(*op.Verification)
			params.VerificationLevel = &level
		}
		if _, err = p.EditGuild(guildID, params); err != nil {
			break
		}
		revert = func() error {
			_, err := p.EditGuild(guildID, &discordgo.GuildParams{Name: priorName, VerificationLevel: &priorLevel})
			return err
		}
	}

	out = classify(out, err)
	if err == nil && op.Duration > 0 && revert != nil {
		out.Reversal = e.scheduleReversal(origin, out, reason, op.Duration, revert)
	}
	return out
}

func (e *Executor) recreateRole(guildID string, prior *discordgo.Role, holders []string) error {
	role, err := e.platform.CreateRole(guildID, paramsFromRole(prior))
	if err != nil {
		return err
	}
	var errs []error
	for _, userID := range holders {
		if err := e.platform.AddRole(guildID, userID, role.ID); err != nil {
			errs = append(errs, errors.WithMessage(err, "give back role to "+userID))
		}
	}
	return errors.Combine(errs...)
}

func roleParams(spec RoleSpec, x *expander) *discordgo.RoleParams {
	return &discordgo.RoleParams{
		Name:        x.expand(spec.Name),
		Color:       spec.Color,
		Hoist:       spec.Hoist,
		Permissions: spec.Permissions,
		Mentionable: spec.Mentionable,
	}
}

func paramsFromRole(r *discordgo.Role) *discordgo.RoleParams {
	color, hoist, perms, mentionable := r.Color, r.Hoist, r.Permissions, r.Mentionable
	return &discordgo.RoleParams{
		Name:        r.Name,
		Color:       &color,
		Hoist:       &hoist,
		Permissions: &perms,
		Mentionable: &mentionable,
	}
}

// scheduleReversal registers revert under the effect's key. Rescheduling the
// same key replaces the earlier reversal.
func (e *Executor) scheduleReversal(origin *dispatch.Origin, applied Outcome, reason string, delay time.Duration, revert undo) string {
	key := ReversalKey(origin.GuildID, applied.Action, applied.Op, applied.Target)
	reversal := Outcome{
		Action: applied.Action,
		Effect: applied.Effect,
		Op:     applied.Op + "_reversal",
		Target: applied.Target,
	}
	scheduled := e.scheduler.Schedule(key, delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		err := revert()
		out := classify(reversal, err)
		e.journalOutcome(ctx, origin, out)
		if err != nil {
			e.logger.Warn("reversal failed", zap.String("key", key), zap.String("status", string(out.Status)), zap.Error(err))
			return
		}
		e.logger.Info("reversal applied", zap.String("key", key), zap.String("reason", reason))
	})
	if !scheduled {
		return ""
	}
	return key
}

// classify sets the outcome's error and status.
func classify(out Outcome, err error) Outcome {
	if err != nil {
		err = result.Platform(out.Op, err)
	}
	out.Err = err
	out.Status = result.StatusOf(err)
	return out
}

func (e *Executor) journalOutcome(ctx context.Context, origin *dispatch.Origin, out Outcome) {
	if e.journal == nil {
		return
	}
	entry := audit.Entry{
		Action: out.Action,
		Effect: out.Effect,
		Op:     out.Op,
		Target: out.Target,
		Status: out.Status,
	}
	if origin != nil {
		entry.GuildID = origin.GuildID
		entry.UserID = origin.UserID()
	}
	if out.Err != nil {
		entry.Details = out.Err.Error()
	}
	if out.Reversal != "" {
		entry.Details = fmt.Sprintf("reversal %s", out.Reversal)
	}
	e.journal.Record(ctx, entry)
}
