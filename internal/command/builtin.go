package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"configbot/internal/action"
	"configbot/internal/analytics"
	"configbot/internal/audit"
	"configbot/internal/placeholder"
	"configbot/internal/result"
	"configbot/internal/schedule"
	"configbot/internal/store"
	"configbot/internal/utils"
	"configbot/internal/warning"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const defaultReportHours = 24

func (r *Registry) builtinCommands() []Builtin {
	member := Arg{Name: "member", Kind: ArgUser, Required: true}
	optionalMember := Arg{Name: "member", Kind: ArgUser}
	reason := Arg{Name: "reason", Kind: ArgString, Rest: true}
	role := Arg{Name: "role", Kind: ArgRole, Required: true}
	word := Arg{Name: "message", Kind: ArgString, Required: true, Rest: true}

	return []Builtin{
		{Name: "ping", Description: "Show the bot latency", Run: r.ping},
		{Name: "say", Description: "Repeat a message", Args: []Arg{word}, Run: r.say},
		{Name: "avatar", Description: "Show a member's avatar", Args: []Arg{optionalMember}, Run: r.avatar},
		{Name: "ban", Description: "Ban a member", Args: []Arg{member, reason}, Run: r.userOp(action.Ban)},
		{Name: "unban", Description: "Lift a ban", Args: []Arg{{Name: "number", Kind: ArgString, Required: true}, reason}, Run: r.userOp(action.Unban)},
		{Name: "kick", Description: "Kick a member", Args: []Arg{member, reason}, Run: r.userOp(action.Kick)},
		{Name: "timeout", Description: "Time a member out", Args: []Arg{member, {Name: "number", Kind: ArgInteger, Required: true}, reason}, Run: r.timeout},
		{Name: "timeout_remove", Description: "End a member's timeout", Args: []Arg{member, reason}, Run: r.userOp(action.TimeoutRemove)},
		{Name: "role_add", Description: "Give a member a role", Args: []Arg{member, role}, Run: r.roleOp(action.RoleAdd)},
		{Name: "role_remove", Description: "Take a role from a member", Args: []Arg{member, role}, Run: r.roleOp(action.RoleRemove)},
		{Name: "warn", Description: "Warn a member", Args: []Arg{member, reason}, Run: r.warn},
		{Name: "unwarn", Description: "Remove a member's last warning", Args: []Arg{member}, Run: r.unwarn},
		{Name: "warnings", Description: "Show a member's warning level", Args: []Arg{optionalMember}, Run: r.warnings},
		{Name: "level", Description: "Show a member's level", Args: []Arg{optionalMember}, Run: r.level},
		{Name: "set_xp", Description: "Set a member's experience", Args: []Arg{member, {Name: "number", Kind: ArgInteger, Required: true}}, Run: r.setXP},
		{Name: "blacklist_add", Description: "Add a blacklisted word", Args: []Arg{word}, Run: r.blacklistAdd},
		{Name: "blacklist_remove", Description: "Remove a blacklisted word", Args: []Arg{word}, Run: r.blacklistRemove},
		{Name: "action", Description: "Run a configured action", Args: []Arg{{Name: "name", Kind: ArgString, Required: true}, {Name: "args", Kind: ArgString, Rest: true}}, Run: r.runAction},
		{Name: "reversals", Description: "List or cancel pending reversals", Args: []Arg{{Name: "key", Kind: ArgString}}, Run: r.reversals},
		{Name: "report", Description: "Summarise recent actions", Args: []Arg{{Name: "number", Kind: ArgInteger}}, Run: r.report},
	}
}

func (r *Registry) ping(context.Context, *Call) (placeholder.Values, error) {
	return placeholder.Values{
		placeholder.BotLatency: fmt.Sprintf("%dms", r.platform.Latency().Milliseconds()),
	}, nil
}

func (r *Registry) say(_ context.Context, c *Call) (placeholder.Values, error) {
	return placeholder.Values{placeholder.Message: c.Rest(0)}, nil
}

func (r *Registry) avatar(_ context.Context, c *Call) (placeholder.Values, error) {
	if c.Arg(0) == "" {
		return nil, nil
	}
	m, err := r.member(c, 0)
	if err != nil {
		return nil, err
	}
	return userValues(m.User), nil
}

// userOp runs a member operation that takes a target and a reason.
func (r *Registry) userOp(kind action.UserOpKind) Handler {
	return func(ctx context.Context, c *Call) (placeholder.Values, error) {
		target, err := targetID(c, 0)
		if err != nil {
			return nil, err
		}
		values := r.targetValues(c, target)
		reason := c.Rest(1)
		values[placeholder.Reason] = reason
		return values, r.apply(ctx, c, action.UserOp{Op: kind, Target: target, Reason: reason})
	}
}

func (r *Registry) timeout(ctx context.Context, c *Call) (placeholder.Values, error) {
	m, err := r.member(c, 0)
	if err != nil {
		return nil, err
	}
	minutes, err := strconv.Atoi(c.Arg(1))
	if err != nil || minutes <= 0 {
		return nil, fail(store.KeyInvalidArgs, result.NotConfigured(c.Name, "invalid minutes "+c.Arg(1)))
	}
	values := userValues(m.User)
	values[placeholder.Number] = strconv.Itoa(minutes)
	values[placeholder.Reason] = c.Rest(2)
	op := action.UserOp{Op: action.Timeout, Target: m.User.ID, Reason: c.Rest(2), Length: time.Duration(minutes) * time.Minute}
	return values, r.apply(ctx, c, op)
}

func (r *Registry) roleOp(kind action.UserOpKind) Handler {
	return func(ctx context.Context, c *Call) (placeholder.Values, error) {
		m, err := r.member(c, 0)
		if err != nil {
			return nil, err
		}
		role, err := r.role(c, 1)
		if err != nil {
			return nil, err
		}
		values := userValues(m.User)
		values[placeholder.RoleName] = role.Name
		return values, r.apply(ctx, c, action.UserOp{Op: kind, Target: m.User.ID, Role: role.ID})
	}
}

func (r *Registry) warn(ctx context.Context, c *Call) (placeholder.Values, error) {
	return r.moveWarning(ctx, c, warning.Next, 1)
}

func (r *Registry) unwarn(ctx context.Context, c *Call) (placeholder.Values, error) {
	return r.moveWarning(ctx, c, warning.Previous, -1)
}

type stepFunc func([]store.WarningLevel, []string) (warning.Transition, bool)

// moveWarning swaps the member's warning roles one level up or down and
// keeps the warning counter in the journal database in step.
func (r *Registry) moveWarning(ctx context.Context, c *Call, step stepFunc, delta int) (placeholder.Values, error) {
	levels := r.store.WarningLevels()
	if len(levels) == 0 {
		return nil, result.NotConfigured(c.Name, "no warning levels")
	}
	m, err := r.member(c, 0)
	if err != nil {
		return nil, err
	}
	values := userValues(m.User)
	reason := c.Rest(1)
	values[placeholder.Reason] = reason

	tr, ok := step(levels, m.Roles)
	if !ok {
		values[placeholder.Number] = strconv.Itoa(tr.From)
		return values, fail(store.KeyInvalidMember, result.NotConfigured(c.Name, fmt.Sprintf("member already at level %d", tr.From)))
	}
	var errs []error
	for _, id := range tr.Add {
		errs = append(errs, r.apply(ctx, c, action.UserOp{Op: action.RoleAdd, Target: m.User.ID, Role: id}))
	}
	for _, id := range tr.Remove {
		errs = append(errs, r.apply(ctx, c, action.UserOp{Op: action.RoleRemove, Target: m.User.ID, Role: id}))
	}
	if err := errors.Combine(errs...); err != nil {
		return values, err
	}

	if r.storage != nil {
		var count int
		if delta > 0 {
			count, err = r.storage.AddWarning(ctx, c.Origin.GuildID, m.User.ID, reason)
		} else {
			count, err = r.storage.RemoveWarning(ctx, c.Origin.GuildID, m.User.ID)
		}
		if err != nil {
			r.logger.Warn("warning counter update failed", zap.String("user_id", m.User.ID), zap.Error(err))
		} else {
			values[placeholder.Message] = strconv.Itoa(count)
		}
	}
	values[placeholder.Number] = strconv.Itoa(tr.To)
	return values, nil
}

func (r *Registry) warnings(ctx context.Context, c *Call) (placeholder.Values, error) {
	m, err := r.memberOrSelf(c, 0)
	if err != nil {
		return nil, err
	}
	values := userValues(m.User)
	values[placeholder.Number] = strconv.Itoa(warning.LevelFor(r.store.WarningLevels(), m.Roles))
	if r.storage != nil {
		w, err := r.storage.GetWarnings(ctx, c.Origin.GuildID, m.User.ID)
		if err != nil {
			return values, err
		}
		values[placeholder.Message] = strconv.Itoa(w.Count)
		values[placeholder.Reason] = w.LastReason
	}
	return values, nil
}

func (r *Registry) level(_ context.Context, c *Call) (placeholder.Values, error) {
	if r.levels == nil {
		return nil, result.NotConfigured(c.Name, "leveling disabled")
	}
	m, err := r.memberOrSelf(c, 0)
	if err != nil {
		return nil, err
	}
	xp, level := r.levels.State(m.User.ID)
	values := userValues(m.User)
	values[placeholder.XP] = strconv.Itoa(xp)
	values[placeholder.Level] = strconv.Itoa(level)
	return values, nil
}

func (r *Registry) setXP(_ context.Context, c *Call) (placeholder.Values, error) {
	if r.levels == nil {
		return nil, result.NotConfigured(c.Name, "leveling disabled")
	}
	m, err := r.member(c, 0)
	if err != nil {
		return nil, err
	}
	xp, err := strconv.Atoi(c.Arg(1))
	if err != nil || xp < 0 {
		return nil, fail(store.KeyInvalidArgs, result.NotConfigured(c.Name, "invalid xp "+c.Arg(1)))
	}
	res, err := r.levels.SetXP(m.User.ID, m.Roles, xp)
	if err != nil {
		return nil, err
	}
	values := userValues(m.User)
	values[placeholder.XP] = strconv.Itoa(res.XP)
	values[placeholder.Level] = strconv.Itoa(res.Level)
	return values, nil
}

func (r *Registry) blacklistAdd(_ context.Context, c *Call) (placeholder.Values, error) {
	word := strings.ToLower(c.Rest(0))
	words := lo.Uniq(append(r.store.BlacklistWords(), word))
	return r.saveBlacklist(word, words)
}

func (r *Registry) blacklistRemove(_ context.Context, c *Call) (placeholder.Values, error) {
	word := strings.ToLower(c.Rest(0))
	current := r.store.BlacklistWords()
	if !lo.Contains(current, word) {
		return nil, fail(store.KeyInvalidArgs, result.NotConfigured(c.Name, "word not blacklisted"))
	}
	return r.saveBlacklist(word, lo.Without(current, word))
}

func (r *Registry) saveBlacklist(word string, words []string) (placeholder.Values, error) {
	r.store.SetBlacklistWords(words)
	if err := r.store.SaveSettings(); err != nil {
		return nil, errors.WithMessage(err, "save blacklist")
	}
	return placeholder.Values{
		placeholder.Message: word,
		placeholder.Number:  strconv.Itoa(len(words)),
	}, nil
}

func (r *Registry) runAction(ctx context.Context, c *Call) (placeholder.Values, error) {
	name := c.Arg(0)
	if _, ok := r.exec.Record(name); !ok {
		return nil, fail(store.KeyInvalidArgs, result.NotConfigured(c.Name, "unknown action "+name))
	}
	outcomes := r.exec.Execute(ctx, c.Origin, name, c.Args[1:])
	var errs []error
	for _, out := range outcomes {
		if out.Err != nil {
			errs = append(errs, out.Err)
		}
	}
	values := placeholder.Values{
		placeholder.Message: name,
		placeholder.Number:  strconv.Itoa(len(outcomes) - len(errs)),
	}
	return values, errors.Combine(errs...)
}

func (r *Registry) reversals(_ context.Context, c *Call) (placeholder.Values, error) {
	if key := c.Arg(0); key != "" {
		if !r.exec.CancelReversal(key) {
			return nil, fail(store.KeyInvalidArgs, result.NotConfigured(c.Name, "no pending reversal "+key))
		}
		return placeholder.Values{placeholder.Message: key, placeholder.Number: "1"}, nil
	}
	pending := r.exec.Pending()
	lines := lo.Map(pending, func(e schedule.Entry, _ int) string {
		return e.Key + " " + e.Due.UTC().Format(time.RFC3339)
	})
	return placeholder.Values{
		placeholder.Message: strings.Join(lines, "\n"),
		placeholder.Number:  strconv.Itoa(len(pending)),
	}, nil
}

func (r *Registry) report(ctx context.Context, c *Call) (placeholder.Values, error) {
	if r.analytics == nil {
		return nil, result.NotConfigured(c.Name, "journal disabled")
	}
	hours := defaultReportHours
	if raw := c.Arg(0); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fail(store.KeyInvalidArgs, result.NotConfigured(c.Name, "invalid hours "+raw))
		}
		hours = n
	}
	rep, err := r.analytics.Report(ctx, c.Origin.GuildID, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		return nil, err
	}
	return placeholder.Values{
		placeholder.Message: formatReport(rep),
		placeholder.Number:  strconv.Itoa(rep.Total),
	}, nil
}

func formatReport(rep analytics.Report) string {
	line := fmt.Sprintf("Total: %d | INFO: %d | WARN: %d | CRIT: %d",
		rep.Total, rep.ByLevel[audit.LevelInfo], rep.ByLevel[audit.LevelWarn], rep.ByLevel[audit.LevelCrit])
	if top := rep.TopActions(3); len(top) > 0 {
		line += " | top: " + strings.Join(top, ", ")
	}
	return line
}

func (r *Registry) apply(ctx context.Context, c *Call, op action.UserOp) error {
	return r.exec.Apply(ctx, c.Origin, c.Name, op).Err
}

func targetID(c *Call, i int) (string, error) {
	id := utils.MentionID(c.Arg(i))
	if id == "" {
		return "", fail(store.KeyInvalidMember, result.NotConfigured(c.Name, "invalid member "+c.Arg(i)))
	}
	return id, nil
}

// targetValues names a target who may no longer be a member.
func (r *Registry) targetValues(c *Call, id string) placeholder.Values {
	if m, err := r.platform.Member(c.Origin.GuildID, id); err == nil && m != nil && m.User != nil {
		return userValues(m.User)
	}
	return placeholder.Values{placeholder.Username: id, placeholder.Number: id}
}

func (r *Registry) member(c *Call, i int) (*discordgo.Member, error) {
	id, err := targetID(c, i)
	if err != nil {
		return nil, err
	}
	m, err := r.platform.Member(c.Origin.GuildID, id)
	if err != nil {
		return nil, fail(store.KeyInvalidMember, result.Platform("member", err))
	}
	if m == nil {
		return nil, fail(store.KeyInvalidMember, result.NotConfigured(c.Name, "unknown member "+id))
	}
	if m.User == nil {
		m.User = &discordgo.User{ID: id}
	}
	return m, nil
}

// memberOrSelf falls back to the invoking member when no argument is given.
func (r *Registry) memberOrSelf(c *Call, i int) (*discordgo.Member, error) {
	if c.Arg(i) != "" {
		return r.member(c, i)
	}
	if c.Origin.User == nil {
		return nil, fail(store.KeyInvalidMember, result.NotConfigured(c.Name, "no member"))
	}
	m := &discordgo.Member{User: c.Origin.User, Roles: c.Origin.Roles()}
	return m, nil
}

func (r *Registry) role(c *Call, i int) (*discordgo.Role, error) {
	id := utils.MentionID(c.Arg(i))
	if id == "" {
		return nil, fail(store.KeyInvalidRole, result.NotConfigured(c.Name, "invalid role "+c.Arg(i)))
	}
	role, err := r.platform.Role(c.Origin.GuildID, id)
	if err != nil {
		return nil, fail(store.KeyInvalidRole, result.Platform("role", err))
	}
	if role == nil {
		return nil, fail(store.KeyInvalidRole, result.NotConfigured(c.Name, "unknown role "+id))
	}
	return role, nil
}

func userValues(u *discordgo.User) placeholder.Values {
	if u == nil {
		return placeholder.Values{}
	}
	return placeholder.Values{
		placeholder.Username:  u.Username,
		placeholder.Number:    u.ID,
		placeholder.AvatarURL: u.AvatarURL("1024"),
	}
}
