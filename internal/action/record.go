// Package action parses configured action records and executes them.
//
// A record is a JSON object with up to four effect categories:
//
//	{
//	    "messages": ["welcome"],
//	    "commands": {"say": ["hello /1/"]},
//	    "user":     {"ban": {"reason": "raid", "duration": 60, "unban_reason": "expired"}},
//	    "guild":    {"role_create": [{"name": "event", "duration": 3600}]}
//	}
//
// Records are parsed once when configuration is loaded. Unknown categories
// and operations are rejected there rather than skipped at run time.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"configbot/internal/store"

	"emperror.dev/errors"
)

const (
	CategoryMessages = "messages"
	CategoryCommands = "commands"
	CategoryUser     = "user"
	CategoryGuild    = "guild"
)

// UserOpKind is one of the member operations.
type UserOpKind string

const (
	Ban           UserOpKind = "ban"
	Unban         UserOpKind = "unban"
	Kick          UserOpKind = "kick"
	RoleAdd       UserOpKind = "role_add"
	RoleRemove    UserOpKind = "role_remove"
	Timeout       UserOpKind = "timeout"
	TimeoutRemove UserOpKind = "timeout_remove"
	Deafen        UserOpKind = "deafen"
	DeafenRemove  UserOpKind = "deafen_remove"
	Mute          UserOpKind = "mute"
	MuteRemove    UserOpKind = "mute_remove"
)

// reversalReasonKeys names the field holding the audit reason for the
// operation that undoes each user operation. Kick has no reversal.
var reversalReasonKeys = map[UserOpKind]string{
	Ban:           "unban_reason",
	Unban:         "ban_reason",
	Kick:          "",
	RoleAdd:       "role_remove_reason",
	RoleRemove:    "role_add_reason",
	Timeout:       "timeout_remove_reason",
	TimeoutRemove: "timeout_reason",
	Deafen:        "deafen_remove_reason",
	DeafenRemove:  "deafen_reason",
	Mute:          "mute_remove_reason",
	MuteRemove:    "mute_reason",
}

// Reversible reports whether the operation can be undone later.
func (k UserOpKind) Reversible() bool { return reversalReasonKeys[k] != "" }

func (k UserOpKind) role() bool { return k == RoleAdd || k == RoleRemove }

// GuildOpKind is one of the guild operations.
type GuildOpKind string

const (
	RoleCreate GuildOpKind = "role_create"
	RoleDelete GuildOpKind = "role_delete"
	RoleEdit   GuildOpKind = "role_edit"
	GuildEdit  GuildOpKind = "edit"
)

var guildReversalReasonKeys = map[GuildOpKind]string{
	RoleCreate: "delete_reason",
	RoleDelete: "create_reason",
	RoleEdit:   "restore_reason",
	GuildEdit:  "restore_reason",
}

// Effect is one of MessagesEffect, CommandsEffect, UserOp or GuildOp.
type Effect interface {
	Category() string
	isEffect()
}

// MessagesEffect sends the messages of each named command to the user.
type MessagesEffect struct {
	Commands []string
}

// CommandCall runs a command with positional arguments.
type CommandCall struct {
	Name string
	Args []string
}

type CommandsEffect struct {
	Calls []CommandCall
}

// UserOp mutates one member.
type UserOp struct {
	Op UserOpKind
	// Target is the member id or mention. Empty means the invoking user.
	Target string
	// Role is the role id or mention for role_add and role_remove.
	Role           string
	Reason         string
	ReversalReason string
	Duration       time.Duration
	// Until is an RFC 3339 end for timeout. Length is used when Until is empty.
	Until  string
	Length time.Duration
}

// RoleSpec carries role attributes for role_create and role_edit. Nil
// fields are left unchanged.
type RoleSpec struct {
	Name        string
	Color       *int
	Hoist       *bool
	Mentionable *bool
	Permissions *int64
}

// GuildOp mutates the guild or one of its roles.
type GuildOp struct {
	Op             GuildOpKind
	Role           string
	Spec           RoleSpec
	GuildName      string
	Verification   *int
	Reason         string
	ReversalReason string
	Duration       time.Duration
	GiveBack       bool
}

func (MessagesEffect) Category() string { return CategoryMessages }
func (CommandsEffect) Category() string { return CategoryCommands }
func (UserOp) Category() string         { return CategoryUser }
func (GuildOp) Category() string        { return CategoryGuild }

func (MessagesEffect) isEffect() {}
func (CommandsEffect) isEffect() {}
func (UserOp) isEffect()         {}
func (GuildOp) isEffect()        {}

// Record is a parsed action.
type Record struct {
	Name     string
	Messages *MessagesEffect
	Commands *CommandsEffect
	User     []UserOp
	Guild    []GuildOp
}

// Effects lists the record's effects in execution order: messages,
// commands, user operations, guild operations.
func (r Record) Effects() []Effect {
	var out []Effect
	if r.Messages != nil {
		out = append(out, *r.Messages)
	}
	if r.Commands != nil {
		out = append(out, *r.Commands)
	}
	for _, op := range r.User {
		out = append(out, op)
	}
	for _, op := range r.Guild {
		out = append(out, op)
	}
	return out
}

// Parse decodes one action record.
func Parse(name string, raw json.RawMessage) (Record, error) {
	record := Record{Name: name}
	members, err := orderedObject(raw)
	if err != nil {
		return Record{}, errors.WithMessage(err, "action "+name)
	}
	for _, m := range members {
		switch m.key {
		case CategoryMessages:
			var names store.Lines
			if err := json.Unmarshal(m.raw, &names); err != nil {
				return Record{}, parseErr(name, m.key, err)
			}
			record.Messages = &MessagesEffect{Commands: names}
		case CategoryCommands:
			calls, err := parseCommands(m.raw)
			if err != nil {
				return Record{}, parseErr(name, m.key, err)
			}
			record.Commands = &CommandsEffect{Calls: calls}
		case CategoryUser:
			ops, err := parseUser(m.raw)
			if err != nil {
				return Record{}, parseErr(name, m.key, err)
			}
			record.User = ops
		case CategoryGuild:
			ops, err := parseGuild(m.raw)
			if err != nil {
				return Record{}, parseErr(name, m.key, err)
			}
			record.Guild = ops
		default:
			return Record{}, errors.Errorf("action %s: unknown effect category %q", name, m.key)
		}
	}
	return record, nil
}

// ParseAll parses every record and reports every failure at once.
func ParseAll(raw map[string]json.RawMessage) (map[string]Record, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make(map[string]Record, len(raw))
	var errs []error
	for _, name := range names {
		record, err := Parse(name, raw[name])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		records[name] = record
	}
	return records, errors.Combine(errs...)
}

func parseErr(action, category string, err error) error {
	return errors.WithMessage(err, fmt.Sprintf("action %s: %s", action, category))
}

func parseCommands(raw json.RawMessage) ([]CommandCall, error) {
	members, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}
	calls := make([]CommandCall, 0, len(members))
	for _, m := range members {
		var args store.Lines
		if err := json.Unmarshal(m.raw, &args); err != nil {
			return nil, errors.WithMessage(err, m.key)
		}
		calls = append(calls, CommandCall{Name: m.key, Args: args})
	}
	return calls, nil
}

type userParams struct {
	ID         store.ID     `json:"id"`
	UserID     store.ID     `json:"user_id"`
	RoleID     store.ID     `json:"role_id"`
	Reason     string       `json:"reason"`
	KickReason string       `json:"kick_reason"`
	Duration   store.Scalar `json:"duration"`
	Until      string       `json:"until"`
	Length     store.Scalar `json:"length"`
}

func parseUser(raw json.RawMessage) ([]UserOp, error) {
	members, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}
	var ops []UserOp
	for _, m := range members {
		kind := UserOpKind(m.key)
		reversalKey, known := reversalReasonKeys[kind]
		if !known {
			return nil, errors.Errorf("unknown user operation %q", m.key)
		}
		items, err := oneOrMany(m.raw)
		if err != nil {
			return nil, errors.WithMessage(err, m.key)
		}
		for _, item := range items {
			op, err := parseUserOp(kind, reversalKey, item)
			if err != nil {
				return nil, errors.WithMessage(err, m.key)
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func parseUserOp(kind UserOpKind, reversalKey string, raw json.RawMessage) (UserOp, error) {
	var p userParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return UserOp{}, err
	}
	extra := map[string]store.Scalar{}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return UserOp{}, err
	}

	op := UserOp{Op: kind, Reason: p.Reason, Until: p.Until}
	if kind == Kick && op.Reason == "" {
		op.Reason = p.KickReason
	}
	if reversalKey != "" {
		op.ReversalReason = string(extra[reversalKey])
	}

	// For role operations "id" names the role; otherwise it names the member.
	if kind.role() {
		op.Role = string(p.RoleID)
		if op.Role == "" {
			op.Role = string(p.ID)
		}
		op.Target = string(p.UserID)
		if op.Role == "" {
			return UserOp{}, errors.New("role id is required")
		}
	} else {
		op.Target = string(p.UserID)
		if op.Target == "" {
			op.Target = string(p.ID)
		}
	}

	var err error
	if op.Duration, err = seconds(p.Duration); err != nil {
		return UserOp{}, errors.WithMessage(err, "duration")
	}
	if op.Length, err = seconds(p.Length); err != nil {
		return UserOp{}, errors.WithMessage(err, "length")
	}
	if kind == Timeout && op.Until == "" && op.Length <= 0 {
		return UserOp{}, errors.New("timeout needs until or length")
	}
	if op.Until != "" && !isToken(op.Until) {
		if _, err := time.Parse(time.RFC3339, op.Until); err != nil {
			return UserOp{}, errors.WithMessage(err, "until")
		}
	}
	return op, nil
}

type guildParams struct {
	ID                store.ID      `json:"id"`
	RoleID            store.ID      `json:"role_id"`
	Name              string        `json:"name"`
	Color             *store.Scalar `json:"color"`
	Hoist             *bool         `json:"hoist"`
	Mentionable       *bool         `json:"mentionable"`
	Permissions       *store.Scalar `json:"permissions"`
	VerificationLevel *int          `json:"verification_level"`
	Reason            string        `json:"reason"`
	Duration          store.Scalar  `json:"duration"`
	GiveBack          bool          `json:"give_back_roles_to_users"`
}

func parseGuild(raw json.RawMessage) ([]GuildOp, error) {
	members, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}
	var ops []GuildOp
	for _, m := range members {
		kind := GuildOpKind(m.key)
		reversalKey, known := guildReversalReasonKeys[kind]
		if !known {
			return nil, errors.Errorf("unknown guild operation %q", m.key)
		}
		items, err := oneOrMany(m.raw)
		if err != nil {
			return nil, errors.WithMessage(err, m.key)
		}
		for _, item := range items {
			op, err := parseGuildOp(kind, reversalKey, item)
			if err != nil {
				return nil, errors.WithMessage(err, m.key)
			}
			ops = append(ops, op)
		}
	}
	return ops, nil
}

func parseGuildOp(kind GuildOpKind, reversalKey string, raw json.RawMessage) (GuildOp, error) {
	var p guildParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return GuildOp{}, err
	}
	extra := map[string]store.Scalar{}
	if err := json.Unmarshal(raw, &extra); err != nil {
		return GuildOp{}, err
	}

	op := GuildOp{
		Op:             kind,
		Role:           string(p.RoleID),
		Reason:         p.Reason,
		ReversalReason: string(extra[reversalKey]),
		GiveBack:       p.GiveBack,
		Verification:   p.VerificationLevel,
		Spec: RoleSpec{
			Name:        p.Name,
			Hoist:       p.Hoist,
			Mentionable: p.Mentionable,
		},
	}
	if op.Role == "" {
		op.Role = string(p.ID)
	}
	if kind == GuildEdit {
		op.GuildName = p.Name
		op.Spec.Name = ""
	}
	if p.Color != nil {
		color, err := parseColor(string(*p.Color))
		if err != nil {
			return GuildOp{}, err
		}
		op.Spec.Color = &color
	}
	if p.Permissions != nil {
		perms, err := strconv.ParseInt(strings.TrimSpace(string(*p.Permissions)), 10, 64)
		if err != nil {
			return GuildOp{}, errors.WithMessage(err, "permissions")
		}
		op.Spec.Permissions = &perms
	}

	var err error
	if op.Duration, err = seconds(p.Duration); err != nil {
		return GuildOp{}, errors.WithMessage(err, "duration")
	}

	switch kind {
	case RoleCreate:
		if op.Spec.Name == "" {
			return GuildOp{}, errors.New("role name is required")
		}
	case RoleDelete, RoleEdit:
		if op.Role == "" {
			return GuildOp{}, errors.New("role id is required")
		}
	case GuildEdit:
		if op.GuildName == "" && op.Verification == nil {
			return GuildOp{}, errors.New("nothing to edit")
		}
	}
	return op, nil
}

type member struct {
	key string
	raw json.RawMessage
}

// orderedObject splits a JSON object into its members in document order.
func orderedObject(raw json.RawMessage) ([]member, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '{' {
		return nil, errors.New("expected an object")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		out = append(out, member{key: strings.TrimSpace(key), raw: value})
	}
	return out, nil
}

// oneOrMany accepts a single parameter object or a list of them.
func oneOrMany(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return []json.RawMessage{json.RawMessage("{}")}, nil
	case raw[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	case raw[0] == '{':
		return []json.RawMessage{raw}, nil
	default:
		return nil, errors.New("expected an object or a list of objects")
	}
}

func seconds(v store.Scalar) (time.Duration, error) {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("invalid number of seconds %q", s)
	}
	if n <= 0 {
		return 0, nil
	}
	return time.Duration(n * float64(time.Second)), nil
}

// parseColor accepts #rrggbb, 0xrrggbb or a decimal value.
func parseColor(s string) (int, error) {
	s = strings.TrimSpace(s)
	var (
		n   int64
		err error
	)
	switch {
	case strings.HasPrefix(s, "#"):
		n, err = strconv.ParseInt(s[1:], 16, 32)
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		n, err = strconv.ParseInt(s[2:], 16, 32)
	default:
		n, err = strconv.ParseInt(s, 10, 32)
	}
	if err != nil || n < 0 || n > 0xFFFFFF {
		return 0, errors.Errorf("invalid color %q", s)
	}
	return int(n), nil
}

// isToken reports whether s holds a positional or context token that is only
// resolved at run time.
func isToken(s string) bool {
	return strings.ContainsAny(s, "/@")
}
