// Package command holds the built-in commands. Every command answers with the
// messages configured in its document and is guarded by the document's
// restrictions.
package command

import (
	"context"
	"strings"

	"configbot/internal/action"
	"configbot/internal/analytics"
	"configbot/internal/dispatch"
	"configbot/internal/leveling"
	"configbot/internal/placeholder"
	"configbot/internal/platform"
	"configbot/internal/restrict"
	"configbot/internal/result"
	"configbot/internal/storage"
	"configbot/internal/store"

	"emperror.dev/errors"
	"go.uber.org/zap"
)

// ErrRestricted is the cause of a refused invocation.
const ErrRestricted = errors.Sentinel("restricted")

type ArgKind int

const (
	ArgString ArgKind = iota
	ArgInteger
	ArgUser
	ArgRole
)

// Arg is one positional argument. Rest takes every remaining word.
type Arg struct {
	Name     string
	Kind     ArgKind
	Required bool
	Rest     bool
}

// Call is one invocation of a command.
type Call struct {
	Name   string
	Origin *dispatch.Origin
	Args   []string
}

func (c *Call) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return strings.TrimSpace(c.Args[i])
}

// Rest joins the arguments from i on.
func (c *Call) Rest(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return strings.TrimSpace(strings.Join(c.Args[i:], " "))
}

// Handler runs a command and returns the placeholder values of its reply.
type Handler func(ctx context.Context, c *Call) (placeholder.Values, error)

type Builtin struct {
	Name        string
	Description string
	Args        []Arg
	Run         Handler
}

// missing returns the first required argument that was not given.
func (b Builtin) missing(args []string) string {
	for i, arg := range b.Args {
		if !arg.Required {
			continue
		}
		if i >= len(args) || strings.TrimSpace(args[i]) == "" {
			return arg.Name
		}
	}
	return ""
}

// Deps are the services the built-in commands drive. Storage, Levels and
// Analytics are optional; commands that need a missing one answer not
// configured.
type Deps struct {
	Store     *store.Store
	Platform  platform.Platform
	Dispatch  *dispatch.Dispatcher
	Executor  *action.Executor
	Storage   *storage.Store
	Levels    *leveling.Engine
	Analytics *analytics.Service
	Logger    *zap.Logger
}

type Registry struct {
	store     *store.Store
	platform  platform.Platform
	dispatch  *dispatch.Dispatcher
	exec      *action.Executor
	storage   *storage.Store
	levels    *leveling.Engine
	analytics *analytics.Service
	logger    *zap.Logger

	builtins map[string]Builtin
	order    []string
}

func New(deps Deps) *Registry {
	r := &Registry{
		store:     deps.Store,
		platform:  deps.Platform,
		dispatch:  deps.Dispatch,
		exec:      deps.Executor,
		storage:   deps.Storage,
		levels:    deps.Levels,
		analytics: deps.Analytics,
		logger:    deps.Logger,
		builtins:  make(map[string]Builtin),
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	for _, b := range r.builtinCommands() {
		r.builtins[b.Name] = b
		r.order = append(r.order, b.Name)
	}
	return r
}

func (r *Registry) Builtin(name string) (Builtin, bool) {
	b, ok := r.builtins[name]
	return b, ok
}

// Resolve maps a typed name or alias to a command name. Document-only
// commands resolve as long as their document exists.
func (r *Registry) Resolve(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	if _, ok := r.builtins[name]; ok {
		return name, true
	}
	if _, ok := r.store.Command(name); ok {
		return name, true
	}
	for _, candidate := range r.names() {
		doc, ok := r.store.Command(candidate)
		if !ok {
			continue
		}
		for _, alias := range doc.Aliases {
			if strings.EqualFold(alias, name) {
				return candidate, true
			}
		}
	}
	return "", false
}

// names lists built-ins first, then document-only commands.
func (r *Registry) names() []string {
	out := append([]string(nil), r.order...)
	for _, name := range r.store.CommandNames() {
		if _, ok := r.builtins[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Invoke runs a command for origin. It implements action.CommandInvoker, so
// actions reach the same code path as users.
func (r *Registry) Invoke(ctx context.Context, origin *dispatch.Origin, name string, args []string) error {
	if origin == nil {
		origin = &dispatch.Origin{}
	}
	resolved, ok := r.Resolve(name)
	if !ok {
		return result.NotConfigured("command", "unknown command "+name)
	}
	doc, _ := r.store.Command(resolved)
	if !doc.IsEnabled() {
		return result.NotConfigured(resolved, "command disabled")
	}

	subject := restrict.Subject{UserID: origin.UserID(), Roles: origin.Roles(), ChannelID: origin.ChannelID}
	if failed := restrict.Evaluate(doc.Restrictions, subject); failed != "" {
		r.dispatch.Send(ctx, origin, resolved, store.KeyRestricted, placeholder.Values{placeholder.Error: failed})
		r.logger.Debug("command restricted",
			zap.String("command", resolved),
			zap.String("user_id", origin.UserID()),
			zap.String("failed", failed),
		)
		return &result.Error{Kind: result.ErrRejected, Op: resolved, Err: errors.WithMessage(ErrRestricted, failed)}
	}

	b, builtin := r.builtins[resolved]
	if !builtin {
		return r.dispatch.Send(ctx, origin, resolved, "", nil).Err()
	}
	if missing := b.missing(args); missing != "" {
		r.dispatch.Send(ctx, origin, resolved, store.KeyInvalidArgs, placeholder.Values{placeholder.Error: missing})
		return result.NotConfigured(resolved, "missing argument "+missing)
	}

	values, err := b.Run(ctx, &Call{Name: resolved, Origin: origin, Args: args})
	if err != nil {
		key := store.KeyUnknownError
		var re *replyError
		if errors.As(err, &re) {
			key = re.key
		}
		r.dispatch.Send(ctx, origin, resolved, key, values.Merge(placeholder.Values{placeholder.Error: err.Error()}))
		r.logger.Info("command failed",
			zap.String("command", resolved),
			zap.String("user_id", origin.UserID()),
			zap.String("status", string(result.StatusOf(err))),
			zap.Error(err),
		)
		return err
	}
	// A reply that could not be delivered does not undo what the command did.
	r.dispatch.Send(ctx, origin, resolved, "", values)
	return nil
}

// replyError selects the message key answered for a failure.
type replyError struct {
	key string
	err error
}

func (e *replyError) Error() string { return e.err.Error() }

func (e *replyError) Unwrap() error { return e.err }

func fail(key string, err error) error {
	return &replyError{key: key, err: err}
}
