// Package placeholder replaces /token/ markers in configured text.
package placeholder

import (
	"sort"
	"strconv"
	"strings"
)

const (
	Username   = "/username/"
	RoleName   = "/role_name/"
	Ephemeral  = "/eph/"
	AvatarURL  = "/avatar_url/"
	BotLatency = "/bot_latency/"
	Error      = "/error/"
	Reason     = "/reason/"
	Datetime   = "/datetime/"
	Invite     = "/invite/"
	Number     = "/number/"
	Channel    = "/channel_name/"
	Message    = "/message/"
	XP         = "/xp/"
	Level      = "/level/"
)

// Values maps tokens to their replacement for one invocation.
type Values map[string]string

// With returns a copy of v with token set to value.
func (v Values) With(token, value string) Values {
	out := make(Values, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	out[token] = value
	return out
}

// Merge returns a copy of v overlaid with other.
func (v Values) Merge(other Values) Values {
	out := make(Values, len(v)+len(other))
	for k, val := range v {
		out[k] = val
	}
	for k, val := range other {
		out[k] = val
	}
	return out
}

// Substitute replaces every active token present in values. Tokens outside
// the active set are left as written. Replacement happens in a single pass,
// so a value that itself contains a token is not expanded again.
func Substitute(s string, values Values, active []string) string {
	if s == "" || len(values) == 0 || len(active) == 0 {
		return s
	}
	return NewReplacer(values, active).Replace(s)
}

// Replacer applies one set of values to many strings.
type Replacer struct {
	r *strings.Replacer
}

func NewReplacer(values Values, active []string) *Replacer {
	allowed := make(map[string]struct{}, len(active))
	for _, token := range active {
		allowed[token] = struct{}{}
	}

	tokens := make([]string, 0, len(values))
	for token := range values {
		if _, ok := allowed[token]; ok && token != "" {
			tokens = append(tokens, token)
		}
	}
	// Longest first so overlapping tokens resolve the same way every time.
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	pairs := make([]string, 0, len(tokens)*2)
	for _, token := range tokens {
		pairs = append(pairs, token, values[token])
	}
	return &Replacer{r: strings.NewReplacer(pairs...)}
}

func (r *Replacer) Replace(s string) string {
	if r == nil || r.r == nil {
		return s
	}
	return r.r.Replace(s)
}

// IsActive reports whether token is in the allow-list.
func IsActive(token string, active []string) bool {
	for _, a := range active {
		if a == token {
			return true
		}
	}
	return false
}

// Positional returns the /1/, /2/, ... tokens bound to args.
func Positional(args []string) Values {
	values := make(Values, len(args))
	for i, arg := range args {
		values["/"+strconv.Itoa(i+1)+"/"] = arg
	}
	return values
}

// ReplaceAll substitutes values into s without an allow-list. It is used for
// positional button arguments and action context tokens, which are always on.
func ReplaceAll(s string, values Values) string {
	if s == "" || len(values) == 0 {
		return s
	}
	active := make([]string, 0, len(values))
	for token := range values {
		active = append(active, token)
	}
	return NewReplacer(values, active).Replace(s)
}
