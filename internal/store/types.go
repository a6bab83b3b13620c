package store

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID is a platform snowflake. Documents written by hand often carry these as
// JSON numbers, so both forms are accepted without float conversion.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := scalar(data)
	if err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

func (id ID) String() string { return string(id) }

// Scalar is a string that may be written as a JSON string, number or bool.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	v, err := scalar(data)
	if err != nil {
		return err
	}
	*s = Scalar(v)
	return nil
}

func scalar(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(data), nil
}

// Lines is an ordered message template. A bare string is a single line.
type Lines []string

func (l *Lines) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []Scalar
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make(Lines, 0, len(items))
		for _, item := range items {
			out = append(out, string(item))
		}
		*l = out
		return nil
	}
	s, err := scalar(data)
	if err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = Lines{s}
	return nil
}

// MessageTable maps message keys to lines. A bare list binds to
// DefaultMessageKey.
type MessageTable map[string]Lines

func (t *MessageTable) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var m map[string]Lines
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*t = m
		return nil
	}
	var lines Lines
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	if len(lines) == 0 {
		*t = nil
		return nil
	}
	*t = MessageTable{DefaultMessageKey: lines}
	return nil
}

type EmbedTemplate struct {
	Title         string      `json:"title,omitempty"`
	Description   string      `json:"description,omitempty"`
	URL           string      `json:"url,omitempty"`
	Color         Scalar      `json:"color,omitempty"`
	Footer        string      `json:"footer,omitempty"`
	FooterIconURL string      `json:"footer_icon_url,omitempty"`
	ImageURL      string      `json:"image_url,omitempty"`
	ThumbnailURL  string      `json:"thumbnail_url,omitempty"`
	AuthorName    string      `json:"author_name,omitempty"`
	AuthorURL     string      `json:"author_url,omitempty"`
	AuthorIconURL string      `json:"author_icon_url,omitempty"`
	Timestamp     bool        `json:"timestamp,omitempty"`
	Fields        EmbedFields `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFields keeps declaration order. It accepts a list of fields or an
// object whose keys are field names and whose values are either plain text or
// {"value", "inline"}.
type EmbedFields []EmbedField

func (f *EmbedFields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '[' {
		var list []EmbedField
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	var out EmbedFields
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		field := EmbedField{Name: name}
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var body struct {
				Value  Scalar `json:"value"`
				Inline bool   `json:"inline"`
			}
			if err := json.Unmarshal(raw, &body); err != nil {
				return err
			}
			field.Value = string(body.Value)
			field.Inline = body.Inline
		} else {
			value, err := scalar(raw)
			if err != nil {
				return err
			}
			field.Value = value
		}
		out = append(out, field)
	}
	*f = out
	return nil
}

// Route describes extra content delivered to a DM or a channel for a message
// key. Messages and Embeds name message keys; Views name button views.
type Route struct {
	ChannelID ID       `json:"channel_id,omitempty"`
	Messages  []string `json:"messages,omitempty"`
	Embeds    []string `json:"embeds,omitempty"`
	Views     []string `json:"views,omitempty"`
}

func (r Route) Empty() bool {
	return len(r.Messages) == 0 && len(r.Embeds) == 0 && len(r.Views) == 0
}

type Button struct {
	Label    string              `json:"label"`
	Style    string              `json:"style,omitempty"`
	CustomID string              `json:"custom_id,omitempty"`
	URL      string              `json:"url,omitempty"`
	Disabled bool                `json:"disabled,omitempty"`
	Args     map[string][]string `json:"args,omitempty"`
}

type View struct {
	Timeout int      `json:"timeout,omitempty"`
	Buttons []Button `json:"buttons,omitempty"`
}

type RoleManagement struct {
	AllRoles []ID `json:"all_roles_id,omitempty"`
	AnyRoles []ID `json:"any_roles_id,omitempty"`
}

type Restrictions struct {
	All      *bool `json:"all,omitempty"`
	Users    []ID  `json:"users_id,omitempty"`
	AnyRoles []ID  `json:"any_roles_id,omitempty"`
	AllRoles []ID  `json:"all_roles_id,omitempty"`
	Channels []ID  `json:"channels_id,omitempty"`
}

// Settings is config.json.
type Settings struct {
	Prefix             string                     `json:"prefix,omitempty"`
	ActivePlaceholders []string                   `json:"activated_placeholders,omitempty"`
	BlacklistWords     []string                   `json:"blacklist_words,omitempty"`
	Channels           map[string]ID              `json:"channels,omitempty"`
	DM                 map[string]Route           `json:"dm,omitempty"`
	Channel            map[string]Route           `json:"channel,omitempty"`
	Views              map[string]View            `json:"views,omitempty"`
	Actions            map[string]json.RawMessage `json:"actions,omitempty"`
	RoleManagements    map[string]RoleManagement  `json:"role_managements,omitempty"`
}

// Messages is messages.json. Its tables take precedence over the ones in a
// command document.
type Messages struct {
	Messages map[string]Lines         `json:"messages,omitempty"`
	Embeds   map[string]EmbedTemplate `json:"embed_format,omitempty"`
	Args     map[string]string        `json:"args,omitempty"`
}

type WarningLevel struct {
	Roles []ID `json:"roles_id"`
}

// Warnings is warnings.json. The document may be the level list itself.
type Warnings struct {
	Levels []WarningLevel `json:"levels"`
}

func (w *Warnings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &w.Levels)
	}
	var doc struct {
		Levels []WarningLevel `json:"levels"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	w.Levels = doc.Levels
	return nil
}

type Command struct {
	Name         string                   `json:"-"`
	Description  string                   `json:"description,omitempty"`
	Enabled      *bool                    `json:"enabled,omitempty"`
	Aliases      []string                 `json:"aliases,omitempty"`
	MessageNames []string                 `json:"message_names,omitempty"`
	Messages     MessageTable             `json:"messages,omitempty"`
	Embeds       map[string]EmbedTemplate `json:"embed_format,omitempty"`
	Args         map[string]string        `json:"args,omitempty"`
	Restrictions Restrictions             `json:"restrictions,omitempty"`

	loaded bool
}

func (c Command) present() bool { return c.loaded }

func (c Command) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type Cooldown struct {
	Messages      int `json:"messages,omitempty"`
	WindowSeconds int `json:"window_seconds,omitempty"`
}

type LevelRules struct {
	XPPerMessage int        `json:"xp_per_message"`
	LevelXP      []int      `json:"level_xp"`
	GlobalMin    int        `json:"global_min"`
	GlobalMax    int        `json:"global_max"`
	UsersMin     map[ID]int `json:"users_min,omitempty"`
	UsersMax     map[ID]int `json:"users_max,omitempty"`
	RolesMin     map[ID]int `json:"roles_min,omitempty"`
	RolesMax     map[ID]int `json:"roles_max,omitempty"`
	Cooldown     Cooldown   `json:"cooldown,omitempty"`
}

type UserLevel struct {
	XP    int `json:"xp"`
	Level int `json:"level"`
}

// Levels is levels.json: the rules plus every user's state.
type Levels struct {
	LevelRules
	Users map[ID]UserLevel `json:"users,omitempty"`
}

// IDs converts platform identifiers for comparisons against document values.
func IDs(values []string) []ID {
	out := make([]ID, 0, len(values))
	for _, v := range values {
		out = append(out, ID(strings.TrimSpace(v)))
	}
	return out
}
