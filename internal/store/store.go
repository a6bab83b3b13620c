package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/patrickmn/go-cache"
)

const (
	SettingsFile = "config.json"
	MessagesFile = "messages.json"
	WarningsFile = "warnings.json"
	LevelsFile   = "levels.json"
	CommandsDir  = "commands"

	DefaultPrefix = "!"
)

// Message keys the bot looks up on its own.
const (
	DefaultMessageKey = "message"

	KeyInvalidMember  = "invalid_member"
	KeyInvalidRole    = "invalid_role"
	KeyInvalidChannel = "invalid_channel"
	KeyInvalidArgs    = "invalid_args"
	KeyUnknownError   = "unknown_error"
	KeyRestricted     = "restricted"
	KeyBlacklisted    = "blacklisted_word"
	KeyViewExpired    = "view_expired"
	KeyLevelUp        = "level_up"
)

// Store is the configuration context. It is built once and handed to every
// component that needs configuration; there is no package level state.
//
// Reads and writes of the in-memory documents are guarded by a mutex. Saves
// rewrite the whole file, so the last writer wins.
type Store struct {
	dir string

	mu       sync.RWMutex
	settings Settings
	messages Messages
	warnings Warnings
	levels   Levels

	commands *cache.Cache
}

type Option func(*Store)

// WithCommandTTL sets how long a command document stays cached after it is
// read. Zero keeps documents until the next save or Reload.
func WithCommandTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl <= 0 {
			ttl = cache.NoExpiration
		}
		s.commands = cache.New(ttl, 2*ttl)
	}
}

func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, commands: cache.New(5*time.Minute, 10*time.Minute)}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads every document from disk and drops cached commands.
func (s *Store) Reload() error {
	var (
		settings Settings
		messages Messages
		warnings Warnings
		levels   Levels
	)
	if err := readJSON(filepath.Join(s.dir, SettingsFile), &settings); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(s.dir, MessagesFile), &messages); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(s.dir, WarningsFile), &warnings); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(s.dir, LevelsFile), &levels); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = settings
	s.messages = messages
	s.warnings = warnings
	s.levels = levels
	s.mu.Unlock()
	s.commands.Flush()
	return nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Prefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.Prefix == "" {
		return DefaultPrefix
	}
	return s.settings.Prefix
}

func (s *Store) ActivePlaceholders() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.settings.ActivePlaceholders)
}

func (s *Store) BlacklistWords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.settings.BlacklistWords)
}

func (s *Store) SetBlacklistWords(words []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.BlacklistWords = slices.Clone(words)
}

// ChannelFor returns the explicit target channel configured for a message key.
func (s *Store) ChannelFor(key string) (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.settings.Channels[key]
	return id, ok && id != ""
}

func (s *Store) DMRoute(key string) (Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	route, ok := s.settings.DM[key]
	return route, ok && !route.Empty()
}

func (s *Store) ChannelRoute(key string) (Route, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	route, ok := s.settings.Channel[key]
	if !ok || route.Empty() {
		return Route{}, false
	}
	if route.ChannelID == "" {
		route.ChannelID = s.settings.Channels[key]
	}
	return route, true
}

func (s *Store) View(name string) (View, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	view, ok := s.settings.Views[name]
	return view, ok && len(view.Buttons) > 0
}

// ViewNames lists configured views in a stable order.
func (s *Store) ViewNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.settings.Views))
	for name := range s.settings.Views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Action returns the raw action record. Use the action package to parse it.
func (s *Store) Action(name string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.settings.Actions[name]
	return raw, ok
}

func (s *Store) Actions() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.settings.Actions))
	for name, raw := range s.settings.Actions {
		out[name] = raw
	}
	return out
}

func (s *Store) RoleManagements() map[string]RoleManagement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]RoleManagement, len(s.settings.RoleManagements))
	for name, rm := range s.settings.RoleManagements {
		out[name] = rm
	}
	return out
}

func (s *Store) GlobalLines(key string) Lines {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages.Messages[key])
}

func (s *Store) GlobalEmbed(key string) (EmbedTemplate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	embed, ok := s.messages.Embeds[key]
	return embed, ok
}

// CommandLines returns the lines for key, preferring the global table.
func (s *Store) CommandLines(command, key string) Lines {
	if lines := s.GlobalLines(key); len(lines) > 0 {
		return lines
	}
	cmd, ok := s.Command(command)
	if !ok {
		return nil
	}
	return slices.Clone(cmd.Messages[key])
}

// CommandEmbed returns the embed template for key, preferring the global table.
func (s *Store) CommandEmbed(command, key string) (EmbedTemplate, bool) {
	if embed, ok := s.GlobalEmbed(key); ok {
		return embed, true
	}
	cmd, ok := s.Command(command)
	if !ok {
		return EmbedTemplate{}, false
	}
	embed, ok := cmd.Embeds[key]
	return embed, ok
}

func (s *Store) ArgDescription(command, arg string) string {
	s.mu.RLock()
	desc := s.messages.Args[arg]
	s.mu.RUnlock()
	if desc != "" {
		return desc
	}
	if cmd, ok := s.Command(command); ok && cmd.Args[arg] != "" {
		return cmd.Args[arg]
	}
	return fmt.Sprintf("%s argument for command %s is not defined", arg, command)
}

// Command loads commands/<name>.json. A missing document yields a zero
// Command carrying only its name and false.
func (s *Store) Command(name string) (Command, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Command{}, false
	}
	if cached, ok := s.commands.Get(name); ok {
		cmd := cached.(Command)
		return cmd, cmd.present()
	}

	var cmd Command
	path := s.commandPath(name)
	_, statErr := os.Stat(path)
	if err := readJSON(path, &cmd); err != nil {
		cmd = Command{}
	}
	cmd.Name = name
	if statErr != nil {
		s.commands.SetDefault(name, cmd)
		return cmd, false
	}
	cmd.loaded = true
	s.commands.SetDefault(name, cmd)
	return cmd, true
}

// CommandNames lists every command document on disk.
func (s *Store) CommandNames() []string {
	entries, err := os.ReadDir(filepath.Join(s.dir, CommandsDir))
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// CheckCommands decodes every command document and reports the ones that
// fail. Command lookups degrade to an empty command instead.
func (s *Store) CheckCommands() error {
	var errs []error
	for _, name := range s.CommandNames() {
		var cmd Command
		if err := readJSON(s.commandPath(name), &cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Combine(errs...)
}

func (s *Store) WarningLevels() []WarningLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.warnings.Levels)
}

func (s *Store) LevelRules() LevelRules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.levels.LevelRules
}

func (s *Store) UserLevel(userID ID) (UserLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.levels.Users[userID]
	return state, ok
}

func (s *Store) SetUserLevel(userID ID, state UserLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.levels.Users == nil {
		s.levels.Users = make(map[ID]UserLevel)
	}
	s.levels.Users[userID] = state
}

func (s *Store) SaveSettings() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return writeJSON(filepath.Join(s.dir, SettingsFile), s.settings)
}

func (s *Store) SaveLevels() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return writeJSON(filepath.Join(s.dir, LevelsFile), s.levels)
}

func (s *Store) SaveCommand(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("command name is required")
	}
	if err := writeJSON(s.commandPath(cmd.Name), cmd); err != nil {
		return err
	}
	s.commands.Delete(cmd.Name)
	return nil
}

func (s *Store) commandPath(name string) string {
	return filepath.Join(s.dir, CommandsDir, name+".json")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithMessage(err, "read "+path)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.WithMessage(err, "decode "+path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.WithMessage(err, "encode "+path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.WithMessage(err, "create dir for "+path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WithMessage(err, "write "+path)
	}
	return nil
}
