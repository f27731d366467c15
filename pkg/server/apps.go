package server

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// AppSettings are the per-title knobs. They can be reloaded while the
// server runs.
type AppSettings struct {
	AppID                   int32    `toml:"app_id"`
	Name                    string   `toml:"name"`
	MediusVersion           int      `toml:"medius_version"`
	EnableEncryption        bool     `toml:"enable_encryption"`
	GameTimeoutSeconds      int      `toml:"game_timeout_seconds"`
	CreateAccountOnNotFound bool     `toml:"create_account_on_not_found"`
	DisableAccountCreation  bool     `toml:"disable_account_creation"`
	WhitelistEnabled        bool     `toml:"whitelist_enabled"`
	Whitelist               []string `toml:"whitelist"`
	DefaultLobbyName        string   `toml:"default_lobby_name"`
	FilterWords             []string `toml:"filter_words"`
}

const (
	defaultMediusVersion      = 109
	defaultGameTimeoutSeconds = 15
	defaultLobbyName          = "Lobby"
)

// withDefaults fills zero fields
func (a AppSettings) withDefaults() AppSettings {
	if a.MediusVersion == 0 {
		a.MediusVersion = defaultMediusVersion
	}
	if a.GameTimeoutSeconds <= 0 {
		a.GameTimeoutSeconds = defaultGameTimeoutSeconds
	}
	if a.DefaultLobbyName == "" {
		a.DefaultLobbyName = defaultLobbyName
	}
	return a
}

// Whitelisted reports whether name may log in when the whitelist is on
func (a AppSettings) Whitelisted(name string) bool {
	if !a.WhitelistEnabled {
		return true
	}
	for _, w := range a.Whitelist {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}

type appEntry struct {
	settings AppSettings
	filter   *regexp.Regexp
}

// AppTable is the set of titles this process serves
type AppTable struct {
	mu         sync.RWMutex
	apps       map[int32]appEntry
	pre108Apps map[int32]bool
}

// NewAppTable builds a table from apps. Titles in pre108Complete get a
// CONNECT_COMPLETE right after accept on protocol versions up to 108.
func NewAppTable(apps []AppSettings, pre108Complete []int32) *AppTable {
	t := &AppTable{pre108Apps: make(map[int32]bool)}
	for _, id := range pre108Complete {
		t.pre108Apps[id] = true
	}
	t.Replace(apps)
	return t
}

// Replace swaps the whole title list
func (t *AppTable) Replace(apps []AppSettings) {
	next := make(map[int32]appEntry, len(apps))
	for _, a := range apps {
		a = a.withDefaults()
		next[a.AppID] = appEntry{settings: a, filter: compileFilter(a.FilterWords)}
	}
	t.mu.Lock()
	t.apps = next
	t.mu.Unlock()
}

// Lookup returns the settings of appID
func (t *AppTable) Lookup(appID int32) (AppSettings, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.apps[appID]
	return e.settings, ok
}

// IDs returns the configured app ids in ascending order
func (t *AppTable) IDs() []int32 {
	t.mu.RLock()
	ids := make([]int32, 0, len(t.apps))
	for id := range t.apps {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CompletesPre108 reports whether appID is completed at connect on old
// protocol versions
func (t *AppTable) CompletesPre108(appID int32) bool {
	return t.pre108Apps[appID]
}

// PassTextFilter rejects blank text, control characters and any configured
// word of the title
func (t *AppTable) PassTextFilter(appID int32, kind FilterKind, text string) bool {
	if strings.TrimSpace(text) == "" && kind != FilterChat {
		return false
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return false
		}
	}

	t.mu.RLock()
	e, ok := t.apps[appID]
	t.mu.RUnlock()
	if !ok || e.filter == nil {
		return true
	}
	return !e.filter.MatchString(text)
}

// compileFilter builds one case-insensitive alternation of the words
func compileFilter(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
}
