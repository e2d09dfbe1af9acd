package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-scripts/chapterhook/internal/types"
)

// Globals are the settings the editor writes as text
type Globals struct {
	BackendURL string
	NovelID    string
	ChapterNo  string
}

// Editor writes settings the way the settings form does
type Editor struct {
	store Store
}

// NewEditor creates an Editor over store
func NewEditor(store Store) *Editor {
	return &Editor{store: store}
}

// Load returns the stored globals (defaults filled in) and the rule saved
// under the normalized form of host.
func (e *Editor) Load(ctx context.Context, host string) (Globals, *types.Rule, error) {
	var g Globals
	var err error
	if g.BackendURL, err = GetString(ctx, e.store, KeyBackendURL, DefaultBackendURL); err != nil {
		return Globals{}, nil, err
	}
	if g.NovelID, err = rawText(ctx, e.store, KeyNovelID, strconv.Itoa(DefaultNovelID)); err != nil {
		return Globals{}, nil, err
	}
	if g.ChapterNo, err = rawText(ctx, e.store, KeyChapterNo, strconv.Itoa(DefaultChapterNo)); err != nil {
		return Globals{}, nil, err
	}
	rules, _, err := GetRules(ctx, e.store)
	if err != nil {
		return Globals{}, nil, err
	}
	return g, rules[NormalizeHost(host)], nil
}

// SaveGlobals writes the global settings. Blank fields fall back to their
// defaults and auto-increment is switched back on.
func (e *Editor) SaveGlobals(ctx context.Context, g Globals) error {
	values := []struct {
		key   string
		value any
	}{
		{KeyBackendURL, orDefault(g.BackendURL, DefaultBackendURL)},
		{KeyNovelID, orDefault(g.NovelID, strconv.Itoa(DefaultNovelID))},
		{KeyChapterNo, orDefault(g.ChapterNo, strconv.Itoa(DefaultChapterNo))},
		{KeyAutoIncrement, true},
	}
	for _, v := range values {
		if err := e.store.Set(ctx, v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}

// SetAutoIncrement toggles advancing the chapter number after a successful run
func (e *Editor) SetAutoIncrement(ctx context.Context, on bool) error {
	return e.store.Set(ctx, KeyAutoIncrement, on)
}

// SaveRule stores rule under the normalized host. A nil rule clears it.
func (e *Editor) SaveRule(ctx context.Context, host string, rule *types.Rule) error {
	if rule != nil {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("invalid extractor config: %w", err)
		}
	}

	entries := make(map[string]json.RawMessage)
	raw, ok, err := e.store.Get(ctx, KeyCustomExtractors)
	if err != nil {
		return err
	}
	if ok {
		// a corrupt map is replaced rather than blocking the save
		_ = json.Unmarshal(raw, &entries)
	}

	encoded, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode extractor config: %w", err)
	}
	entries[NormalizeHost(host)] = encoded
	return e.store.Set(ctx, KeyCustomExtractors, entries)
}

// ParseRule decodes a rule typed by the user. "null" and blank input clear
// the rule.
func ParseRule(input string) (*types.Rule, error) {
	input = strings.TrimSpace(input)
	if input == "" || input == "null" {
		return nil, nil
	}
	var r types.Rule
	if err := json.Unmarshal([]byte(input), &r); err != nil {
		return nil, fmt.Errorf("extractor config must be valid JSON: %w", err)
	}
	return &r, nil
}

func rawText(ctx context.Context, s Store, key, def string) (string, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return def, nil
	}
	switch t := v.(type) {
	case string:
		if t != "" {
			return t, nil
		}
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	}
	return def, nil
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
