package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-scripts/chapterhook/internal/types"
)

// GetString reads a string setting. Absent, empty or non-string values
// yield def.
func GetString(ctx context.Context, s Store, key, def string) (string, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	var v string
	if json.Unmarshal(raw, &v) != nil || v == "" {
		return def, nil
	}
	return v, nil
}

// GetInt reads a number that may have been stored as text or as a JSON
// number. Absent, empty, zero, fractional and unparseable values yield def.
func GetInt(ctx context.Context, s Store, key string, def int) (int, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return parseInt(raw, def), nil
}

func parseInt(raw json.RawMessage, def int) int {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	// fractions, NaN and values outside int yield def as well
	if f == 0 || f != math.Trunc(f) || f < math.MinInt || f >= math.MaxInt {
		return def
	}
	return int(f)
}

// GetBool reads a boolean setting. Anything other than a JSON boolean yields def.
func GetBool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return def, nil
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return def, nil
}

// Rules maps a hostname to its saved rule. A nil entry means the user
// cleared the rule for that host.
type Rules map[string]*types.Rule

// GetRules reads the customExtractors map. Entries that are not JSON
// objects are reported in skipped and left out of the map.
func GetRules(ctx context.Context, s Store) (rules Rules, skipped []string, err error) {
	rules = make(Rules)
	raw, ok, err := s.Get(ctx, KeyCustomExtractors)
	if err != nil || !ok {
		return rules, nil, err
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		// anything but an object behaves like an empty map
		return rules, nil, nil
	}
	for host, entry := range entries {
		if string(entry) == "null" {
			rules[host] = nil
			continue
		}
		var r types.Rule
		if err := json.Unmarshal(entry, &r); err != nil {
			skipped = append(skipped, host)
			continue
		}
		rules[host] = &r
	}
	return rules, skipped, nil
}

// SetChapterNo stores the chapter number as text, the way the settings
// editor writes it.
func SetChapterNo(ctx context.Context, s Store, chapterNo int) error {
	if err := s.Set(ctx, KeyChapterNo, strconv.Itoa(chapterNo)); err != nil {
		return fmt.Errorf("advance chapter number: %w", err)
	}
	return nil
}
