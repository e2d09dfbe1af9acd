package settings

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/chapterhook/internal/types"
)

// Defaults applied when a global setting is absent
const (
	DefaultBackendURL    = "http://localhost:8787"
	DefaultNovelID       = 1
	DefaultChapterNo     = 1
	DefaultAutoIncrement = true
)

// RunConfig is the global configuration of a single pipeline run
type RunConfig struct {
	BackendURL    string
	NovelID       int
	ChapterNo     int
	AutoIncrement bool
}

// Resolved is the settings snapshot for one host
type Resolved struct {
	RunConfig
	// Rule is nil when no rule is saved for the host
	Rule *types.Rule
	// KeyUsed is the normalized hostname
	KeyUsed string
}

// NormalizeHost strips a single leading "www." and otherwise keeps the host as is
func NormalizeHost(host string) string {
	return strings.TrimPrefix(host, "www.")
}

// Resolver reads settings for a host from a Store
type Resolver struct {
	store  Store
	logger *log.Logger
}

// NewResolver creates a Resolver over store
func NewResolver(store Store, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve reads the run configuration and the rule for host. A missing rule
// is not an error; only a failing store is.
func (r *Resolver) Resolve(ctx context.Context, host string) (Resolved, error) {
	var (
		res Resolved
		err error
	)
	res.KeyUsed = NormalizeHost(host)

	if res.BackendURL, err = GetString(ctx, r.store, KeyBackendURL, DefaultBackendURL); err != nil {
		return Resolved{}, err
	}
	if res.NovelID, err = GetInt(ctx, r.store, KeyNovelID, DefaultNovelID); err != nil {
		return Resolved{}, err
	}
	if res.ChapterNo, err = GetInt(ctx, r.store, KeyChapterNo, DefaultChapterNo); err != nil {
		return Resolved{}, err
	}
	if res.AutoIncrement, err = GetBool(ctx, r.store, KeyAutoIncrement, DefaultAutoIncrement); err != nil {
		return Resolved{}, err
	}

	rules, skipped, err := GetRules(ctx, r.store)
	if err != nil {
		return Resolved{}, err
	}
	for _, h := range skipped {
		r.logger.Warn("Ignoring malformed extractor config", "host", h)
	}

	if rule := rules[res.KeyUsed]; rule != nil {
		res.Rule = rule
	} else if rule := rules[host]; rule != nil {
		res.Rule = rule
	}
	return res, nil
}
