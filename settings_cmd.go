package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/chapterhook/internal/settings"
	"github.com/go-scripts/chapterhook/internal/types"
)

// SettingsCmd groups the settings editing commands
type SettingsCmd struct {
	Show          ShowCmd          `cmd:"" help:"Show the saved settings"`
	Set           SetCmd           `cmd:"" help:"Save backend URL, novel id and chapter number"`
	AutoIncrement AutoIncrementCmd `cmd:"" name:"auto-increment" help:"Turn chapter auto-increment on or off"`
	Extractor     ExtractorCmd     `cmd:"" help:"Save or clear the extractor rule of a host"`
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Bold(true)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// ShowCmd prints the settings a run would use
type ShowCmd struct {
	Host string `arg:"" optional:"" help:"Also resolve the extractor rule for this host"`
	JSON bool   `help:"Print machine readable JSON"`

	out io.Writer
}

type settingsView struct {
	BackendURL    string                 `json:"backendUrl"`
	NovelID       int                    `json:"novelId"`
	ChapterNo     int                    `json:"chapterNo"`
	AutoIncrement bool                   `json:"autoIncrementChapterNo"`
	Extractors    map[string]*types.Rule `json:"customExtractors"`
	Skipped       []string               `json:"skipped,omitempty"`
	Host          string                 `json:"host,omitempty"`
	Rule          *types.Rule            `json:"rule,omitempty"`
}

func (c *ShowCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := settings.NewResolver(a.store, a.logger).Resolve(ctx, c.Host)
	if err != nil {
		return err
	}
	rules, skipped, err := settings.GetRules(ctx, a.store)
	if err != nil {
		return err
	}

	v := settingsView{
		BackendURL:    res.BackendURL,
		NovelID:       res.NovelID,
		ChapterNo:     res.ChapterNo,
		AutoIncrement: res.AutoIncrement,
		Extractors:    rules,
		Skipped:       skipped,
	}
	if c.Host != "" {
		v.Host = res.KeyUsed
		v.Rule = res.Rule
	}

	out := stdout(c.out)
	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	line := func(label, value string) {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-15s", label+":")), valueStyle.Render(value))
	}
	line("Backend URL", v.BackendURL)
	line("Novel ID", fmt.Sprint(v.NovelID))
	line("Chapter", fmt.Sprint(v.ChapterNo))
	line("Auto-increment", fmt.Sprint(v.AutoIncrement))

	hosts := make([]string, 0, len(rules))
	for h := range rules {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	fmt.Fprintln(out, labelStyle.Render("Extractors:"))
	if len(hosts) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, h := range hosts {
		fmt.Fprintf(out, "  %s %s\n", h, ruleString(rules[h]))
	}
	for _, h := range skipped {
		fmt.Fprintf(out, "  %s (malformed, ignored)\n", h)
	}
	if c.Host != "" {
		line("Rule for "+v.Host, ruleString(v.Rule))
	}
	return nil
}

func ruleString(r *types.Rule) string {
	if r == nil {
		return "none"
	}
	data, _ := json.Marshal(r)
	return string(data)
}

// SetCmd writes the global settings. Omitted flags keep their stored value;
// an empty value resets a field to its default.
type SetCmd struct {
	BackendURL *string `name:"backend-url" help:"Chapter backend base URL"`
	NovelID    *string `name:"novel-id" help:"Novel the chapters belong to"`
	ChapterNo  *string `name:"chapter-no" help:"Chapter number of the next capture"`
}

func (c *SetCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	editor := settings.NewEditor(a.store)
	g, _, err := editor.Load(ctx, "")
	if err != nil {
		return err
	}
	if c.BackendURL != nil {
		g.BackendURL = *c.BackendURL
	}
	if c.NovelID != nil {
		g.NovelID = *c.NovelID
	}
	if c.ChapterNo != nil {
		g.ChapterNo = *c.ChapterNo
	}
	if err := editor.SaveGlobals(ctx, g); err != nil {
		return err
	}
	a.logger.Info("Saved.", "backend", g.BackendURL, "novel", g.NovelID, "chapter", g.ChapterNo)
	return nil
}

// AutoIncrementCmd toggles advancing the chapter after a successful run
type AutoIncrementCmd struct {
	State string `arg:"" enum:"on,off" help:"on or off"`
}

func (c *AutoIncrementCmd) Run(cli *CLI) error {
	ctx := context.Background()
	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	return settings.NewEditor(a.store).SetAutoIncrement(ctx, c.State == "on")
}

// ExtractorCmd saves the rule of a host. The rule is given as JSON or
// through the individual flags; --clear (or a JSON null) removes it.
type ExtractorCmd struct {
	Host           string `arg:"" help:"Host the rule applies to; a leading www. is dropped"`
	Rule           string `arg:"" optional:"" help:"Rule as JSON"`
	Mode           string `help:"selector or shadowSelector" enum:"selector,shadowSelector," default:""`
	Selector       string `help:"CSS selector"`
	ShadowSelector string `name:"shadow-selector" help:"CSS selector run inside each shadow root"`
	Prop           string `help:"textContent or innerText" enum:"textContent,innerText," default:""`
	Clear          bool   `help:"Remove the rule"`
}

func (c *ExtractorCmd) rule() (*types.Rule, error) {
	if c.Clear {
		return nil, nil
	}
	if strings.TrimSpace(c.Rule) != "" {
		return settings.ParseRule(c.Rule)
	}
	if c.Mode == "" {
		return nil, fmt.Errorf("give a rule as JSON, --mode with selectors, or --clear")
	}
	return &types.Rule{
		Mode:           types.Mode(c.Mode),
		Selector:       c.Selector,
		ShadowSelector: c.ShadowSelector,
		Prop:           types.Prop(c.Prop),
	}, nil
}

func (c *ExtractorCmd) Run(cli *CLI) error {
	rule, err := c.rule()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := settings.NewEditor(a.store).SaveRule(ctx, c.Host, rule); err != nil {
		return err
	}
	if rule == nil {
		a.logger.Info("Extractor cleared.", "host", settings.NormalizeHost(c.Host))
	} else {
		a.logger.Info("Extractor saved.", "host", settings.NormalizeHost(c.Host), "rule", ruleString(rule))
	}
	return nil
}
