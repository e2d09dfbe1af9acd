package types

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a Rule locates the chapter element
type Mode string

const (
	// ModeSelector queries the main document
	ModeSelector Mode = "selector"
	// ModeShadowSelector queries the shadow roots of the document, first match wins
	ModeShadowSelector Mode = "shadowSelector"
)

// Prop names the text property read off the matched element
type Prop string

const (
	PropTextContent Prop = "textContent"
	PropInnerText   Prop = "innerText"
)

// Rule is the per-site extraction configuration saved by the user
type Rule struct {
	Mode           Mode   `json:"mode"`
	Selector       string `json:"selector,omitempty"`
	ShadowSelector string `json:"shadowSelector,omitempty"`
	Prop           Prop   `json:"prop,omitempty"`
}

// EffectiveProp resolves the text property. Only an explicit innerText
// request selects innerText.
func (r Rule) EffectiveProp() Prop {
	if r.Prop == PropInnerText {
		return PropInnerText
	}
	return PropTextContent
}

// ShadowQuery returns the selector used inside shadow roots. Rules written
// with only "selector" still work in shadow mode.
func (r Rule) ShadowQuery() string {
	if r.ShadowSelector != "" {
		return r.ShadowSelector
	}
	return r.Selector
}

// Validate rejects rules the extractor could never satisfy
func (r Rule) Validate() error {
	switch r.Mode {
	case ModeSelector:
		if strings.TrimSpace(r.Selector) == "" {
			return errors.New("selector mode requires a selector")
		}
	case ModeShadowSelector:
		if strings.TrimSpace(r.ShadowQuery()) == "" {
			return errors.New("shadowSelector mode requires a shadowSelector")
		}
	default:
		return fmt.Errorf("unknown mode: %q", r.Mode)
	}
	switch r.Prop {
	case "", PropTextContent, PropInnerText:
	default:
		return fmt.Errorf("unknown prop: %q", r.Prop)
	}
	return nil
}

// Result is the outcome of one extraction. Text is trimmed and non-empty
// whenever OK is true.
type Result struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Success builds an OK result
func Success(text string) Result {
	return Result{OK: true, Text: text}
}

// Failure builds a failed result carrying msg
func Failure(msg string) Result {
	return Result{OK: false, Error: msg}
}

// Tab identifies a browser tab the host can talk to
type Tab struct {
	ID  string
	URL string
}
