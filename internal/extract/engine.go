// Package extract evaluates extraction rules against a page snapshot.
//
// Extraction is a single synchronous pass over the document as it is at call
// time: there is no waiting for late content and no retry. Every failure,
// including document errors such as an invalid selector, is reported as a
// failed types.Result rather than an error.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-scripts/chapterhook/internal/types"
)

// Failure messages reported to the user
const (
	MsgMissingConfig = "Missing extractor config."
	MsgSelectorEmpty = "Selector returned empty."
	MsgShadowEmpty   = "Shadow selector returned empty."
)

// Node is a matched element
type Node interface {
	Text(prop types.Prop) string
}

// Scope answers selector queries within one tree
type Scope interface {
	// QueryFirst returns the first element matching selector, or nil
	QueryFirst(ctx context.Context, selector string) (Node, error)
}

// Document is a page: its main tree plus the shadow roots attached to its
// elements, in document order. Nested shadow roots are not listed.
type Document interface {
	Scope
	ShadowRoots(ctx context.Context) ([]Scope, error)
}

// ShadowQuerier is a Document that can search every shadow root in a single
// pass. The result must match walking ShadowRoots in order.
type ShadowQuerier interface {
	QueryFirstInShadowRoots(ctx context.Context, selector string) (Node, error)
}

// Extract runs rule against doc
func Extract(ctx context.Context, doc Document, rule *types.Rule) types.Result {
	if rule == nil || doc == nil {
		return types.Failure(MsgMissingConfig)
	}
	prop := rule.EffectiveProp()

	switch rule.Mode {
	case types.ModeSelector:
		node, err := doc.QueryFirst(ctx, rule.Selector)
		return textResult(node, err, prop, MsgSelectorEmpty)
	case types.ModeShadowSelector:
		node, err := firstShadowMatch(ctx, doc, rule.ShadowQuery())
		return textResult(node, err, prop, MsgShadowEmpty)
	default:
		return types.Failure(fmt.Sprintf("Unknown mode: %s", rule.Mode))
	}
}

// firstShadowMatch returns the match from the first shadow root, in host
// document order, that contains one.
func firstShadowMatch(ctx context.Context, doc Document, selector string) (Node, error) {
	if q, ok := doc.(ShadowQuerier); ok {
		return q.QueryFirstInShadowRoots(ctx, selector)
	}
	roots, err := doc.ShadowRoots(ctx)
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		node, err := root.QueryFirst(ctx, selector)
		if err != nil {
			return nil, err
		}
		if node != nil {
			return node, nil
		}
	}
	return nil, nil
}

func textResult(node Node, err error, prop types.Prop, emptyMsg string) types.Result {
	if err != nil {
		return types.Failure(fmt.Sprintf("%s: %v", strings.TrimSuffix(emptyMsg, "."), err))
	}
	if node == nil {
		return types.Failure(emptyMsg)
	}
	text := strings.TrimSpace(node.Text(prop))
	if text == "" {
		return types.Failure(emptyMsg)
	}
	return types.Success(text)
}
