package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/go-scripts/chapterhook/internal/extract"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/notify"
	"github.com/go-scripts/chapterhook/internal/types"
)

// Tab is an open Chrome tab. It is the page and the toaster of its agent.
type Tab struct {
	id       string
	ctx      context.Context
	cancel   context.CancelFunc
	tracker  TabTracker
	endpoint *messaging.LocalEndpoint

	mu  sync.RWMutex
	url string
}

// ID returns the tab id used by the messaging hub
func (t *Tab) ID() string {
	return t.id
}

// URL returns the address of the top-level frame
func (t *Tab) URL() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.url
}

func (t *Tab) setURL(url string) {
	t.mu.Lock()
	t.url = url
	t.mu.Unlock()
}

func (t *Tab) onEvent(ev any) {
	if e, ok := ev.(*page.EventFrameNavigated); ok && e.Frame.ParentID == "" {
		t.setURL(e.Frame.URL)
		if t.tracker != nil {
			t.tracker.SetURL(t.id, e.Frame.URL)
		}
	}
}

// run executes actions in the tab until ctx or the tab is done
func (t *Tab) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Document returns the live DOM of the tab
func (t *Tab) Document(context.Context) (extract.Document, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, fmt.Errorf("tab closed: %w", err)
	}
	return liveDocument{tab: t}, nil
}

// Toast shows msg in the bottom-right corner of the page for notify.ToastTTL
func (t *Tab) Toast(ctx context.Context, msg string) {
	// pages that reject the script simply show nothing
	_ = t.run(ctx, chromedp.Evaluate(toastScript(msg), nil))
}

type liveDocument struct {
	tab *Tab
}

func (d liveDocument) QueryFirst(ctx context.Context, selector string) (extract.Node, error) {
	return d.query(ctx, "document", selector)
}

func (d liveDocument) ShadowRoots(ctx context.Context) ([]extract.Scope, error) {
	var n int
	if err := d.tab.run(ctx, chromedp.Evaluate(shadowCountScript, &n)); err != nil {
		return nil, err
	}
	scopes := make([]extract.Scope, 0, n)
	for i := range n {
		scopes = append(scopes, shadowScope{doc: d, index: i})
	}
	return scopes, nil
}

// QueryFirstInShadowRoots scans the hosts and matches selector in one
// evaluation, so the host list cannot change between the two.
func (d liveDocument) QueryFirstInShadowRoots(ctx context.Context, selector string) (extract.Node, error) {
	return d.eval(ctx, shadowQueryScript(selector))
}

func (d liveDocument) query(ctx context.Context, scope, selector string) (extract.Node, error) {
	return d.eval(ctx, queryScript(scope, selector))
}

func (d liveDocument) eval(ctx context.Context, script string) (extract.Node, error) {
	var out string
	if err := d.tab.run(ctx, chromedp.Evaluate(script, &out)); err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var node liveNode
	if err := json.Unmarshal([]byte(out), &node); err != nil {
		return nil, fmt.Errorf("decode match: %w", err)
	}
	return node, nil
}

type shadowScope struct {
	doc   liveDocument
	index int
}

func (s shadowScope) QueryFirst(ctx context.Context, selector string) (extract.Node, error) {
	return s.doc.query(ctx, fmt.Sprintf("(%s)[%d].shadowRoot", shadowHostsExpr, s.index), selector)
}

// liveNode is the text of a matched element, read when it was matched
type liveNode struct {
	TextContent string `json:"textContent"`
	InnerText   string `json:"innerText"`
}

func (n liveNode) Text(prop types.Prop) string {
	if prop == types.PropInnerText {
		return n.InnerText
	}
	return n.TextContent
}

// Elements of the main document carrying an open shadow root, in document
// order. Shadow roots nested inside other shadow roots are not reached.
const shadowHostsExpr = `Array.from(document.querySelectorAll('*')).filter(e => e.shadowRoot)`

var shadowCountScript = fmt.Sprintf(`(() => %s.length)()`, shadowHostsExpr)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

const nodeJSON = `JSON.stringify({textContent: el.textContent || "", innerText: el.innerText || ""})`

func queryScript(scope, selector string) string {
	return fmt.Sprintf(`
	(() => {
		const root = %s;
		if (!root) return "";
		const el = root.querySelector(%s);
		if (!el) return "";
		return %s;
	})()
	`, scope, jsString(selector), nodeJSON)
}

func shadowQueryScript(selector string) string {
	return fmt.Sprintf(`
	(() => {
		const sel = %s;
		for (const host of %s) {
			const el = host.shadowRoot.querySelector(sel);
			if (el) return %s;
		}
		return "";
	})()
	`, jsString(selector), shadowHostsExpr, nodeJSON)
}

func toastScript(msg string) string {
	return fmt.Sprintf(`
	(() => {
		let box = document.getElementById("__chapterhook_toasts");
		if (!box) {
			box = document.createElement("div");
			box.id = "__chapterhook_toasts";
			box.style.cssText = "position:fixed;right:16px;bottom:16px;z-index:2147483647;display:flex;flex-direction:column;gap:8px;font:13px/1.4 system-ui,sans-serif;pointer-events:none";
			document.documentElement.appendChild(box);
		}
		const t = document.createElement("div");
		t.textContent = %s;
		t.style.cssText = "background:#222;color:#fff;padding:8px 12px;border-radius:6px;max-width:360px;box-shadow:0 2px 8px rgba(0,0,0,.3)";
		box.appendChild(t);
		setTimeout(() => t.remove(), %d);
		return true;
	})()
	`, jsString(msg), notify.ToastTTL.Milliseconds())
}
