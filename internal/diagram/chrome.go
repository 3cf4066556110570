package diagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// renderScript loads mermaid.js into the blank tab once, then renders one
// diagram. Arguments are JSON literals.
const renderScript = `(async () => {
  if (!window.mermaid) {
    await new Promise((resolve, reject) => {
      const s = document.createElement("script");
      s.src = %s;
      s.onload = resolve;
      s.onerror = () => reject(new Error("mermaid script failed to load"));
      document.head.appendChild(s);
    });
  }
  window.mermaid.initialize(Object.assign({startOnLoad: false, securityLevel: "strict"}, %s));
  const out = await window.mermaid.render(%s, %s);
  return out.svg;
})()`

const maxScriptBytes = 16 << 20

// ChromeOptions configures the headless browser backing ChromeEngine.
type ChromeOptions struct {
	ScriptURL string        // mermaid.js URL
	ExecPath  string        // Chrome binary; empty uses chromedp's lookup
	Timeout   time.Duration // Per-diagram render timeout

	// Client fetches the script on the Go side, so it goes through the
	// offline cache. When nil, or when the fetch fails, the tab loads
	// ScriptURL itself.
	Client *http.Client
}

// ChromeEngine renders mermaid diagrams in a headless Chrome tab. The
// browser is started lazily on the first Render and reused until Close.
type ChromeEngine struct {
	opts ChromeOptions
	log  *slog.Logger

	mu         sync.Mutex
	palette    Palette
	browserCtx context.Context
	cancels    []context.CancelFunc
}

func NewChromeEngine(opts ChromeOptions, log *slog.Logger) *ChromeEngine {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &ChromeEngine{opts: opts, log: log}
}

func (e *ChromeEngine) Initialize(_ context.Context, p Palette) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.palette = p
	return nil
}

func (e *ChromeEngine) Render(ctx context.Context, id, source string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	browserCtx, err := e.browser()
	if err != nil {
		return "", err
	}

	script, err := buildScript(e.opts.ScriptURL, e.palette, id, source)
	if err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(browserCtx, e.opts.Timeout)
	defer cancel()
	// Propagate cancellation of the caller's context into the browser call.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var svg string
	err = chromedp.Run(runCtx,
		chromedp.Evaluate(script, &svg, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return svg, nil
}

// Close shuts the browser down.
func (e *ChromeEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.cancels) - 1; i >= 0; i-- {
		e.cancels[i]()
	}
	e.cancels = nil
	e.browserCtx = nil
}

func (e *ChromeEngine) browser() (context.Context, error) {
	if e.browserCtx != nil {
		return e.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("headless", true),
	)
	if e.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			e.log.Debug(fmt.Sprintf("chromedp: "+format, args...))
		}),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	e.browserCtx = browserCtx
	e.cancels = []context.CancelFunc{allocCancel, browserCancel}

	if e.opts.Client != nil {
		if err := e.preloadScript(browserCtx); err != nil {
			e.log.Warn("mermaid preload failed, tab will fetch it", "url", e.opts.ScriptURL, "error", err)
		}
	}
	return browserCtx, nil
}

// preloadScript fetches mermaid.js through Client and evaluates it in the
// tab, defining window.mermaid before the first render.
func (e *ChromeEngine) preloadScript(browserCtx context.Context) error {
	ctx, cancel := context.WithTimeout(browserCtx, e.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.opts.ScriptURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := e.opts.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch script: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch script: status %d", resp.StatusCode)
	}
	code, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptBytes))
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	var res *runtime.RemoteObject
	return chromedp.Run(ctx, chromedp.Evaluate(string(code), &res))
}

func buildScript(scriptURL string, p Palette, id, source string) (string, error) {
	args := make([]any, 0, 4)
	for _, v := range []any{scriptURL, p, id, source} {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode script argument: %w", err)
		}
		args = append(args, string(b))
	}
	return fmt.Sprintf(renderScript, args...), nil
}
