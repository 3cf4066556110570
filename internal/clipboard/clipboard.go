package clipboard

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/andybalholm/cascadia"
	atotto "github.com/atotto/clipboard"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/dom"
	"github.com/dgallion1/docview/internal/render"
)

// Control labels.
const (
	LabelIdle   = "Copy"
	LabelCopied = "Copied!"
	LabelError  = "Error"
)

// ControlClass marks an attached copy control.
const ControlClass = "copy-btn"

// DefaultFeedbackDelay is how long a feedback label stays before reverting.
const DefaultFeedbackDelay = 1200 * time.Millisecond

var (
	preBlocks = cascadia.MustCompile("pre")
	controls  = cascadia.MustCompile("pre > button." + ControlClass)
)

var ErrNotControl = errors.New("node is not a copy control")

// Clipboard receives copied text.
type Clipboard interface {
	WriteText(text string) error
}

// System writes to the OS clipboard.
type System struct{}

func (System) WriteText(text string) error {
	if atotto.Unsupported {
		return errors.New("clipboard unsupported on this system")
	}
	return atotto.WriteAll(text)
}

// Scheduler runs f after d, serialized with the caller's other DOM work.
// The returned function cancels it.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// Enhancer attaches copy controls to code blocks and handles their clicks.
type Enhancer struct {
	clip    Clipboard
	sched   Scheduler
	delay   time.Duration
	log     *slog.Logger
	gen     uint64
	reverts map[*html.Node]revert
}

// revert is a scheduled label reset. gen identifies the click that
// scheduled it.
type revert struct {
	gen  uint64
	stop func() bool
}

func NewEnhancer(clip Clipboard, sched Scheduler, delay time.Duration, log *slog.Logger) *Enhancer {
	if delay <= 0 {
		delay = DefaultFeedbackDelay
	}
	return &Enhancer{
		clip:    clip,
		sched:   sched,
		delay:   delay,
		log:     log,
		reverts: make(map[*html.Node]revert),
	}
}

// AttachCopyControls adds a control to every code block under root that
// lacks one and returns how many were added.
func (e *Enhancer) AttachCopyControls(root *html.Node) int {
	added := 0
	for _, pre := range cascadia.QueryAll(root, preBlocks) {
		if hasControl(pre) || insideDiagram(pre) {
			continue
		}
		btn := dom.NewElement("button",
			html.Attribute{Key: "class", Val: ControlClass},
			html.Attribute{Key: "type", Val: "button"},
		)
		btn.AppendChild(dom.NewText(LabelIdle))
		pre.AppendChild(btn)
		added++
	}
	return added
}

// Controls lists attached controls under root in document order.
func (e *Enhancer) Controls(root *html.Node) []*html.Node {
	return cascadia.QueryAll(root, controls)
}

// Click copies the block's visible text and shows transient feedback. The
// returned error is the clipboard failure, already reflected in the label.
func (e *Enhancer) Click(btn *html.Node) error {
	if !dom.HasClass(btn, ControlClass) || btn.Parent == nil {
		return ErrNotControl
	}
	text := blockText(btn.Parent)

	err := e.clip.WriteText(text)
	if err != nil {
		e.log.Warn("copy to clipboard failed", "error", err)
		e.feedback(btn, LabelError)
		return fmt.Errorf("copy code block: %w", err)
	}
	e.feedback(btn, LabelCopied)
	return nil
}

func (e *Enhancer) feedback(btn *html.Node, label string) {
	dom.SetText(btn, label)
	if r, ok := e.reverts[btn]; ok {
		r.stop()
	}
	e.gen++
	gen := e.gen
	stop := e.sched.AfterFunc(e.delay, func() {
		// A timer that fired before a later click stopped it must not
		// cut that click's feedback short.
		if r, ok := e.reverts[btn]; !ok || r.gen != gen {
			return
		}
		delete(e.reverts, btn)
		dom.SetText(btn, LabelIdle)
	})
	e.reverts[btn] = revert{gen: gen, stop: stop}
}

func hasControl(pre *html.Node) bool {
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if dom.HasClass(c, ControlClass) {
			return true
		}
	}
	return false
}

func insideDiagram(n *html.Node) bool {
	return dom.Closest(n, func(n *html.Node) bool { return dom.HasClass(n, render.DiagramClass) }) != nil
}

// blockText is the code element's text, or the block's text minus controls.
func blockText(pre *html.Node) string {
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "code" {
			return dom.Text(c)
		}
	}
	var text string
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if dom.HasClass(c, ControlClass) {
			continue
		}
		text += dom.Text(c)
	}
	return text
}
