package clipboard

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/dgallion1/docview/internal/dom"
)

type fakeClipboard struct {
	text string
	err  error
}

func (f *fakeClipboard) WriteText(text string) error {
	if f.err != nil {
		return f.err
	}
	f.text = text
	return nil
}

type pending struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

type manualScheduler struct {
	tasks []*pending
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	p := &pending{delay: d, fn: f}
	s.tasks = append(s.tasks, p)
	return func() bool {
		was := !p.stopped
		p.stopped = true
		return was
	}
}

func (s *manualScheduler) fireAll() {
	tasks := s.tasks
	s.tasks = nil
	for _, p := range tasks {
		if !p.stopped {
			p.fn()
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func contentWith(t *testing.T, markup string) *html.Node {
	t.Helper()
	page, err := dom.NewPage("t")
	require.NoError(t, err)
	require.NoError(t, dom.SetInnerHTML(page.Content, markup))
	return page.Content
}

const twoBlocks = `<pre><code class="language-go">fmt.Println("a")
</code></pre><p>between</p><pre><code>second
</code></pre>`

func TestAttachCopyControls_Idempotent(t *testing.T) {
	root := contentWith(t, twoBlocks)
	e := NewEnhancer(&fakeClipboard{}, &manualScheduler{}, 0, testLogger())

	assert.Equal(t, 2, e.AttachCopyControls(root))
	assert.Equal(t, 0, e.AttachCopyControls(root))
	assert.Len(t, e.Controls(root), 2)
}

func TestAttachCopyControls_SkipsDiagrams(t *testing.T) {
	root := contentWith(t, `<div class="mermaid"><pre>graph</pre></div>`)
	e := NewEnhancer(&fakeClipboard{}, &manualScheduler{}, 0, testLogger())
	assert.Equal(t, 0, e.AttachCopyControls(root))
}

func TestClick_CopiesCodeTextAndReverts(t *testing.T) {
	root := contentWith(t, twoBlocks)
	clip := &fakeClipboard{}
	sched := &manualScheduler{}
	e := NewEnhancer(clip, sched, 0, testLogger())
	e.AttachCopyControls(root)

	btn := e.Controls(root)[0]
	require.NoError(t, e.Click(btn))
	assert.Equal(t, "fmt.Println(\"a\")\n", clip.text)
	assert.Equal(t, LabelCopied, dom.Text(btn))

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, DefaultFeedbackDelay, sched.tasks[0].delay)
	sched.fireAll()
	assert.Equal(t, LabelIdle, dom.Text(btn))
}

func TestClick_FailureShowsError(t *testing.T) {
	root := contentWith(t, twoBlocks)
	clip := &fakeClipboard{err: errors.New("permission denied")}
	sched := &manualScheduler{}
	e := NewEnhancer(clip, sched, 500*time.Millisecond, testLogger())
	e.AttachCopyControls(root)

	btn := e.Controls(root)[1]
	err := e.Click(btn)
	assert.Error(t, err)
	assert.Equal(t, LabelError, dom.Text(btn))

	require.Len(t, sched.tasks, 1)
	assert.Equal(t, 500*time.Millisecond, sched.tasks[0].delay)
	sched.fireAll()
	assert.Equal(t, LabelIdle, dom.Text(btn))
}

func TestClick_RepeatedClickRestartsRevert(t *testing.T) {
	root := contentWith(t, twoBlocks)
	sched := &manualScheduler{}
	e := NewEnhancer(&fakeClipboard{}, sched, 0, testLogger())
	e.AttachCopyControls(root)
	btn := e.Controls(root)[0]

	require.NoError(t, e.Click(btn))
	require.NoError(t, e.Click(btn))
	require.Len(t, sched.tasks, 2)
	assert.True(t, sched.tasks[0].stopped)
	assert.False(t, sched.tasks[1].stopped)
}

func TestClick_PreWithoutCode(t *testing.T) {
	root := contentWith(t, `<pre>raw text</pre>`)
	clip := &fakeClipboard{}
	e := NewEnhancer(clip, &manualScheduler{}, 0, testLogger())
	e.AttachCopyControls(root)

	require.NoError(t, e.Click(e.Controls(root)[0]))
	assert.Equal(t, "raw text", clip.text)
}

func TestClick_RejectsOtherNodes(t *testing.T) {
	e := NewEnhancer(&fakeClipboard{}, &manualScheduler{}, 0, testLogger())
	assert.ErrorIs(t, e.Click(dom.NewElement("button")), ErrNotControl)
}

func TestClick_StaleRevertKeepsNewFeedback(t *testing.T) {
	root := contentWith(t, twoBlocks)
	sched := &manualScheduler{}
	e := NewEnhancer(&fakeClipboard{}, sched, 0, testLogger())
	e.AttachCopyControls(root)
	btn := e.Controls(root)[0]

	require.NoError(t, e.Click(btn))
	require.NoError(t, e.Click(btn))
	require.Len(t, sched.tasks, 2)

	// The first timer already fired and was waiting when the second click
	// tried to stop it.
	sched.tasks[0].fn()
	assert.Equal(t, LabelCopied, dom.Text(btn))

	sched.tasks[1].fn()
	assert.Equal(t, LabelIdle, dom.Text(btn))
}
