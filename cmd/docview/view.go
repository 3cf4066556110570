package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/docview/internal/dom"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	matchStyle  = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("214")).Foreground(lipgloss.Color("0"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

const replHelp = `type text to search, empty line for next match
:esc clear search   :theme toggle theme   :copy N copy code block N
:print PATH save printable page   :reload refetch   :show print view
:toc list headings   :q quit`

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Read the document in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		a, err := newApp(ctx, cfg, io.Discard, &terminalViewport{out: out})
		if err != nil {
			return err
		}
		defer a.Close()
		a.precache(ctx)

		r := &repl{app: a, in: cmd.InOrStdin(), out: out}
		return r.run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

type repl struct {
	app *app
	in  io.Reader
	out io.Writer
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, titleStyle.Render(r.app.cfg.DocumentURL))
	r.reload(ctx)
	fmt.Fprintln(r.out, hintStyle.Render(replHelp))

	sc := bufio.NewScanner(r.in)
	for {
		fmt.Fprint(r.out, "> ")
		if !sc.Scan() {
			return sc.Err()
		}
		if quit := r.handle(ctx, sc.Text()); quit {
			return nil
		}
	}
}

// handle runs one input line and reports whether to quit.
func (r *repl) handle(ctx context.Context, line string) bool {
	s := r.app.session
	line = strings.TrimSpace(line)
	cmd, arg, _ := strings.Cut(line, " ")

	switch {
	case line == "":
		if s.Next() < 0 {
			fmt.Fprintln(r.out, hintStyle.Render("no matches"))
			return false
		}
	case cmd == ":q" || cmd == ":quit":
		return true
	case cmd == ":esc":
		r.check(s.Clear())
	case cmd == ":theme":
		next, err := s.ToggleTheme()
		r.check(err)
		fmt.Fprintln(r.out, statusStyle.Render("theme: "+string(next)))
		return false
	case cmd == ":copy":
		n, err := strconv.Atoi(arg)
		if err != nil {
			r.check(fmt.Errorf("usage: :copy N"))
			return false
		}
		if err := s.Copy(n - 1); err == nil {
			fmt.Fprintln(r.out, statusStyle.Render(fmt.Sprintf("copied block %d", n)))
		} else {
			r.check(err)
		}
		return false
	case cmd == ":print":
		r.check(printTo(ctx, s, arg))
		return false
	case cmd == ":reload":
		r.reload(ctx)
		return false
	case cmd == ":toc":
		o, err := s.Outline()
		if err != nil {
			r.check(err)
			return false
		}
		fmt.Fprint(r.out, o.String())
		return false
	case cmd == ":show":
		fmt.Fprintln(r.out, compact(s.ContentText()))
		return false
	case cmd == ":help":
		fmt.Fprintln(r.out, hintStyle.Render(replHelp))
		return false
	case strings.HasPrefix(cmd, ":"):
		r.check(fmt.Errorf("unknown command %s", cmd))
		return false
	default:
		r.check(s.SearchNow(line))
	}
	r.status()
	return false
}

func (r *repl) reload(ctx context.Context) {
	if err := r.app.session.Load(ctx); err != nil {
		r.check(err)
	}
	fmt.Fprintln(r.out, compact(r.app.session.ContentText()))
	r.status()
}

func (r *repl) status() {
	st := r.app.session.Snapshot()
	msg := fmt.Sprintf("theme %s, %d code blocks", st.Theme, st.CodeBlocks)
	if st.Query != "" {
		msg = fmt.Sprintf("%q: match %d of %d, ", st.Query, st.Active+1, st.Matches) + msg
	}
	fmt.Fprintln(r.out, statusStyle.Render(msg))
}

func (r *repl) check(err error) {
	if err != nil {
		fmt.Fprintln(r.out, errorStyle.Render(err.Error()))
	}
}

func printTo(ctx context.Context, s interface {
	Print(context.Context, io.Writer) error
}, path string) error {
	if path == "" {
		return errors.New("usage: :print PATH")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Print(ctx, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// compact drops blank lines from rendered text.
func compact(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimRight(l, " \t"))
		}
	}
	return strings.Join(lines, "\n")
}

// terminalViewport "scrolls" by printing the block holding the active
// match with the match highlighted.
type terminalViewport struct {
	out io.Writer
}

func (v *terminalViewport) ScrollIntoView(n *html.Node) {
	block := dom.Closest(n, isBlock)
	if block == nil {
		block = n
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c == n {
			b.WriteString(matchStyle.Render(dom.Text(c)))
			return
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(block)
	fmt.Fprintln(v.out, "  "+strings.Join(strings.Fields(b.String()), " "))
}

func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Td, atom.Th, atom.Blockquote, atom.Dd, atom.Dt:
		return true
	}
	return false
}
