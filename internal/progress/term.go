package progress

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/mikkurogue/jj-ryu/internal/plan"
)

// termOutput drives color-capability detection for stderr (see
// colorEnabled). Whether to animate the spinner at all is decided
// separately by stderrIsTTY, which asks go-isatty.
var termOutput = termenv.NewOutput(os.Stderr)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Term is the terminal progress sink. It renders one spinner line per
// in-flight step on stderr and freezes it into a result line when the
// step completes, matching the teacher's startDelayedSpinner rhythm
// but driven by Notify calls instead of a single blocking operation.
type Term struct {
	mu      sync.Mutex
	active  bool
	done    chan struct{}
	stopped chan struct{}
	label   string
}

func NewTerm() *Term { return &Term{} }

func (t *Term) Notify(e Event) {
	switch e.Phase {
	case PhaseStarted:
		t.startSpinner(stepLabel(e.Kind, e.Bookmark))
	case PhaseCompleted:
		t.freeze(renderMark(okStyle, "✓")+" "+stepLabel(e.Kind, e.Bookmark), e.Detail)
	case PhaseFailed:
		detail := e.Detail
		if e.Err != nil {
			detail = e.Err.Error()
		}
		t.freeze(renderMark(failStyle, "✗")+" "+stepLabel(e.Kind, e.Bookmark), detail)
	case PhaseSkipped:
		t.freeze(renderMark(skipStyle, "–")+" "+stepLabel(e.Kind, e.Bookmark), e.Detail)
	}
}

// renderMark applies style only when stderr supports color, so a
// dumb terminal or a piped log file gets plain glyphs instead of raw
// SGR escapes.
func renderMark(style lipgloss.Style, glyph string) string {
	if !colorEnabled() {
		return glyph
	}
	return style.Render(glyph)
}

func stepLabel(kind plan.StepKind, bookmark string) string {
	return fmt.Sprintf("%s %s", kind, bookmark)
}

func (t *Term) startSpinner(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !stderrIsTTY() {
		fmt.Fprintf(os.Stderr, "%s...\n", label)
		return
	}
	t.label = label
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})
	t.active = true
	done, stopped, label := t.done, t.stopped, t.label
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(90 * time.Millisecond)
		defer ticker.Stop()
		i := 0
		for {
			frame := renderMark(spinnerStyle, spinnerFrames[i%len(spinnerFrames)])
			fmt.Fprintf(os.Stderr, "\r%s %s", frame, label)
			i++
			select {
			case <-done:
				fmt.Fprint(os.Stderr, "\r\033[2K")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (t *Term) freeze(resultLine, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active {
		close(t.done)
		<-t.stopped
		t.active = false
	}
	if detail != "" {
		fmt.Fprintf(os.Stderr, "%s %s\n", resultLine, renderDetail(detail))
		return
	}
	fmt.Fprintln(os.Stderr, resultLine)
}

func renderDetail(detail string) string {
	if !colorEnabled() {
		return detail
	}
	return dimStyle.Render(detail)
}

func stderrIsTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd())
}

// colorEnabled reports whether termenv detected a color-capable
// terminal on stderr; on a dumb terminal (Ascii profile) the result
// lines fall back to unstyled text rather than emitting raw escapes.
func colorEnabled() bool {
	return termOutput.Profile != termenv.Ascii
}
