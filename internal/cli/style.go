package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("211"))
)

// printer writes demo output, styled only when it goes to a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &printer{w: w, styled: styled}
}

func (p *printer) header(title string) {
	if p.styled {
		title = headerStyle.Render(title)
	} else {
		title = "== " + title + " =="
	}
	fmt.Fprintln(p.w, title)
}

func (p *printer) field(key string, value any) {
	v := fmt.Sprint(value)
	if p.styled {
		v = valueStyle.Render(v)
	}
	fmt.Fprintf(p.w, "%s: %s\n", key, v)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}
