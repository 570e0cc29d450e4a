package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/iudanet/dreamjournal/internal/client/session"
	"github.com/iudanet/dreamjournal/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// Renderer draws the journal. Colors are dropped when out is not a terminal.
type Renderer struct {
	out      io.Writer
	loc      *time.Location
	title    lipgloss.Style
	meta     lipgloss.Style
	body     lipgloss.Style
	comment  lipgloss.Style
	author   lipgloss.Style
	errStyle lipgloss.Style
	okStyle  lipgloss.Style
	faint    lipgloss.Style
}

// NewRenderer creates a renderer writing to out in local time
func NewRenderer(out io.Writer) *Renderer {
	r := lipgloss.NewRenderer(out)
	return &Renderer{
		out: out,
		loc: time.Local,
		title: r.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),
		meta: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		body: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		comment: r.NewStyle().
			Foreground(lipgloss.Color("250")),
		author: r.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true),
		errStyle: r.NewStyle().
			Foreground(lipgloss.Color("196")),
		okStyle: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		faint: r.NewStyle().
			Faint(true),
	}
}

func (r *Renderer) print(s string) {
	_, _ = io.WriteString(r.out, s)
}

// Entries renders the journal, numbering entries and comments from 1
func (r *Renderer) Entries(entries []models.Entry) {
	if len(entries) == 0 {
		r.print(r.faint.Render("The journal is empty.") + "\n")
		return
	}

	var b strings.Builder
	for i := range entries {
		r.writeEntry(&b, i+1, &entries[i])
	}
	r.print(b.String())
}

// Entry renders a single entry
func (r *Renderer) Entry(n int, e *models.Entry) {
	var b strings.Builder
	r.writeEntry(&b, n, e)
	r.print(b.String())
}

func (r *Renderer) writeEntry(b *strings.Builder, n int, e *models.Entry) {
	fmt.Fprintf(b, "%d. %s\n", n, r.title.Render(e.Title))
	fmt.Fprintf(b, "   %s\n", r.meta.Render(fmt.Sprintf("by %s, %s", nicknameOrAnon(e.Nickname), r.formatTime(e.CreatedAt))))
	for _, line := range strings.Split(e.Description, "\n") {
		fmt.Fprintf(b, "   %s\n", r.body.Render(line))
	}
	fmt.Fprintf(b, "   %s\n", r.faint.Render("id: "+e.ID))

	for j := range e.Comments {
		c := &e.Comments[j]
		fmt.Fprintf(b, "     %d) %s: %s %s\n",
			j+1,
			r.author.Render(nicknameOrAnon(c.Nickname)),
			r.comment.Render(c.Text),
			r.faint.Render("("+r.formatTime(c.CreatedAt)+")"),
		)
	}
	b.WriteString("\n")
}

// Status renders the session state
func (r *Renderer) Status(st session.State, serverURL string, lastRefresh time.Time) {
	var b strings.Builder
	if st.SignedIn() {
		fmt.Fprintf(&b, "Signed in as %s (%s)\n", r.author.Render(st.Identity.DisplayName), st.Identity.Username)
	} else {
		fmt.Fprintf(&b, "%s\n", r.faint.Render("Not signed in (read-only)"))
	}
	fmt.Fprintf(&b, "Server:       %s\n", serverURL)
	if lastRefresh.IsZero() {
		fmt.Fprintf(&b, "Last refresh: never\n")
	} else {
		fmt.Fprintf(&b, "Last refresh: %s\n", r.formatTime(lastRefresh))
	}
	r.print(b.String())
}

// Error renders a one-line failure message
func (r *Renderer) Error(msg string) {
	r.print(r.errStyle.Render(msg) + "\n")
}

// Success renders a one-line confirmation
func (r *Renderer) Success(msg string) {
	r.print(r.okStyle.Render(msg) + "\n")
}

func (r *Renderer) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(r.loc).Format(timeLayout)
}

func nicknameOrAnon(nickname string) string {
	if strings.TrimSpace(nickname) == "" {
		return "anonymous"
	}
	return nickname
}
