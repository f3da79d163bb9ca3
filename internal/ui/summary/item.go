package summary

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/draftmail/internal/buffer"
	"github.com/nhle/draftmail/internal/draft"
	"github.com/nhle/draftmail/internal/model"
	"github.com/nhle/draftmail/internal/theme"
)

// DraftItem wraps a draft buffer so it can be used in a bubbles/list.
type DraftItem struct {
	ID        string
	Name      string
	Subject   string
	To        string
	Sign      bool
	Encrypt   bool
	Pending   bool
	Malformed bool
	UpdatedAt time.Time
}

// NewDraftItem summarizes a buffer's headers for display.
func NewDraftItem(b *buffer.Buffer) DraftItem {
	item := DraftItem{
		ID:        b.ID,
		Name:      b.Name,
		Pending:   b.State == buffer.HiddenPending,
		UpdatedAt: b.UpdatedAt,
	}

	parsed, err := draft.Parse(b.Text)
	if err != nil {
		item.Malformed = true
		return item
	}
	c := draft.Classify(parsed.Fields)
	for _, h := range c.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			item.Subject = h.Value
		case "to":
			item.To = h.Value
		}
	}
	item.Sign = c.Directive.Sign
	item.Encrypt = c.Directive.Encrypt
	return item
}

// FilterValue returns the string used for fuzzy filtering.
func (i DraftItem) FilterValue() string { return i.Subject + " " + i.To }

// Title returns the subject, or the buffer name when there is none.
func (i DraftItem) Title() string {
	if i.Subject != "" {
		return i.Subject
	}
	return i.Name
}

// Description returns a short summary line for the list.
func (i DraftItem) Description() string {
	parts := []string{i.To, relativeTime(i.UpdatedAt)}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for draft rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single draft line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	di, ok := item.(DraftItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderDraft(di, index == m.Index()))
}

func renderDraft(di DraftItem, selected bool) string {
	status := ""
	switch {
	case di.Pending:
		status = theme.SendStatusStyle("sending").Render("sending")
	case di.Malformed:
		status = theme.ErrorStyle.Render("no marker")
	}

	badges := ""
	if di.Sign {
		badges += theme.DirectiveBadgeStyle.Render(" [sign]")
	}
	if di.Encrypt {
		badges += theme.DirectiveBadgeStyle.Render(" [encrypt]")
	}

	to := ""
	if di.To != "" {
		to = theme.DimmedStyle.Render(" → " + di.To)
	}

	line := fmt.Sprintf("✉ %s%s%s %s  %s",
		di.Title(), to, badges, status,
		theme.DimmedStyle.Render(relativeTime(di.UpdatedAt)))

	if di.Pending {
		line = theme.DimmedStyle.Render(line)
	}
	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// renderSend draws one send history line.
func renderSend(r model.SendRecord) string {
	subject := r.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	line := fmt.Sprintf("%s %s %s  %s",
		theme.SendStatusStyle(r.Status).Render(r.Status),
		subject,
		theme.DimmedStyle.Render("via "+r.Method),
		theme.DimmedStyle.Render(relativeTime(r.SentAt)),
	)
	if r.Error != "" {
		line += "\n    " + theme.ErrorStyle.Render(r.Error)
	}
	if r.Warning != "" {
		line += "\n    " + theme.WarningStyle.Render(r.Warning)
	}
	return line
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}
