package wizard

import (
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/glamour/v2"

	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/intake"
)

// Completion shows what was saved after a successful submission.
type Completion struct {
	viewport viewport.Model
	content  string // raw markdown
	width    int
	height   int
}

// NewCompletion builds the completion view. For edits, before is the draft
// as loaded and the changes are shown as a diff.
func NewCompletion(res *intake.Result, after draft.Snapshot, before draft.Snapshot) *Completion {
	vp := viewport.New(
		viewport.WithWidth(60),
		viewport.WithHeight(10),
	)
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	c := &Completion{
		viewport: vp,
		content:  completionMarkdown(res, after, before),
		width:    60,
		height:   20,
	}
	c.viewport.SetContent(renderMarkdown(c.content, c.width))
	return c
}

func completionMarkdown(res *intake.Result, after, before draft.Snapshot) string {
	var b strings.Builder
	verb := "created"
	if res.Mode == intake.ModeUpdate {
		verb = "updated"
	}
	fmt.Fprintf(&b, "# Vehicle %s %s\n\n", res.VehicleID, verb)
	if n := len(res.Slots); n > 0 {
		fmt.Fprintf(&b, "%d payment slot(s) on record.\n\n", n)
	}
	b.WriteString(draft.Summary(after))

	if before != nil {
		b.WriteString("\n## Changes\n\n")
		if diff := draft.Diff(before, after); diff != "" {
			b.WriteString("```diff\n" + diff + "```\n")
		} else {
			b.WriteString("No field changes.\n")
		}
	}
	return b.String()
}

// Content returns the raw markdown shown.
func (c *Completion) Content() string {
	return c.content
}

// renderMarkdown renders markdown with glamour, falling back to plain text.
func renderMarkdown(content string, width int) string {
	if width > 120 {
		width = 120
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSuffix(rendered, "\n")
}

// SetSize resizes the viewport and re-renders for the new width.
func (c *Completion) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport.SetWidth(width)

	h := height - 2
	if h < 5 {
		h = 5
	}
	c.viewport.SetHeight(h)
	c.viewport.SetContent(renderMarkdown(c.content, width))
	c.viewport.GotoTop()
}

// Update scrolls the summary.
func (c *Completion) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return cmd
}

// View renders the summary and its hint bar.
func (c *Completion) View() string {
	return c.viewport.View() + "\n\n" + renderHintBar("↑/↓", "scroll", "enter", "close")
}
