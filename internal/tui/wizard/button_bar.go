package wizard

import (
	"strings"

	"charm.land/lipgloss/v2"
)

// ButtonState represents the visual state of a button.
type ButtonState int

const (
	ButtonNormal   ButtonState = iota // Normal state (enabled)
	ButtonDisabled                    // Disabled state (grayed out)
	ButtonFocused                     // Focused/highlighted state
)

// ButtonID names what a button does when activated.
type ButtonID int

const (
	ButtonBack ButtonID = iota
	ButtonCancel
	ButtonNext
	ButtonSubmit
	ButtonClose
)

// Button represents a single button in the button bar.
type Button struct {
	ID    ButtonID
	Label string
	State ButtonState
}

// ButtonBar manages a row of buttons and which one has focus.
type ButtonBar struct {
	buttons []Button
	focused int // -1 when no button has focus
	width   int
}

// NewButtonBar creates a new button bar with the given buttons.
func NewButtonBar(buttons []Button) *ButtonBar {
	return &ButtonBar{
		buttons: buttons,
		focused: -1,
		width:   60,
	}
}

// SetWidth updates the width for the button bar.
func (b *ButtonBar) SetWidth(width int) {
	b.width = width
}

// FocusFirst focuses the first enabled button.
func (b *ButtonBar) FocusFirst() {
	b.focused = -1
	b.FocusNext()
}

// FocusLast focuses the last enabled button.
func (b *ButtonBar) FocusLast() {
	b.focused = len(b.buttons)
	b.FocusPrev()
}

// FocusNext moves focus right. It returns false when there is no enabled
// button to the right; focus is then cleared.
func (b *ButtonBar) FocusNext() bool {
	for i := b.focused + 1; i < len(b.buttons); i++ {
		if b.buttons[i].State != ButtonDisabled {
			b.focused = i
			return true
		}
	}
	b.focused = -1
	return false
}

// FocusPrev moves focus left. It returns false when there is no enabled
// button to the left; focus is then cleared.
func (b *ButtonBar) FocusPrev() bool {
	for i := b.focused - 1; i >= 0; i-- {
		if b.buttons[i].State != ButtonDisabled {
			b.focused = i
			return true
		}
	}
	b.focused = -1
	return false
}

// Blur clears button focus.
func (b *ButtonBar) Blur() {
	b.focused = -1
}

// FocusedButton returns the focused button, or false when none is focused.
func (b *ButtonBar) FocusedButton() (Button, bool) {
	if b.focused < 0 || b.focused >= len(b.buttons) {
		return Button{}, false
	}
	return b.buttons[b.focused], true
}

// Render renders the button bar centered in its width.
func (b *ButtonBar) Render() string {
	if len(b.buttons) == 0 {
		return ""
	}

	base := lipgloss.NewStyle().
		Padding(0, 2).
		MarginLeft(1).
		MarginRight(1)

	normalStyle := base.
		Foreground(colorText).
		Background(colorSurface0)

	disabledStyle := base.
		Foreground(colorOverlay0).
		Background(colorMantle)

	focusedStyle := base.
		Foreground(colorBase).
		Background(colorBorderFocused).
		Bold(true)

	rendered := make([]string, 0, len(b.buttons))
	for i, btn := range b.buttons {
		switch {
		case btn.State == ButtonDisabled:
			rendered = append(rendered, disabledStyle.Render(btn.Label))
		case i == b.focused || btn.State == ButtonFocused:
			rendered = append(rendered, focusedStyle.Render(btn.Label))
		default:
			rendered = append(rendered, normalStyle.Render(btn.Label))
		}
	}

	return lipgloss.Place(b.width, 1, lipgloss.Center, lipgloss.Center, strings.Join(rendered, ""))
}

// stepButtons builds the button row for a form step. The first step offers
// Cancel instead of Back; the last offers Submit instead of Next. Everything
// is disabled while a submission is in flight.
func stepButtons(first, last, submitting bool) []Button {
	state := ButtonNormal
	if submitting {
		state = ButtonDisabled
	}

	buttons := make([]Button, 0, 2)
	if first {
		buttons = append(buttons, Button{ID: ButtonCancel, Label: "Cancel", State: state})
	} else {
		buttons = append(buttons, Button{ID: ButtonBack, Label: "← Back", State: state})
	}

	if last {
		label := "Submit"
		if submitting {
			label = "Submitting…"
		}
		buttons = append(buttons, Button{ID: ButtonSubmit, Label: label, State: state})
	} else {
		buttons = append(buttons, Button{ID: ButtonNext, Label: "Next →", State: state})
	}
	return buttons
}
