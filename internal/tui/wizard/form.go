package wizard

import (
	"fmt"
	"os"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/editor"
)

type fieldKind int

const (
	fieldText     fieldKind = iota // single-line text
	fieldChoice                    // enumerated value, cycled with left/right
	fieldLongText                  // text that can also be edited in $EDITOR
	fieldPath                      // attachment path on disk
	fieldItem                      // read-only list entry that can be removed
)

// field is one editable row of a step form.
type field struct {
	key     string
	label   string
	kind    fieldKind
	input   textinput.Model
	text    string // full value of a long text field; input shows a flattened preview
	choices []string
	choice  int // -1 when unset
	group   int // payment slot or image index, -1 for plain fields
}

func inputStyles() textinput.Styles {
	return textinput.Styles{
		Focused: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(colorText),
			Placeholder: lipgloss.NewStyle().Foreground(colorOverlay0),
			Prompt:      lipgloss.NewStyle().Foreground(colorBorderFocused),
		},
		Blurred: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(colorSubtext0),
			Placeholder: lipgloss.NewStyle().Foreground(colorSurface2),
			Prompt:      lipgloss.NewStyle().Foreground(colorOverlay0),
		},
		Cursor: textinput.CursorStyle{
			Color: colorPrimary,
			Shape: tea.CursorBar,
			Blink: true,
		},
	}
}

func newInput(placeholder string) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.SetStyles(inputStyles())
	in.SetWidth(40)
	return in
}

func newTextField(key, label, placeholder, value string) *field {
	f := &field{key: key, label: label, kind: fieldText, input: newInput(placeholder), choice: -1, group: -1}
	f.setValue(value)
	return f
}

func newLongTextField(key, label, value string) *field {
	f := newTextField(key, label, "type, or ctrl+e to open $EDITOR", "")
	f.kind = fieldLongText
	f.setValue(value)
	return f
}

func newPathField(key, label, value string) *field {
	f := newTextField(key, label, "path to file", value)
	f.kind = fieldPath
	return f
}

// newChoiceField creates an enum field. A value outside choices is kept as
// an extra choice so stored data is never silently rewritten.
func newChoiceField(key, label string, choices []string, value string) *field {
	f := &field{key: key, label: label, kind: fieldChoice, input: newInput(""), choices: append([]string(nil), choices...), choice: -1, group: -1}
	f.setValue(value)
	return f
}

func newItemField(key, label string, index int) *field {
	return &field{key: key, label: label, kind: fieldItem, input: newInput(""), choice: -1, group: index}
}

// id identifies a field within its form. Slot and image fields share keys,
// so their index is part of the id.
func (f *field) id() string {
	if f.group < 0 {
		return f.key
	}
	return fmt.Sprintf("%s.%d", f.key, f.group)
}

func (f *field) value() string {
	switch f.kind {
	case fieldChoice:
		if f.choice < 0 || f.choice >= len(f.choices) {
			return ""
		}
		return f.choices[f.choice]
	case fieldLongText:
		return f.text
	case fieldItem:
		return f.label
	default:
		return f.input.Value()
	}
}

func (f *field) setValue(v string) {
	switch f.kind {
	case fieldChoice:
		f.choice = -1
		if v == "" {
			return
		}
		for i, c := range f.choices {
			if c == v {
				f.choice = i
				return
			}
		}
		f.choices = append(f.choices, v)
		f.choice = len(f.choices) - 1
	case fieldLongText:
		f.text = v
		f.input.SetValue(flatten(v))
	case fieldItem:
	default:
		f.input.SetValue(v)
	}
}

// multiline reports a long text field whose value spans lines.
func (f *field) multiline() bool {
	return f.kind == fieldLongText && strings.Contains(f.text, "\n")
}

// flatten renders multi-line text on one line for the inline preview.
func flatten(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", " ⏎ ")
}

func (f *field) focus() tea.Cmd {
	switch f.kind {
	case fieldChoice, fieldItem:
		return nil
	}
	return f.input.Focus()
}

func (f *field) blur() {
	f.input.Blur()
}

func (f *field) update(msg tea.Msg) tea.Cmd {
	switch f.kind {
	case fieldItem:
		return nil
	case fieldChoice:
		key, ok := msg.(tea.KeyPressMsg)
		if !ok || len(f.choices) == 0 {
			return nil
		}
		switch key.String() {
		case "right", "l", "space", " ":
			f.choice = (f.choice + 1) % len(f.choices)
		case "left", "h":
			if f.choice <= 0 {
				f.choice = len(f.choices) - 1
			} else {
				f.choice--
			}
		case "backspace", "delete":
			f.choice = -1
		}
		return nil
	}

	// The inline preview of multi-line text is lossy, so it is not edited in
	// place. ctrl+e edits it in $EDITOR and ctrl+u clears it.
	if f.multiline() {
		if key, ok := msg.(tea.KeyPressMsg); ok {
			if key.String() == "ctrl+u" {
				f.setValue("")
			}
			return nil
		}
	}

	before := f.input.Value()
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	if f.kind == fieldLongText && f.input.Value() != before {
		f.text = f.input.Value()
	}
	return cmd
}

func (f *field) view(focused bool) string {
	labelStyle := styleLabel
	marker := "  "
	if focused {
		labelStyle = styleLabelFocused
		marker = styleLabelFocused.Render("▸ ")
	}
	if f.kind == fieldItem {
		return marker + labelStyle.Render(f.label)
	}
	label := labelStyle.Render(fmt.Sprintf("%-*s", labelWidth, f.label))

	var value string
	switch f.kind {
	case fieldChoice:
		v := f.value()
		if v == "" {
			v = styleMuted.Render("—")
		} else {
			v = styleValue.Render(v)
		}
		if focused {
			value = styleMuted.Render("‹ ") + v + styleMuted.Render(" ›")
		} else {
			value = v
		}
	default:
		value = f.input.View()
		if focused && f.multiline() {
			value += styleMuted.Render("  ctrl+e edit • ctrl+u clear")
		}
	}
	return marker + label + " " + value
}

// form is an ordered list of fields with one focused.
type form struct {
	fields []*field
	focus  int
	active bool // false while the button bar has focus
}

func (fm *form) focused(i int) bool {
	return fm.active && i == fm.focus
}

func (fm *form) current() *field {
	if fm.focus < 0 || fm.focus >= len(fm.fields) {
		return nil
	}
	return fm.fields[fm.focus]
}

func (fm *form) byKey(key string) *field {
	for _, f := range fm.fields {
		if f.key == key {
			return f
		}
	}
	return nil
}

func (fm *form) byID(id string) *field {
	for _, f := range fm.fields {
		if f.id() == id {
			return f
		}
	}
	return nil
}

func (fm *form) value(key string) string {
	if f := fm.byKey(key); f != nil {
		return f.value()
	}
	return ""
}

// focusAt moves focus to index i, clamped to the field range.
func (fm *form) focusAt(i int) tea.Cmd {
	if len(fm.fields) == 0 {
		fm.focus = 0
		return nil
	}
	if i < 0 {
		i = 0
	}
	if i >= len(fm.fields) {
		i = len(fm.fields) - 1
	}
	for _, f := range fm.fields {
		f.blur()
	}
	fm.focus = i
	fm.active = true
	return fm.fields[i].focus()
}

func (fm *form) blur() {
	fm.active = false
	for _, f := range fm.fields {
		f.blur()
	}
}

// update handles field navigation and forwards everything else to the
// focused field. Leaving the first or last field emits a TabExit message.
func (fm *form) update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		switch key.String() {
		case "tab", "down":
			if fm.focus >= len(fm.fields)-1 {
				fm.blur()
				return func() tea.Msg { return TabExitForwardMsg{} }
			}
			return fm.focusAt(fm.focus + 1)
		case "shift+tab", "up":
			if fm.focus <= 0 {
				fm.blur()
				return func() tea.Msg { return TabExitBackwardMsg{} }
			}
			return fm.focusAt(fm.focus - 1)
		}
	}
	if f := fm.current(); f != nil {
		return f.update(msg)
	}
	return nil
}

func (fm *form) setWidth(width int) {
	w := width - labelWidth - 6
	if w < 10 {
		w = 10
	}
	for _, f := range fm.fields {
		f.input.SetWidth(w)
	}
}

// labelWidth is the padded width of field labels.
const labelWidth = 20

// formStep carries what every step shares: a form, its size and the inline
// validation error.
type formStep struct {
	title  string
	form   form
	width  int
	height int
	err    string
}

func (s *formStep) Title() string { return s.title }

func (s *formStep) Init() tea.Cmd { return nil }

func (s *formStep) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.form.setWidth(width)
}

// Focus focuses the last focused field, or the first one.
func (s *formStep) Focus() tea.Cmd {
	return s.form.focusAt(s.form.focus)
}

// FocusFirst focuses the first field, used when tabbing in from the buttons.
func (s *formStep) FocusFirst() tea.Cmd {
	return s.form.focusAt(0)
}

// FocusLast focuses the last field, used when tabbing back from the buttons.
func (s *formStep) FocusLast() tea.Cmd {
	return s.form.focusAt(len(s.form.fields) - 1)
}

func (s *formStep) Blur() { s.form.blur() }

// fail records msg as the inline error and returns it as a ValidationError.
func (s *formStep) fail(msg string) error {
	s.err = msg
	if msg == "" {
		return nil
	}
	return &ValidationError{Step: s.title, Message: msg}
}

// handleCommon covers the keys every step treats the same: enter advances,
// ctrl+e opens long text in the editor and edited text is written back.
// It reports whether msg was consumed.
func (s *formStep) handleCommon(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case TextEditedMsg:
		if f := s.form.byID(msg.Key); f != nil {
			f.setValue(msg.Content)
		}
		return nil, true
	case tea.KeyPressMsg:
		switch msg.String() {
		case "enter":
			return advance, true
		case "ctrl+e":
			if f := s.form.current(); f != nil && f.kind == fieldLongText {
				return openEditor(f.id(), f.value()), true
			}
			return nil, true
		}
	}
	return nil, false
}

// renderLines lays out lines in a window that keeps line focusLine visible
// within the step height.
func (s *formStep) renderLines(lines []string, focusLine int) string {
	limit := s.height
	if limit <= 0 || len(lines) <= limit {
		return strings.Join(lines, "\n")
	}
	start := focusLine - limit/2
	if start < 0 {
		start = 0
	}
	if start+limit > len(lines) {
		start = len(lines) - limit
	}
	return strings.Join(lines[start:start+limit], "\n")
}

// errorLine renders the inline validation error, or "".
func (s *formStep) errorLine() string {
	if s.err == "" {
		return ""
	}
	return styleError.Render("✗ " + s.err)
}

func advance() tea.Msg { return AdvanceMsg{} }

// openEditor edits content in $EDITOR and reports the result as a
// TextEditedMsg for key. It returns nil when no editor is configured.
func openEditor(key, content string) tea.Cmd {
	if os.Getenv("EDITOR") == "" {
		return nil
	}

	tmpfile, err := os.CreateTemp("", "dealerdesk_*.txt")
	if err != nil {
		return nil
	}
	if _, err := tmpfile.WriteString(content); err != nil {
		_ = tmpfile.Close()
		_ = os.Remove(tmpfile.Name())
		return nil
	}
	_ = tmpfile.Close()

	cmd, err := editor.Command("dealerdesk", tmpfile.Name())
	if err != nil {
		_ = os.Remove(tmpfile.Name())
		return nil
	}

	path := tmpfile.Name()
	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		defer os.Remove(path)
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		return TextEditedMsg{Key: key, Content: strings.TrimRight(string(data), "\n")}
	})
}
