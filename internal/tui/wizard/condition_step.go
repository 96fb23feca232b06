package wizard

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/dealerdesk/internal/draft"
)

const keyAddImage = "add_image"

// ConditionStep edits the conditionInfo section and the vehicle image list.
type ConditionStep struct {
	formStep

	base     []*field
	images   []draft.Attachment
	existing []string // image URLs already stored on the backend
}

// NewConditionStep builds the condition step from the stored section.
func NewConditionStep(sec draft.Section) *ConditionStep {
	s := &ConditionStep{
		formStep: formStep{title: "Condition"},
		images:   sec.Images(),
		existing: sec.ExistingImages(),
	}
	s.base = []*field{
		newTextField(draft.KeyInspectionDate, "Inspection date", "YYYY-MM-DD", sec.String(draft.KeyInspectionDate)),
		newChoiceField(draft.KeyConditionGrade, "Condition grade", draft.ConditionGrades, sec.String(draft.KeyConditionGrade)),
		newLongTextField(draft.KeyDamageNotes, "Damage notes", sec.String(draft.KeyDamageNotes)),
		newChoiceField(draft.KeyTiresCondition, "Tires", draft.TireConditions, sec.String(draft.KeyTiresCondition)),
		newLongTextField(draft.KeyEngineCondition, "Engine condition", sec.String(draft.KeyEngineCondition)),
		newChoiceField(draft.KeyInteriorCondition, "Interior", draft.InteriorConditions, sec.String(draft.KeyInteriorCondition)),
		newPathField(keyAddImage, "Add image", ""),
	}
	s.rebuild()
	return s
}

func (s *ConditionStep) rebuild() {
	fields := append([]*field(nil), s.base...)
	for i, img := range s.images {
		fields = append(fields, newItemField(draft.KeyVehicleImages, img.Name, i))
	}
	s.form.fields = fields
	if s.width > 0 {
		s.form.setWidth(s.width)
	}
}

// Images returns the picked images in order.
func (s *ConditionStep) Images() []draft.Attachment {
	return append([]draft.Attachment(nil), s.images...)
}

// AddImages appends the regular files among paths, keeping at most
// draft.MaxImages. Other paths are dropped silently.
func (s *ConditionStep) AddImages(paths ...string) {
	s.images = draft.MergeImages(s.images, draft.FilterAttachments(paths))
	s.rebuild()
}

// RemoveImage drops image i and keeps focus on the list.
func (s *ConditionStep) RemoveImage(i int) tea.Cmd {
	s.images = draft.RemoveImage(s.images, i)
	s.rebuild()
	return s.form.focusAt(s.form.focus)
}

func splitPaths(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Update adds images on enter in the add field, removes the focused image on
// ctrl+x or delete, and forwards the rest to the focused field.
func (s *ConditionStep) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		f := s.form.current()
		switch {
		case f != nil && f.key == keyAddImage && key.String() == "enter" && strings.TrimSpace(f.value()) != "":
			s.AddImages(splitPaths(f.value())...)
			f.setValue("")
			return nil
		case f != nil && f.kind == fieldItem && (key.String() == "ctrl+x" || key.String() == "delete" || key.String() == "backspace"):
			return s.RemoveImage(f.group)
		}
	}
	if cmd, ok := s.handleCommon(msg); ok {
		return cmd
	}
	return s.form.update(msg)
}

// View renders the condition fields and the image list.
func (s *ConditionStep) View() string {
	lines := make([]string, 0, len(s.form.fields)+len(s.existing)+4)
	focusLine := 0
	for i, f := range s.form.fields {
		if i == len(s.base)-1 {
			header := fmt.Sprintf("Images (%d/%d)", len(s.images), draft.MaxImages)
			lines = append(lines, "", styleSection.Render(header))
			for _, url := range s.existing {
				lines = append(lines, styleMuted.Render("  stored  "+url))
			}
		}
		if i == s.form.focus {
			focusLine = len(lines)
		}
		lines = append(lines, f.view(s.form.focused(i)))
	}

	out := s.renderLines(lines, focusLine)
	if e := s.errorLine(); e != "" {
		out += "\n\n" + e
	}
	return out
}

// Validate requires the inspection date, a grade and at least one image,
// counting images already stored on the backend.
func (s *ConditionStep) Validate() error {
	return s.fail(check(conditionCheck{
		InspectionDate: strings.TrimSpace(s.form.value(draft.KeyInspectionDate)),
		Grade:          s.form.value(draft.KeyConditionGrade),
		Images:         len(s.images) + len(s.existing),
	}))
}

// Commit writes the condition fields and images into the draft.
func (s *ConditionStep) Commit(store *draft.Store) {
	sec := draft.Section{draft.KeyVehicleImages: s.Images()}
	for _, f := range s.base {
		if f.key == keyAddImage {
			continue
		}
		v := f.value()
		if f.kind != fieldLongText {
			v = strings.TrimSpace(v)
		}
		sec[f.key] = v
	}
	store.MergeSection(draft.ConditionInfo, sec)
}
