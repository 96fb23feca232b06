package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"

	"github.com/mark3labs/dealerdesk/internal/api"
	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/intake"
	"github.com/mark3labs/dealerdesk/internal/logger"
)

// ErrCancelled is returned by Run when the user leaves without submitting.
var ErrCancelled = errors.New("wizard cancelled by user")

// State is the wizard's position in its state machine.
type State int

const (
	StateLoading State = iota // edit flow only, until the vehicle is fetched
	StateStep1
	StateStep2
	StateStep3
	StateSubmitting
	StateDone
	StateFailed // shows step 3 with the error banner; not terminal
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateStep1:
		return "step1"
	case StateStep2:
		return "step2"
	case StateStep3:
		return "step3"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Submitter sends a finished draft to the backend.
type Submitter interface {
	Submit(ctx context.Context, mode intake.Mode, vehicleID string, snap draft.Snapshot) (*intake.Result, error)
}

// Loader fetches a stored vehicle for the edit flow.
type Loader interface {
	GetVehicle(ctx context.Context, id string) (draft.Entity, error)
}

// SessionClearer ends the local session.
type SessionClearer interface {
	Clear() error
}

// Deps are the collaborators the wizard needs.
type Deps struct {
	Submitter Submitter
	Loader    Loader         // edit flow only
	Session   SessionClearer // cleared when loading answers 401
}

// Result is what the wizard ended with.
type Result struct {
	Cancelled   bool
	AuthExpired bool
	Submission  *intake.Result
	Draft       draft.Snapshot
}

var stepNames = [stepCount]string{"Vehicle", "Seller & Purchase", "Condition"}

// WizardModel is the Bubbletea model for the intake wizard. It owns the
// draft, the step cursor and the submission flag.
type WizardModel struct {
	ctx       context.Context
	deps      Deps
	flow      intake.Mode // the mode the wizard was opened in
	mode      intake.Mode // the mode of the next submission
	vehicleID string

	// uploaded holds the paths of images a failed submission already sent.
	uploaded map[string]bool

	store  *draft.Store
	before draft.Snapshot // edit flow: the draft as loaded

	state  State
	cursor int // 0..stepCount-1
	step   Step

	buttonBar     *ButtonBar
	buttonFocused bool

	submitting bool
	banner     string // last submission error
	loadErr    string
	spinner    spinner.Model
	completion *Completion

	result Result
	width  int
	height int
}

// New creates the create-flow wizard.
func New(ctx context.Context, deps Deps) *WizardModel {
	m := newModel(ctx, deps, intake.ModeCreate, "")
	m.enterStep(0)
	return m
}

// NewEdit creates the edit-flow wizard for vehicleID. It stays in the
// loading state until the vehicle has been fetched and copied into the draft.
func NewEdit(ctx context.Context, deps Deps, vehicleID string) *WizardModel {
	m := newModel(ctx, deps, intake.ModeUpdate, vehicleID)
	m.state = StateLoading
	return m
}

func newModel(ctx context.Context, deps Deps, mode intake.Mode, vehicleID string) *WizardModel {
	return &WizardModel{
		ctx:       ctx,
		deps:      deps,
		flow:      mode,
		mode:      mode,
		vehicleID: vehicleID,
		uploaded:  make(map[string]bool),
		store:     draft.New(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(colorPrimary)),
		),
		width:  100,
		height: 40,
	}
}

// Run runs the create wizard as a standalone program.
func Run(ctx context.Context, deps Deps) (*Result, error) {
	return run(ctx, New(ctx, deps))
}

// RunEdit runs the edit wizard for vehicleID as a standalone program.
func RunEdit(ctx context.Context, deps Deps, vehicleID string) (*Result, error) {
	return run(ctx, NewEdit(ctx, deps, vehicleID))
}

func run(ctx context.Context, m *WizardModel) (*Result, error) {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	wizModel, ok := finalModel.(*WizardModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type")
	}

	res := wizModel.Result()
	switch {
	case res.AuthExpired:
		return &res, intake.ErrAuthExpired
	case res.Cancelled:
		return &res, ErrCancelled
	}
	return &res, nil
}

// State returns the current state.
func (m *WizardModel) State() State { return m.state }

// Submitting reports whether a submission is in flight.
func (m *WizardModel) Submitting() bool { return m.submitting }

// Banner returns the last submission error shown, or "".
func (m *WizardModel) Banner() string { return m.banner }

// Draft returns the wizard's draft store.
func (m *WizardModel) Draft() *draft.Store { return m.store }

// CurrentStep returns the step on screen, or nil outside the step states.
func (m *WizardModel) CurrentStep() Step { return m.step }

// Result returns the outcome so far.
func (m *WizardModel) Result() Result {
	res := m.result
	res.Draft = m.store.Read()
	return res
}

// Init starts loading in the edit flow, or focuses the first step.
func (m *WizardModel) Init() tea.Cmd {
	if m.state == StateLoading {
		return tea.Batch(m.spinner.Tick, m.load())
	}
	return m.step.Focus()
}

func (m *WizardModel) load() tea.Cmd {
	ctx, loader, id := m.ctx, m.deps.Loader, m.vehicleID
	return func() tea.Msg {
		entity, err := loader.GetVehicle(ctx, id)
		if err != nil {
			return LoadErrorMsg{Err: err}
		}
		return VehicleLoadedMsg{Entity: entity}
	}
}

// populate resets the draft and copies every section of entity into it.
func (m *WizardModel) populate(entity draft.Entity) {
	m.store.Reset()
	sections := draft.SectionsFromEntity(entity)
	for _, name := range draft.Sections {
		m.store.MergeSection(name, sections[name])
	}
	m.before = m.store.Read()
}

// enterStep builds step i from the draft and focuses its first field.
func (m *WizardModel) enterStep(i int) tea.Cmd {
	if i < 0 {
		i = 0
	}
	if i >= stepCount {
		i = stepCount - 1
	}
	m.cursor = i
	m.state = StateStep1 + State(i)
	m.step = newStep(i, m.store.Read())
	m.buttonFocused = false
	m.buttonBar = nil
	m.updateStepSize()
	return m.step.Focus()
}

// Update handles messages for the wizard.
func (m *WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			m.result.Cancelled = m.result.Submission == nil
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateStepSize()
		return m, nil

	case spinner.TickMsg:
		if m.state != StateLoading && !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case VehicleLoadedMsg:
		m.loadErr = ""
		m.populate(msg.Entity)
		logger.Info("Loaded vehicle %s for editing", m.vehicleID)
		return m, m.enterStep(0)

	case LoadErrorMsg:
		logger.Error("Loading vehicle %s failed: %v", m.vehicleID, msg.Err)
		if errors.Is(msg.Err, api.ErrUnauthorized) {
			return m, m.endSession()
		}
		m.loadErr = msg.Err.Error()
		return m, nil

	case AdvanceMsg:
		return m, m.advance()

	case RetrySubmitMsg:
		if m.state != StateFailed {
			return m, nil
		}
		// Edits made since the failure are validated and committed first.
		return m, m.advance()

	case SubmittedMsg:
		m.submitting = false
		m.banner = ""
		if m.flow == intake.ModeCreate {
			// A retry after a partial failure updates the vehicle the first
			// attempt created.
			msg.Result.Mode = intake.ModeCreate
		}
		m.result.Submission = msg.Result
		m.store.MergeSection(draft.PurchaseInfo, draft.Section{draft.KeyPaymentSlot: msg.Result.Slots})
		m.state = StateDone
		m.step = nil
		m.completion = NewCompletion(msg.Result, m.store.Read(), m.before)
		m.buttonBar = NewButtonBar([]Button{{ID: ButtonClose, Label: "Close"}})
		m.buttonBar.FocusFirst()
		m.buttonFocused = true
		m.updateStepSize()
		return m, nil

	case SubmitErrorMsg:
		m.submitting = false
		if errors.Is(msg.Err, intake.ErrAuthExpired) {
			m.result.AuthExpired = true
			return m, tea.Quit
		}
		m.resumeAfter(msg.Err, msg.Snapshot)
		m.banner = msg.Err.Error()
		m.state = StateFailed
		m.buttonBar = nil
		return m, m.focusStepFirst()

	case TabExitForwardMsg:
		m.focusButtons(true)
		return m, nil

	case TabExitBackwardMsg:
		m.focusButtons(false)
		return m, nil
	}

	return m, m.updateStep(msg)
}

func (m *WizardModel) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case StateLoading:
		switch msg.String() {
		case "esc", "q":
			m.result.Cancelled = true
			return m, tea.Quit
		case "r":
			if m.loadErr != "" {
				m.loadErr = ""
				return m, tea.Batch(m.spinner.Tick, m.load())
			}
		}
		return m, nil

	case StateSubmitting:
		// Controls are disabled until the submission settles.
		return m, nil

	case StateDone:
		switch msg.String() {
		case "enter", "esc", "q", " ":
			return m, tea.Quit
		}
		return m, m.completion.Update(msg)
	}

	if m.state == StateFailed && msg.String() == "ctrl+r" {
		return m, func() tea.Msg { return RetrySubmitMsg{} }
	}

	if m.buttonFocused && m.buttonBar != nil {
		switch msg.String() {
		case "tab", "right":
			if !m.buttonBar.FocusNext() {
				m.buttonFocused = false
				return m, m.focusStepFirst()
			}
			return m, nil
		case "shift+tab", "left":
			if !m.buttonBar.FocusPrev() {
				m.buttonFocused = false
				return m, m.focusStepLast()
			}
			return m, nil
		case "enter", "space", " ":
			if btn, ok := m.buttonBar.FocusedButton(); ok {
				return m.activateButton(btn)
			}
			return m, nil
		case "esc":
			return m.goBack()
		}
		return m, nil
	}

	if msg.String() == "esc" {
		return m.goBack()
	}
	return m, m.updateStep(msg)
}

func (m *WizardModel) activateButton(btn Button) (tea.Model, tea.Cmd) {
	if btn.State == ButtonDisabled {
		return m, nil
	}
	switch btn.ID {
	case ButtonCancel:
		m.result.Cancelled = true
		return m, tea.Quit
	case ButtonBack:
		return m.goBack()
	case ButtonNext, ButtonSubmit:
		return m, m.advance()
	case ButtonClose:
		return m, tea.Quit
	}
	return m, nil
}

// goBack moves to the previous step without committing the current one, or
// cancels the wizard on the first step.
func (m *WizardModel) goBack() (tea.Model, tea.Cmd) {
	if m.submitting {
		return m, nil
	}
	if m.cursor == 0 {
		m.result.Cancelled = true
		return m, tea.Quit
	}
	m.banner = ""
	return m, m.enterStep(m.cursor - 1)
}

// advance validates and commits the current step, then moves on or submits.
func (m *WizardModel) advance() tea.Cmd {
	if m.step == nil || m.submitting {
		return nil
	}
	switch m.state {
	case StateStep1, StateStep2, StateStep3, StateFailed:
	default:
		return nil
	}

	if err := m.step.Validate(); err != nil {
		logger.Debug("Step %s blocked: %v", m.step.Title(), err)
		m.buttonFocused = false
		if m.buttonBar != nil {
			m.buttonBar.Blur()
		}
		return m.step.Focus()
	}
	m.step.Commit(m.store)

	if m.cursor < stepCount-1 {
		return m.enterStep(m.cursor + 1)
	}
	return m.submit()
}

// submit starts the submission. The flag is set before any request and is
// cleared when the result message arrives.
func (m *WizardModel) submit() tea.Cmd {
	if m.submitting {
		return nil
	}
	m.submitting = true
	m.state = StateSubmitting
	m.banner = ""
	m.buttonBar = nil
	m.buttonFocused = false
	if m.step != nil {
		m.step.Blur()
	}

	ctx, sub, mode, id := m.ctx, m.deps.Submitter, m.mode, m.vehicleID
	snap := m.pending(m.store.Read())
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := sub.Submit(ctx, mode, id, snap)
		if err != nil {
			return SubmitErrorMsg{Err: err, Snapshot: snap}
		}
		return SubmittedMsg{Result: res}
	})
}

// pending drops images an earlier attempt already uploaded from snap.
func (m *WizardModel) pending(snap draft.Snapshot) draft.Snapshot {
	if len(m.uploaded) == 0 {
		return snap
	}
	var keep []draft.Attachment
	for _, img := range snap.Images() {
		if !m.uploaded[img.Path] {
			keep = append(keep, img)
		}
	}
	sec := draft.Section{}
	for k, v := range snap[draft.ConditionInfo] {
		sec[k] = v
	}
	sec[draft.KeyVehicleImages] = keep
	snap[draft.ConditionInfo] = sec
	return snap
}

// resumeAfter keeps a retry from repeating work a partially failed
// submission already did: the saved vehicle is updated instead of created
// again, sent images are not re-sent and accepted slots keep their ids.
func (m *WizardModel) resumeAfter(err error, sent draft.Snapshot) {
	var partial *intake.PartialSubmissionError
	if !errors.As(err, &partial) || partial.VehicleID == "" {
		return
	}
	m.mode = intake.ModeUpdate
	m.vehicleID = partial.VehicleID

	if slices.Contains(partial.Completed, intake.StageUploadImages) {
		for _, img := range sent.Images() {
			m.uploaded[img.Path] = true
		}
	}

	var slotErrs *intake.SlotErrors
	if errors.As(err, &slotErrs) && len(slotErrs.Saved) > 0 {
		slots := m.store.Read().PaymentSlots()
		for i, id := range slotErrs.Saved {
			if i < len(slots) {
				slots[i].ID = id
			}
		}
		m.store.MergeSection(draft.PurchaseInfo, draft.Section{draft.KeyPaymentSlot: slots})
	}
	logger.Info("Submission left vehicle %s saved; retries will update it", partial.VehicleID)
}

// endSession clears the session and quits after a 401.
func (m *WizardModel) endSession() tea.Cmd {
	if m.deps.Session != nil {
		if err := m.deps.Session.Clear(); err != nil {
			logger.Warn("Clearing session failed: %v", err)
		}
	}
	m.result.AuthExpired = true
	return tea.Quit
}

func (m *WizardModel) updateStep(msg tea.Msg) tea.Cmd {
	if m.step == nil {
		return nil
	}
	switch m.state {
	case StateStep1, StateStep2, StateStep3, StateFailed:
		return m.step.Update(msg)
	}
	return nil
}

func (m *WizardModel) ensureButtonBar() {
	if m.buttonBar == nil {
		m.buttonBar = NewButtonBar(stepButtons(m.cursor == 0, m.cursor == stepCount-1, m.submitting))
		m.buttonBar.SetWidth(m.contentWidth())
	}
}

func (m *WizardModel) focusButtons(first bool) {
	if m.step == nil {
		return
	}
	m.step.Blur()
	m.ensureButtonBar()
	m.buttonFocused = true
	if first {
		m.buttonBar.FocusFirst()
	} else {
		m.buttonBar.FocusLast()
	}
}

func (m *WizardModel) focusStepFirst() tea.Cmd {
	if m.buttonBar != nil {
		m.buttonBar.Blur()
	}
	m.buttonFocused = false
	if m.step == nil {
		return nil
	}
	if fs, ok := m.step.(interface{ FocusFirst() tea.Cmd }); ok {
		return fs.FocusFirst()
	}
	return m.step.Focus()
}

func (m *WizardModel) focusStepLast() tea.Cmd {
	if m.buttonBar != nil {
		m.buttonBar.Blur()
	}
	m.buttonFocused = false
	if m.step == nil {
		return nil
	}
	if fs, ok := m.step.(interface{ FocusLast() tea.Cmd }); ok {
		return fs.FocusLast()
	}
	return m.step.Focus()
}

func (m *WizardModel) contentWidth() int {
	w := m.modalWidth() - 6
	if w < 40 {
		w = 40
	}
	return w
}

func (m *WizardModel) modalWidth() int {
	w := m.width - 10
	if w < 60 {
		w = 60
	}
	if w > 100 {
		w = 100
	}
	return w
}

// updateStepSize sizes the step to the modal content area.
func (m *WizardModel) updateStepSize() {
	contentHeight := m.height - 14
	if contentHeight < 8 {
		contentHeight = 8
	}
	if m.step != nil {
		m.step.SetSize(m.contentWidth(), contentHeight)
	}
	if m.completion != nil {
		m.completion.SetSize(m.contentWidth(), contentHeight+2)
	}
	if m.buttonBar != nil {
		m.buttonBar.SetWidth(m.contentWidth())
	}
}

// View renders the wizard.
func (m *WizardModel) View() tea.View {
	var view tea.View
	view.AltScreen = true

	if m.width == 0 || m.height == 0 {
		view.Content = lipgloss.NewLayer("")
		return view
	}

	content := m.renderModal(m.title(), m.body())

	canvas := uv.NewScreenBuffer(m.width, m.height)
	uv.NewStyledString(content).Draw(canvas, uv.Rectangle{
		Min: uv.Position{X: 0, Y: 0},
		Max: uv.Position{X: m.width, Y: m.height},
	})

	view.Content = lipgloss.NewLayer(canvas.Render())
	return view
}

func (m *WizardModel) title() string {
	flow := "New Vehicle"
	if m.flow == intake.ModeUpdate {
		flow = "Edit Vehicle " + m.vehicleID
	}
	switch m.state {
	case StateLoading:
		return flow
	case StateDone:
		return flow + " - Saved"
	}
	return fmt.Sprintf("%s - Step %d of %d: %s", flow, m.cursor+1, stepCount, stepNames[m.cursor])
}

func (m *WizardModel) body() string {
	switch m.state {
	case StateLoading:
		if m.loadErr != "" {
			return styleError.Render("Could not load vehicle: "+m.loadErr) + "\n\n" +
				renderHintBar("r", "retry", "esc", "quit")
		}
		return m.spinner.View() + " Loading vehicle " + m.vehicleID + "…"

	case StateDone:
		return m.completion.View() + "\n\n" + m.buttonBar.Render()
	}

	var sections []string
	if m.banner != "" {
		sections = append(sections, styleBanner.Width(m.contentWidth()).Render("Submission failed: "+m.banner), "")
	}
	if m.step != nil {
		sections = append(sections, m.step.View())
	}
	sections = append(sections, "")

	if m.submitting {
		sections = append(sections, m.spinner.View()+" Submitting…")
	}
	bar := m.buttonBar
	if bar == nil || m.submitting {
		bar = NewButtonBar(stepButtons(m.cursor == 0, m.cursor == stepCount-1, m.submitting))
		bar.SetWidth(m.contentWidth())
	}
	sections = append(sections, bar.Render(), "", m.hints())
	return strings.Join(sections, "\n")
}

func (m *WizardModel) hints() string {
	pairs := []string{"tab", "next field", "enter", "continue", "esc", "back"}
	switch m.cursor {
	case 1:
		pairs = append(pairs, "ctrl+a", "add slot", "ctrl+x", "remove slot", "alt+↑/↓", "move slot")
	case 2:
		pairs = append(pairs, "ctrl+x", "remove image")
	}
	if m.cursor > 0 {
		pairs = append(pairs, "ctrl+e", "editor")
	}
	if m.state == StateFailed {
		pairs = append(pairs, "ctrl+r", "retry")
	}
	return renderHintBar(pairs...)
}

// renderModal wraps content in the centered modal container.
func (m *WizardModel) renderModal(title, content string) string {
	body := strings.Join([]string{styleModalTitle.Render(title), "", content}, "\n")
	modal := styleModalContainer.Width(m.modalWidth()).Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}
