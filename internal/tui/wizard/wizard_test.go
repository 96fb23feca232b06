package wizard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"charm.land/bubbles/v2/cursor"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/dealerdesk/internal/api"
	"github.com/mark3labs/dealerdesk/internal/devserver"
	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/intake"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type fakeSession struct{ cleared int }

func (f *fakeSession) Clear() error {
	f.cleared++
	return nil
}

type fakeLoader struct {
	entity draft.Entity
	err    error
	calls  int
}

func (f *fakeLoader) GetVehicle(context.Context, string) (draft.Entity, error) {
	f.calls++
	return f.entity, f.err
}

// harness wires a wizard to the in-memory backend.
type harness struct {
	srv     *devserver.Server
	client  *api.Client
	session *fakeSession
	deps    Deps
}

func newHarness(t *testing.T, clientToken string, opts ...devserver.Option) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := devserver.New(opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := api.New(ts.URL, 5*time.Second, staticToken(clientToken))
	sess := &fakeSession{}
	return &harness{
		srv:     srv,
		client:  client,
		session: sess,
		deps: Deps{
			Submitter: intake.NewSubmitter(client, intake.WithSession(sess)),
			Loader:    client,
			Session:   sess,
		},
	}
}

func (h *harness) totalCalls() int {
	n := 0
	for _, r := range []string{
		devserver.RouteCreateVehicle, devserver.RouteUpdateVehicle, devserver.RouteGetVehicle,
		devserver.RouteUploadImages, devserver.RouteBatchSlots, devserver.RouteListSlots,
	} {
		n += h.srv.Calls(r)
	}
	return n
}

func send(m *WizardModel, msg tea.Msg) tea.Cmd {
	_, cmd := m.Update(msg)
	return cmd
}

// drain runs cmd and feeds every resulting message back into m until no
// work is left. Spinner ticks and cursor blinks are dropped so the loop
// ends.
func drain(t *testing.T, m *WizardModel, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := runCmd(t, c).(type) {
		case nil, spinner.TickMsg, cursor.BlinkMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			queue = append(queue, send(m, msg))
		}
	}
}

func runCmd(t *testing.T, c tea.Cmd) tea.Msg {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- c() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(5 * time.Second):
		t.Log("command timed out")
		return nil
	}
}

// completeSteps fills all three steps the way scenario A does and leaves the
// wizard on the condition step.
func completeSteps(t *testing.T, m *WizardModel, slots []draft.PaymentSlot) {
	t.Helper()
	fill(t, m.CurrentStep(), map[string]string{draft.KeyVehicleMake: "Tata"})
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep2, m.State())

	seller := m.CurrentStep().(*SellerStep)
	if slots != nil {
		seller.setSlots(slots)
	}
	fill(t, seller, validSeller())
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep3, m.State())

	cond := m.CurrentStep().(*ConditionStep)
	fill(t, cond, map[string]string{draft.KeyInspectionDate: "2024-01-01", draft.KeyConditionGrade: "Good"})
	cond.AddImages(tempFile(t, "front.jpg"))
}

func TestWizard_ScenarioA(t *testing.T) {
	h := newHarness(t, "")
	m := New(context.Background(), h.deps)
	require.Equal(t, StateStep1, m.State())

	completeSteps(t, m, nil)

	cmd := send(m, AdvanceMsg{})
	require.Equal(t, StateSubmitting, m.State())
	require.True(t, m.Submitting())
	drain(t, m, cmd)

	require.Equal(t, StateDone, m.State())
	assert.False(t, m.Submitting())
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteCreateVehicle))
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteUploadImages))
	assert.Equal(t, 0, h.srv.Calls(devserver.RouteBatchSlots))

	res := m.Result()
	require.NotNil(t, res.Submission)
	assert.Equal(t, "1", res.Submission.VehicleID)
	assert.False(t, res.Cancelled)
	assert.Equal(t, "car", res.Draft.String(draft.VehicleInfo, draft.KeyVehicleType))
	assert.Contains(t, m.completion.Content(), "Vehicle 1 created")

	cmd = send(m, key(tea.KeyEnter, 0))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWizard_ScenarioB_SlotBlocksWithoutRequests(t *testing.T) {
	h := newHarness(t, "")
	m := New(context.Background(), h.deps)

	fill(t, m.CurrentStep(), map[string]string{draft.KeyVehicleMake: "Tata"})
	send(m, AdvanceMsg{})

	seller := m.CurrentStep().(*SellerStep)
	seller.setSlots([]draft.PaymentSlot{
		{AmountPaid: "50", DateOfPayment: "2024-01-01"},
		{DateOfPayment: "2024-02-01"},
	})
	fill(t, seller, validSeller())
	send(m, AdvanceMsg{})

	assert.Equal(t, StateStep2, m.State())
	assert.Contains(t, seller.View(), "Slot 2: Amount is required")
	assert.Empty(t, m.Draft().Read()[draft.SellerInfo], "nothing committed while blocked")
	assert.Equal(t, 0, h.totalCalls())
}

func TestWizard_ScenarioC_CreateFailure(t *testing.T) {
	h := newHarness(t, "")
	h.srv.Fail(devserver.RouteCreateVehicle, devserver.Failure{
		Status: http.StatusBadRequest,
		Body:   gin.H{"detail": "Chassis number already exists."},
	})
	m := New(context.Background(), h.deps)
	completeSteps(t, m, []draft.PaymentSlot{{AmountPaid: "50", DateOfPayment: "2024-01-01"}})

	drain(t, m, send(m, AdvanceMsg{}))

	require.Equal(t, StateFailed, m.State())
	assert.False(t, m.Submitting())
	assert.Contains(t, m.Banner(), "Chassis number already exists.")
	assert.IsType(t, &ConditionStep{}, m.CurrentStep())
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteCreateVehicle))
	assert.Equal(t, 0, h.srv.Calls(devserver.RouteUploadImages))
	assert.Equal(t, 0, h.srv.Calls(devserver.RouteBatchSlots))

	// Failed is not terminal: a retry goes through once the backend recovers.
	h.srv.ClearFailures()
	cmd := send(m, key('r', tea.ModCtrl))
	require.NotNil(t, cmd)
	drain(t, m, cmd)

	require.Equal(t, StateDone, m.State())
	assert.Equal(t, "", m.Banner())
	assert.Equal(t, 2, h.srv.Calls(devserver.RouteCreateVehicle))
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteBatchSlots))

	slots := m.Draft().Read().PaymentSlots()
	require.Len(t, slots, 1)
	assert.NotEmpty(t, slots[0].ID, "read-back slots replace the local ones")
	assert.Equal(t, "Slot 1", slots[0].SlotNumber)
}

func TestWizard_RetryAfterImageFailureUpdatesSavedVehicle(t *testing.T) {
	h := newHarness(t, "")
	h.srv.Fail(devserver.RouteUploadImages, devserver.Failure{
		Status: http.StatusInternalServerError,
		Body:   gin.H{"detail": "disk full"},
	})
	m := New(context.Background(), h.deps)
	completeSteps(t, m, []draft.PaymentSlot{{AmountPaid: "50", DateOfPayment: "2024-01-01"}})

	drain(t, m, send(m, AdvanceMsg{}))
	require.Equal(t, StateFailed, m.State())
	assert.Contains(t, m.Banner(), "vehicle 1 was saved, but upload-images failed")

	h.srv.ClearFailures()
	drain(t, m, send(m, RetrySubmitMsg{}))

	require.Equal(t, StateDone, m.State(), "banner: %s", m.Banner())
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteCreateVehicle), "the saved vehicle is not created twice")
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteUpdateVehicle))
	assert.Equal(t, 1, h.srv.VehicleCount())
	assert.Equal(t, 2, h.srv.Calls(devserver.RouteUploadImages))
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteBatchSlots))

	_, images, ok := h.srv.Vehicle(1)
	require.True(t, ok)
	assert.Len(t, images, 1)
	assert.Contains(t, m.completion.Content(), "Vehicle 1 created")
}

func TestWizard_RetryAfterSlotErrorsKeepsSavedWork(t *testing.T) {
	h := newHarness(t, "")
	// The first record is stored as slot 1 and the second is rejected.
	h.srv.SeedSlot(1, "Slot 1", "2024-01-01", "50", "cash")
	h.srv.Fail(devserver.RouteBatchSlots, devserver.Failure{
		Status: http.StatusMultiStatus,
		Body: gin.H{
			"created": []gin.H{{"id": 1, "slot_number": "Slot 1", "amount_paid": "50", "date_of_payment": "2024-01-01"}},
			"errors":  []gin.H{{"index": 1, "message": "duplicate receipt"}},
		},
	})
	m := New(context.Background(), h.deps)
	completeSteps(t, m, []draft.PaymentSlot{
		{AmountPaid: "50", DateOfPayment: "2024-01-01", PaymentMode: "cash"},
		{AmountPaid: "75", DateOfPayment: "2024-02-01", PaymentMode: "upi"},
	})

	drain(t, m, send(m, AdvanceMsg{}))
	require.Equal(t, StateFailed, m.State())
	assert.Contains(t, m.Banner(), "Slot 2: duplicate receipt")
	assert.Equal(t, "1", m.Draft().Read().PaymentSlots()[0].ID, "accepted slot keeps its id")

	h.srv.ClearFailures()
	drain(t, m, send(m, key('r', tea.ModCtrl)))

	require.Equal(t, StateDone, m.State(), "banner: %s", m.Banner())
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteCreateVehicle))
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteUploadImages), "uploaded images are not sent again")
	assert.Equal(t, 2, h.srv.Calls(devserver.RouteBatchSlots))

	slots := m.Result().Submission.Slots
	require.Len(t, slots, 2, "the accepted slot is not duplicated")
	assert.Equal(t, "1", slots[0].ID)
	assert.Equal(t, "75", slots[1].AmountPaid)
}

func TestWizard_SubmitReentryIsNoop(t *testing.T) {
	h := newHarness(t, "")
	m := New(context.Background(), h.deps)
	completeSteps(t, m, nil)

	cmd := send(m, AdvanceMsg{})
	require.True(t, m.Submitting())

	assert.Nil(t, send(m, AdvanceMsg{}))
	assert.Nil(t, send(m, key(tea.KeyEnter, 0)))
	assert.Nil(t, send(m, RetrySubmitMsg{}))
	assert.Equal(t, StateSubmitting, m.State())

	drain(t, m, cmd)
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteCreateVehicle))
}

func TestWizard_AuthExpiredOnSubmit(t *testing.T) {
	h := newHarness(t, "stale", devserver.WithToken("secret"))
	m := New(context.Background(), h.deps)
	completeSteps(t, m, nil)

	_, cmd := m.Update(AdvanceMsg{})
	msg := runCmd(t, cmd)
	batch, ok := msg.(tea.BatchMsg)
	require.True(t, ok)

	var quit tea.Cmd
	for _, c := range batch {
		if res, ok := runCmd(t, c).(SubmitErrorMsg); ok {
			require.True(t, errors.Is(res.Err, intake.ErrAuthExpired))
			quit = send(m, res)
		}
	}
	require.NotNil(t, quit)
	assert.IsType(t, tea.QuitMsg{}, quit())
	assert.True(t, m.Result().AuthExpired)
	assert.Equal(t, 1, h.session.cleared)
	assert.Equal(t, 0, h.srv.Calls(devserver.RouteUploadImages))
}

func TestWizard_BackAndClamp(t *testing.T) {
	t.Parallel()

	m := New(context.Background(), Deps{})
	fill(t, m.CurrentStep(), map[string]string{draft.KeyVehicleMake: "Tata"})
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep2, m.State())

	// Going back does not commit the seller step and rebuilds step 1 from
	// the draft.
	fill(t, m.CurrentStep(), map[string]string{draft.KeySellerName: "X"})
	send(m, key(tea.KeyEscape, 0))
	require.Equal(t, StateStep1, m.State())
	assert.Equal(t, "Tata", m.CurrentStep().(*VehicleStep).form.value(draft.KeyVehicleMake))
	assert.Empty(t, m.Draft().Section(draft.SellerInfo))

	m.enterStep(7)
	assert.Equal(t, StateStep3, m.State())
	m.enterStep(-2)
	assert.Equal(t, StateStep1, m.State())

	cmd := send(m, key(tea.KeyEscape, 0))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Result().Cancelled)
}

func TestWizard_ButtonBarFocus(t *testing.T) {
	t.Parallel()

	m := New(context.Background(), Deps{})
	send(m, TabExitForwardMsg{})
	require.True(t, m.buttonFocused)

	btn, ok := m.buttonBar.FocusedButton()
	require.True(t, ok)
	assert.Equal(t, ButtonCancel, btn.ID)

	send(m, key(tea.KeyTab, 0))
	btn, _ = m.buttonBar.FocusedButton()
	assert.Equal(t, ButtonNext, btn.ID)

	send(m, key(tea.KeyEnter, 0))
	assert.Equal(t, StateStep2, m.State())
	assert.False(t, m.buttonFocused)

	// Tabbing past the last button returns to the first field.
	send(m, TabExitBackwardMsg{})
	btn, _ = m.buttonBar.FocusedButton()
	assert.Equal(t, ButtonNext, btn.ID)
	send(m, key(tea.KeyTab, 0))
	assert.False(t, m.buttonFocused)
	assert.Equal(t, 0, m.CurrentStep().(*SellerStep).form.focus)
}

func TestWizard_EditPreloadsDraft(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{entity: draft.Entity{
		"id":                       float64(12),
		draft.KeyVehicleMake:       "Tata",
		draft.KeySellerName:        "X",
		draft.KeyMobileNumber:      "9876543210",
		draft.KeyPurchaseAgreement: "/media/vehicles/12/agreement.pdf",
		draft.KeyConditionGrade:    "Good",
		draft.KeyPaymentSlot: []any{
			map[string]any{"id": float64(3), "slot_number": "Advance", "amount_paid": "100.00", "date_of_payment": "2024-01-01", "payment_mode": "cash", "payment_remark": "", "payment_type": "purchase"},
		},
		"images": []any{map[string]any{"image": "/media/vehicles/12/front.jpg"}},
	}}
	m := NewEdit(context.Background(), Deps{Loader: loader}, "12")
	require.Equal(t, StateLoading, m.State())
	require.Nil(t, m.CurrentStep())

	cmd := m.Init()
	require.NotNil(t, cmd)
	drain(t, m, cmd)

	require.Equal(t, StateStep1, m.State())
	require.Equal(t, 1, loader.calls)

	snap := m.Draft().Read()
	assert.Equal(t, []draft.PaymentSlot{{
		ID: "3", SlotNumber: "Advance", AmountPaid: "100.00", DateOfPayment: "2024-01-01",
		PaymentMode: "cash", PaymentType: "purchase",
	}}, snap.PaymentSlots())
	assert.Nil(t, snap[draft.PurchaseInfo].Attachment(draft.KeyPurchaseAgreement), "attachments are never pre-populated")
	assert.Equal(t, []string{"/media/vehicles/12/front.jpg"}, snap[draft.ConditionInfo].ExistingImages())
	assert.Equal(t, "Tata", m.CurrentStep().(*VehicleStep).form.value(draft.KeyVehicleMake))
}

func TestWizard_EditLoadUnauthorized(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	loader := &fakeLoader{err: &api.Error{Status: http.StatusUnauthorized, Message: "Authentication credentials were not provided."}}
	m := NewEdit(context.Background(), Deps{Loader: loader, Session: sess}, "12")

	cmd := send(m, LoadErrorMsg{Err: loader.err})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Result().AuthExpired)
	assert.Equal(t, 1, sess.cleared)
}

func TestWizard_EditLoadErrorRetry(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{err: errors.New("connection refused")}
	m := NewEdit(context.Background(), Deps{Loader: loader}, "12")

	send(m, LoadErrorMsg{Err: loader.err})
	assert.Equal(t, StateLoading, m.State())
	assert.Contains(t, m.body(), "connection refused")

	loader.err = nil
	loader.entity = draft.Entity{"id": "12"}
	drain(t, m, send(m, key('r', 0)))
	assert.Equal(t, StateStep1, m.State())
}

func TestWizard_EditSubmitsUpdate(t *testing.T) {
	h := newHarness(t, "")
	id := h.srv.Seed(map[string]string{
		draft.KeyVehicleMake:    "Tata",
		draft.KeyColor:          "white",
		draft.KeySellerName:     "X",
		draft.KeyMobileNumber:   "9876543210",
		draft.KeyInspectionDate: "2024-01-01",
		draft.KeyConditionGrade: "Good",
	}, "/media/vehicles/1/front.jpg")
	h.srv.SeedSlot(id, "Advance", "2024-01-01", "100", "cash")

	m := NewEdit(context.Background(), h.deps, "1")
	drain(t, m, m.Init())
	require.Equal(t, StateStep1, m.State())

	fill(t, m.CurrentStep(), map[string]string{draft.KeyColor: "red"})
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep2, m.State())
	require.Len(t, m.CurrentStep().(*SellerStep).Slots(), 1)
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep3, m.State())

	drain(t, m, send(m, AdvanceMsg{}))
	require.Equal(t, StateDone, m.State(), "banner: %s", m.Banner())

	assert.Equal(t, 0, h.srv.Calls(devserver.RouteCreateVehicle))
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteUpdateVehicle))
	assert.Equal(t, 0, h.srv.Calls(devserver.RouteUploadImages), "stored images are not re-sent")
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteBatchSlots))
	require.Len(t, m.Result().Submission.Slots, 1, "stored slot updated in place")

	fields, _, ok := h.srv.Vehicle(id)
	require.True(t, ok)
	assert.Equal(t, "red", fields[draft.KeyColor])

	content := m.completion.Content()
	assert.Contains(t, content, "Vehicle 1 updated")
	assert.Contains(t, content, "```diff")
	assert.Contains(t, content, "+| color | red |")
}

func TestWizard_ViewRenders(t *testing.T) {
	t.Parallel()

	m := New(context.Background(), Deps{})
	send(m, tea.WindowSizeMsg{Width: 120, Height: 50})
	v := m.View()
	assert.True(t, v.AltScreen)
	assert.Contains(t, m.title(), "Step 1 of 3: Vehicle")
	assert.Contains(t, m.body(), "Cancel")
}

func TestWizard_EditSavesChangedStoredSlot(t *testing.T) {
	h := newHarness(t, "")
	id := h.srv.Seed(map[string]string{
		draft.KeyVehicleMake:    "Tata",
		draft.KeySellerName:     "X",
		draft.KeyMobileNumber:   "9876543210",
		draft.KeyInspectionDate: "2024-01-01",
		draft.KeyConditionGrade: "Good",
	}, "/media/vehicles/1/front.jpg")
	h.srv.SeedSlot(id, "Advance", "2024-01-01", "100", "cash")

	m := NewEdit(context.Background(), h.deps, "1")
	drain(t, m, m.Init())
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep2, m.State())

	fill(t, m.CurrentStep(), map[string]string{"amount_paid.0": "999"})
	send(m, AdvanceMsg{})
	require.Equal(t, StateStep3, m.State(), "banner: %s", m.Banner())

	drain(t, m, send(m, AdvanceMsg{}))
	require.Equal(t, StateDone, m.State(), "banner: %s", m.Banner())
	assert.Equal(t, 1, h.srv.Calls(devserver.RouteBatchSlots))

	slots, err := h.client.ListPaymentSlots(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "999", slots[0].AmountPaid)
	assert.Equal(t, "999", m.Draft().Read().PaymentSlots()[0].AmountPaid)
}
