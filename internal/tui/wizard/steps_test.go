package wizard

import (
	"os"
	"path/filepath"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/dealerdesk/internal/draft"
)

func (s *formStep) testForm() *form { return &s.form }

// fill sets field values by field id.
func fill(t *testing.T, step Step, values map[string]string) {
	t.Helper()
	fs, ok := step.(interface{ testForm() *form })
	require.True(t, ok, "step %T has no form", step)
	for id, v := range values {
		f := fs.testForm().byID(id)
		require.NotNil(t, f, "no field %q in %T", id, step)
		f.setValue(v)
	}
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	return path
}

func key(code rune, mod tea.KeyMod) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code, Mod: mod}
}

func TestVehicleStep_DefaultsVehicleType(t *testing.T) {
	t.Parallel()

	step := NewVehicleStep(draft.Section{})
	require.NoError(t, step.Validate())

	fill(t, step, map[string]string{draft.KeyVehicleMake: " Tata "})
	store := draft.New()
	step.Commit(store)

	sec := store.Section(draft.VehicleInfo)
	assert.Equal(t, draft.DefaultVehicleType, sec.String(draft.KeyVehicleType))
	assert.Equal(t, "Tata", sec.String(draft.KeyVehicleMake))
}

func TestVehicleStep_ReentryShowsStoredValues(t *testing.T) {
	t.Parallel()

	step := NewVehicleStep(draft.Section{
		draft.KeyVehicleType:  "truck",
		draft.KeyVehicleModel: "Ace",
		draft.KeyFuelType:     "lpg",
	})
	assert.Equal(t, "truck", step.form.value(draft.KeyVehicleType))
	assert.Equal(t, "Ace", step.form.value(draft.KeyVehicleModel))
	assert.Equal(t, "lpg", step.form.value(draft.KeyFuelType), "unknown enum values are kept")
}

func TestChoiceField_Cycles(t *testing.T) {
	t.Parallel()

	f := newChoiceField("grade", "Grade", draft.ConditionGrades, "")
	assert.Equal(t, "", f.value())

	f.update(key(tea.KeyRight, 0))
	assert.Equal(t, "Excellent", f.value())
	f.update(key(tea.KeyLeft, 0))
	assert.Equal(t, "Poor", f.value())
	f.update(key(tea.KeyBackspace, 0))
	assert.Equal(t, "", f.value())
}

func TestLongTextField_MultilineIsNotEditedInline(t *testing.T) {
	t.Parallel()

	f := newLongTextField(draft.KeyDamageNotes, "Damage notes", "")
	f.focus()
	f.setValue("dent on door\nscratch on bumper")

	f.update(tea.KeyPressMsg{Code: 'x', Text: "x"})
	f.update(key(tea.KeyBackspace, 0))
	assert.Equal(t, "dent on door\nscratch on bumper", f.value(), "newlines survive inline keys")
	assert.NotContains(t, f.value(), "⏎")
	assert.Contains(t, f.view(true), "ctrl+u clear")

	f.update(key('u', tea.ModCtrl))
	assert.Equal(t, "", f.value())

	f.update(tea.KeyPressMsg{Code: 'a', Text: "a"})
	assert.Equal(t, "a", f.value(), "single-line text is edited inline again")
}

func TestForm_TabExits(t *testing.T) {
	t.Parallel()

	step := NewVehicleStep(draft.Section{})
	step.FocusLast()

	cmd := step.Update(key(tea.KeyTab, 0))
	require.NotNil(t, cmd)
	assert.IsType(t, TabExitForwardMsg{}, cmd())
	assert.False(t, step.form.active)

	step.FocusFirst()
	cmd = step.Update(key(tea.KeyTab, tea.ModShift))
	require.NotNil(t, cmd)
	assert.IsType(t, TabExitBackwardMsg{}, cmd())
}

func TestFormStep_EnterAdvances(t *testing.T) {
	t.Parallel()

	step := NewVehicleStep(draft.Section{})
	step.Focus()
	cmd := step.Update(key(tea.KeyEnter, 0))
	require.NotNil(t, cmd)
	assert.IsType(t, AdvanceMsg{}, cmd())
}

func validSeller() map[string]string {
	return map[string]string{
		draft.KeySellerName:   "X",
		draft.KeyMobileNumber: "9876543210",
	}
}

func TestSellerStep_MobileLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mobile  string
		wantErr string
	}{
		{"9876543210", ""},
		{"98765", "Mobile number must be exactly 10 characters"},
		{"98765432101", "Mobile number must be exactly 10 characters"},
		{"", "Mobile number is required"},
	}
	for _, tt := range tests {
		t.Run(tt.mobile, func(t *testing.T) {
			step := NewSellerStep(draft.Section{}, draft.Section{})
			fill(t, step, map[string]string{
				draft.KeySellerName:   "X",
				draft.KeyMobileNumber: tt.mobile,
				draft.KeyEmail:        "seller@example.com",
			})
			err := step.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Message)
			assert.Contains(t, step.View(), tt.wantErr)
		})
	}
}

func TestSellerStep_Email(t *testing.T) {
	t.Parallel()

	step := NewSellerStep(draft.Section{}, draft.Section{})
	fill(t, step, validSeller())
	fill(t, step, map[string]string{draft.KeyEmail: "not-an-email"})
	require.EqualError(t, step.Validate(), "Email must be a valid email address")
}

func TestSellerStep_SlotChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		slots   []draft.PaymentSlot
		wantErr string
	}{
		{"zero amount", []draft.PaymentSlot{{AmountPaid: "0"}}, "Slot 1: Amount must be greater than 0"},
		{"valid", []draft.PaymentSlot{{AmountPaid: "50", DateOfPayment: "2024-01-01"}}, ""},
		{"missing date", []draft.PaymentSlot{{AmountPaid: "50"}}, "Slot 1: Payment date is required"},
		{"not a number", []draft.PaymentSlot{{AmountPaid: "fifty", DateOfPayment: "2024-01-01"}}, "Slot 1: Amount must be greater than 0"},
		{
			"first offender named",
			[]draft.PaymentSlot{
				{AmountPaid: "10", DateOfPayment: "2024-01-01"},
				{DateOfPayment: "2024-02-01"},
				{AmountPaid: "-1"},
			},
			"Slot 2: Amount is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := NewSellerStep(draft.Section{}, draft.Section{draft.KeyPaymentSlot: tt.slots})
			fill(t, step, validSeller())
			err := step.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestSellerStep_SlotListEditing(t *testing.T) {
	t.Parallel()

	step := NewSellerStep(draft.Section{}, draft.Section{draft.KeyPaymentSlot: []draft.PaymentSlot{
		{ID: "7", SlotNumber: "Advance", AmountPaid: "100", DateOfPayment: "2024-01-01", PaymentMode: "cash", PaymentType: "purchase"},
	}})
	step.Focus()

	step.Update(key('a', tea.ModCtrl))
	require.Len(t, step.Slots(), 2)
	assert.Equal(t, step.slotStart(1), step.form.focus, "new slot is focused")
	fill(t, step, map[string]string{"amount_paid.1": "25", "slot_number.1": "Balance"})

	step.Update(key(tea.KeyUp, tea.ModAlt))
	slots := step.Slots()
	require.Len(t, slots, 2)
	assert.Equal(t, "Balance", slots[0].SlotNumber)
	assert.Equal(t, "", slots[0].ID)
	assert.Equal(t, "Advance", slots[1].SlotNumber)
	assert.Equal(t, "7", slots[1].ID, "server fields follow the moved slot")
	assert.Equal(t, "purchase", slots[1].PaymentType)

	step.Update(TextEditedMsg{Key: "payment_remark.1", Content: "paid\nin cash"})
	assert.Equal(t, "paid\nin cash", step.Slots()[1].PaymentRemark)

	step.form.focusAt(step.slotStart(0))
	step.Update(key('x', tea.ModCtrl))
	slots = step.Slots()
	require.Len(t, slots, 1)
	assert.Equal(t, "Advance", slots[0].SlotNumber)
}

func TestSellerStep_Commit(t *testing.T) {
	t.Parallel()

	proof := tempFile(t, "rc.pdf")
	step := NewSellerStep(draft.Section{}, draft.Section{})
	fill(t, step, validSeller())
	fill(t, step, map[string]string{
		draft.KeyOwnershipProof:    proof,
		draft.KeyPurchaseAgreement: t.TempDir(), // a directory is dropped
		draft.KeyPurchasePrice:     "450000",
	})
	step.AddSlot()
	fill(t, step, map[string]string{"amount_paid.0": "50", "date_of_payment.0": "2024-01-01"})
	require.NoError(t, step.Validate())

	store := draft.New()
	step.Commit(store)
	snap := store.Read()

	require.NotNil(t, snap[draft.SellerInfo].Attachment(draft.KeyOwnershipProof))
	assert.Equal(t, "rc.pdf", snap[draft.SellerInfo].Attachment(draft.KeyOwnershipProof).Name)
	assert.Nil(t, snap[draft.PurchaseInfo].Attachment(draft.KeyPurchaseAgreement))
	assert.Equal(t, "450000", snap.String(draft.PurchaseInfo, draft.KeyPurchasePrice))
	require.Len(t, snap.PaymentSlots(), 1)
	assert.Equal(t, "50", snap.PaymentSlots()[0].AmountPaid)
	assert.Equal(t, "cash", snap.PaymentSlots()[0].PaymentMode)
}

func TestConditionStep_Checks(t *testing.T) {
	t.Parallel()

	step := NewConditionStep(draft.Section{})
	require.EqualError(t, step.Validate(), "Inspection date is required")

	fill(t, step, map[string]string{draft.KeyInspectionDate: "2024-01-01"})
	require.EqualError(t, step.Validate(), "Condition grade is required")

	fill(t, step, map[string]string{draft.KeyConditionGrade: "Good"})
	require.EqualError(t, step.Validate(), "Vehicle images: at least 1 required")

	step.AddImages(tempFile(t, "front.jpg"))
	require.NoError(t, step.Validate())
}

func TestConditionStep_ExistingImagesCount(t *testing.T) {
	t.Parallel()

	step := NewConditionStep(draft.Section{
		draft.KeyInspectionDate: "2024-01-01",
		draft.KeyConditionGrade: "Fair",
		draft.KeyExistingImages: []string{"/media/vehicles/1/front.jpg"},
	})
	require.NoError(t, step.Validate())
	assert.Contains(t, step.View(), "/media/vehicles/1/front.jpg")
}

func TestConditionStep_ImageList(t *testing.T) {
	t.Parallel()

	step := NewConditionStep(draft.Section{})
	step.Focus()

	paths := make([]string, 0, 7)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg"} {
		paths = append(paths, tempFile(t, name))
	}

	add := step.form.byKey(keyAddImage)
	step.form.focusAt(len(step.base) - 1)
	add.setValue(paths[0] + ", " + t.TempDir() + "," + paths[1])
	cmd := step.Update(key(tea.KeyEnter, 0))
	assert.Nil(t, cmd, "enter with paths adds instead of advancing")
	assert.Equal(t, "", add.value())
	require.Len(t, step.Images(), 2, "directories are dropped")

	step.AddImages(paths[2:]...)
	imgs := step.Images()
	require.Len(t, imgs, draft.MaxImages)
	assert.Equal(t, "a.jpg", imgs[0].Name)
	assert.Equal(t, "e.jpg", imgs[4].Name, "oldest five are kept")

	// Focus the second image row and delete it.
	step.form.focusAt(len(step.base) + 1)
	step.Update(key(tea.KeyDelete, 0))
	imgs = step.Images()
	require.Len(t, imgs, 4)
	assert.Equal(t, []string{"a.jpg", "c.jpg", "d.jpg", "e.jpg"}, []string{imgs[0].Name, imgs[1].Name, imgs[2].Name, imgs[3].Name})

	store := draft.New()
	step.Commit(store)
	assert.Len(t, store.Read().Images(), 4)
}
