package wizard

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/dealerdesk/internal/draft"
)

// Payment slot field keys, matching the slot JSON names.
const (
	slotKeyLabel  = "slot_number"
	slotKeyDate   = "date_of_payment"
	slotKeyAmount = "amount_paid"
	slotKeyMode   = "payment_mode"
	slotKeyRemark = "payment_remark"
)

// SellerStep edits the sellerInfo and purchaseInfo sections, including the
// ordered payment slot list.
type SellerStep struct {
	formStep

	base []*field // seller and purchase fields, always first in the form
	// meta keeps the server-assigned parts of each slot, parallel to the
	// slot rows.
	meta []draft.PaymentSlot
}

// NewSellerStep builds the seller step from the stored sections.
func NewSellerStep(seller, purchase draft.Section) *SellerStep {
	s := &SellerStep{formStep: formStep{title: "Seller & Purchase"}}
	s.base = []*field{
		newTextField(draft.KeySellerName, "Seller / company", "", seller.String(draft.KeySellerName)),
		newTextField(draft.KeyMobileNumber, "Mobile number", "10 digits", seller.String(draft.KeyMobileNumber)),
		newTextField(draft.KeyEmail, "Email", "optional", seller.String(draft.KeyEmail)),
		newPathField(draft.KeyOwnershipProof, "Ownership proof", attachmentPath(seller, draft.KeyOwnershipProof)),
		newTextField(draft.KeyPurchasePrice, "Purchase price", "", purchase.String(draft.KeyPurchasePrice)),
		newTextField(draft.KeyPurchaseDate, "Purchase date", "YYYY-MM-DD", purchase.String(draft.KeyPurchaseDate)),
		newPathField(draft.KeyPurchaseAgreement, "Agreement", attachmentPath(purchase, draft.KeyPurchaseAgreement)),
	}
	s.setSlots(purchase.PaymentSlots())
	return s
}

func attachmentPath(sec draft.Section, key string) string {
	if a := sec.Attachment(key); a != nil {
		return a.Path
	}
	return ""
}

// setSlots rebuilds the slot rows from slots, keeping the base fields.
func (s *SellerStep) setSlots(slots []draft.PaymentSlot) {
	fields := append([]*field(nil), s.base...)
	s.meta = make([]draft.PaymentSlot, len(slots))
	for i, slot := range slots {
		s.meta[i] = draft.PaymentSlot{ID: slot.ID, PaymentType: slot.PaymentType}
		fields = append(fields,
			newSlotField(newTextField(slotKeyLabel, "Label", fmt.Sprintf("Slot %d", i+1), slot.SlotNumber), i),
			newSlotField(newTextField(slotKeyDate, "Payment date", "YYYY-MM-DD", slot.DateOfPayment), i),
			newSlotField(newTextField(slotKeyAmount, "Amount", "0.00", slot.AmountPaid), i),
			newSlotField(newChoiceField(slotKeyMode, "Mode", draft.PaymentModes, slot.PaymentMode), i),
			newSlotField(newLongTextField(slotKeyRemark, "Remark", slot.PaymentRemark), i),
		)
	}
	s.form.fields = fields
	if s.width > 0 {
		s.form.setWidth(s.width)
	}
}

func newSlotField(f *field, index int) *field {
	f.group = index
	return f
}

// Slots returns the payment slots as currently entered, in order.
func (s *SellerStep) Slots() []draft.PaymentSlot {
	slots := make([]draft.PaymentSlot, len(s.meta))
	copy(slots, s.meta)
	for _, f := range s.form.fields[len(s.base):] {
		slot := &slots[f.group]
		v := strings.TrimSpace(f.value())
		switch f.key {
		case slotKeyLabel:
			slot.SlotNumber = v
		case slotKeyDate:
			slot.DateOfPayment = v
		case slotKeyAmount:
			slot.AmountPaid = v
		case slotKeyMode:
			slot.PaymentMode = v
		case slotKeyRemark:
			slot.PaymentRemark = f.value()
		}
	}
	return slots
}

// AddSlot appends an empty slot and focuses its first field.
func (s *SellerStep) AddSlot() tea.Cmd {
	slots := append(s.Slots(), draft.PaymentSlot{PaymentMode: draft.PaymentModes[0]})
	s.setSlots(slots)
	return s.focusSlot(len(slots) - 1)
}

// RemoveSlot deletes slot i and keeps focus near it.
func (s *SellerStep) RemoveSlot(i int) tea.Cmd {
	slots := s.Slots()
	if i < 0 || i >= len(slots) {
		return nil
	}
	slots = append(slots[:i], slots[i+1:]...)
	s.setSlots(slots)
	if len(slots) == 0 {
		return s.form.focusAt(len(s.base) - 1)
	}
	if i >= len(slots) {
		i = len(slots) - 1
	}
	return s.focusSlot(i)
}

// MoveSlot swaps slot i with its neighbour in direction delta.
func (s *SellerStep) MoveSlot(i, delta int) tea.Cmd {
	slots := s.Slots()
	j := i + delta
	if i < 0 || i >= len(slots) || j < 0 || j >= len(slots) {
		return nil
	}
	offset := s.form.focus - s.slotStart(i)
	slots[i], slots[j] = slots[j], slots[i]
	s.setSlots(slots)
	return s.form.focusAt(s.slotStart(j) + offset)
}

func (s *SellerStep) slotStart(i int) int {
	return len(s.base) + i*slotFieldCount
}

func (s *SellerStep) focusSlot(i int) tea.Cmd {
	return s.form.focusAt(s.slotStart(i))
}

const slotFieldCount = 5

// Update handles slot list keys and forwards the rest to the focused field.
func (s *SellerStep) Update(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyPressMsg); ok {
		group := -1
		if f := s.form.current(); f != nil {
			group = f.group
		}
		switch key.String() {
		case "ctrl+a":
			return s.AddSlot()
		case "ctrl+x":
			return s.RemoveSlot(group)
		case "alt+up":
			return s.MoveSlot(group, -1)
		case "alt+down":
			return s.MoveSlot(group, 1)
		}
	}
	if cmd, ok := s.handleCommon(msg); ok {
		return cmd
	}
	return s.form.update(msg)
}

// View renders the seller fields and the slot list.
func (s *SellerStep) View() string {
	lines := make([]string, 0, len(s.form.fields)+len(s.meta)+2)
	focusLine := 0
	lines = append(lines, styleSection.Render("Seller"))
	for i, f := range s.form.fields {
		switch {
		case i == 4:
			lines = append(lines, "", styleSection.Render("Purchase"))
		case f.group >= 0 && f.key == slotKeyLabel:
			header := fmt.Sprintf("Payment slot %d", f.group+1)
			if s.meta[f.group].ID != "" {
				header += styleMuted.Render(" (saved)")
			}
			lines = append(lines, "", styleSection.Render(header))
		}
		if i == s.form.focus {
			focusLine = len(lines)
		}
		lines = append(lines, f.view(s.form.focused(i)))
	}
	if len(s.meta) == 0 {
		lines = append(lines, "", styleMuted.Render("No payment slots. ctrl+a adds one."))
	}

	out := s.renderLines(lines, focusLine)
	if e := s.errorLine(); e != "" {
		out += "\n\n" + e
	}
	return out
}

// Validate checks the seller identity and every payment slot. The first
// failing slot is named in the message.
func (s *SellerStep) Validate() error {
	if msg := check(sellerCheck{
		Name:   strings.TrimSpace(s.form.value(draft.KeySellerName)),
		Mobile: strings.TrimSpace(s.form.value(draft.KeyMobileNumber)),
		Email:  strings.TrimSpace(s.form.value(draft.KeyEmail)),
	}); msg != "" {
		return s.fail(msg)
	}
	for i, slot := range s.Slots() {
		if msg := check(slotCheck{Amount: slot.AmountPaid, Date: slot.DateOfPayment}); msg != "" {
			return s.fail(fmt.Sprintf("Slot %d: %s", i+1, msg))
		}
	}
	return s.fail("")
}

// Commit writes seller and purchase fields into the draft. Document paths
// that are not regular files are dropped.
func (s *SellerStep) Commit(store *draft.Store) {
	store.MergeSection(draft.SellerInfo, draft.Section{
		draft.KeySellerName:     strings.TrimSpace(s.form.value(draft.KeySellerName)),
		draft.KeyMobileNumber:   strings.TrimSpace(s.form.value(draft.KeyMobileNumber)),
		draft.KeyEmail:          strings.TrimSpace(s.form.value(draft.KeyEmail)),
		draft.KeyOwnershipProof: pickAttachment(s.form.value(draft.KeyOwnershipProof)),
	})
	store.MergeSection(draft.PurchaseInfo, draft.Section{
		draft.KeyPurchasePrice:     strings.TrimSpace(s.form.value(draft.KeyPurchasePrice)),
		draft.KeyPurchaseDate:      strings.TrimSpace(s.form.value(draft.KeyPurchaseDate)),
		draft.KeyPurchaseAgreement: pickAttachment(s.form.value(draft.KeyPurchaseAgreement)),
		draft.KeyPaymentSlot:       s.Slots(),
	})
}

func pickAttachment(path string) *draft.Attachment {
	picked := draft.FilterAttachments([]string{path})
	if len(picked) == 0 {
		return nil
	}
	return &picked[0]
}
