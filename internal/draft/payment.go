package draft

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentSlot is one instalment of the purchase price as entered in the
// seller step. AmountPaid stays as typed text until submission.
type PaymentSlot struct {
	ID            string `json:"id,omitempty"` // Server-assigned; empty until persisted
	SlotNumber    string `json:"slot_number"`
	DateOfPayment string `json:"date_of_payment"`
	AmountPaid    string `json:"amount_paid"`
	PaymentMode   string `json:"payment_mode"`
	PaymentRemark string `json:"payment_remark"`
	PaymentType   string `json:"payment_type,omitempty"`
}

// UnmarshalJSON accepts numeric or string amounts and ids, since the backend
// returns decimals as numbers on read.
func (p *PaymentSlot) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            json.RawMessage `json:"id"`
		SlotNumber    json.RawMessage `json:"slot_number"`
		DateOfPayment string          `json:"date_of_payment"`
		AmountPaid    json.RawMessage `json:"amount_paid"`
		PaymentMode   string          `json:"payment_mode"`
		PaymentRemark string          `json:"payment_remark"`
		PaymentType   string          `json:"payment_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PaymentSlot{
		ID:            rawText(raw.ID),
		SlotNumber:    rawText(raw.SlotNumber),
		DateOfPayment: raw.DateOfPayment,
		AmountPaid:    rawText(raw.AmountPaid),
		PaymentMode:   raw.PaymentMode,
		PaymentRemark: raw.PaymentRemark,
		PaymentType:   raw.PaymentType,
	}
	return nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Amount parses AmountPaid as a decimal.
func (p PaymentSlot) Amount() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(p.AmountPaid))
}

// Label returns the slot label, or "Slot N" for the 0-based index when blank.
func (p PaymentSlot) Label(index int) string {
	if l := strings.TrimSpace(p.SlotNumber); l != "" {
		return l
	}
	return fmt.Sprintf("Slot %d", index+1)
}

// PaymentRecord is the normalized form of a slot posted to the batch endpoint.
// A record with an ID updates that stored slot instead of adding one.
type PaymentRecord struct {
	ID            string          `json:"id,omitempty"`
	SlotNumber    string          `json:"slot_number"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	DateOfPayment string          `json:"date_of_payment"`
	PaymentMode   string          `json:"payment_mode"`
	PaymentRemark string          `json:"payment_remark"`
	PaymentType   string          `json:"payment_type"`
}

// NormalizePaymentSlot prepares a slot for submission: a blank label becomes
// "Slot {index+1}", an unparseable amount becomes 0, and paymentType is
// stamped onto the record.
func NormalizePaymentSlot(slot PaymentSlot, index int, paymentType string) PaymentRecord {
	amount, err := slot.Amount()
	if err != nil {
		amount = decimal.Zero
	}
	return PaymentRecord{
		ID:            strings.TrimSpace(slot.ID),
		SlotNumber:    slot.Label(index),
		AmountPaid:    amount,
		DateOfPayment: slot.DateOfPayment,
		PaymentMode:   slot.PaymentMode,
		PaymentRemark: slot.PaymentRemark,
		PaymentType:   paymentType,
	}
}

// NormalizePaymentSlots normalizes a whole list, keeping order.
func NormalizePaymentSlots(slots []PaymentSlot, paymentType string) []PaymentRecord {
	out := make([]PaymentRecord, len(slots))
	for i, s := range slots {
		out[i] = NormalizePaymentSlot(s, i, paymentType)
	}
	return out
}
