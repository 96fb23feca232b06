package draft

import (
	"encoding/json"
	"strconv"
)

// Vehicle section keys
const (
	KeyVehicleType       = "vehicle_type"
	KeyVehicleMake       = "vehicle_make"
	KeyVehicleModel      = "vehicle_model"
	KeyManufactureYear   = "manufacture_year"
	KeyRegistrationYear  = "registration_year"
	KeyChassisNumber     = "chassis_number"
	KeyEngineNumber      = "engine_number"
	KeyRegistrationPlate = "registration_number"
	KeyOdometerReading   = "odometer_reading"
	KeyColor             = "color"
	KeyFuelType          = "fuel_type"
	KeyTransmissionType  = "transmission_type"
)

// Seller section keys
const (
	KeySellerName     = "seller_name_company_name"
	KeyMobileNumber   = "mobile_number"
	KeyEmail          = "email"
	KeyOwnershipProof = "ownership_proof"
)

// Purchase section keys
const (
	KeyPurchasePrice     = "purchase_price"
	KeyPurchaseDate      = "purchase_date"
	KeyPurchaseAgreement = "purchase_agreement"
	KeyPaymentSlot       = "payment_slot"
)

// Condition section keys
const (
	KeyInspectionDate    = "inspection_date"
	KeyConditionGrade    = "condition_grade"
	KeyDamageNotes       = "damage_notes"
	KeyTiresCondition    = "tires_condition"
	KeyEngineCondition   = "engine_condition"
	KeyInteriorCondition = "interior_condition"
	KeyVehicleImages     = "vehicle_images"

	// KeyExistingImages holds image URLs already stored on the backend. Only
	// the edit flow sets it; it is never submitted.
	KeyExistingImages = "existing_images"
)

// MaxImages is the most vehicle images a draft may hold.
const MaxImages = 5

// DefaultVehicleType is applied when the vehicle step commits without a type.
const DefaultVehicleType = "car"

// Enumerated field values, in display order.
var (
	VehicleTypes       = []string{"car", "bus", "truck", "three_wheelers"}
	PaymentModes       = []string{"cash", "bank_transfer", "cheque", "upi", "credit_card", "debit_card"}
	ConditionGrades    = []string{"Excellent", "Good", "Fair", "Poor"}
	TireConditions     = []string{"0-25%", "25-50%", "50-75%", "75-100%"}
	InteriorConditions = []string{"Excellent", "Good", "Fair", "Poor"}
	FuelTypes          = []string{"petrol", "diesel", "cng", "electric", "hybrid"}
	TransmissionTypes  = []string{"manual", "automatic"}
)

// SectionKeys lists the keys each section owns. The edit flow uses it to
// route a flat backend entity into sections.
var SectionKeys = map[SectionName][]string{
	VehicleInfo: {
		KeyVehicleType, KeyVehicleMake, KeyVehicleModel, KeyManufactureYear,
		KeyRegistrationYear, KeyChassisNumber, KeyEngineNumber,
		KeyRegistrationPlate, KeyOdometerReading, KeyColor, KeyFuelType,
		KeyTransmissionType,
	},
	SellerInfo: {
		KeySellerName, KeyMobileNumber, KeyEmail, KeyOwnershipProof,
	},
	PurchaseInfo: {
		KeyPurchasePrice, KeyPurchaseDate, KeyPurchaseAgreement, KeyPaymentSlot,
	},
	ConditionInfo: {
		KeyInspectionDate, KeyConditionGrade, KeyDamageNotes, KeyTiresCondition,
		KeyEngineCondition, KeyInteriorCondition, KeyVehicleImages,
	},
}

// FileKeys are the document fields sent as binary multipart parts.
var FileKeys = map[string]bool{
	KeyOwnershipProof:    true,
	KeyPurchaseAgreement: true,
}

// Snapshot is a point-in-time copy of a draft.
type Snapshot map[SectionName]Section

// String returns a scalar field rendered as text, or "" when absent.
func (s Snapshot) String(name SectionName, key string) string {
	return s[name].String(key)
}

// PaymentSlots returns the purchase section's payment slots in order.
func (s Snapshot) PaymentSlots() []PaymentSlot {
	return s[PurchaseInfo].PaymentSlots()
}

// Images returns the condition section's image attachments in order.
func (s Snapshot) Images() []Attachment {
	return s[ConditionInfo].Images()
}

// String returns a scalar field rendered as text, or "" when absent or not
// scalar.
func (sec Section) String(key string) string {
	text, _ := scalarText(sec[key])
	return text
}

// PaymentSlots returns the section's payment_slot list.
func (sec Section) PaymentSlots() []PaymentSlot {
	slots, _ := sec[KeyPaymentSlot].([]PaymentSlot)
	return append([]PaymentSlot(nil), slots...)
}

// Images returns the section's vehicle_images list.
func (sec Section) Images() []Attachment {
	imgs, _ := sec[KeyVehicleImages].([]Attachment)
	return append([]Attachment(nil), imgs...)
}

// Attachment returns a document field, or nil when absent.
func (sec Section) Attachment(key string) *Attachment {
	switch a := sec[key].(type) {
	case *Attachment:
		return a
	case Attachment:
		return &a
	}
	return nil
}

// ExistingImages returns image URLs already stored for the vehicle.
func (sec Section) ExistingImages() []string {
	urls, _ := sec[KeyExistingImages].([]string)
	return append([]string(nil), urls...)
}

// scalarText converts a scalar value to its text form. The bool result is
// false for nil, empty strings and every non-scalar.
func scalarText(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), val != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
