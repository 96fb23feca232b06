// Package draft holds the in-progress vehicle record that the intake wizard
// builds up across its steps.
//
// A draft is split into four named sections. Steps commit into their own
// section with MergeSection, which is a shallow, key-wise, last-write-wins
// merge: keys absent from the update keep their previous values.
package draft

import (
	"sync"
)

// SectionName identifies one of the four draft sections.
type SectionName string

const (
	VehicleInfo   SectionName = "vehicleInfo"
	SellerInfo    SectionName = "sellerInfo"
	PurchaseInfo  SectionName = "purchaseInfo"
	ConditionInfo SectionName = "conditionInfo"
)

// Sections lists every section in wizard order.
var Sections = []SectionName{VehicleInfo, SellerInfo, PurchaseInfo, ConditionInfo}

// Section is a partial or full set of field values for one section.
// Values are strings for scalar fields, Attachment / *Attachment for the two
// document fields, []PaymentSlot for payment_slot and []Attachment for
// vehicle_images. Values decoded from the backend may also be float64, bool
// or json.Number.
type Section map[string]any

// Store is the shared draft. One Store exists per wizard session; steps read
// and commit through it, the controller serializes it on submit.
type Store struct {
	mu       sync.RWMutex
	sections map[SectionName]Section
}

// New creates an empty draft.
func New() *Store {
	return &Store{sections: make(map[SectionName]Section)}
}

// Read returns a snapshot of the current draft. Mutating the snapshot does
// not affect the store.
func (s *Store) Read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(Snapshot, len(s.sections))
	for name, sec := range s.sections {
		snap[name] = sec.clone()
	}
	return snap
}

// Section returns a copy of one section, or an empty section if it has never
// been committed.
func (s *Store) Section(name SectionName) Section {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sec, ok := s.sections[name]; ok {
		return sec.clone()
	}
	return Section{}
}

// MergeSection shallow-merges partial into the named section, creating it if
// absent. It never fails; field validation belongs to the steps.
//
// vehicle_images is capped here so the five-image limit holds no matter who
// commits the list.
func (s *Store) MergeSection(name SectionName, partial Section) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sections[name]
	if !ok {
		sec = make(Section, len(partial))
		s.sections[name] = sec
	}
	for k, v := range partial {
		if k == KeyVehicleImages {
			if imgs, ok := v.([]Attachment); ok {
				v = MergeImages(nil, imgs)
			}
		}
		sec[k] = cloneValue(v)
	}
}

// Reset discards every section.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = make(map[SectionName]Section)
}

// Serialize flattens the current draft into a multipart payload.
func (s *Store) Serialize() Payload {
	return Serialize(s.Read())
}

func (sec Section) clone() Section {
	out := make(Section, len(sec))
	for k, v := range sec {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case []PaymentSlot:
		return append([]PaymentSlot(nil), val...)
	case []Attachment:
		return append([]Attachment(nil), val...)
	case []string:
		return append([]string(nil), val...)
	case *Attachment:
		if val == nil {
			return val
		}
		cp := *val
		return &cp
	default:
		return v
	}
}
