package draft

import (
	"encoding/json"
	"sort"
)

// FilePart is a binary part of a multipart payload.
type FilePart struct {
	Field      string
	Attachment Attachment
}

// Payload is the flattened multipart body for the vehicle create/update
// request.
type Payload struct {
	Fields map[string]string
	Files  []FilePart
}

// FieldNames returns the text field names in sorted order.
func (p Payload) FieldNames() []string {
	names := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Serialize flattens all four sections of snap into one payload. Every
// scalar, non-empty value becomes a text field; the two document fields
// become binary parts when present; payment_slot and vehicle_images are left
// out because they go through their own follow-up requests.
func Serialize(snap Snapshot) Payload {
	p := Payload{Fields: make(map[string]string)}
	for _, name := range Sections {
		sec := snap[name]
		keys := make([]string, 0, len(sec))
		for k := range sec {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			v := sec[k]
			if FileKeys[k] {
				if a := sec.Attachment(k); a != nil {
					p.Files = append(p.Files, FilePart{Field: k, Attachment: *a})
				}
				continue
			}
			if k == KeyPaymentSlot || k == KeyVehicleImages || k == KeyExistingImages {
				continue
			}
			if text, ok := scalarText(v); ok {
				p.Fields[k] = text
			}
		}
	}
	return p
}

// Entity is a vehicle as returned by the backend detail endpoint: a flat
// JSON object holding every section's keys plus payment_slot and images.
type Entity map[string]any

// ID returns the entity identifier as text.
func (e Entity) ID() string {
	text, _ := scalarText(e["id"])
	return text
}

// SectionsFromEntity routes a fetched entity into the four draft sections.
// Document fields are left absent and vehicle_images starts empty, since a
// stored file cannot be re-submitted; URLs of stored images are kept under
// KeyExistingImages.
func SectionsFromEntity(e Entity) map[SectionName]Section {
	out := make(map[SectionName]Section, len(Sections))
	for _, name := range Sections {
		sec := Section{}
		for _, key := range SectionKeys[name] {
			if FileKeys[key] || key == KeyVehicleImages {
				continue
			}
			v, ok := e[key]
			if !ok || v == nil {
				continue
			}
			if key == KeyPaymentSlot {
				sec[key] = decodeSlots(v)
				continue
			}
			sec[key] = v
		}
		out[name] = sec
	}
	out[ConditionInfo][KeyVehicleImages] = []Attachment{}
	if urls := imageURLs(e["images"]); len(urls) > 0 {
		out[ConditionInfo][KeyExistingImages] = urls
	}
	return out
}

// decodeSlots converts a decoded JSON list into payment slots by
// round-tripping through JSON, which reuses PaymentSlot's lenient decoding.
func decodeSlots(v any) []PaymentSlot {
	if slots, ok := v.([]PaymentSlot); ok {
		return append([]PaymentSlot(nil), slots...)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return []PaymentSlot{}
	}
	var slots []PaymentSlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return []PaymentSlot{}
	}
	if slots == nil {
		slots = []PaymentSlot{}
	}
	return slots
}

// imageURLs accepts either ["url", ...] or [{"image": "url"}, ...].
func imageURLs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var urls []string
	for _, item := range list {
		switch it := item.(type) {
		case string:
			urls = append(urls, it)
		case map[string]any:
			if u, ok := it["image"].(string); ok {
				urls = append(urls, u)
			}
		}
	}
	return urls
}
