package draft

import (
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

var sectionTitles = map[SectionName]string{
	VehicleInfo:   "Vehicle",
	SellerInfo:    "Seller",
	PurchaseInfo:  "Purchase",
	ConditionInfo: "Condition",
}

// Summary renders snap as markdown, one table per section. The output is
// stable for equal snapshots, which Diff relies on.
func Summary(snap Snapshot) string {
	var b strings.Builder
	for _, name := range Sections {
		sec := snap[name]
		fmt.Fprintf(&b, "## %s\n\n", sectionTitles[name])
		b.WriteString("| Field | Value |\n|---|---|\n")
		for _, key := range SectionKeys[name] {
			switch key {
			case KeyPaymentSlot, KeyVehicleImages:
				continue
			}
			var value string
			if FileKeys[key] {
				if a := sec.Attachment(key); a != nil {
					value = a.Name
				}
			} else {
				value = sec.String(key)
			}
			if value == "" {
				value = "-"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", key, escapeCell(value))
		}
		b.WriteString("\n")

		switch name {
		case PurchaseInfo:
			slots := sec.PaymentSlots()
			if len(slots) > 0 {
				b.WriteString("| Slot | Date | Amount | Mode |\n|---|---|---|---|\n")
				for i, s := range slots {
					fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
						escapeCell(s.Label(i)), escapeCell(s.DateOfPayment),
						escapeCell(s.AmountPaid), escapeCell(s.PaymentMode))
				}
				b.WriteString("\n")
			}
		case ConditionInfo:
			imgs := sec.Images()
			existing := sec.ExistingImages()
			if len(imgs)+len(existing) > 0 {
				fmt.Fprintf(&b, "Images: %d new, %d stored\n\n", len(imgs), len(existing))
				for _, img := range imgs {
					fmt.Fprintf(&b, "- %s\n", img.Name)
				}
				if len(imgs) > 0 {
					b.WriteString("\n")
				}
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Diff returns a unified diff between the summaries of two snapshots, or ""
// when they render the same.
func Diff(before, after Snapshot) string {
	a, b := Summary(before), Summary(after)
	if a == b {
		return ""
	}
	return udiff.Unified("stored", "edited", a, b)
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
