package wizard

import (
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/mark3labs/dealerdesk/internal/draft"
)

// VehicleStep edits the vehicleInfo section. It has no checks.
type VehicleStep struct {
	formStep
}

// NewVehicleStep builds the vehicle step from the stored section.
func NewVehicleStep(sec draft.Section) *VehicleStep {
	vehicleType := sec.String(draft.KeyVehicleType)
	if vehicleType == "" {
		vehicleType = draft.DefaultVehicleType
	}

	s := &VehicleStep{formStep: formStep{title: "Vehicle"}}
	s.form.fields = []*field{
		newChoiceField(draft.KeyVehicleType, "Vehicle type", draft.VehicleTypes, vehicleType),
		newTextField(draft.KeyVehicleMake, "Make", "e.g. Tata", sec.String(draft.KeyVehicleMake)),
		newTextField(draft.KeyVehicleModel, "Model", "e.g. Nexon", sec.String(draft.KeyVehicleModel)),
		newTextField(draft.KeyManufactureYear, "Manufacture year", "YYYY", sec.String(draft.KeyManufactureYear)),
		newTextField(draft.KeyRegistrationYear, "Registration year", "YYYY", sec.String(draft.KeyRegistrationYear)),
		newTextField(draft.KeyChassisNumber, "Chassis number", "", sec.String(draft.KeyChassisNumber)),
		newTextField(draft.KeyEngineNumber, "Engine number", "", sec.String(draft.KeyEngineNumber)),
		newTextField(draft.KeyRegistrationPlate, "Registration no.", "", sec.String(draft.KeyRegistrationPlate)),
		newTextField(draft.KeyOdometerReading, "Odometer (km)", "", sec.String(draft.KeyOdometerReading)),
		newTextField(draft.KeyColor, "Color", "", sec.String(draft.KeyColor)),
		newChoiceField(draft.KeyFuelType, "Fuel type", draft.FuelTypes, sec.String(draft.KeyFuelType)),
		newChoiceField(draft.KeyTransmissionType, "Transmission", draft.TransmissionTypes, sec.String(draft.KeyTransmissionType)),
	}
	return s
}

// Update handles a message for the focused field.
func (s *VehicleStep) Update(msg tea.Msg) tea.Cmd {
	if cmd, ok := s.handleCommon(msg); ok {
		return cmd
	}
	return s.form.update(msg)
}

// View renders the vehicle fields.
func (s *VehicleStep) View() string {
	lines := make([]string, 0, len(s.form.fields))
	for i, f := range s.form.fields {
		lines = append(lines, f.view(s.form.focused(i)))
	}
	out := s.renderLines(lines, s.form.focus)
	if e := s.errorLine(); e != "" {
		out += "\n\n" + e
	}
	return out
}

// Validate always passes.
func (s *VehicleStep) Validate() error {
	return s.fail("")
}

// Commit writes the vehicle fields into the draft.
func (s *VehicleStep) Commit(store *draft.Store) {
	sec := draft.Section{}
	for _, f := range s.form.fields {
		sec[f.key] = strings.TrimSpace(f.value())
	}
	if sec[draft.KeyVehicleType] == "" {
		sec[draft.KeyVehicleType] = draft.DefaultVehicleType
	}
	store.MergeSection(draft.VehicleInfo, sec)
}
