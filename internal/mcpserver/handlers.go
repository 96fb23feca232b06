package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mark3labs/dealerdesk/internal/api"
)

// Tool names.
const (
	ToolGetVehicle        = "get-vehicle"
	ToolListPaymentSlots  = "list-payment-slots"
	ToolJournalForVehicle = "journal-for-vehicle"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(ToolGetVehicle,
			mcp.WithDescription("Fetch a stored vehicle with its seller, purchase and condition details"),
			mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle identifier")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleGetVehicle,
	)
	s.mcpServer.AddTool(
		mcp.NewTool(ToolListPaymentSlots,
			mcp.WithDescription("List the payment slots recorded for a vehicle purchase"),
			mcp.WithString("vehicle_id", mcp.Required(), mcp.Description("Vehicle identifier")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleListPaymentSlots,
	)
	s.mcpServer.AddTool(
		mcp.NewTool(ToolJournalForVehicle,
			mcp.WithDescription("Show the recorded submission stages for a vehicle, including partial failures"),
			mcp.WithString("vehicle_id", mcp.Description("Vehicle identifier; empty lists every event")),
			mcp.WithReadOnlyHintAnnotation(true),
		),
		s.handleJournalForVehicle,
	)
}

// handleGetVehicle returns the vehicle as indented JSON.
func (s *Server) handleGetVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("vehicle_id")
	if err != nil || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("missing 'vehicle_id' parameter"), nil
	}

	entity, err := s.backend.GetVehicle(ctx, id)
	if err != nil {
		return backendError("get vehicle", err), nil
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("encode vehicle", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// handleListPaymentSlots returns one line per slot.
func (s *Server) handleListPaymentSlots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("vehicle_id")
	if err != nil || strings.TrimSpace(id) == "" {
		return mcp.NewToolResultError("missing 'vehicle_id' parameter"), nil
	}

	slots, err := s.backend.ListPaymentSlots(ctx, id)
	if err != nil {
		return backendError("list payment slots", err), nil
	}
	if len(slots) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Vehicle %s has no payment slots.", id)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Vehicle %s has %d payment slot(s):\n", id, len(slots))
	for i, slot := range slots {
		fmt.Fprintf(&b, "- %s: %s on %s via %s", slot.Label(i), slot.AmountPaid, slot.DateOfPayment, slot.PaymentMode)
		if slot.PaymentRemark != "" {
			fmt.Fprintf(&b, " (%s)", slot.PaymentRemark)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleJournalForVehicle renders the journal events for a vehicle.
func (s *Server) handleJournalForVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.journal == nil {
		return mcp.NewToolResultError("the submission journal is disabled"), nil
	}
	id := strings.TrimSpace(request.GetString("vehicle_id", ""))

	events, err := s.journal.List(ctx, id)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("read journal", err), nil
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("No submission events recorded."), nil
	}

	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "%s %s vehicle=%s %s %s",
			ev.Timestamp.UTC().Format("2006-01-02T15:04:05Z"), ev.Submission, ev.VehicleID, ev.Stage, ev.Status)
		if ev.Message != "" {
			fmt.Fprintf(&b, ": %s", ev.Message)
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// backendError turns an API failure into a tool error result. Agents cannot
// log in, so a 401 gets an explicit hint.
func backendError(action string, err error) *mcp.CallToolResult {
	if errors.Is(err, api.ErrUnauthorized) {
		return mcp.NewToolResultError(action + ": not logged in; run `dealerdesk login` first")
	}
	return mcp.NewToolResultErrorFromErr(action, err)
}
