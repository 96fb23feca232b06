package mcpserver

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/dealerdesk/internal/api"
	"github.com/mark3labs/dealerdesk/internal/devserver"
	"github.com/mark3labs/dealerdesk/internal/journal"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// setupTestServer creates a tool server backed by the dev backend and a
// journal in a temp dir.
func setupTestServer(t *testing.T, token string, opts ...devserver.Option) (*Server, *devserver.Server, *journal.Journal) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := devserver.New(opts...)
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	j, err := journal.Open(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	client := api.New(ts.URL, 5*time.Second, staticToken(token))
	return New(client, j, "test"), backend, j
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

// extractText extracts text from CallToolResult.Content[0]
func extractText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if textContent, ok := result.Content[0].(mcp.TextContent); ok {
		return textContent.Text
	}
	return ""
}

func TestHandleGetVehicle(t *testing.T) {
	srv, backend, _ := setupTestServer(t, "")
	id := backend.Seed(map[string]string{"vehicle_make": "Tata", "color": "red"}, "/media/vehicles/1/front.jpg")
	require.Equal(t, 1, id)

	res, err := srv.handleGetVehicle(context.Background(), call(ToolGetVehicle, map[string]any{"vehicle_id": "1"}))
	require.NoError(t, err)
	require.False(t, res.IsError, extractText(res))

	text := extractText(res)
	assert.Contains(t, text, `"vehicle_make": "Tata"`)
	assert.Contains(t, text, "/media/vehicles/1/front.jpg")
}

func TestHandleGetVehicle_Errors(t *testing.T) {
	srv, _, _ := setupTestServer(t, "")

	res, err := srv.handleGetVehicle(context.Background(), call(ToolGetVehicle, map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "missing 'vehicle_id' parameter", extractText(res))

	res, err = srv.handleGetVehicle(context.Background(), call(ToolGetVehicle, map[string]any{"vehicle_id": "42"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(res), "Not found.")
}

func TestHandleGetVehicle_Unauthorized(t *testing.T) {
	srv, _, _ := setupTestServer(t, "wrong", devserver.WithToken("secret"))

	res, err := srv.handleGetVehicle(context.Background(), call(ToolGetVehicle, map[string]any{"vehicle_id": "1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, extractText(res), "dealerdesk login")
}

func TestHandleListPaymentSlots(t *testing.T) {
	srv, backend, _ := setupTestServer(t, "")
	id := backend.Seed(map[string]string{"vehicle_make": "Tata"})

	res, err := srv.handleListPaymentSlots(context.Background(), call(ToolListPaymentSlots, map[string]any{"vehicle_id": "1"}))
	require.NoError(t, err)
	assert.Equal(t, "Vehicle 1 has no payment slots.", extractText(res))

	backend.SeedSlot(id, "Advance", "2024-01-01", "100", "cash")
	backend.SeedSlot(id, "", "2024-02-01", "250.50", "upi")

	res, err = srv.handleListPaymentSlots(context.Background(), call(ToolListPaymentSlots, map[string]any{"vehicle_id": "1"}))
	require.NoError(t, err)
	text := extractText(res)
	assert.Contains(t, text, "2 payment slot(s)")
	assert.Contains(t, text, "- Advance: 100 on 2024-01-01 via cash")
	assert.Contains(t, text, "- Slot 2: 250.5 on 2024-02-01 via upi")
}

func TestHandleJournalForVehicle(t *testing.T) {
	srv, _, j := setupTestServer(t, "")
	ctx := context.Background()

	res, err := srv.handleJournalForVehicle(ctx, call(ToolJournalForVehicle, map[string]any{"vehicle_id": "7"}))
	require.NoError(t, err)
	assert.Equal(t, "No submission events recorded.", extractText(res))

	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, j.Record(ctx, journal.Event{Submission: "sub-1", Mode: "create", VehicleID: "7", Stage: "save-vehicle", Status: journal.StatusOK, Timestamp: ts}))
	require.NoError(t, j.Record(ctx, journal.Event{Submission: "sub-1", Mode: "create", VehicleID: "7", Stage: "upload-images", Status: journal.StatusFailed, Message: "request failed", Timestamp: ts}))
	require.NoError(t, j.Record(ctx, journal.Event{Submission: "sub-2", Mode: "create", VehicleID: "8", Stage: "save-vehicle", Status: journal.StatusOK, Timestamp: ts}))

	res, err = srv.handleJournalForVehicle(ctx, call(ToolJournalForVehicle, map[string]any{"vehicle_id": "7"}))
	require.NoError(t, err)
	text := extractText(res)
	assert.Contains(t, text, "2024-01-01T10:00:00Z sub-1 vehicle=7 save-vehicle ok")
	assert.Contains(t, text, "upload-images failed: request failed")
	assert.NotContains(t, text, "vehicle=8")

	res, err = srv.handleJournalForVehicle(ctx, call(ToolJournalForVehicle, nil))
	require.NoError(t, err)
	assert.Contains(t, extractText(res), "vehicle=8")
}

func TestHandleJournalForVehicle_Disabled(t *testing.T) {
	srv := New(nil, nil, "test")
	res, err := srv.handleJournalForVehicle(context.Background(), call(ToolJournalForVehicle, nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_StartStop(t *testing.T) {
	srv := New(nil, nil, "test")
	port, err := srv.Start(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, port)
	assert.Contains(t, srv.URL(), "/mcp")

	_, err = srv.Start(context.Background())
	assert.Error(t, err)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
}
