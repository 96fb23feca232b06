package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/dealerdesk/internal/devserver"
	"github.com/mark3labs/dealerdesk/internal/draft"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func setup(t *testing.T, opts ...devserver.Option) (*devserver.Server, *Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := devserver.New(opts...)
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)
	return backend, New(srv.URL, 5*time.Second, staticToken("secret"))
}

func attachment(t *testing.T, name string) draft.Attachment {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("bytes"), 0644))
	a, err := draft.NewAttachment(path)
	require.NoError(t, err)
	return a
}

func TestCreateUpdateGetVehicle(t *testing.T) {
	backend, c := setup(t, devserver.WithToken("secret"))
	ctx := context.Background()

	created, err := c.CreateVehicle(ctx, draft.Payload{
		Fields: map[string]string{"vehicle_make": "Tata", "vehicle_type": "car"},
		Files:  []draft.FilePart{{Field: draft.KeyOwnershipProof, Attachment: attachment(t, "RC Book.pdf")}},
	})
	require.NoError(t, err)
	require.Equal(t, "1", created.ID())
	assert.Equal(t, "/media/vehicles/1/rc-book.pdf", created[draft.KeyOwnershipProof])

	_, err = c.UpdateVehicle(ctx, "1", draft.Payload{Fields: map[string]string{"color": "red"}})
	require.NoError(t, err)

	got, err := c.GetVehicle(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Tata", got["vehicle_make"])
	assert.Equal(t, "red", got["color"])
	assert.Equal(t, 1, backend.Calls(devserver.RouteUpdateVehicle))
}

func TestUploadImages_RepeatedField(t *testing.T) {
	backend, c := setup(t)
	id := backend.Seed(map[string]string{"vehicle_make": "Tata"})

	err := c.UploadImages(context.Background(), "1", []draft.Attachment{
		attachment(t, "front.jpg"), attachment(t, "back.jpg"),
	})
	require.NoError(t, err)

	_, images, _ := backend.Vehicle(id)
	require.Len(t, images, 2)
	assert.Equal(t, 1, backend.Calls(devserver.RouteUploadImages), "one request for all images")
}

func TestPaymentSlots_BatchAndList(t *testing.T) {
	backend, c := setup(t)
	backend.Seed(map[string]string{"vehicle_make": "Tata"})
	ctx := context.Background()

	res, err := c.CreatePaymentSlots(ctx, "1", []draft.PaymentRecord{
		{SlotNumber: "Slot 1", AmountPaid: decimal.NewFromInt(100), DateOfPayment: "2024-01-01", PaymentMode: "cash", PaymentType: "purchase"},
		{SlotNumber: "Slot 2", AmountPaid: decimal.Zero, DateOfPayment: "2024-01-02", PaymentMode: "upi", PaymentType: "purchase"},
	})
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	require.Equal(t, []RecordError{{Index: 1, Message: "amount_paid must be greater than 0"}}, res.Errors)

	slots, err := c.ListPaymentSlots(ctx, "1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "Slot 1", slots[0].SlotNumber)
	assert.Equal(t, "purchase", slots[0].PaymentType)
	assert.NotEmpty(t, slots[0].ID)
}

func TestErrors(t *testing.T) {
	backend, c := setup(t)
	ctx := context.Background()

	_, err := c.GetVehicle(ctx, "99")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Not found.", apiErr.Message)

	backend.Fail(devserver.RouteGetVehicle, devserver.Failure{Status: http.StatusUnauthorized, Body: gin.H{"detail": "Token expired"}})
	_, err = c.GetVehicle(ctx, "1")
	require.True(t, errors.Is(err, ErrUnauthorized))

	backend.Fail(devserver.RouteCreateVehicle, devserver.Failure{Status: http.StatusBadGateway})
	_, err = c.CreateVehicle(ctx, draft.Payload{Fields: map[string]string{"a": "b"}})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Gateway (HTTP 502)", apiErr.Error())
	assert.False(t, errors.Is(err, ErrUnauthorized))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, nil)
	_, err := c.GetVehicle(context.Background(), "1")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "request failed")
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail", 400, `{"detail": "Bad data"}`, "Bad data"},
		{"error", 500, `{"error": "boom"}`, "boom"},
		{"field map", 400, `{"mobile_number": ["Ensure this field has exactly 10 characters."]}`, "mobile_number: Ensure this field has exactly 10 characters."},
		{"non field", 400, `{"non_field_errors": ["Duplicate chassis"]}`, "Duplicate chassis"},
		{"raw", 500, `<html>oops</html>`, "<html>oops</html>"},
		{"empty", 503, ``, "Service Unavailable"},
		{"unreadable json", 400, `{"count": 3}`, `{"count": 3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorMessage(tt.status, []byte(tt.body)))
		})
	}
}
