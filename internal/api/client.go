// Package api is the REST client for the dealership backend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/mark3labs/dealerdesk/internal/draft"
	"github.com/mark3labs/dealerdesk/internal/logger"
)

// Endpoint paths, relative to the base URL.
const (
	vehiclesPath      = "/api/vehicles/"
	vehiclePath       = "/api/vehicles/{id}/"
	vehicleImagesPath = "/api/vehicles/{id}/images/"
	slotsBatchPath    = "/api/payment-slots/batch/"
	slotsPath         = "/api/payment-slots/"

	// ImagesField is the repeated multipart field used for image uploads.
	ImagesField = "images"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// Client talks to the backend over HTTP.
type Client struct {
	http   *resty.Client
	tokens TokenSource
}

// New creates a client for baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration, tokens TokenSource) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "dealerdesk")

	return &Client{http: httpClient, tokens: tokens}
}

// request builds a request carrying ctx, the bearer token and a fresh
// request id.
func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("X-Request-ID", uuid.NewString())
	if c.tokens != nil {
		if tok := c.tokens.Token(); tok != "" {
			req.SetAuthToken(tok)
		}
	}
	return req
}

// CreateVehicle posts a new vehicle as multipart and returns the created
// entity.
func (c *Client) CreateVehicle(ctx context.Context, p draft.Payload) (draft.Entity, error) {
	return c.sendVehicle(ctx, http.MethodPost, vehiclesPath, "", p)
}

// UpdateVehicle patches an existing vehicle as multipart and returns the
// updated entity.
func (c *Client) UpdateVehicle(ctx context.Context, id string, p draft.Payload) (draft.Entity, error) {
	return c.sendVehicle(ctx, http.MethodPatch, vehiclePath, id, p)
}

func (c *Client) sendVehicle(ctx context.Context, method, path, id string, p draft.Payload) (draft.Entity, error) {
	req := c.request(ctx).SetMultipartFormData(p.Fields)
	if id != "" {
		req.SetPathParam("id", id)
	}

	closers, err := attachFiles(req, p.Files)
	defer closeAll(closers)
	if err != nil {
		return nil, err
	}

	var entity draft.Entity
	req.SetResult(&entity)

	logger.Debug("%s %s (%d fields, %d files)", method, path, len(p.Fields), len(p.Files))
	resp, err := req.Execute(method, path)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &Error{Status: resp.StatusCode(), Message: "empty response body"}
	}
	return entity, nil
}

// GetVehicle fetches one vehicle by id.
func (c *Client) GetVehicle(ctx context.Context, id string) (draft.Entity, error) {
	var entity draft.Entity
	resp, err := c.request(ctx).
		SetPathParam("id", id).
		SetResult(&entity).
		Get(vehiclePath)
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &Error{Status: resp.StatusCode(), Message: "vehicle not found"}
	}
	return entity, nil
}

// UploadImages posts images for a vehicle in one multipart request, one
// "images" part per file.
func (c *Client) UploadImages(ctx context.Context, id string, images []draft.Attachment) error {
	parts := make([]draft.FilePart, len(images))
	for i, img := range images {
		parts[i] = draft.FilePart{Field: ImagesField, Attachment: img}
	}

	req := c.request(ctx).SetPathParam("id", id)
	closers, err := attachFiles(req, parts)
	defer closeAll(closers)
	if err != nil {
		return err
	}

	logger.Debug("Uploading %d images for vehicle %s", len(images), id)
	resp, err := req.Post(vehicleImagesPath)
	return check(resp, err)
}

// RecordError is a per-record failure reported by the batch endpoint.
type RecordError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// BatchResult is the batch endpoint's response.
type BatchResult struct {
	Created []draft.PaymentSlot `json:"created"`
	Errors  []RecordError       `json:"errors"`
}

type batchRequest struct {
	VehicleID string                `json:"vehicle_id"`
	Records   []draft.PaymentRecord `json:"records"`
}

// CreatePaymentSlots posts all records in one batch. Per-record failures are
// returned in the result, not as an error; the error is set only when the
// request as a whole failed.
func (c *Client) CreatePaymentSlots(ctx context.Context, vehicleID string, records []draft.PaymentRecord) (BatchResult, error) {
	var result BatchResult
	resp, err := c.request(ctx).
		SetBody(batchRequest{VehicleID: vehicleID, Records: records}).
		Post(slotsBatchPath)
	if err != nil {
		return result, check(resp, err)
	}

	// A rejected batch still reports which records failed; prefer that over
	// a generic status error.
	if len(resp.Body()) > 0 {
		if jerr := json.Unmarshal(resp.Body(), &result); jerr == nil && len(result.Errors) > 0 {
			if resp.StatusCode() == http.StatusUnauthorized {
				return result, check(resp, nil)
			}
			return result, nil
		}
	}
	if err := check(resp, nil); err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// ListPaymentSlots returns the payment slots stored for a vehicle. Both a
// plain list and a paginated {"results": [...]} body are accepted.
func (c *Client) ListPaymentSlots(ctx context.Context, vehicleID string) ([]draft.PaymentSlot, error) {
	resp, err := c.request(ctx).
		SetQueryParam("vehicle_id", vehicleID).
		Get(slotsPath)
	if err := check(resp, err); err != nil {
		return nil, err
	}

	var slots []draft.PaymentSlot
	if err := json.Unmarshal(resp.Body(), &slots); err == nil {
		return slots, nil
	}
	var page struct {
		Results []draft.PaymentSlot `json:"results"`
	}
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, &Error{Status: resp.StatusCode(), Message: "unexpected payment slot response", Err: err}
	}
	return page.Results, nil
}

// attachFiles opens every part and adds it to req. The returned closers must
// be closed once the request is done, even when err is non-nil.
func attachFiles(req *resty.Request, parts []draft.FilePart) ([]io.Closer, error) {
	closers := make([]io.Closer, 0, len(parts))
	for _, part := range parts {
		f, err := part.Attachment.Open()
		if err != nil {
			return closers, fmt.Errorf("opening %s: %w", part.Attachment.Name, err)
		}
		closers = append(closers, f)
		req.SetFileReader(part.Field, part.Attachment.UploadName(), f)
	}
	return closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
