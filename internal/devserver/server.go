// Package devserver is an in-memory implementation of the dealership backend
// endpoints the client uses. It backs `dealerdesk devserver` and the package
// tests; nothing is persisted.
package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mark3labs/dealerdesk/internal/logger"
)

// Route names used for failure injection and request counting.
const (
	RouteCreateVehicle = "create-vehicle"
	RouteUpdateVehicle = "update-vehicle"
	RouteGetVehicle    = "get-vehicle"
	RouteUploadImages  = "upload-images"
	RouteBatchSlots    = "batch-slots"
	RouteListSlots     = "list-slots"
)

// Failure is a canned response returned instead of running a handler.
type Failure struct {
	Status int
	Body   any
}

// Option configures a Server.
type Option func(*Server)

// WithToken requires every request to carry "Authorization: Bearer token".
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

type slot struct {
	ID            int             `json:"id"`
	VehicleID     int             `json:"vehicle_id"`
	SlotNumber    string          `json:"slot_number"`
	DateOfPayment string          `json:"date_of_payment"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaymentMode   string          `json:"payment_mode"`
	PaymentRemark string          `json:"payment_remark"`
	PaymentType   string          `json:"payment_type"`
}

type vehicle struct {
	ID     int
	Fields map[string]string
	Images []string
}

// Server holds the in-memory backend state.
type Server struct {
	mu       sync.Mutex
	token    string
	vehicles map[int]*vehicle
	slots    []slot
	nextID   int
	nextSlot int
	failures map[string]Failure
	calls    map[string]int
	engine   *gin.Engine
}

// New creates a server with an empty store.
func New(opts ...Option) *Server {
	s := &Server{
		vehicles: make(map[int]*vehicle),
		failures: make(map[string]Failure),
		calls:    make(map[string]int),
		nextID:   1,
		nextSlot: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler serving the backend routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	logger.Info("Dev backend listening on %s", addr)
	return s.engine.Run(addr)
}

// Fail makes route answer with f until ClearFailures is called.
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = f
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]Failure)
}

// Calls returns how many requests reached route, failed ones included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Seed stores a vehicle directly and returns its id.
func (s *Server) Seed(fields map[string]string, images ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := &vehicle{ID: s.nextID, Fields: cloneFields(fields), Images: append([]string(nil), images...)}
	s.vehicles[v.ID] = v
	s.nextID++
	return v.ID
}

// SeedSlot stores a payment slot for a vehicle.
func (s *Server) SeedSlot(vehicleID int, label, date, amount, mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, slot{
		ID:            s.nextSlot,
		VehicleID:     vehicleID,
		SlotNumber:    label,
		DateOfPayment: date,
		AmountPaid:    decimal.RequireFromString(amount),
		PaymentMode:   mode,
		PaymentType:   "purchase",
	})
	s.nextSlot++
}

// Vehicle returns a stored vehicle's fields and image URLs.
func (s *Server) Vehicle(id int) (map[string]string, []string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[id]
	if !ok {
		return nil, nil, false
	}
	return cloneFields(v.Fields), append([]string(nil), v.Images...), true
}

// VehicleCount returns how many vehicles are stored.
func (s *Server) VehicleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vehicles)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())
	if s.token != "" {
		r.Use(s.auth())
	}

	api := r.Group("/api")
	{
		api.POST("/vehicles/", s.guard(RouteCreateVehicle, s.createVehicle))
		api.GET("/vehicles/:id/", s.guard(RouteGetVehicle, s.getVehicle))
		api.PATCH("/vehicles/:id/", s.guard(RouteUpdateVehicle, s.updateVehicle))
		api.POST("/vehicles/:id/images/", s.guard(RouteUploadImages, s.uploadImages))
		api.POST("/payment-slots/batch/", s.guard(RouteBatchSlots, s.batchSlots))
		api.GET("/payment-slots/", s.guard(RouteListSlots, s.listSlots))
	}
	return r
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s, request %s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start), c.GetHeader("X-Request-ID"))
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		c.Next()
	}
}

// guard counts the call and short-circuits with an injected failure.
func (s *Server) guard(route string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.calls[route]++
		f, failing := s.failures[route]
		s.mu.Unlock()

		if failing {
			if f.Body == nil {
				c.Status(f.Status)
				return
			}
			c.JSON(f.Status, f.Body)
			return
		}
		h(c)
	}
}

func (s *Server) createVehicle(c *gin.Context) {
	fields, docs, err := readVehicleForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if len(fields)+len(docs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No vehicle data submitted."})
		return
	}
	if msg := validateFields(fields); msg != nil {
		c.JSON(http.StatusBadRequest, msg)
		return
	}

	s.mu.Lock()
	v := &vehicle{ID: s.nextID, Fields: fields}
	s.nextID++
	for k, name := range docs {
		v.Fields[k] = fmt.Sprintf("/media/vehicles/%d/%s", v.ID, name)
	}
	s.vehicles[v.ID] = v
	body := s.entity(v)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, body)
}

func (s *Server) updateVehicle(c *gin.Context) {
	v, ok := s.lookup(c)
	if !ok {
		return
	}
	fields, docs, err := readVehicleForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	if msg := validateFields(fields); msg != nil {
		c.JSON(http.StatusBadRequest, msg)
		return
	}

	s.mu.Lock()
	for k, val := range fields {
		v.Fields[k] = val
	}
	for k, name := range docs {
		v.Fields[k] = fmt.Sprintf("/media/vehicles/%d/%s", v.ID, name)
	}
	body := s.entity(v)
	s.mu.Unlock()

	c.JSON(http.StatusOK, body)
}

func (s *Server) getVehicle(c *gin.Context) {
	v, ok := s.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	body := s.entity(v)
	s.mu.Unlock()
	c.JSON(http.StatusOK, body)
}

func (s *Server) uploadImages(c *gin.Context) {
	v, ok := s.lookup(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Expected multipart body."})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"images": []string{"No files were submitted."}})
		return
	}

	s.mu.Lock()
	var urls []string
	for _, fh := range files {
		url := fmt.Sprintf("/media/vehicles/%d/images/%s", v.ID, fh.Filename)
		v.Images = append(v.Images, url)
		urls = append(urls, url)
	}
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"images": urls})
}

type batchBody struct {
	VehicleID json.Number `json:"vehicle_id"`
	Records   []struct {
		ID            json.Number     `json:"id"`
		SlotNumber    string          `json:"slot_number"`
		AmountPaid    decimal.Decimal `json:"amount_paid"`
		DateOfPayment string          `json:"date_of_payment"`
		PaymentMode   string          `json:"payment_mode"`
		PaymentRemark string          `json:"payment_remark"`
		PaymentType   string          `json:"payment_type"`
	} `json:"records"`
}

func (s *Server) batchSlots(c *gin.Context) {
	var req batchBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed batch: " + err.Error()})
		return
	}
	vehicleID, err := strconv.Atoi(string(req.VehicleID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"vehicle_id": []string{"A valid integer is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vehicles[vehicleID]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"vehicle_id": []string{"Vehicle does not exist."}})
		return
	}

	// Records with an id update that slot; the rest are added.
	saved := []slot{}
	errs := []gin.H{}
	for i, rec := range req.Records {
		existing := -1
		if rec.ID != "" {
			existing = s.slotIndex(vehicleID, string(rec.ID))
		}
		switch {
		case rec.ID != "" && existing < 0:
			errs = append(errs, gin.H{"index": i, "message": fmt.Sprintf("payment slot %s does not exist", rec.ID)})
			continue
		case !rec.AmountPaid.IsPositive():
			errs = append(errs, gin.H{"index": i, "message": "amount_paid must be greater than 0"})
			continue
		case rec.DateOfPayment == "":
			errs = append(errs, gin.H{"index": i, "message": "date_of_payment is required"})
			continue
		}
		sl := slot{
			VehicleID:     vehicleID,
			SlotNumber:    rec.SlotNumber,
			DateOfPayment: rec.DateOfPayment,
			AmountPaid:    rec.AmountPaid,
			PaymentMode:   rec.PaymentMode,
			PaymentRemark: rec.PaymentRemark,
			PaymentType:   rec.PaymentType,
		}
		if existing >= 0 {
			sl.ID = s.slots[existing].ID
			s.slots[existing] = sl
		} else {
			sl.ID = s.nextSlot
			s.nextSlot++
			s.slots = append(s.slots, sl)
		}
		saved = append(saved, sl)
	}

	status := http.StatusCreated
	if len(errs) > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, gin.H{"created": saved, "errors": errs})
}

// slotIndex finds a vehicle's slot by id, or -1. Caller holds mu.
func (s *Server) slotIndex(vehicleID int, id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return -1
	}
	for i, sl := range s.slots {
		if sl.ID == n && sl.VehicleID == vehicleID {
			return i
		}
	}
	return -1
}

func (s *Server) listSlots(c *gin.Context) {
	vehicleID, err := strconv.Atoi(c.Query("vehicle_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"vehicle_id": []string{"A valid integer is required."}})
		return
	}
	s.mu.Lock()
	out := s.slotsFor(vehicleID)
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) lookup(c *gin.Context) (*vehicle, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err == nil {
		s.mu.Lock()
		v, ok := s.vehicles[id]
		s.mu.Unlock()
		if ok {
			return v, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	return nil, false
}

// entity renders v the way the detail endpoint returns it. Caller holds mu.
func (s *Server) entity(v *vehicle) gin.H {
	body := gin.H{"id": v.ID}
	for k, val := range v.Fields {
		body[k] = val
	}
	images := make([]gin.H, len(v.Images))
	for i, url := range v.Images {
		images[i] = gin.H{"image": url}
	}
	body["images"] = images
	body["payment_slot"] = s.slotsFor(v.ID)
	return body
}

// slotsFor returns a vehicle's slots in id order. Caller holds mu.
func (s *Server) slotsFor(vehicleID int) []slot {
	out := []slot{}
	for _, sl := range s.slots {
		if sl.VehicleID == vehicleID {
			out = append(out, sl)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// readVehicleForm reads text fields and document file names from a
// multipart vehicle body.
func readVehicleForm(c *gin.Context) (map[string]string, map[string]string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, fmt.Errorf("expected multipart body")
	}
	fields := make(map[string]string)
	for k, vals := range form.Value {
		if len(vals) > 0 {
			fields[k] = vals[0]
		}
	}
	docs := make(map[string]string)
	for k, files := range form.File {
		if len(files) > 0 {
			docs[k] = files[0].Filename
		}
	}
	return fields, docs, nil
}

// validateFields applies the backend's own field rules and returns a
// field-map error body, or nil.
func validateFields(fields map[string]string) gin.H {
	if m, ok := fields["mobile_number"]; ok && len(m) != 10 {
		return gin.H{"mobile_number": []string{"Ensure this field has exactly 10 characters."}}
	}
	if p, ok := fields["purchase_price"]; ok {
		if _, err := decimal.NewFromString(p); err != nil {
			return gin.H{"purchase_price": []string{"A valid number is required."}}
		}
	}
	return nil
}

func cloneFields(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
