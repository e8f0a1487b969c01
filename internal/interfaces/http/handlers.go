package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/clinic-billing/internal/application/service"
	"github.com/garyjia/clinic-billing/internal/domain/billing"
	"github.com/garyjia/clinic-billing/internal/domain/entity"
	"github.com/garyjia/clinic-billing/internal/infrastructure/report"
	"github.com/garyjia/clinic-billing/pkg/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	invoiceService service.InvoiceService
	exporter       StatisticsWriter
	clock          billing.Clock
	logger         Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	invoiceService service.InvoiceService,
	exporter StatisticsWriter,
	clock billing.Clock,
	logger Logger,
) *Handlers {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	return &Handlers{
		invoiceService: invoiceService,
		exporter:       exporter,
		clock:          clock,
		logger:         logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: h.clock.Now().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	if err := utils.ValidateReference("patient_ref", strings.TrimSpace(req.PatientRef)); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}
	if ref := strings.TrimSpace(req.AppointmentRef); ref != "" {
		if err := utils.ValidateReference("appointment_ref", ref); err != nil {
			h.badRequest(c, err.Error(), err)
			return
		}
	}
	for field, amount := range map[string]float64{"tax": req.Tax, "discount": req.Discount} {
		if err := utils.ValidateAmount(field, amount); err != nil {
			h.badRequest(c, err.Error(), err)
			return
		}
	}

	input := service.CreateInvoiceInput{
		PatientRef:     req.PatientRef,
		AppointmentRef: req.AppointmentRef,
		Items:          toItemInputs(req.Items),
		Tax:            req.Tax,
		Discount:       req.Discount,
		Notes:          utils.SanitizeString(req.Notes),
	}
	if req.DueDate != "" {
		due, err := parseTime(req.DueDate, false)
		if err != nil {
			h.badRequest(c, "invalid due_date", err)
			return
		}
		input.DueDate = &due
	}

	inv, err := h.invoiceService.CreateInvoice(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, "create invoice", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    toInvoiceResponse(inv, h.clock.Now()),
	})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get invoice", err)
		return
	}
	h.respondInvoice(c, inv)
}

// GetInvoiceByNumber handles GET /api/invoices/number/:number
func (h *Handlers) GetInvoiceByNumber(c *gin.Context) {
	inv, err := h.invoiceService.GetInvoiceByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.writeError(c, "get invoice by number", err)
		return
	}
	h.respondInvoice(c, inv)
}

// ListPatientInvoices handles GET /api/patients/:ref/invoices
func (h *Handlers) ListPatientInvoices(c *gin.Context) {
	ref := c.Param("ref")
	if err := utils.ValidateReference("patient_ref", ref); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}

	invoices, err := h.invoiceService.ListByPatient(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, "list patient invoices", err)
		return
	}
	h.respondInvoices(c, invoices)
}

// ListInvoices handles GET /api/invoices?start=&end=&status=
func (h *Handlers) ListInvoices(c *gin.Context) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	var status *entity.InvoiceStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := billing.ParseStatus(raw)
		if err != nil {
			h.writeError(c, "list invoices", err)
			return
		}
		status = &parsed
	}

	invoices, err := h.invoiceService.FindByDateRange(c.Request.Context(), start, end, status)
	if err != nil {
		h.writeError(c, "list invoices", err)
		return
	}
	h.respondInvoices(c, invoices)
}

// ListOverdue handles GET /api/invoices/overdue?as_of=
func (h *Handlers) ListOverdue(c *gin.Context) {
	asOf := h.clock.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := parseTime(raw, false)
		if err != nil {
			h.badRequest(c, "invalid as_of", err)
			return
		}
		asOf = parsed
	}

	invoices, err := h.invoiceService.FindOverdue(c.Request.Context(), asOf)
	if err != nil {
		h.writeError(c, "list overdue invoices", err)
		return
	}
	h.respondInvoices(c, invoices)
}

// GetStatistics handles GET /api/invoices/statistics?start=&end=
func (h *Handlers) GetStatistics(c *gin.Context) {
	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	stats, err := h.invoiceService.GetStatistics(c.Request.Context(), start, end)
	if err != nil {
		h.writeError(c, "get statistics", err)
		return
	}

	byStatus := make(map[string]entity.StatusStatistics, len(stats))
	for status, s := range stats {
		byStatus[string(status)] = s
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: StatisticsResponse{
			Start:    start.Format(time.RFC3339),
			End:      end.Format(time.RFC3339),
			ByStatus: byStatus,
			Overall:  stats.Overall(),
		},
	})
}

// ExportStatistics handles GET /api/invoices/statistics/export?start=&end=
func (h *Handlers) ExportStatistics(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusNotImplemented, Response{Success: false, Error: "statistics export is not configured"})
		return
	}

	start, end, ok := h.dateRange(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stats, err := h.invoiceService.GetStatistics(ctx, start, end)
	if err != nil {
		h.writeError(c, "export statistics", err)
		return
	}
	invoices, err := h.invoiceService.FindByDateRange(ctx, start, end, nil)
	if err != nil {
		h.writeError(c, "export statistics", err)
		return
	}

	var buf bytes.Buffer
	err = h.exporter.Write(&buf, report.StatisticsReport{
		Start:      start,
		End:        end,
		Statistics: stats,
		Invoices:   invoices,
	})
	if err != nil {
		h.writeError(c, "export statistics", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(start, end)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// MarkPaid handles POST /api/invoices/:id/pay
func (h *Handlers) MarkPaid(c *gin.Context) {
	id, payment, ok := h.paymentRequest(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.MarkPaid(c.Request.Context(), id, payment)
	if err != nil {
		h.writeError(c, "mark paid", err)
		return
	}
	h.respondInvoice(c, inv)
}

// MarkPartial handles POST /api/invoices/:id/partial-payment
func (h *Handlers) MarkPartial(c *gin.Context) {
	id, payment, ok := h.paymentRequest(c)
	if !ok {
		return
	}
	if err := utils.ValidateAmount("amount", payment.Amount); err != nil {
		h.badRequest(c, err.Error(), err)
		return
	}

	inv, err := h.invoiceService.MarkPartial(c.Request.Context(), id, payment)
	if err != nil {
		h.writeError(c, "record partial payment", err)
		return
	}
	h.respondInvoice(c, inv)
}

// Cancel handles POST /api/invoices/:id/cancel
func (h *Handlers) Cancel(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.Cancel(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "cancel invoice", err)
		return
	}
	h.respondInvoice(c, inv)
}

// ApplyDiscount handles POST /api/invoices/:id/discount
func (h *Handlers) ApplyDiscount(c *gin.Context) {
	id, amount, ok := h.amountRequest(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.ApplyDiscount(c.Request.Context(), id, amount)
	if err != nil {
		h.writeError(c, "apply discount", err)
		return
	}
	h.respondInvoice(c, inv)
}

// SetTax handles POST /api/invoices/:id/tax
func (h *Handlers) SetTax(c *gin.Context) {
	id, amount, ok := h.amountRequest(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.SetTax(c.Request.Context(), id, amount)
	if err != nil {
		h.writeError(c, "set tax", err)
		return
	}
	h.respondInvoice(c, inv)
}

// AddItem handles POST /api/invoices/:id/items
func (h *Handlers) AddItem(c *gin.Context) {
	id, ok := h.invoiceID(c)
	if !ok {
		return
	}
	var req LineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	inv, err := h.invoiceService.AddItem(c.Request.Context(), id, toItemInput(req))
	if err != nil {
		h.writeError(c, "add item", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: toInvoiceResponse(inv, h.clock.Now())})
}

// UpdateItem handles PUT /api/invoices/:id/items/:index
func (h *Handlers) UpdateItem(c *gin.Context) {
	id, index, ok := h.itemIndex(c)
	if !ok {
		return
	}
	var req LineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	inv, err := h.invoiceService.UpdateItem(c.Request.Context(), id, index, toItemInput(req))
	if err != nil {
		h.writeError(c, "update item", err)
		return
	}
	h.respondInvoice(c, inv)
}

// RemoveItem handles DELETE /api/invoices/:id/items/:index
func (h *Handlers) RemoveItem(c *gin.Context) {
	id, index, ok := h.itemIndex(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.RemoveItem(c.Request.Context(), id, index)
	if err != nil {
		h.writeError(c, "remove item", err)
		return
	}
	h.respondInvoice(c, inv)
}

func (h *Handlers) respondInvoice(c *gin.Context, inv *entity.Invoice) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponse(inv, h.clock.Now()),
	})
}

func (h *Handlers) respondInvoices(c *gin.Context, invoices []*entity.Invoice) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    toInvoiceResponses(invoices, h.clock.Now()),
	})
}

// writeError maps domain errors to status codes.
// Unexpected errors are logged and hidden behind a generic message.
func (h *Handlers) writeError(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, billing.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, billing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, billing.ErrConflict),
		errors.Is(err, billing.ErrInvoiceCancelled),
		errors.Is(err, billing.ErrInvalidTransition):
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "operation", op, "error", err, "request_id", c.GetString("request_id"))
		message = op + " failed"
	}

	c.JSON(status, Response{Success: false, Error: message})
}

func (h *Handlers) badRequest(c *gin.Context, message string, err error) {
	h.logger.Info("Rejected request", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

func (h *Handlers) invoiceID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		h.badRequest(c, "invalid invoice ID", fmt.Errorf("id %q", idStr))
		return 0, false
	}
	return id, true
}

func (h *Handlers) itemIndex(c *gin.Context) (int64, int, bool) {
	id, ok := h.invoiceID(c)
	if !ok {
		return 0, 0, false
	}
	idxStr := c.Param("index")
	index, err := strconv.Atoi(idxStr)
	if err != nil {
		h.badRequest(c, "invalid item index", err)
		return 0, 0, false
	}
	return id, index, true
}

func (h *Handlers) paymentRequest(c *gin.Context) (int64, service.PaymentInput, bool) {
	id, ok := h.invoiceID(c)
	if !ok {
		return 0, service.PaymentInput{}, false
	}

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return 0, service.PaymentInput{}, false
	}

	payment := service.PaymentInput{
		Method: entity.PaymentMethod(req.PaymentMethod),
		Amount: req.Amount,
	}
	if req.PaymentDate != "" {
		date, err := parseTime(req.PaymentDate, false)
		if err != nil {
			h.badRequest(c, "invalid payment_date", err)
			return 0, service.PaymentInput{}, false
		}
		payment.Date = &date
	}
	return id, payment, true
}

func (h *Handlers) amountRequest(c *gin.Context) (int64, float64, bool) {
	id, ok := h.invoiceID(c)
	if !ok {
		return 0, 0, false
	}

	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return 0, 0, false
	}
	if err := utils.ValidateAmount("amount", *req.Amount); err != nil {
		h.badRequest(c, err.Error(), err)
		return 0, 0, false
	}
	return id, *req.Amount, true
}

// dateRange reads the required start and end query parameters.
// A date-only end covers the whole day.
func (h *Handlers) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	rawStart, rawEnd := c.Query("start"), c.Query("end")
	if rawStart == "" || rawEnd == "" {
		h.badRequest(c, "start and end are required", fmt.Errorf("start=%q end=%q", rawStart, rawEnd))
		return time.Time{}, time.Time{}, false
	}

	start, err := parseTime(rawStart, false)
	if err != nil {
		h.badRequest(c, "invalid start", err)
		return time.Time{}, time.Time{}, false
	}
	end, err := parseTime(rawEnd, true)
	if err != nil {
		h.badRequest(c, "invalid end", err)
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// parseTime accepts RFC3339 or YYYY-MM-DD (UTC). endOfDay moves a bare date to its last nanosecond.
func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD or RFC3339, got %q", raw)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

func toItemInput(req LineItemRequest) service.LineItemInput {
	return service.LineItemInput{
		Description: utils.SanitizeString(req.Description),
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		Total:       req.Total,
	}
}

func toItemInputs(reqs []LineItemRequest) []service.LineItemInput {
	out := make([]service.LineItemInput, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toItemInput(req))
	}
	return out
}
