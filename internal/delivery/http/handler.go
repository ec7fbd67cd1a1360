package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/logging"
	"github.com/docrecon/docrecon/internal/usecase"
)

const serviceVersion = "1.0.0"

// Refresher asks the similarity service to rebuild its embedding index
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// ComponentCheck reports whether one backing component is reachable
type ComponentCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service   *usecase.ReconciliationService
	refresher Refresher
	checks    map[string]ComponentCheck
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler. service and refresher may be nil,
// in which case the dependent endpoints answer 503.
func NewHandler(service *usecase.ReconciliationService, refresher Refresher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service:   service,
		refresher: refresher,
		checks:    make(map[string]ComponentCheck),
		logger:    logger,
	}
}

// AddHealthCheck registers a component checked by the health endpoint
func (h *Handler) AddHealthCheck(name string, check ComponentCheck) {
	if check != nil {
		h.checks[name] = check
	}
}

// ReconcileRequest represents the request body for batch reconciliation
type ReconcileRequest struct {
	Items   []map[string]any `json:"items" binding:"required"`
	Source  string           `json:"source"`
	OrderNo string           `json:"orderNo"`
}

// CommitRequest represents the request body for adding items to the catalog
type CommitRequest struct {
	Items []map[string]any `json:"items" binding:"required"`
}

// PurchaseOrderRequest represents the request body for saving a purchase order
type PurchaseOrderRequest struct {
	OrderNo    string           `json:"purchaseOrderNo" binding:"required"`
	Vendor     string           `json:"vendor"`
	OrderDate  string           `json:"purchaseOrderDate"`
	Currency   string           `json:"currency"`
	BuyerName  string           `json:"buyerName"`
	SourceFile string           `json:"originalFileName"`
	Items      []map[string]any `json:"itemsOrdered"`
}

// CommitResponse is returned after items were written
type CommitResponse struct {
	RunID            string               `json:"runId"`
	Message          string               `json:"message"`
	Inserted         []domain.CatalogItem `json:"inserted"`
	Skipped          []domain.SkippedItem `json:"skipped"`
	SkippedItemCodes []string             `json:"skippedItemCodes,omitempty"`
	Summary          domain.PlanSummary   `json:"summary"`
	RefreshSignalled bool                 `json:"refreshSignalled"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "healthy", http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logging.WithContext(c.Request.Context(), h.logger).Warn("health check failed",
				zap.String("component", name), zap.Error(err))
			components[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	body := gin.H{
		"status":  status,
		"service": "docrecon-backend",
		"version": serviceVersion,
	}
	if len(components) > 0 {
		body["components"] = components
	}
	c.JSON(code, body)
}

// Reconcile classifies extracted line items against the catalog or
// purchase order history without writing anything
func (h *Handler) Reconcile(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation service not configured"})
		return
	}

	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	source, err := usecase.ParseSource(req.Source)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.service.Reconcile(c.Request.Context(), &usecase.ReconcileRequest{
		Items:   h.service.Normalizer().Normalize(req.Items),
		Source:  source,
		OrderNo: req.OrderNo,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AddCatalogItems re-reconciles the submitted items against the current
// catalog and inserts the eligible ones. 207 signals that some were skipped.
func (h *Handler) AddCatalogItems(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation service not configured"})
		return
	}

	var req CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, commit, err := h.service.CommitToCatalog(c.Request.Context(), h.service.Normalizer().Normalize(req.Items))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeCommit(c, result.RunID, commit)
}

// ListCatalogItems returns the master catalog
func (h *Handler) ListCatalogItems(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation service not configured"})
		return
	}

	items, err := h.service.ListCatalog(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// SavePurchaseOrder stores a purchase order with the items that are new to
// purchase order history
func (h *Handler) SavePurchaseOrder(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation service not configured"})
		return
	}

	var req PurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order := &domain.PurchaseOrder{
		OrderNo:    req.OrderNo,
		Vendor:     req.Vendor,
		OrderDate:  req.OrderDate,
		Currency:   req.Currency,
		BuyerName:  req.BuyerName,
		SourceFile: req.SourceFile,
	}

	result, commit, err := h.service.SavePurchaseOrder(c.Request.Context(), order, h.service.Normalizer().Normalize(req.Items))
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.writeCommit(c, result.RunID, commit)
}

// ListPurchaseOrderItems returns the items saved with one purchase order
func (h *Handler) ListPurchaseOrderItems(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation service not configured"})
		return
	}

	orderNo := c.Param("orderNo")
	items, err := h.service.ListOrderItems(c.Request.Context(), orderNo)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purchaseOrderNo": orderNo,
		"items":           items,
		"count":           len(items),
	})
}

// ListPurchaseOrders returns saved purchase order headers, newest first
func (h *Handler) ListPurchaseOrders(c *gin.Context) {
	if h.service == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation service not configured"})
		return
	}

	orders, err := h.service.ListPurchaseOrders(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"purchaseOrders": orders,
		"count":          len(orders),
	})
}

// RefreshEmbeddings proxies an explicit refresh request to the similarity service
func (h *Handler) RefreshEmbeddings(c *gin.Context) {
	if h.refresher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "similarity service not configured"})
		return
	}

	count, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		logging.WithContext(c.Request.Context(), h.logger).Warn("embedding refresh failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Similarity service temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "refreshed",
		"count":  count,
	})
}

func (h *Handler) writeCommit(c *gin.Context, runID string, commit *domain.CommitResult) {
	resp := CommitResponse{
		RunID:            runID,
		Message:          "Items added successfully",
		Inserted:         commit.Inserted,
		Skipped:          commit.Skipped,
		Summary:          commit.Summary,
		RefreshSignalled: commit.RefreshSignalled,
	}
	if resp.Inserted == nil {
		resp.Inserted = []domain.CatalogItem{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []domain.SkippedItem{}
	}

	status := http.StatusOK
	if len(commit.Skipped) > 0 {
		status = http.StatusMultiStatus
		resp.Message = "Some items were skipped"
		for _, skipped := range commit.Skipped {
			if skipped.Item.Key != "" {
				resp.SkippedItemCodes = append(resp.SkippedItemCodes, skipped.Item.Key)
			}
		}
	}

	c.JSON(status, resp)
}

// writeError maps domain errors to HTTP status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	logger := logging.WithContext(c.Request.Context(), h.logger)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("request timed out", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Request timed out"})
	case errors.Is(err, domain.ErrCorruptSnapshot):
		logger.Error("reference snapshot is corrupt", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reference catalog is corrupt"})
	case errors.Is(err, domain.ErrPersistenceFailure):
		logger.Error("persistence failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Catalog storage temporarily unavailable"})
	default:
		logger.Error("unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
