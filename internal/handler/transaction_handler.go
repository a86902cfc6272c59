package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/bizcore/universal/internal/authz"
	"github.com/bizcore/universal/internal/middleware"
	"github.com/bizcore/universal/internal/store"
	"github.com/bizcore/universal/pkg/logger"
)

// TransactionHandler is the HTTP surface of the transaction ledger.
type TransactionHandler struct {
	ledger *store.TransactionStore
}

func NewTransactionHandler(ledger *store.TransactionStore) *TransactionHandler {
	return &TransactionHandler{ledger: ledger}
}

// Create records a new business event header.
func (h *TransactionHandler) Create(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermTransactionsWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "transaction write permission required"})
	}

	var req store.TransactionInput
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	tx, err := h.ledger.Create(c.Request().Context(), ac.OrganizationID, req)
	if err != nil {
		return respondError(c, log, err)
	}

	log.Info("Transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("transaction_type", tx.TransactionType))
	return c.JSON(http.StatusCreated, tx)
}

// AppendLines adds itemized lines to an existing transaction.
func (h *TransactionHandler) AppendLines(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermTransactionsWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "transaction write permission required"})
	}

	var req struct {
		Lines []store.LineInput `json:"lines"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	lines, err := h.ledger.AppendLines(c.Request().Context(), ac.OrganizationID, c.Param("id"), req.Lines)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"lines": lines})
}

// UpdateStatus applies a status transition to a transaction header.
func (h *TransactionHandler) UpdateStatus(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	if !ac.Can(authz.PermTransactionsWrite) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "transaction write permission required"})
	}

	var req struct {
		TransactionStatus string                 `json:"transaction_status"`
		Metadata          map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	tx, err := h.ledger.UpdateStatus(
		c.Request().Context(),
		ac.OrganizationID,
		c.Param("id"),
		req.TransactionStatus,
		datatypes.JSONMap(req.Metadata),
	)
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, tx)
}

// Get returns a transaction header together with its lines.
func (h *TransactionHandler) Get(c echo.Context) error {
	log := logger.FromEcho(c)

	ac, ok := middleware.OrgContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}

	tx, lines, err := h.ledger.GetWithLines(c.Request().Context(), ac.OrganizationID, c.Param("id"))
	if err != nil {
		return respondError(c, log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"transaction": tx,
		"lines":       lines,
	})
}
