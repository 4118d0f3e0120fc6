package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/models"
	"github.com/example/drivethru/pkg/orders"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type startSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// lineItemRequest accepts the agent's "price" as well as "unitPrice".
type lineItemRequest struct {
	Name      string   `json:"name" binding:"required"`
	Quantity  int      `json:"quantity"`
	Price     *float64 `json:"price"`
	UnitPrice *float64 `json:"unitPrice"`
	Size      *string  `json:"size"`
	Modifiers []string `json:"modifiers"`
}

type orderStateRequest struct {
	SessionID string            `json:"sessionId"`
	Items     []lineItemRequest `json:"items" binding:"dive"`
	Total     float64           `json:"total"`
	Status    string            `json:"status"`
}

type kitchenStatusRequest struct {
	KitchenStatus string `json:"kitchenStatus" binding:"required"`
}

func (r *orderStateRequest) state() orders.OrderState {
	items := make([]models.LineItem, 0, len(r.Items))
	for _, it := range r.Items {
		item := models.LineItem{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Modifiers: it.Modifiers,
		}
		switch {
		case it.UnitPrice != nil:
			item.UnitPrice = *it.UnitPrice
		case it.Price != nil:
			item.UnitPrice = *it.Price
		}
		items = append(items, item)
	}
	return orders.OrderState{
		Items:  items,
		Total:  r.Total,
		Status: models.ConversationStatus(r.Status),
	}
}

// startSession godoc
// @Summary Open the order for a new conversation
// @Tags agent
// @Accept json
// @Produce json
// @Param request body startSessionRequest true "Session"
// @Success 201 {object} models.Order
// @Failure 409 {object} errorResponse
// @Router /api/sessions [post]
func (g *Gateway) startSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	order, err := g.board.StartSession(c.Request.Context(), req.SessionID)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// applyAgentUpdate godoc
// @Summary Replace the order content with the agent's current state
// @Tags agent
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body orderStateRequest true "Full order state"
// @Success 200 {object} models.Order
// @Failure 404 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /api/sessions/{id}/order [post]
func (g *Gateway) applyAgentUpdate(c *gin.Context) {
	var req orderStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	order, err := g.board.ApplyAgentUpdate(c.Request.Context(), c.Param("id"), req.state())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// receiveOrder godoc
// @Summary Accept an order update from an agent that does not track sessions
// @Description Without sessionId the update goes to the most recent in-progress order, or a new one.
// @Description A sessionId that is not on the board is rejected with 404.
// @Tags agent
// @Accept json
// @Produce json
// @Param request body orderStateRequest true "Full order state"
// @Success 200 {object} receiveOrderResponse
// @Failure 404 {object} errorResponse
// @Failure 422 {object} errorResponse
// @Router /api/order [post]
func (g *Gateway) receiveOrder(c *gin.Context) {
	var req orderStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ctx := c.Request.Context()

	sessionID, err := g.resolveSession(ctx, req.SessionID)
	if err != nil {
		g.writeError(c, err)
		return
	}

	order, err := g.board.ApplyAgentUpdate(ctx, sessionID, req.state())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, receiveOrderResponse{Success: true, OrderID: order.OrderNumber, Order: order})
}

// resolveSession finds the session a legacy update belongs to. A named session
// must already exist: a late update for a deleted order is not found rather than
// reopened. Without a name the update goes to the latest in-progress order, or
// to a new session.
func (g *Gateway) resolveSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		_, found, err := g.board.Get(ctx, sessionID)
		if err != nil {
			return "", err
		}
		if !found {
			return "", fmt.Errorf("%w: %s", orders.ErrNotFound, sessionID)
		}
		return sessionID, nil
	}

	latest, found, err := g.board.Latest(ctx)
	if err != nil {
		return "", err
	}
	if found && latest.ConversationStatus == models.ConversationInProgress {
		return latest.ID, nil
	}

	sessionID = uuid.New().String()
	if _, err := g.board.StartSession(ctx, sessionID); err != nil {
		return "", err
	}
	return sessionID, nil
}

// listOrders godoc
// @Summary Active orders, oldest first
// @Tags kitchen
// @Produce json
// @Success 200 {array} models.Order
// @Router /api/orders [get]
func (g *Gateway) listOrders(c *gin.Context) {
	active, err := g.board.Active(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, active)
}

// latestOrder godoc
// @Summary Most recently updated order
// @Tags kitchen
// @Produce json
// @Success 200 {object} models.Order
// @Failure 404 {object} errorResponse
// @Router /api/orders/latest [get]
func (g *Gateway) latestOrder(c *gin.Context) {
	order, found, err := g.board.Latest(c.Request.Context())
	if err != nil {
		g.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, errorResponse{Error: "No orders yet"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// getOrder godoc
// @Summary Get one order
// @Tags kitchen
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} errorResponse
// @Router /api/orders/{id} [get]
func (g *Gateway) getOrder(c *gin.Context) {
	order, found, err := g.board.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, errorResponse{Error: orders.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, order)
}

// setKitchenStatus godoc
// @Summary Move an order to another kitchen status
// @Tags kitchen
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body kitchenStatusRequest true "New status"
// @Success 200 {object} models.Order
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse
// @Router /api/orders/{id}/status [put]
func (g *Gateway) setKitchenStatus(c *gin.Context) {
	var req kitchenStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	status := models.KitchenStatus(req.KitchenStatus)
	if !status.Valid() {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid kitchen status: " + req.KitchenStatus})
		return
	}

	order, err := g.board.SetKitchenStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// deleteOrder godoc
// @Summary Remove an order from the board, undoable for a short window
// @Tags kitchen
// @Produce json
// @Param id path string true "Session ID"
// @Success 202 {object} deleteResponse
// @Failure 404 {object} errorResponse
// @Router /api/orders/{id} [delete]
func (g *Gateway) deleteOrder(c *gin.Context) {
	order, err := g.board.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, deleteResponse{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		UndoWindowMs: g.board.UndoWindow().Milliseconds(),
	})
}

// undoDelete godoc
// @Summary Restore an order deleted within the undo window
// @Tags kitchen
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} models.Order
// @Failure 404 {object} errorResponse
// @Router /api/orders/{id}/undo [post]
func (g *Gateway) undoDelete(c *gin.Context) {
	order, err := g.board.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// orderHistory godoc
// @Summary Archived records of a session
// @Tags history
// @Produce json
// @Param id path string true "Session ID"
// @Param limit query int false "Max records" default(20)
// @Success 200 {array} models.Order
// @Router /api/orders/{id}/history [get]
func (g *Gateway) orderHistory(c *gin.Context) {
	list, err := g.history.History(c.Request.Context(), c.Param("id"), queryLimit(c))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// orderAudit godoc
// @Summary Lifecycle log of a session
// @Tags history
// @Produce json
// @Param id path string true "Session ID"
// @Param limit query int false "Max entries" default(20)
// @Success 200 {array} repository.AuditLog
// @Router /api/orders/{id}/audit [get]
func (g *Gateway) orderAudit(c *gin.Context) {
	logs, err := g.audit.GetAuditLogs(c.Request.Context(), c.Param("id"), int64(queryLimit(c)))
	if err != nil {
		g.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

type errorResponse struct {
	Error string `json:"error"`
}

type receiveOrderResponse struct {
	Success bool         `json:"success"`
	OrderID int          `json:"order_id"`
	Order   models.Order `json:"order"`
}

type deleteResponse struct {
	ID           string `json:"id"`
	OrderNumber  int    `json:"orderNumber"`
	UndoWindowMs int64  `json:"undoWindowMs"`
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 200 {
		return 20
	}
	return limit
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, board.ErrNothingToUndo):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrDuplicateSession), errors.Is(err, orders.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, orders.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrInvalidStatus), errors.Is(err, orders.ErrRejectedState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, board.ErrUnavailable), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) writeError(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		g.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(code, errorResponse{Error: err.Error()})
}
