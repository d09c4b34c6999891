package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopfront/checkout/internal/cart"
	"github.com/shopfront/checkout/internal/order"
	"github.com/shopfront/checkout/internal/product"
)

const idempotencyHeader = "Idempotency-Key"

func actorFrom(c *gin.Context) order.Actor {
	return order.Actor{
		UserID: c.GetString("uid"),
		Admin:  c.GetString("role") == "admin",
	}
}

func requireUser(c *gin.Context) (string, bool) {
	uid := c.GetString("uid")
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}
	return uid, true
}

func requireAdmin(c *gin.Context) bool {
	if c.GetString("role") != "admin" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin required"})
		return false
	}
	return true
}

// writeError maps core errors onto HTTP statuses. Not-found and
// access-denied collapse into the same 404 so order existence never leaks
// to non-owners.
func writeError(c *gin.Context, err error) {
	var stockErr *order.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{"error": stockErr.Error(), "shortages": stockErr.Shortages})
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidItem),
		errors.Is(err, order.ErrInvalidAddress),
		errors.Is(err, order.ErrInvalidPaymentMethod),
		errors.Is(err, order.ErrMissingPaymentDetails):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrAccessDenied):
		c.JSON(http.StatusNotFound, gin.H{"error": order.ErrOrderNotFound.Error()})
	case errors.Is(err, order.ErrAlreadyCancelled), errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrStorageUnavailable), errors.Is(err, order.ErrDuplicateOrderNumber):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// checkoutHandler converts the caller's stored cart into an order.
// @Summary Checkout the current cart
// @Accept json
// @Produce json
// @Param request body order.CheckoutRequest true "checkout payload"
// @Success 201 {object} order.Receipt
// @Router /checkout [post]
func checkoutHandler(svc *order.Service, carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := requireUser(c)
		if !ok {
			return
		}
		var req order.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}

		lines, err := carts.ListByUser(c.Request.Context(), uid)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		items := make([]order.CartItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, order.CartItem{
				ProductID: l.ProductID,
				Name:      l.ProductName,
				UnitPrice: l.UnitPrice,
				Quantity:  l.Quantity,
				Variant:   l.Variant,
			})
		}

		rc, err := svc.Checkout(c.Request.Context(), uid, order.CheckoutInput{
			Items:           items,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			Payment:         req.PaymentDetails(),
			Notes:           req.Notes,
			IdempotencyKey:  c.GetHeader(idempotencyHeader),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rc)
	}
}

// @Summary Cancel an order and restore its inventory
// @Produce json
// @Param id path string true "order id"
// @Router /orders/{id}/cancel [post]
func cancelOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		if err := svc.Cancel(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(order.StatusCancelled)})
	}
}

func getOrderHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		o, items, err := svc.Get(c.Request.Context(), c.Param("id"), actorFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": o, "items": items})
	}
}

func listOrdersHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := requireUser(c)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		out, err := svc.ListForUser(c.Request.Context(), uid, limit, offset)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": out, "limit": limit, "offset": offset})
	}
}

// Fulfilment transitions (admin). Cancelling is rejected here: it moves
// inventory and must go through the cancel endpoint.
func updateOrderStatusHandler(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}
		var req order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		next, ok := order.ParseStatus(req.Status)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
			return
		}
		if err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), next); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": string(next)})
	}
}

func getCartHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := requireUser(c)
		if !ok {
			return
		}
		items, err := carts.ListByUser(c.Request.Context(), uid)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// addCartItemHandler resolves the product and snapshots its current name
// and price onto the cart line.
func addCartItemHandler(carts cart.Repository, products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := requireUser(c)
		if !ok {
			return
		}
		var req cart.AddItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.ProductID == "" || req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "product_id and a positive quantity are required"})
			return
		}
		p, err := products.GetByID(c.Request.Context(), req.ProductID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		it := &cart.Item{
			UserID:      uid,
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   price,
			Quantity:    req.Quantity,
			Variant:     req.Variant,
		}
		if err := carts.Add(c.Request.Context(), it); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusCreated, it)
	}
}

func removeCartItemHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := requireUser(c)
		if !ok {
			return
		}
		removed, err := carts.Remove(c.Request.Context(), uid, c.Param("product_id"))
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		if !removed {
			c.JSON(http.StatusNotFound, gin.H{"error": "not in cart"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func clearCartHandler(carts cart.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := requireUser(c)
		if !ok {
			return
		}
		if err := carts.Clear(c.Request.Context(), uid); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listProductsHandler(products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		q := c.Query("q")
		out, err := products.List(c.Request.Context(), product.Query{Q: q, Limit: limit, Offset: offset})
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{Q: q, Limit: limit, Offset: offset, Items: out})
	}
}

func getProductHandler(products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := products.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func createProductHandler(products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}
		var req product.CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Name == "" || req.Price == "" || req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name, price and a non-negative stock are required"})
			return
		}
		if _, err := decimal.NewFromString(req.Price); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		p := &product.Product{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		}
		if err := products.Create(c.Request.Context(), p); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func updateProductHandler(products product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireAdmin(c) {
			return
		}
		var req product.UpdateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		if req.Stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be non-negative"})
			return
		}
		updatePrice := req.Price != ""
		if updatePrice {
			if _, err := decimal.NewFromString(req.Price); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
				return
			}
		}
		p := &product.Product{
			ID:          c.Param("id"),
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		}
		if err := products.Update(c.Request.Context(), p, updatePrice); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
