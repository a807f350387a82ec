package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/catalog"
	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/submission"
	"storefront-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const sessionContextKey = "session"

// Handler contains HTTP handlers
type Handler struct {
	manager *service.Manager
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(manager *service.Manager) *Handler {
	return &Handler{
		manager: manager,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/connectivity", h.setConnectivity)

		s := v1.Group("/sessions/:sid", h.sessionMiddleware())
		{
			s.GET("/catalog/products", h.listProducts)
			s.GET("/catalog/services", h.listServices)
			s.POST("/catalog/demo", h.loadDemo)

			s.GET("/cart", h.getCart)
			s.POST("/cart/items", h.addItem)
			s.PUT("/cart/items/:pid", h.setQuantity)
			s.DELETE("/cart/items/:pid", h.removeItem)

			s.GET("/wishlist", h.getWishlist)
			s.POST("/wishlist/:pid", h.toggleWishlist)

			s.GET("/checkout", h.getCart)
			s.POST("/checkout/open", h.openCart)
			s.POST("/checkout/advance", h.advance)
			s.POST("/checkout/back", h.back)
			s.POST("/checkout/close", h.closeCheckout)
			s.PUT("/checkout/delivery", h.setDelivery)
			s.PUT("/checkout/payment", h.setPayment)
			s.PUT("/checkout/services", h.setServices)
			s.POST("/checkout/submit", h.submit)

			s.GET("/orders", h.listOrders)
			s.POST("/orders/:oid/repeat", h.repeatOrder)
			s.GET("/queue", h.listQueue)

			s.GET("/subscription", h.getSubscription)
			s.POST("/subscription", h.activateSubscription)

			s.PUT("/user", h.setUser)
			s.DELETE("/user", h.clearUser)
			s.POST("/age-verification", h.verifyAge)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"online": h.manager.Monitor().Online(),
		"time":   time.Now().Unix(),
	})
}

type connectivityRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// setConnectivity records a browser online/offline event
func (h *Handler) setConnectivity(c *gin.Context) {
	var req connectivityRequest
	if !bindJSON(c, &req) {
		return
	}

	changed := h.manager.Monitor().Set(*req.Online)
	c.JSON(http.StatusOK, gin.H{
		"online":  *req.Online,
		"changed": changed,
	})
}

func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := h.manager.Get(c.Request.Context(), c.Param("sid"))
		if err != nil {
			respondError(c, err)
			c.Abort()
			return
		}
		c.Set(sessionContextKey, sess)
		c.Next()
	}
}

func session(c *gin.Context) *service.Session {
	return c.MustGet(sessionContextKey).(*service.Session)
}

func (h *Handler) listProducts(c *gin.Context) {
	var q catalog.Query
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, errs.Wrap(errs.CodeValidation, err, "invalid query"))
		return
	}

	res := session(c).Products(c.Request.Context(), q)
	c.JSON(http.StatusOK, catalogResponse(res.Items, res.Provenance, res.Err))
}

func (h *Handler) listServices(c *gin.Context) {
	res := session(c).Services(c.Request.Context())
	c.JSON(http.StatusOK, catalogResponse(res.Items, res.Provenance, res.Err))
}

func catalogResponse(items any, provenance models.Provenance, warning error) gin.H {
	body := gin.H{
		"items":      items,
		"provenance": provenance,
	}
	if warning != nil {
		body["warning"] = warning.Error()
	}
	return body
}

func (h *Handler) loadDemo(c *gin.Context) {
	sess := session(c)
	if err := sess.LoadDemo(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": sess.Products(c.Request.Context(), catalog.Query{}).Items,
		"services": sess.Services(c.Request.Context()).Items,
	})
}

func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Checkout().View())
}

type addItemRequest struct {
	ProductID models.ID `json:"productId" binding:"required"`
	Quantity  int       `json:"quantity"`
}

func (h *Handler) addItem(c *gin.Context) {
	var req addItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	sess := session(c)
	if err := sess.AddItem(c.Request.Context(), req.ProductID, req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Checkout().View())
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setQuantity(c *gin.Context) {
	var req quantityRequest
	if !bindJSON(c, &req) {
		return
	}

	checkout := session(c).Checkout()
	if err := checkout.SetQuantity(c.Request.Context(), models.ID(c.Param("pid")), req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout.View())
}

func (h *Handler) removeItem(c *gin.Context) {
	checkout := session(c).Checkout()
	if err := checkout.RemoveItem(c.Request.Context(), models.ID(c.Param("pid"))); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout.View())
}

func (h *Handler) getWishlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": session(c).Wishlist()})
}

func (h *Handler) toggleWishlist(c *gin.Context) {
	sess := session(c)
	saved, err := sess.ToggleWishlist(c.Request.Context(), models.ID(c.Param("pid")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"saved": saved,
		"items": sess.Wishlist(),
	})
}

func (h *Handler) openCart(c *gin.Context) {
	h.transition(c, session(c).Checkout().OpenCart)
}

func (h *Handler) advance(c *gin.Context) {
	h.transition(c, session(c).Checkout().Advance)
}

func (h *Handler) back(c *gin.Context) {
	h.transition(c, session(c).Checkout().Back)
}

func (h *Handler) closeCheckout(c *gin.Context) {
	h.transition(c, session(c).Checkout().Close)
}

func (h *Handler) transition(c *gin.Context, step func(ctx context.Context) error) {
	if err := step(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session(c).Checkout().View())
}

func (h *Handler) setDelivery(c *gin.Context) {
	var req models.Delivery
	if !bindJSON(c, &req) {
		return
	}

	checkout := session(c).Checkout()
	if err := checkout.SetDelivery(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout.View())
}

type paymentRequest struct {
	Method models.PaymentMethod `json:"method" binding:"required"`
}

func (h *Handler) setPayment(c *gin.Context) {
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}

	checkout := session(c).Checkout()
	if err := checkout.SetPayment(c.Request.Context(), req.Method); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, checkout.View())
}

type servicesRequest struct {
	ServiceIDs []models.ID `json:"serviceIds"`
}

func (h *Handler) setServices(c *gin.Context) {
	var req servicesRequest
	if !bindJSON(c, &req) {
		return
	}

	sess := session(c)
	if err := sess.SetServices(c.Request.Context(), req.ServiceIDs); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Checkout().View())
}

// submit places the reviewed order
func (h *Handler) submit(c *gin.Context) {
	order, err := session(c).Submit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order":  order,
		"queued": submission.IsOfflineID(order.ID),
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": session(c).Orders()})
}

func (h *Handler) repeatOrder(c *gin.Context) {
	sess := session(c)
	skipped, err := sess.RepeatOrder(c.Request.Context(), c.Param("oid"))
	if err != nil {
		respondError(c, err)
		return
	}
	if skipped == nil {
		skipped = []models.ID{}
	}
	c.JSON(http.StatusOK, gin.H{
		"cart":    sess.Checkout().View(),
		"skipped": skipped,
	})
}

func (h *Handler) listQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": session(c).PendingActions()})
}

func (h *Handler) getSubscription(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Subscription())
}

func (h *Handler) activateSubscription(c *gin.Context) {
	status, err := session(c).ActivateSubscription(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) setUser(c *gin.Context) {
	var req models.User
	if !bindJSON(c, &req) {
		return
	}

	if err := session(c).SetUser(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handler) clearUser(c *gin.Context) {
	if err := session(c).ClearUser(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) verifyAge(c *gin.Context) {
	if err := session(c).VerifyAge(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": true})
}

func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
			"code":  errs.CodeValidation,
		})
		return false
	}
	return true
}

// respondError maps the error code to an HTTP status
func respondError(c *gin.Context, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		util.GetLogger().Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	message := err.Error()
	if e := errs.As(err); e != nil {
		message = e.Message()
	}
	c.JSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
