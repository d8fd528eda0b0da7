package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/screenbites/canteen_backend/config"
	"github.com/screenbites/canteen_backend/models"
	"github.com/screenbites/canteen_backend/printhub"
	"github.com/screenbites/canteen_backend/utils"
	"github.com/screenbites/canteen_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// request deadlines; aggregations get the long one
const (
	requestTimeout = 30 * time.Second
	statsTimeout   = 60 * time.Second
)

var printHub = printhub.NewHub()

// RateLimiter throttles per client IP using a redis counter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

/* error mapping */

func statusForKind(kind utils.ErrorKind) int {
	switch kind {
	case utils.ErrNotFound:
		return http.StatusNotFound
	case utils.ErrInvalidInput, utils.ErrInsufficientStock:
		return http.StatusUnprocessableEntity
	case utils.ErrInvalidState, utils.ErrConflict:
		return http.StatusConflict
	case utils.ErrTimeout:
		return http.StatusGatewayTimeout
	case utils.ErrUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		err = utils.NewError(utils.ErrTimeout, "request deadline exceeded")
	}
	kind := utils.KindOf(err)
	body := gin.H{
		"error": err.Error(),
		"kind":  string(kind),
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Kind == utils.ErrInsufficientStock {
		body["product_name"] = appErr.ProductName
		body["requested"] = appErr.Requested.String()
		body["available"] = appErr.Available.String()
		body["max_orderable"] = appErr.MaxOrderable
	}
	c.JSON(statusForKind(kind), body)
}

/* middleware */

// tenantMiddleware resolves the acting tenant and staff identity from
// headers. The auth hop in front of this service validates the token and
// forwards the claims as headers.
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		theaterId := strings.TrimSpace(c.GetHeader("x-theater-id"))
		if theaterId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "x-theater-id header is required",
				"kind":  string(utils.ErrInvalidInput),
			})
			return
		}
		ctx := utils.SetTheaterIdInContext(c.Request.Context(), theaterId)
		if v := strings.TrimSpace(c.GetHeader("x-staff-id")); v != "" {
			if staffId, err := strconv.Atoi(v); err == nil {
				ctx = utils.SetStaffIdInContext(ctx, staffId)
			}
		}
		if v := strings.TrimSpace(c.GetHeader("x-staff-name")); v != "" {
			ctx = utils.SetStaffNameInContext(ctx, v)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		adminToken := os.Getenv("ADMIN_API_TOKEN")
		if adminToken == "" || c.GetHeader("x-admin-token") != adminToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		ctx := utils.SetIsAdminInContext(c.Request.Context(), true)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func deadlineMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

/* theater handlers */

func createTheaterHandler(c *gin.Context) {
	var input models.NewTheater
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	theater, err := models.CreateTheater(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, theater)
}

func listTheatersHandler(c *gin.Context) {
	theaters, err := models.GetAllTheaters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, theaters)
}

func updateTheaterHandler(c *gin.Context) {
	var input models.NewTheater
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	theater, err := models.UpdateTheater(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, theater)
}

/* product handlers */

func createProductHandler(c *gin.Context) {
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	product, err := models.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func listProductsHandler(c *gin.Context) {
	products, err := models.GetAllProducts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func getProductHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid product id"))
		return
	}
	product, err := models.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func updateProductHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid product id"))
		return
	}
	var input models.NewProduct
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	product, err := models.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func deleteProductHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid product id"))
		return
	}
	product, err := models.DeleteProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

/* combo handlers */

func createComboHandler(c *gin.Context) {
	var input models.NewComboOffer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	combo, err := models.CreateComboOffer(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, combo)
}

func listCombosHandler(c *gin.Context) {
	combos, err := models.GetAllComboOffers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, combos)
}

func updateComboHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid combo id"))
		return
	}
	var input models.NewComboOffer
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	combo, err := models.UpdateComboOffer(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, combo)
}

func deleteComboHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid combo id"))
		return
	}
	combo, err := models.DeleteComboOffer(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, combo)
}

/* ledger handlers */

func ledgerCellParams(c *gin.Context) (int, int, int, error) {
	productId, err := strconv.Atoi(c.Param("productId"))
	if err != nil {
		return 0, 0, 0, utils.NewError(utils.ErrInvalidInput, "invalid product id")
	}
	now := time.Now().UTC()
	year := now.Year()
	month := int(now.Month())
	if v := c.Query("year"); v != "" {
		if year, err = strconv.Atoi(v); err != nil {
			return 0, 0, 0, utils.NewError(utils.ErrInvalidInput, "invalid year")
		}
	}
	if v := c.Query("month"); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			return 0, 0, 0, utils.NewError(utils.ErrInvalidInput, "invalid month")
		}
	}
	return productId, year, month, nil
}

func getCafeLedgerHandler(c *gin.Context) {
	productId, year, month, err := ledgerCellParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ledger, err := models.GetCafeLedger(c.Request.Context(), productId, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func appendCafeEntryHandler(c *gin.Context) {
	var input models.NewCafeStockEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	ledger, err := models.AppendCafeEntry(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ledger)
}

func updateCafeEntryHandler(c *gin.Context) {
	entryId, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid entry id"))
		return
	}
	var patch models.StockEntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	ledger, err := models.UpdateCafeEntry(c.Request.Context(), entryId, &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func deleteCafeEntryHandler(c *gin.Context) {
	entryId, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid entry id"))
		return
	}
	ledger, err := models.DeleteCafeEntry(c.Request.Context(), entryId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func getTheaterLedgerHandler(c *gin.Context) {
	productId, year, month, err := ledgerCellParams(c)
	if err != nil {
		respondError(c, err)
		return
	}
	ledger, err := models.GetTheaterLedger(c.Request.Context(), productId, year, month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func appendTheaterEntryHandler(c *gin.Context) {
	var input models.NewTheaterStockEntry
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	ledger, err := models.AppendTheaterEntry(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ledger)
}

func updateTheaterEntryHandler(c *gin.Context) {
	entryId, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid entry id"))
		return
	}
	var patch models.StockEntryPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	ledger, err := models.UpdateTheaterEntry(c.Request.Context(), entryId, &patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

func deleteTheaterEntryHandler(c *gin.Context) {
	entryId, err := strconv.Atoi(c.Param("entryId"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid entry id"))
		return
	}
	ledger, err := models.DeleteTheaterEntry(c.Request.Context(), entryId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger)
}

/* order handlers */

func createOrderHandler(c *gin.Context) {
	var input models.NewOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	order, err := models.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func listOrdersHandler(c *gin.Context) {
	filter := models.OrderFilter{
		Status:        models.OrderStatus(strings.ToLower(c.Query("status"))),
		Source:        c.Query("source"),
		PaymentStatus: models.PaymentStatus(strings.ToLower(c.Query("payment_status"))),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid from timestamp"))
			return
		}
		filter.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid to timestamp"))
			return
		}
		filter.To = &t
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	orders, total, err := models.ListOrders(c.Request.Context(), &filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

func getOrderHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid order id"))
		return
	}
	order, err := models.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func updateOrderStatusHandler(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid order id"))
		return
	}
	var update models.OrderStatusUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	order, err := models.UpdateOrderStatus(c.Request.Context(), id, &update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func cancelOrderItemHandler(c *gin.Context) {
	orderId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid order id"))
		return
	}
	itemId, err := strconv.Atoi(c.Param("itemId"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid item id"))
		return
	}
	order, err := models.CancelOrderItem(c.Request.Context(), orderId, itemId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func customerCancelOrderHandler(c *gin.Context) {
	orderId, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		respondError(c, utils.NewError(utils.ErrInvalidInput, "invalid order id"))
		return
	}
	var body struct {
		Phone string `json:"phone" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	order, err := models.CustomerCancelOrder(c.Request.Context(), orderId, body.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

/* payment gateway push channel */

// pubsubPushEnvelope is the Pub/Sub push delivery wrapper. Data arrives
// base64 encoded; byte slice unmarshalling handles the decoding.
type pubsubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type paymentEventPayload struct {
	TheaterId   string `json:"theater_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

// paymentPushHandler applies asynchronous payment results pushed by the
// gateway subscription. Every outcome acks with 204: a malformed message
// never parses on redelivery, and applied transitions are idempotent.
func paymentPushHandler(c *gin.Context) {
	if !utils.ParseBoolLoose(os.Getenv("ENABLE_PAYMENT_PUSH_ENDPOINT"), true) {
		c.Status(http.StatusNoContent)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	var envelope pubsubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	var payload paymentEventPayload
	if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
		c.Status(http.StatusNoContent)
		return
	}
	if payload.TheaterId == "" || payload.OrderNumber == "" || payload.Status == "" {
		c.Status(http.StatusNoContent)
		return
	}

	logger := config.GetLogger()
	ctx := utils.SetTheaterIdInContext(c.Request.Context(), payload.TheaterId)
	ctx = utils.SetCorrelationIdInContext(ctx, envelope.Message.ID)

	order, err := models.GetOrderByNumber(ctx, payload.OrderNumber)
	if err != nil {
		config.LogWarn(logger, "server", "paymentPushHandler",
			"payment event for unknown order", payload.OrderNumber)
		c.Status(http.StatusNoContent)
		return
	}

	update := &models.OrderStatusUpdate{Status: payload.Status}
	if strings.EqualFold(payload.Status, "failed") {
		failed := models.PaymentStatusFailed
		update = &models.OrderStatusUpdate{PaymentStatus: &failed}
	}
	if _, err := models.UpdateOrderStatus(ctx, order.ID, update); err != nil {
		config.LogError(logger, "server", "paymentPushHandler", "payment event not applied", order.OrderNumber, err)
	}
	c.Status(http.StatusNoContent)
}

/* stats handlers */

func statsWindow(c *gin.Context) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		return time.Time{}, time.Time{}, utils.NewError(utils.ErrInvalidInput, "invalid start timestamp")
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		return time.Time{}, time.Time{}, utils.NewError(utils.ErrInvalidInput, "invalid end timestamp")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, utils.NewError(utils.ErrInvalidInput, "end precedes start")
	}
	return start, end, nil
}

func theaterStatsHandler(c *gin.Context) {
	start, end, err := statsWindow(c)
	if err != nil {
		respondError(c, err)
		return
	}
	theaterId, _ := utils.GetTheaterIdFromContext(c.Request.Context())
	theater, err := models.GetTheaterById(c.Request.Context(), theaterId)
	if err != nil {
		respondError(c, err)
		return
	}

	// single-day windows are the dashboard's hot path and get the cache
	day := models.DateOnlyUTCTime(start)
	if start.Equal(day) && end.Sub(start) >= 23*time.Hour && end.Sub(start) < 24*time.Hour {
		stats, err := models.ComputeTheaterDailyStats(c.Request.Context(), theater, day)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
		return
	}

	stats, err := models.ComputeTheaterStats(c.Request.Context(), theater, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func globalStatsHandler(c *gin.Context) {
	start, end, err := statsWindow(c)
	if err != nil {
		respondError(c, err)
		return
	}
	stats, err := models.ComputeGlobalStats(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

/* print worker channel */

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// cross-origin is fine here; tenant identity comes from the header
	CheckOrigin: func(r *http.Request) bool { return true },
}

func printWorkerHandler(c *gin.Context) {
	logger := config.GetLogger()
	theaterId, ok := utils.GetTheaterIdFromContext(c.Request.Context())
	if !ok || theaterId == "" {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		config.LogError(logger, "server.go", "printWorkerHandler", "websocket upgrade failed", theaterId, err)
		return
	}
	defer conn.Close()

	if err := printHub.RegisterWorker(theaterId, conn); err != nil {
		config.LogError(logger, "server.go", "printWorkerHandler", "backlog drain failed", theaterId, err)
		return
	}
	defer printHub.UnregisterWorker(theaterId, conn)

	// the worker only sends pings; a read error means it went away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

/* ops tooling */

// outboxReplayHandler requeues DEAD/FAILED order events for another
// dispatch round. Admin only.
func outboxReplayHandler(c *gin.Context) {
	var body struct {
		TheaterId string `json:"theater_id"`
		Ids       []int  `json:"ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
		return
	}
	db := config.GetDB()
	query := db.WithContext(c.Request.Context()).Model(&models.OrderEventRecord{}).
		Where("status IN ?", []string{models.OutboxPublishStatusDead, models.OutboxPublishStatusFailed})
	if body.TheaterId != "" {
		query = query.Where("theater_id = ?", body.TheaterId)
	}
	if len(body.Ids) > 0 {
		query = query.Where("id IN ?", body.Ids)
	}
	result := query.Updates(map[string]interface{}{
		"status":          models.OutboxPublishStatusPending,
		"attempts":        0,
		"last_error":      nil,
		"next_attempt_at": nil,
		"locked_at":       nil,
		"locked_by":       nil,
	})
	if result.Error != nil {
		respondError(c, result.Error)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requeued": result.RowsAffected})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	decimal.MarshalJSONWithoutQuotes = false

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization",
		"x-theater-id", "x-staff-id", "x-staff-name", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	// tenant-scoped surface
	api := r.Group("/api", tenantMiddleware(), deadlineMiddleware(requestTimeout))
	{
		api.POST("/products", createProductHandler)
		api.GET("/products", listProductsHandler)
		api.GET("/products/:id", getProductHandler)
		api.PUT("/products/:id", updateProductHandler)
		api.DELETE("/products/:id", deleteProductHandler)

		api.POST("/combos", createComboHandler)
		api.GET("/combos", listCombosHandler)
		api.PUT("/combos/:id", updateComboHandler)
		api.DELETE("/combos/:id", deleteComboHandler)

		api.GET("/ledgers/cafe/:productId", getCafeLedgerHandler)
		api.POST("/ledgers/cafe/entries", appendCafeEntryHandler)
		api.PUT("/ledgers/cafe/entries/:entryId", updateCafeEntryHandler)
		api.DELETE("/ledgers/cafe/entries/:entryId", deleteCafeEntryHandler)

		api.GET("/ledgers/theater/:productId", getTheaterLedgerHandler)
		api.POST("/ledgers/theater/entries", appendTheaterEntryHandler)
		api.PUT("/ledgers/theater/entries/:entryId", updateTheaterEntryHandler)
		api.DELETE("/ledgers/theater/entries/:entryId", deleteTheaterEntryHandler)

		api.POST("/orders", createOrderHandler)
		api.GET("/orders", listOrdersHandler)
		api.GET("/orders/:id", getOrderHandler)
		api.PUT("/orders/:id/status", updateOrderStatusHandler)
		api.POST("/orders/:id/items/:itemId/cancel", cancelOrderItemHandler)
		api.POST("/orders/:id/customer-cancel", customerCancelOrderHandler)
	}

	r.GET("/api/stats", tenantMiddleware(), deadlineMiddleware(statsTimeout), theaterStatsHandler)

	// per-tenant print worker stream
	r.GET("/ws/print-worker", tenantMiddleware(), printWorkerHandler)

	// payment gateway push subscription; tenant identity rides in the payload
	r.POST("/pubsub/payment-events", paymentPushHandler)

	// admin surface
	internal := r.Group("/internal", adminMiddleware())
	{
		internal.POST("/theaters", createTheaterHandler)
		internal.GET("/theaters", listTheatersHandler)
		internal.PUT("/theaters/:id", updateTheaterHandler)
		internal.GET("/stats", deadlineMiddleware(statsTimeout), globalStatsHandler)
		// Ops tooling: replay order events that were marked DEAD/FAILED.
		internal.POST("/ops/outbox/replay", outboxReplayHandler)
	}

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		if err := models.MigrateTable(); err != nil {
			logger.WithFields(logrus.Fields{"field": "migrations"}).Error("migration failed: " + err.Error())
		}
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Background workers: outbox dispatcher (fan-out AFTER commit), the
	// stock reconciler and the shelf-life sweep.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger, printHub).Run(workerCtx)
	go workflow.NewStockReconciler(db, logger).Run(workerCtx)
	go workflow.NewExpirySweeper(db, logger).Run(workerCtx)

	// READ COMMITTED keeps the outbox claim queries from gap-locking.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<minInt(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
