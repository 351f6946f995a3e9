package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"order-ledger/internal/domain"
	"order-ledger/internal/feed"
	"order-ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"
)

const boardCacheKey = "board:v1"
const boardCacheTTL = 2 * time.Second

type Handler struct {
	service *services.OrderService
	rdb     *redis.Client
	board   singleflight.Group
}

func NewHandler(u *services.OrderService, rdb *redis.Client) *Handler {
	return &Handler{service: u, rdb: rdb}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/orders", h.SubmitOrder)
	r.POST("/orders/:id/paid", h.TogglePaid)
	r.GET("/orders", h.GetBoard)
	r.GET("/orders/stream", h.StreamOrders)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	token := c.GetHeader("X-Session-Token")

	order, err := h.service.SubmitOrder(ctx, token, req.ToDraft())
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.invalidateBoard()

	c.JSON(http.StatusCreated, order)
}

func (h *Handler) TogglePaid(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	var req TogglePaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.service.TogglePaid(c.Request.Context(), id, req.Paid)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.invalidateBoard()

	c.JSON(http.StatusOK, order)
}

func (h *Handler) GetBoard(c *gin.Context) {
	ctx := c.Request.Context()

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, boardCacheKey).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			return
		}
	}

	// Collapse concurrent rebuilds from many dashboards into one snapshot
	// read. The rebuild runs on a detached context: its result is shared
	// by every collapsed caller, so the first caller disconnecting must
	// not fail the rest.
	v, err, _ := h.board.Do(boardCacheKey, func() (any, error) {
		orders, totals, err := h.service.Board(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return json.Marshal(BoardResponse{
			Orders:    orders,
			Totals:    totals,
			UnitPrice: h.service.UnitPrice(),
		})
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := v.([]byte)
	if h.rdb != nil {
		h.rdb.Set(ctx, boardCacheKey, data, boardCacheTTL)
	}

	c.Data(http.StatusOK, "application/json", data)
}

// StreamOrders pushes the live board over SSE: one snapshot event on
// connect, then a change event per commit in commit order. The handler
// keeps its own copy of the records so totals are recomputed from the
// event stream without further store reads; a resync event from a lagged
// subscription triggers a fresh snapshot instead.
func (h *Handler) StreamOrders(c *gin.Context) {
	sub, snap, err := h.service.Subscribe(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer sub.Close()

	byID := make(map[uint64]domain.Order, len(snap))
	for _, o := range snap {
		byID[o.ID] = o
	}

	c.SSEvent("snapshot", BoardResponse{
		Orders:    snap,
		Totals:    domain.Aggregate(snap, h.service.UnitPrice()),
		UnitPrice: h.service.UnitPrice(),
	})
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if ev.Type == feed.EventResync {
				fresh, err := h.service.Snapshot(c.Request.Context())
				if err != nil {
					return
				}
				byID = make(map[uint64]domain.Order, len(fresh))
				for _, o := range fresh {
					byID[o.ID] = o
				}
				c.SSEvent("snapshot", BoardResponse{
					Orders:    fresh,
					Totals:    domain.Aggregate(fresh, h.service.UnitPrice()),
					UnitPrice: h.service.UnitPrice(),
				})
				c.Writer.Flush()
				continue
			}

			// Events carry the full record, so applying one is an upsert
			// and redelivery is harmless.
			byID[ev.Order.ID] = ev.Order
			c.SSEvent("change", gin.H{
				"event":  ev,
				"totals": domain.Aggregate(records(byID), h.service.UnitPrice()),
			})
			c.Writer.Flush()
		}
	}
}

func records(byID map[uint64]domain.Order) []domain.Order {
	out := make([]domain.Order, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (h *Handler) invalidateBoard() {
	if h.rdb != nil {
		h.rdb.Del(context.Background(), boardCacheKey)
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Error(), "field": vErr.Field})
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrIdentityNotReady):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStoreUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
