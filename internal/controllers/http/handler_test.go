package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"order-ledger/internal/clock"
	"order-ledger/internal/domain"
	"order-ledger/internal/feed"
	"order-ledger/internal/ledger"
	"order-ledger/internal/mocks"
	"order-ledger/internal/repository"
	"order-ledger/internal/repository/memory"
	"order-ledger/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *services.OrderService) {
	t.Helper()
	return newTestRouterWith(t, memory.NewOrderRepository(), feed.New())
}

func newTestRouterWith(t *testing.T, repo repository.OrderRepository, f *feed.Feed) (*gin.Engine, *services.OrderService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	resolver := new(mocks.MockResolver)
	resolver.On("Resolve", mock.Anything, "tok-valid").Return("ref-1", nil)
	resolver.On("Resolve", mock.Anything, mock.Anything).Return("", domain.ErrIdentityNotReady)

	publisher := new(mocks.MockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	store := ledger.NewStore(repo, f, clock.NewSystem())
	service := services.NewOrderService(store, resolver, publisher, 25)

	r := gin.New()
	NewHandler(service, nil).RegisterRoutes(r)
	return r, service
}

func submitBody(name string, sizes map[string]int) *bytes.Buffer {
	b, _ := json.Marshal(SubmitOrderRequest{Name: name, Sizes: sizes})
	return bytes.NewBuffer(b)
}

func TestSubmitOrder(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		body           *bytes.Buffer
		expectedStatus int
		expectedField  string
	}{
		{
			name:           "valid submission",
			token:          "tok-valid",
			body:           submitBody("Alice", map[string]int{"S": 2, "M": 1}),
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "empty name",
			token:          "tok-valid",
			body:           submitBody("  ", map[string]int{"S": 1}),
			expectedStatus: http.StatusBadRequest,
			expectedField:  "name",
		},
		{
			name:           "all sizes zero",
			token:          "tok-valid",
			body:           submitBody("Bob", map[string]int{"S": 0, "XL": 0}),
			expectedStatus: http.StatusBadRequest,
			expectedField:  "sizes",
		},
		{
			name:           "missing session token is retryable",
			token:          "",
			body:           submitBody("Alice", map[string]int{"S": 1}),
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t)

			req := httptest.NewRequest(http.MethodPost, "/orders", tt.body)
			req.Header.Set("Content-Type", "application/json")
			if tt.token != "" {
				req.Header.Set("X-Session-Token", tt.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			switch tt.expectedStatus {
			case http.StatusCreated:
				var order domain.Order
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
				assert.NotZero(t, order.ID)
				assert.Equal(t, 3, order.TotalItems)
				assert.False(t, order.Paid)
			case http.StatusBadRequest:
				var resp map[string]string
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.expectedField, resp["field"])
			case http.StatusServiceUnavailable:
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestTogglePaid(t *testing.T) {
	r, service := newTestRouter(t)

	order, err := service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
		Name:  "Alice",
		Sizes: domain.SizeCounts{domain.SizeS: 1},
	})
	require.NoError(t, err)

	// Caller saw paid=false; server commits true.
	body := bytes.NewBufferString(`{"paid": false}`)
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/orders/%d/paid", order.ID), body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var updated domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.True(t, updated.Paid)

	// Unknown id.
	req = httptest.NewRequest(http.MethodPost, "/orders/424242/paid", bytes.NewBufferString(`{"paid": false}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Unparseable id.
	req = httptest.NewRequest(http.MethodPost, "/orders/abc/paid", bytes.NewBufferString(`{"paid": false}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBoard(t *testing.T) {
	r, service := newTestRouter(t)

	_, err := service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
		Name:  "Alice",
		Sizes: domain.SizeCounts{domain.SizeS: 2, domain.SizeM: 1},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var board BoardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board.Orders, 1)
	assert.Equal(t, 3, board.Totals.TotalItems)
	assert.Equal(t, int64(75), board.Totals.TotalRevenue)
	assert.Equal(t, 2, board.Totals.PerSize[domain.SizeS])
	assert.Equal(t, 1, board.Totals.PerSize[domain.SizeM])
	assert.Equal(t, 0, board.Totals.PerSize[domain.SizeL])
	assert.Equal(t, int64(25), board.UnitPrice)
}

func TestStreamOrders(t *testing.T) {
	r, service := newTestRouter(t)

	_, err := service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
		Name:  "Early",
		Sizes: domain.SizeCounts{domain.SizeS: 1},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/orders/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	// Give the handler time to subscribe and send its snapshot, then
	// commit a change while the stream is live.
	time.Sleep(50 * time.Millisecond)
	_, err = service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
		Name:  "Late",
		Sizes: domain.SizeCounts{domain.SizeXL: 2},
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on client disconnect")
	}

	body := w.Body.String()
	assert.Contains(t, body, "event:snapshot")
	assert.Contains(t, body, "Early")
	assert.Contains(t, body, "event:change")
	assert.Contains(t, body, "Late")
}

// snapshotGuardRepo refuses reads on a dead context, the way a real
// driver would.
type snapshotGuardRepo struct {
	repository.OrderRepository
}

func (r snapshotGuardRepo) FindAll(ctx context.Context) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.OrderRepository.FindAll(ctx)
}

func TestGetBoard_SurvivesFirstCallerDisconnect(t *testing.T) {
	r, service := newTestRouterWith(t, snapshotGuardRepo{memory.NewOrderRepository()}, feed.New())

	_, err := service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
		Name:  "Alice",
		Sizes: domain.SizeCounts{domain.SizeS: 1},
	})
	require.NoError(t, err)

	// The requesting client is already gone; the shared rebuild must
	// still complete for whoever collapses onto it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var board BoardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	assert.Len(t, board.Orders, 1)
}

// gatedWriter blocks the handler's first write until released, letting a
// test pile up feed events behind a stalled stream.
type gatedWriter struct {
	*httptest.ResponseRecorder
	gate  chan struct{}
	first chan struct{}
	once  sync.Once
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{
		ResponseRecorder: httptest.NewRecorder(),
		gate:             make(chan struct{}),
		first:            make(chan struct{}),
	}
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.first) })
	<-w.gate
	return w.ResponseRecorder.Write(p)
}

// snapshotCtxRepo records the context of every full read.
type snapshotCtxRepo struct {
	repository.OrderRepository
	reads chan context.Context
}

func (r *snapshotCtxRepo) FindAll(ctx context.Context) ([]domain.Order, error) {
	r.reads <- ctx
	return r.OrderRepository.FindAll(ctx)
}

func TestStreamOrders_ResyncSnapshotIsRequestScoped(t *testing.T) {
	repo := &snapshotCtxRepo{
		OrderRepository: memory.NewOrderRepository(),
		reads:           make(chan context.Context, 8),
	}
	r, service := newTestRouterWith(t, repo, feed.NewBuffered(1))

	_, err := service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
		Name:  "Early",
		Sizes: domain.SizeCounts{domain.SizeS: 1},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/orders/stream", nil).WithContext(ctx)
	w := newGatedWriter()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	nextRead := func() context.Context {
		select {
		case c := <-repo.reads:
			return c
		case <-time.After(2 * time.Second):
			t.Fatal("expected snapshot read never happened")
			return nil
		}
	}
	nextRead() // the subscription's initial snapshot

	// With the stream stalled on its first write, a one-deep queue
	// overflows on the second commit and the resync marker is buffered.
	<-w.first
	for i := 0; i < 3; i++ {
		_, err := service.SubmitOrder(context.Background(), "tok-valid", domain.Draft{
			Name:  "Late",
			Sizes: domain.SizeCounts{domain.SizeM: 1},
		})
		require.NoError(t, err)
	}
	close(w.gate)

	resyncCtx := nextRead()
	assert.NotNil(t, resyncCtx.Done(), "resync snapshot ran outside the client's context")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not stop on client disconnect")
	}

	assert.Equal(t, 2, strings.Count(w.Body.String(), "event:snapshot"))
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
