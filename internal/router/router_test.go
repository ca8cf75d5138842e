package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saleshop/internal/config"
	"github.com/saleshop/internal/provider"
	"github.com/saleshop/internal/repository"
	"github.com/saleshop/internal/service"
	"github.com/saleshop/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogJSON = `{"products":[
	{"id":1,"name":"Runner","category":"shoes","originalPrice":100,"salePrice":80,"onSale":true},
	{"id":2,"name":"Cap","category":"hats","originalPrice":50,"salePrice":45,"onSale":true},
	{"id":3,"name":"Sock","category":"shoes","originalPrice":5,"salePrice":5,"onSale":false}
]}`

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type testServer struct {
	engine      *gin.Engine
	submissions *int32
}

func newTestServer(t *testing.T, orderStatus int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testCatalogJSON))
	}))
	t.Cleanup(catalog.Close)

	var submissions int32
	orders := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&submissions, 1)
		w.WriteHeader(orderStatus)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(orders.Close)

	cfg := &config.Config{
		Server:  config.ServerConfig{Mode: "debug"},
		Session: config.SessionConfig{SecretKey: "router-test-secret", ExpireHours: 1, IdleMinutes: 30},
		Cart:    config.CartConfig{Storage: "memory", Key: "cart"},
	}
	policy, err := service.NewPricingPolicy(decimal.NewFromInt(10), decimal.NewFromInt(50), decimal.RequireFromString("0.08"))
	require.NoError(t, err)

	catalogClient := upstream.NewCatalogClient(catalog.URL, time.Second)
	orderClient := upstream.NewOrderClient(orders.URL, time.Second)
	slot := repository.NewMemoryCartSlot()
	container := &provider.Container{
		Config:        cfg,
		CartSlot:      slot,
		CatalogClient: catalogClient,
		OrderClient:   orderClient,
		PricingPolicy: policy,
		SessionTokens: service.NewSessionTokenService(cfg.Session.SecretKey, cfg.Session.ExpireHours),
		SessionManager: service.NewSessionManager(service.SessionDeps{
			Slot:        slot,
			CartKey:     cfg.Cart.Key,
			Catalog:     catalogClient,
			Submitter:   orderClient,
			Policy:      policy,
			Currency:    "USD",
			IdleTimeout: time.Minute,
		}),
	}
	return &testServer{engine: SetupRouter(cfg, container), submissions: &submissions}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func (s *testServer) newSession(t *testing.T) (string, string) {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/v1/sessions", "", nil)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	var data struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.SessionID, data.Token
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	resp := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, 0, resp.StatusCode)
}

func TestShopRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	resp := s.do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, 401, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/cart", "not-a-token", nil)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestCatalogListingAndFilter(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	_, token := s.newSession(t)

	resp := s.do(t, http.MethodGet, "/api/v1/catalog", token, nil)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	var data struct {
		Products []struct {
			ID              string `json:"id"`
			DiscountPercent int64  `json:"discountPercent"`
		} `json:"products"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Products, 2)
	assert.Equal(t, 2, data.Total)
	assert.Equal(t, int64(20), data.Products[0].DiscountPercent)

	resp = s.do(t, http.MethodGet, "/api/v1/catalog?category=hats", token, nil)
	require.Equal(t, 0, resp.StatusCode)
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.Len(t, data.Products, 1)
	assert.Equal(t, "2", data.Products[0].ID)

	resp = s.do(t, http.MethodGet, "/api/v1/catalog?max_price=-1", token, nil)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestCartAndCheckoutFlow(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	_, token := s.newSession(t)

	resp := s.do(t, http.MethodPost, "/api/v1/checkout/open", token, nil)
	assert.Equal(t, 400, resp.StatusCode, "empty cart cannot open checkout")

	resp = s.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"product_id": "99"})
	assert.Equal(t, 404, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"product_id": "2"})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	resp = s.do(t, http.MethodPost, "/api/v1/cart/items/2/increment", token, nil)
	require.Equal(t, 0, resp.StatusCode)

	var cart struct {
		Changed bool `json:"changed"`
		Cart    struct {
			TotalQuantity int `json:"totalQuantity"`
			Summary       struct {
				Subtotal string `json:"subtotal"`
				Total    string `json:"total"`
			} `json:"summary"`
		} `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &cart))
	assert.True(t, cart.Changed)
	assert.Equal(t, 2, cart.Cart.TotalQuantity)
	assert.Equal(t, "90", cart.Cart.Summary.Subtotal)
	assert.Equal(t, "97.2", cart.Cart.Summary.Total)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/open", token, nil)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/submit", token, gin.H{
		"customer":        gin.H{"firstName": "", "lastName": "L", "email": "bad"},
		"shippingAddress": gin.H{"street": "1 Main", "city": "X", "state": "Y", "zipCode": "1"},
	})
	require.Equal(t, 400, resp.StatusCode)
	assert.Contains(t, string(resp.Data), "firstName")
	assert.Equal(t, int32(0), atomic.LoadInt32(s.submissions))

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/submit", token, gin.H{
		"customer":        gin.H{"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
		"shippingAddress": gin.H{"street": "1 Main", "city": "X", "state": "Y", "zipCode": "1"},
	})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	assert.Equal(t, int32(1), atomic.LoadInt32(s.submissions))

	resp = s.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, 0, resp.StatusCode)
	var view struct {
		TotalQuantity int `json:"totalQuantity"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, 0, view.TotalQuantity)
}

func TestSubmitFailureKeepsCart(t *testing.T) {
	s := newTestServer(t, http.StatusInternalServerError)
	_, token := s.newSession(t)

	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"product_id": "1"})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	resp = s.do(t, http.MethodPost, "/api/v1/checkout/open", token, nil)
	require.Equal(t, 0, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/submit", token, gin.H{
		"customer":        gin.H{"firstName": "Ada", "lastName": "Lovelace", "email": "ada@example.com"},
		"shippingAddress": gin.H{"street": "1 Main", "city": "X", "state": "Y", "zipCode": "1"},
	})
	assert.Equal(t, 502, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/checkout", token, nil)
	var checkout struct {
		State     string `json:"state"`
		LastError string `json:"lastError"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &checkout))
	assert.Equal(t, "failed", checkout.State)
	assert.NotEmpty(t, checkout.LastError)

	resp = s.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	var view struct {
		TotalQuantity int `json:"totalQuantity"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, 1, view.TotalQuantity)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/resume", token, nil)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
}

func TestSessionResumeRestoresCart(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	sessionID, token := s.newSession(t)

	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"product_id": "1"})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)

	resp = s.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"session_id": sessionID, "token": token})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	var data struct {
		SessionID string `json:"session_id"`
		Cart      struct {
			TotalQuantity int `json:"totalQuantity"`
		} `json:"cart"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, sessionID, data.SessionID)
	assert.Equal(t, 1, data.Cart.TotalQuantity)

	resp = s.do(t, http.MethodPost, "/api/v1/sessions", token, nil)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, sessionID, data.SessionID)

	resp = s.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"session_id": "nope"})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestSessionResumeRequiresOwnToken(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	victimID, victimToken := s.newSession(t)
	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", victimToken, gin.H{"product_id": "1"})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)

	resp = s.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"session_id": victimID})
	assert.Equal(t, 401, resp.StatusCode)

	_, otherToken := s.newSession(t)
	resp = s.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"session_id": victimID, "token": otherToken})
	assert.Equal(t, 401, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"token": "garbage"})
	assert.Equal(t, 401, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/cart", victimToken, nil)
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	var view struct {
		TotalQuantity int `json:"totalQuantity"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, 1, view.TotalQuantity)
}

func TestPaymentUnavailableWithoutInitiator(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	_, token := s.newSession(t)

	resp := s.do(t, http.MethodPost, "/api/v1/cart/items", token, gin.H{"product_id": "1"})
	require.Equal(t, 0, resp.StatusCode, resp.Msg)
	resp = s.do(t, http.MethodPost, "/api/v1/checkout/open", token, nil)
	require.Equal(t, 0, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/v1/checkout/payment", token, gin.H{"phoneNumber": "0712345678"})
	assert.NotEqual(t, 0, resp.StatusCode)
}

func TestReceiptsWithoutRepository(t *testing.T) {
	s := newTestServer(t, http.StatusOK)
	_, token := s.newSession(t)
	resp := s.do(t, http.MethodGet, "/api/v1/receipts", token, nil)
	assert.Equal(t, 0, resp.StatusCode)
}
