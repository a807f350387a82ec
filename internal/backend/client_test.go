package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, ActionGetProducts, r.URL.Query().Get("action"))
		assert.Equal(t, "no-cache", r.Header.Get("Cache-Control"))
		_, _ = w.Write([]byte(`[{"id":1,"name":"Red Bull","price":120,"category":"energy","tags":["classic"]}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, time.Second)
	products, err := client.GetProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, models.ID("1"), products[0].ID)
	assert.Equal(t, int64(120), products[0].Price)
}

func TestGetServicesErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"sheet not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetServices(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.CodeDataFormat, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "sheet not found")
}

func TestGetProductsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetProducts(context.Background())
	assert.Equal(t, errs.CodeNetwork, errs.CodeOf(err))
}

func TestGetProductsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>login</html>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetProducts(context.Background())
	assert.Equal(t, errs.CodeDataFormat, errs.CodeOf(err))
}

func TestTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 50*time.Millisecond).GetProducts(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.CodeNetwork, errs.CodeOf(err))
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, ActionCreateOrder, r.URL.Query().Get("action"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var draft models.OrderDraft
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, int64(225), draft.TotalAmount)
		assert.Equal(t, models.DeliveryZoneA, draft.DeliveryOption)

		_, _ = w.Write([]byte(`{"success":true,"orderId":1042}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, time.Second).CreateOrder(context.Background(), &models.OrderDraft{
		TotalAmount:    225,
		DeliveryOption: models.DeliveryZoneA,
	})
	require.NoError(t, err)
	assert.Equal(t, "1042", id)
}

func TestCreateOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"sheet locked"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).CreateOrder(context.Background(), &models.OrderDraft{})
	require.Error(t, err)
	assert.Equal(t, errs.CodeNetwork, errs.CodeOf(err))
	assert.Contains(t, err.Error(), "sheet locked")
}

func TestPingKeepsExistingQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("key"))
		assert.Equal(t, ActionTest, r.URL.Query().Get("action"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL+"?key=abc", time.Second).Ping(context.Background()))
}
