package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/supplier-orders/internal/domain/auth"
	"github.com/xenking/supplier-orders/internal/domain/draft"
	"github.com/xenking/supplier-orders/internal/domain/order"
	"github.com/xenking/supplier-orders/internal/domain/product"
	"github.com/xenking/supplier-orders/internal/storage/memory"
)

var testPepper = []byte("test-pepper")

// --- Test doubles ---

type keyRepo map[string]*auth.APIKeyInfo

func (m keyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

func (m keyRepo) add(key, partyID string, role auth.Role) {
	hash := auth.HashKey(testPepper, key)
	m[hash] = &auth.APIKeyInfo{ID: key, KeyHash: hash, PartyID: partyID, Role: role}
}

type nopNotifier struct{}

func (nopNotifier) Notify(order.Event) {}

// --- Helpers ---

type apiFixture struct {
	store  *memory.Store
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store := memory.New()
	store.PutProduct(product.Product{
		ID: "p1", SupplierID: "s1", Name: "Flour",
		UnitPrice: decimal.RequireFromString("2.50"), MinQuantity: 1, Stock: 10,
	})
	store.PutProduct(product.Product{
		ID: "p2", SupplierID: "s1", Name: "Sugar",
		UnitPrice: decimal.RequireFromString("1.00"), MinQuantity: 5, Stock: 100,
	})
	store.PutProduct(product.Product{
		ID: "q1", SupplierID: "s2", Name: "Salt",
		UnitPrice: decimal.RequireFromString("0.40"), MinQuantity: 1, Stock: 50,
	})
	store.PutContact(order.Contact{
		PartyID: "b1", CompanyName: "Corner Shop", ContactName: "Ana", Phone: "555-0101",
		OpeningTime: "08:00", ClosingTime: "20:00",
	})
	store.PutContact(order.Contact{
		PartyID: "s1", CompanyName: "Mill Co", ContactName: "Ben", Phone: "555-0202",
	})
	store.ApproveLink("b1", "s1")
	store.ApproveLink("b2", "s1")

	keys := keyRepo{}
	keys.add("buyer-key", "b1", auth.RoleBuyer)
	keys.add("buyer2-key", "b2", auth.RoleBuyer)
	keys.add("supplier-key", "s1", auth.RoleSupplier)
	keys.add("supplier2-key", "s2", auth.RoleSupplier)

	drafts := draft.NewService(memory.NewDraftStore(0))
	orders := order.NewService(store, store, store, drafts, nopNotifier{})
	h := NewHandler(drafts, orders, store, store)

	return &apiFixture{
		store:  store,
		router: NewRouter(h, NewSecurityHandler(keys, testPepper)),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	d := json.NewDecoder(bytes.NewReader(rec.Body.Bytes()))
	d.UseNumber()
	require.NoError(t, d.Decode(v), rec.Body.String())
}

func (f *apiFixture) placeOrder(t *testing.T, key, body string) map[string]any {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/orders", key, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var o map[string]any
	decodeBody(t, rec, &o)
	return o
}

// --- Tests ---

func TestAuthenticate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/orders", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer buyer-key")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRole(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/api/drafts/s1", "supplier-key", `{"items":[]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/x/confirm", "buyer-key", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, json.Number("404"), body["code"])
}

func TestDraftLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/api/drafts/s1", "buyer-key",
		`{"items":[{"productId":"p1","quantity":"3"},{"productId":"p2","quantity":"abc"},`+
			`{"productId":"p3","quantity":-1},{"productId":"p4","quantity":2},{"productId":"p5","quantity":1.5}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/drafts/s1", "buyer-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d struct {
		SupplierID string `json:"supplierId"`
		Items      []struct {
			ProductID string      `json:"productId"`
			Quantity  json.Number `json:"quantity"`
		} `json:"items"`
	}
	decodeBody(t, rec, &d)
	assert.Equal(t, "s1", d.SupplierID)
	require.Len(t, d.Items, 2)
	assert.Equal(t, "p1", d.Items[0].ProductID)
	assert.Equal(t, json.Number("3"), d.Items[0].Quantity)
	assert.Equal(t, "p4", d.Items[1].ProductID)

	rec = f.do(t, http.MethodGet, "/api/drafts", "buyer-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	decodeBody(t, rec, &list)
	assert.Len(t, list, 1)

	// Other buyers do not see it.
	rec = f.do(t, http.MethodGet, "/api/drafts/s1", "buyer2-key", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/drafts/s1", "buyer-key", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/drafts/s1", "buyer-key", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveDraft_Rejected(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/api/drafts/s2", "buyer-key", `{"items":[{"productId":"q1","quantity":1}]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/drafts/s1", "buyer-key", `{"items":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceOrder(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/api/drafts/s1", "buyer-key", `{"items":[{"productId":"p1","quantity":4}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	o := f.placeOrder(t, "buyer-key",
		`{"supplierId":"s1","items":[{"productId":"p1","quantity":4},{"productId":"p2","quantity":5},{"productId":"p1","quantity":0}]}`)
	assert.Equal(t, "PLACED", o["status"])
	assert.Equal(t, "b1", o["buyerId"])
	assert.Equal(t, json.Number("15.00"), o["total"])
	assert.Len(t, o["items"], 2)

	// Stock moves only on confirmation.
	assert.Equal(t, 10, f.store.Stock("p1"))

	rec = f.do(t, http.MethodGet, "/api/drafts/s1", "buyer-key", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrder_Errors(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing supplier", `{"items":[{"productId":"p1","quantity":1}]}`, http.StatusBadRequest},
		{"malformed", `{"supplierId":`, http.StatusBadRequest},
		{"no positive lines", `{"supplierId":"s1","items":[{"productId":"p1","quantity":0}]}`, http.StatusBadRequest},
		{"no link", `{"supplierId":"s2","items":[{"productId":"q1","quantity":1}]}`, http.StatusForbidden},
		{"empty without link", `{"supplierId":"s2","items":[]}`, http.StatusBadRequest},
		{"zero lines without link", `{"supplierId":"s2","items":[{"productId":"q1","quantity":0}]}`, http.StatusBadRequest},
		{"repeated lines overflow", `{"supplierId":"s1","items":[{"productId":"p1","quantity":9223372036854775807},{"productId":"p1","quantity":9223372036854775807}]}`, http.StatusUnprocessableEntity},
		{"above line limit", `{"supplierId":"s1","items":[{"productId":"p1","quantity":2147483648}]}`, http.StatusUnprocessableEntity},
		{"below minimum", `{"supplierId":"s1","items":[{"productId":"p2","quantity":4}]}`, http.StatusUnprocessableEntity},
		{"above stock", `{"supplierId":"s1","items":[{"productId":"p1","quantity":11}]}`, http.StatusUnprocessableEntity},
		{"unknown product", `{"supplierId":"s1","items":[{"productId":"zz","quantity":1}]}`, http.StatusUnprocessableEntity},
		{"other supplier product", `{"supplierId":"s1","items":[{"productId":"q1","quantity":1}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/orders", "buyer-key", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestConfirmAndComplete(t *testing.T) {
	f := newAPIFixture(t)
	o := f.placeOrder(t, "buyer-key", `{"supplierId":"s1","items":[{"productId":"p1","quantity":8}]}`)
	id := o["id"].(string)

	// Parties other than the order's supplier cannot see it.
	rec := f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", "supplier2-key", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/"+id+"/complete", "buyer-key", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", "supplier-key", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var confirmed map[string]any
	decodeBody(t, rec, &confirmed)
	assert.Equal(t, "CONFIRMED", confirmed["status"])
	assert.Equal(t, 2, f.store.Stock("p1"))

	rec = f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", "supplier-key", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, f.store.Stock("p1"))

	rec = f.do(t, http.MethodPost, "/api/orders/"+id+"/complete", "buyer2-key", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/"+id+"/complete", "buyer-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var completed map[string]any
	decodeBody(t, rec, &completed)
	assert.Equal(t, "COMPLETED", completed["status"])
	assert.Equal(t, 2, f.store.Stock("p1"))
}

func TestConfirm_Shortfall(t *testing.T) {
	f := newAPIFixture(t)
	first := f.placeOrder(t, "buyer-key", `{"supplierId":"s1","items":[{"productId":"p1","quantity":8}]}`)
	second := f.placeOrder(t, "buyer2-key",
		`{"supplierId":"s1","items":[{"productId":"p1","quantity":5},{"productId":"p2","quantity":10}]}`)

	rec := f.do(t, http.MethodPost, "/api/orders/"+first["id"].(string)+"/confirm", "supplier-key", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/orders/"+second["id"].(string)+"/confirm", "supplier-key", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var body struct {
		Shortfalls []struct {
			ProductID string      `json:"productId"`
			Requested json.Number `json:"requested"`
			Available json.Number `json:"available"`
			Missing   json.Number `json:"missing"`
		} `json:"shortfalls"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Shortfalls, 1)
	assert.Equal(t, "p1", body.Shortfalls[0].ProductID)
	assert.Equal(t, json.Number("5"), body.Shortfalls[0].Requested)
	assert.Equal(t, json.Number("2"), body.Shortfalls[0].Available)
	assert.Equal(t, json.Number("3"), body.Shortfalls[0].Missing)

	// Nothing of the rejected order was applied.
	assert.Equal(t, 2, f.store.Stock("p1"))
	assert.Equal(t, 100, f.store.Stock("p2"))

	rec = f.do(t, http.MethodGet, "/api/orders/"+second["id"].(string), "buyer2-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var o map[string]any
	decodeBody(t, rec, &o)
	assert.Equal(t, "PLACED", o["status"])
}

func TestListOrders(t *testing.T) {
	f := newAPIFixture(t)
	f.placeOrder(t, "buyer-key", `{"supplierId":"s1","items":[{"productId":"p1","quantity":1}]}`)
	f.placeOrder(t, "buyer2-key", `{"supplierId":"s1","items":[{"productId":"p1","quantity":1}]}`)

	type view struct {
		ID           string         `json:"id"`
		BuyerID      string         `json:"buyerId"`
		Counterparty map[string]any `json:"counterparty"`
	}

	rec := f.do(t, http.MethodGet, "/api/orders", "buyer-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var buyerViews []view
	decodeBody(t, rec, &buyerViews)
	require.Len(t, buyerViews, 1)
	assert.Equal(t, "Mill Co", buyerViews[0].Counterparty["companyName"])
	assert.NotContains(t, buyerViews[0].Counterparty, "openingTime")

	rec = f.do(t, http.MethodGet, "/api/orders", "supplier-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var supplierViews []view
	decodeBody(t, rec, &supplierViews)
	require.Len(t, supplierViews, 2)
	for _, v := range supplierViews {
		if v.BuyerID == "b1" {
			assert.Equal(t, "Corner Shop", v.Counterparty["companyName"])
			assert.Equal(t, "08:00", v.Counterparty["openingTime"])
			assert.Equal(t, "20:00", v.Counterparty["closingTime"])
		}
	}

	rec = f.do(t, http.MethodGet, "/api/orders", "supplier2-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var none []view
	decodeBody(t, rec, &none)
	assert.Empty(t, none)
}

func TestGetOrder_Visibility(t *testing.T) {
	f := newAPIFixture(t)
	o := f.placeOrder(t, "buyer-key", `{"supplierId":"s1","items":[{"productId":"p1","quantity":1}]}`)
	path := "/api/orders/" + o["id"].(string)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, "buyer-key", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, path, "supplier-key", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, "buyer2-key", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, "supplier2-key", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/orders/missing", "buyer-key", "").Code)
}

func TestListSupplierProducts(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/suppliers/s1/products", "buyer-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var products []struct {
		ID          string      `json:"id"`
		UnitPrice   json.Number `json:"unitPrice"`
		MinQuantity json.Number `json:"minQuantity"`
	}
	decodeBody(t, rec, &products)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, json.Number("2.50"), products[0].UnitPrice)
	assert.Equal(t, json.Number("5"), products[1].MinQuantity)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/suppliers/s2/products", "buyer-key", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/suppliers/s1/products", "supplier-key", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/api/suppliers/s1/products", "supplier2-key", "").Code)
}
