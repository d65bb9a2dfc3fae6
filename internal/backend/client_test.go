package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/ir"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]any
}

// newTestServer serves fixed responses keyed by "METHOD /path" and records requests.
func newTestServer(t *testing.T, routes map[string]func(w http.ResponseWriter)) (*Client, *[]recorded) {
	t.Helper()
	var reqs []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.Body))
		}
		reqs = append(reqs, rec)

		h, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w)
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api/"), &reqs
}

func jsonResponse(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://example.test/api/")
	assert.Equal(t, "http://example.test/api", c.BaseURL())
}

func TestNew_Options(t *testing.T) {
	hc := &http.Client{}
	c := New("http://x", WithHTTPClient(hc), WithTimeout(3*time.Second))
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, 3*time.Second, hc.Timeout)
}

func TestFetchMenu(t *testing.T) {
	c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
		"GET /api/menu/": jsonResponse(200, `[
			{"id": 1, "name": "Paneer Tikka", "price": "706.00", "category": "starters"},
			{"id": "m2", "name": "Lassi", "price": 80.5}
		]`),
	})

	menu, err := c.FetchMenu(context.Background())
	require.NoError(t, err)
	require.Len(t, menu, 2)
	assert.Equal(t, ir.MenuItem{ID: "1", Name: "Paneer Tikka", Price: 706, Category: "starters"}, menu[0])
	assert.Equal(t, "m2", menu[1].ID)
	assert.InDelta(t, 80.5, menu[1].Price, 1e-9)

	require.Len(t, *reqs, 1)
	assert.Empty(t, (*reqs)[0].Auth, "menu is public")
}

func TestListOrders_SendsBearer(t *testing.T) {
	c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
		"GET /api/orders/": jsonResponse(200, `[
			{"id": "o1", "items": [{"id": "m1", "name": "A", "price": 706, "qty": 2}],
			 "total": "1412.00", "status": "pending", "customer": {"phone": "9998887776"},
			 "table_no": "T4", "createdAt": 1700000000000},
			{"id": 7, "items": [], "total": 0, "status": "paid", "table_no": null}
		]`),
	})

	orders, err := c.ListOrders(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "o1", orders[0].ID)
	assert.InDelta(t, 1412, orders[0].Total, 1e-9)
	assert.Equal(t, ir.StatusPending, orders[0].Status)
	require.NotNil(t, orders[0].TableNo)
	assert.Equal(t, "T4", *orders[0].TableNo)
	assert.Equal(t, 2, orders[0].Items[0].Qty)
	assert.Equal(t, int64(1700000000000), orders[0].CreatedAt)

	assert.Equal(t, "7", orders[1].ID)
	assert.True(t, orders[1].IsParcel())

	assert.Equal(t, "Bearer tok", (*reqs)[0].Auth)
}

func TestCurrentOrders_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		ids  []string
	}{
		{"single order", `{"id": "o1", "items": [], "total": 10, "status": "pending"}`, []string{"o1"}},
		{"all_orders", `{"all_orders": [{"id": "o1", "status": "paid"}, {"id": "o2", "status": "pending"}]}`, []string{"o1", "o2"}},
		{"list", `[{"id": "o3", "status": "pending"}]`, []string{"o3"}},
		{"empty object", `{}`, nil},
		{"message only", `{"message": "no active order"}`, nil},
		{"empty body", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
				"GET /api/orders/current/": jsonResponse(200, tt.body),
			})

			orders, err := c.CurrentOrders(context.Background(), "tok", "+919998887776", true)
			require.NoError(t, err)
			require.NotNil(t, orders)

			var ids []string
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.ids, ids)

			assert.Equal(t, "include_paid=true&phone=%2B919998887776", (*reqs)[0].Query)
		})
	}
}

func TestCreateOrder(t *testing.T) {
	c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
		"POST /api/orders/": jsonResponse(201, `{"id": "srv-1", "items": [{"id": "m1", "name": "A", "price": 706, "qty": 2}], "total": 1412, "status": "pending", "table_no": "T4"}`),
	})

	order := ir.Order{
		ID:       "local-1",
		Items:    []ir.CartItem{{ID: "m1", Name: "A", Price: 706, Qty: 2}},
		Total:    1412,
		Status:   ir.StatusPending,
		Customer: ir.Customer{Phone: "9998887776"},
		TableNo:  ir.StringPtr("T4"),
	}
	created, err := c.CreateOrder(context.Background(), "tok", order)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", created.ID)
	assert.InDelta(t, 1412, created.Total, 1e-9)

	body := (*reqs)[0].Body
	assert.Equal(t, "local-1", body["id"])
	assert.Equal(t, "T4", body["table_no"])
	assert.EqualValues(t, 1412, body["total"])
	assert.Equal(t, "Bearer tok", (*reqs)[0].Auth)
}

func TestCreateOrder_EmptyResponseReturnsSubmitted(t *testing.T) {
	c, _ := newTestServer(t, map[string]func(http.ResponseWriter){
		"POST /api/orders/": jsonResponse(201, ``),
	})

	order := ir.Order{ID: "local-1", Items: []ir.CartItem{{ID: "m1", Price: 1, Qty: 1}}, Total: 1, Status: ir.StatusPending}
	created, err := c.CreateOrder(context.Background(), "tok", order)
	require.NoError(t, err)
	assert.Equal(t, order, created)
}

func TestPatchOrder(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
			"PATCH /api/orders/o1/": jsonResponse(200, `{"id": "o1", "status": "preparing"}`),
		})
		updated, err := c.PatchOrder(context.Background(), "tok", "o1", StatusPatch(ir.StatusPreparing))
		require.NoError(t, err)
		assert.Equal(t, ir.StatusPreparing, updated.Status)
		assert.Equal(t, map[string]any{"status": "preparing"}, (*reqs)[0].Body)
	})

	t.Run("table to parcel", func(t *testing.T) {
		c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
			"PATCH /api/orders/o1/": jsonResponse(204, ``),
		})
		updated, err := c.PatchOrder(context.Background(), "tok", "o1", TablePatch(nil))
		require.NoError(t, err)
		assert.Equal(t, "o1", updated.ID)
		assert.Equal(t, map[string]any{"table_no": nil}, (*reqs)[0].Body)
	})

	t.Run("items", func(t *testing.T) {
		c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
			"PATCH /api/orders/o1/": jsonResponse(200, `{"id": "o1"}`),
		})
		_, err := c.PatchOrder(context.Background(), "tok", "o1", ItemsPatch(nil))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"items": []any{}}, (*reqs)[0].Body)
	})
}

func TestAuthEndpoints(t *testing.T) {
	c, reqs := newTestServer(t, map[string]func(http.ResponseWriter){
		"POST /api/auth/customer/register/": jsonResponse(200, `{"message": "otp sent"}`),
		"POST /api/auth/customer/verify/":   jsonResponse(200, `{"token": "cust-token"}`),
		"POST /api/auth/staff/login/":       jsonResponse(200, `{"token": "staff-token", "role": "chef"}`),
	})
	ctx := context.Background()

	require.NoError(t, c.RegisterCustomer(ctx, "9998887776", "a@b.test"))
	assert.Equal(t, map[string]any{"phone": "9998887776", "email": "a@b.test"}, (*reqs)[0].Body)

	token, err := c.VerifyCustomer(ctx, "123456", "a@b.test")
	require.NoError(t, err)
	assert.Equal(t, "cust-token", token)
	assert.Equal(t, map[string]any{"otp": "123456", "email": "a@b.test"}, (*reqs)[1].Body)

	token, err = c.StaffLogin(ctx, "chef", "pw")
	require.NoError(t, err)
	assert.Equal(t, "staff-token", token)

	for _, r := range *reqs {
		assert.Empty(t, r.Auth, "auth endpoints carry no bearer token")
	}
}

func TestVerifyCustomer_NoToken(t *testing.T) {
	c, _ := newTestServer(t, map[string]func(http.ResponseWriter){
		"POST /api/auth/customer/verify/": jsonResponse(200, `{}`),
	})
	_, err := c.VerifyCustomer(context.Background(), "1", "a@b.test")
	require.Error(t, err)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		unauthorized bool
		conflict     bool
		message      string
	}{
		{"401", 401, `{"detail": "Token expired"}`, true, false, "Token expired"},
		{"403", 403, ``, true, false, ""},
		{"409", 409, `{"error": "order already preparing"}`, false, true, "order already preparing"},
		{"400 message", 400, `{"message": "table_no required"}`, false, false, "table_no required"},
		{"400 field errors", 400, `{"items": ["This field is required."]}`, false, false, ""},
		{"500 html", 500, `<html>oops</html>`, false, false, ""},
		{"502 text", 502, `bad gateway`, false, false, "bad gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, map[string]func(http.ResponseWriter){
				"GET /api/orders/": jsonResponse(tt.status, tt.body),
			})

			_, err := c.ListOrders(context.Background(), "tok")
			require.Error(t, err)

			var be *Error
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.status, be.StatusCode)
			assert.Equal(t, "/orders/", be.Path)
			assert.Equal(t, tt.message, be.Message)
			assert.Equal(t, tt.unauthorized, IsUnauthorized(err))
			assert.Equal(t, tt.conflict, IsConflict(err))
			assert.Equal(t, tt.status < 500, IsClientError(err))
		})
	}
}

func TestExtractMessage_Truncates(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, extractMessage(long), maxMessageLen)
}

func TestExtractMessage_TruncatesOnRuneBoundary(t *testing.T) {
	// 'x' then three-byte runes: byte 200 falls inside a rune.
	body := "x" + strings.Repeat("₹", 100)
	msg := extractMessage([]byte(body))

	assert.True(t, utf8.ValidString(msg), "truncated message is valid UTF-8")
	assert.LessOrEqual(t, len(msg), maxMessageLen)
	assert.Equal(t, "x"+strings.Repeat("₹", 66), msg)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url).FetchMenu(context.Background())
	require.Error(t, err)

	var be *Error
	assert.False(t, IsClientError(err))
	assert.NotErrorAs(t, err, &be)
}

func TestContextCanceled(t *testing.T) {
	c, _ := newTestServer(t, map[string]func(http.ResponseWriter){
		"GET /api/menu/": jsonResponse(200, `[]`),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchMenu(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOrderPatch_Empty(t *testing.T) {
	_, err := json.Marshal(OrderPatch{})
	require.Error(t, err)
	assert.Equal(t, "status", StatusPatch(ir.StatusPaid).Field())
}
