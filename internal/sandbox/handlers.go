package sandbox

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/tableside/internal/ir"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("sandbox: write response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) handleMenu(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	menu := append([]ir.MenuItem(nil), s.menu...)
	s.mu.Unlock()
	if menu == nil {
		menu = []ir.MenuItem{}
	}
	writeJSON(w, http.StatusOK, menu)
}

type registerRequest struct {
	Phone string `json:"phone"`
	Email string `json:"email"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	phone, email := ir.NormalizePhone(req.Phone), ir.NormalizeEmail(req.Email)
	if phone == "" || email == "" {
		writeDetail(w, http.StatusBadRequest, "Phone and email are required.")
		return
	}

	code := s.newOTP()
	s.mu.Lock()
	s.otps[email] = code
	s.customers[email] = phone
	s.mu.Unlock()
	slog.Info("sandbox: otp issued", "email", email, "otp", code)

	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP sent."})
}

type verifyRequest struct {
	OTP   string `json:"otp"`
	Email string `json:"email"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	email := ir.NormalizeEmail(req.Email)

	s.mu.Lock()
	code, ok := s.otps[email]
	phone := s.customers[email]
	if ok && code == req.OTP {
		delete(s.otps, email)
	}
	s.mu.Unlock()

	if !ok || code != req.OTP {
		writeDetail(w, http.StatusBadRequest, "Invalid OTP.")
		return
	}

	token, err := s.IssueToken(ir.RoleCustomer, phone, email)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Could not issue token.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type staffLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req staffLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	acct, ok := s.staff[req.Username]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeDetail(w, http.StatusBadRequest, "Invalid credentials.")
		return
	}

	token, err := s.IssueToken(acct.role, "", "")
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "Could not issue token.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "role": string(acct.role)})
}

// visibleOrders returns the orders the caller may see: staff see all,
// customers see their own.
func (s *Server) visibleOrders(c *Claims) []ir.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Role.IsStaff() {
		return ir.CloneOrders(s.orders)
	}
	out := []ir.Order{}
	for _, o := range s.orders {
		if o.Customer.Phone == c.Phone || (c.Email != "" && o.Customer.Email == c.Email) {
			out = append(out, ir.CloneOrders([]ir.Order{o})...)
		}
	}
	return out
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.visibleOrders(claimsFrom(r.Context())))
}

func (s *Server) handleCurrentOrders(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	phone := ir.NormalizePhone(r.URL.Query().Get("phone"))
	includePaid := r.URL.Query().Get("include_paid") == "true"

	if !c.Role.IsStaff() && phone != c.Phone {
		writeDetail(w, http.StatusForbidden, "You may only view your own orders.")
		return
	}

	var matched []ir.Order
	s.mu.Lock()
	for _, o := range s.orders {
		if o.Customer.Phone != phone {
			continue
		}
		if o.Status == ir.StatusPaid && !includePaid {
			continue
		}
		matched = append(matched, ir.CloneOrders([]ir.Order{o})...)
	}
	s.mu.Unlock()

	switch len(matched) {
	case 0:
		writeJSON(w, http.StatusOK, map[string]any{})
	case 1:
		writeJSON(w, http.StatusOK, matched[0])
	default:
		writeJSON(w, http.StatusOK, map[string]any{"all_orders": matched})
	}
}

// itemsProblem describes what is wrong with items, or returns "".
func itemsProblem(items []ir.CartItem) string {
	if len(items) == 0 {
		return "An order needs at least one item."
	}
	for _, it := range items {
		if it.ID == "" || it.Qty < 1 || it.Price < 0 {
			return fmt.Sprintf("Invalid item %q.", it.ID)
		}
	}
	return ""
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	if c.Role != ir.RoleCustomer && !c.Role.IsStaff() {
		writeDetail(w, http.StatusForbidden, "Not allowed to create orders.")
		return
	}

	var o ir.Order
	if err := decodeBody(r, &o); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if problem := itemsProblem(o.Items); problem != "" {
		writeDetail(w, http.StatusBadRequest, problem)
		return
	}
	if want := ir.OrderTotal(o.Items); o.Total != want {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Total %v does not match items (%v).", o.Total, want))
		return
	}
	if c.Role == ir.RoleCustomer {
		o.Customer = ir.Customer{Phone: c.Phone, Email: c.Email}
	}
	o.Status = ir.StatusPending
	if o.CreatedAt == 0 {
		o.CreatedAt = s.now().UnixMilli()
	}

	s.mu.Lock()
	if o.ID == "" || s.hasOrderLocked(o.ID) {
		o.ID = s.newID()
	}
	s.orders = append([]ir.Order{o}, s.orders...)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) hasOrderLocked(id string) bool {
	for _, o := range s.orders {
		if o.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) handlePatchOrder(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	var patch map[string]json.RawMessage
	if err := decodeBody(r, &patch); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(patch) != 1 {
		writeDetail(w, http.StatusBadRequest, "Send exactly one of status, table_no, items.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.orders {
		if s.orders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		writeDetail(w, http.StatusNotFound, "Order not found.")
		return
	}
	o := &s.orders[idx]

	switch {
	case patch["status"] != nil:
		var to ir.Status
		if err := json.Unmarshal(patch["status"], &to); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid status.")
			return
		}
		if !ir.CanSet(c.Role, to) {
			writeDetail(w, http.StatusForbidden, fmt.Sprintf("Role %s may not set status %s.", c.Role, to))
			return
		}
		if !ir.CanTransition(o.Status, to) {
			writeDetail(w, http.StatusConflict, fmt.Sprintf("Order is %s; cannot move to %s.", o.Status, to))
			return
		}
		o.Status = to

	case patch["table_no"] != nil:
		if c.Role != ir.RoleAdmin {
			writeDetail(w, http.StatusForbidden, "Only admins may move orders.")
			return
		}
		var table *string
		if err := json.Unmarshal(patch["table_no"], &table); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid table_no.")
			return
		}
		if table != nil {
			table = ir.StringPtr(*table)
		}
		o.TableNo = table

	case patch["items"] != nil:
		if c.Role != ir.RoleAdmin {
			writeDetail(w, http.StatusForbidden, "Only admins may edit items.")
			return
		}
		var items []ir.CartItem
		if err := json.Unmarshal(patch["items"], &items); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid items.")
			return
		}
		if problem := itemsProblem(items); problem != "" {
			writeDetail(w, http.StatusBadRequest, problem)
			return
		}
		o.Items = items
		o.Total = ir.OrderTotal(items)

	default:
		writeDetail(w, http.StatusBadRequest, "Send exactly one of status, table_no, items.")
		return
	}

	writeJSON(w, http.StatusOK, ir.CloneOrders([]ir.Order{*o})[0])
}
