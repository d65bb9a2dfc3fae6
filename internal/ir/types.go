package ir

// Role identifies who is driving the engine.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleCustomer Role = "customer"
	RoleChef     Role = "chef"
	RoleAdmin    Role = "admin"
)

// ValidRoles defines the allowed roles.
var ValidRoles = map[Role]bool{
	RoleGuest:    true,
	RoleCustomer: true,
	RoleChef:     true,
	RoleAdmin:    true,
}

// IsStaff reports whether the role works the kitchen or billing side.
func (r Role) IsStaff() bool {
	return r == RoleChef || r == RoleAdmin
}

// Session is the identity the engine acts under.
//
// INVARIANTS:
//   - Token is non-empty iff Role != RoleGuest
//   - Phone/Email are only set when Role == RoleCustomer
type Session struct {
	Role  Role   `json:"role"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
	Token string `json:"-"`
}

// GuestSession returns the default session used at first start and after logout.
func GuestSession() Session {
	return Session{Role: RoleGuest}
}

// Valid reports whether the session satisfies its invariants.
func (s Session) Valid() bool {
	if !ValidRoles[s.Role] {
		return false
	}
	if s.Role == RoleGuest {
		return s.Token == "" && s.Phone == "" && s.Email == ""
	}
	if s.Token == "" {
		return false
	}
	if s.Role != RoleCustomer && (s.Phone != "" || s.Email != "") {
		return false
	}
	return true
}

// MenuItem is an immutable catalog entry fetched from the backend.
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// CartItem is one line of a basket or an order, keyed by menu item id.
type CartItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

// Customer identifies who placed an order.
type Customer struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Order mirrors a backend order record.
//
// Total is fixed at creation and never recomputed locally.
// TableNo == nil marks a parcel (takeaway) order.
type Order struct {
	ID        string     `json:"id"`
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	Status    Status     `json:"status"`
	Customer  Customer   `json:"customer"`
	TableNo   *string    `json:"table_no"`
	CreatedAt int64      `json:"createdAt"`
}

// IsParcel reports whether the order has no table attached.
func (o Order) IsParcel() bool {
	return o.TableNo == nil || *o.TableNo == ""
}

// PendingOrder is a cart and table captured before authentication,
// replayed exactly once after OTP verification.
type PendingOrder struct {
	CaptureID string     `json:"capture_id"`
	Items     []CartItem `json:"items"`
	TableNo   *string    `json:"table_no"`
}

// CloneItems returns a copy of items safe to retain across state versions.
func CloneItems(items []CartItem) []CartItem {
	if items == nil {
		return nil
	}
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}

// CloneOrders returns a copy of orders, including item slices.
func CloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		o.Items = CloneItems(o.Items)
		if o.TableNo != nil {
			t := *o.TableNo
			o.TableNo = &t
		}
		out[i] = o
	}
	return out
}

// StringPtr returns a pointer to s, or nil if s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
