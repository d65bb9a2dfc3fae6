package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/views"
)

// Payloads printed by commands. Each renders as JSON data in json mode and
// through String in text mode.

type menuList []ir.MenuItem

func (m menuList) String() string {
	if len(m) == 0 {
		return "Menu is empty."
	}
	var b strings.Builder
	for _, it := range m {
		fmt.Fprintf(&b, "%-8s %-28s %10s", it.ID, it.Name, money(it.Price))
		if it.Category != "" {
			fmt.Fprintf(&b, "  [%s]", it.Category)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

type cartView struct {
	Table string        `json:"table,omitempty"`
	Items []ir.CartItem `json:"items"`
	Total float64       `json:"total"`
}

func newCartView(st engine.State) cartView {
	items := st.Cart
	if items == nil {
		items = []ir.CartItem{}
	}
	return cartView{Table: st.Table(), Items: items, Total: st.CartTotal()}
}

func (c cartView) String() string {
	var b strings.Builder
	table := c.Table
	if table == "" {
		table = "(none)"
	}
	fmt.Fprintf(&b, "Table: %s\n", table)
	if len(c.Items) == 0 {
		b.WriteString("Cart is empty.")
		return b.String()
	}
	writeItems(&b, c.Items)
	fmt.Fprintf(&b, "Total: %s", money(c.Total))
	return b.String()
}

type orderView ir.Order

func (o orderView) String() string {
	var b strings.Builder
	where := "parcel"
	if o.TableNo != nil && *o.TableNo != "" {
		where = "table " + *o.TableNo
	}
	fmt.Fprintf(&b, "Order %s  %s  %s  %s\n", o.ID, o.Status, where, time.UnixMilli(o.CreatedAt).UTC().Format(time.RFC3339))
	writeItems(&b, o.Items)
	fmt.Fprintf(&b, "Total: %s", money(o.Total))
	return b.String()
}

type orderList struct {
	View    views.View    `json:"view"`
	Orders  []ir.Order    `json:"orders"`
	Summary views.Summary `json:"summary"`
}

func newOrderList(v views.View, orders []ir.Order) orderList {
	if orders == nil {
		orders = []ir.Order{}
	}
	return orderList{View: v, Orders: orders, Summary: views.Summarize(orders)}
}

func (l orderList) String() string {
	if len(l.Orders) == 0 {
		return fmt.Sprintf("No orders in %s view.", l.View)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d pending, %d preparing, %d completed, %d paid\n",
		l.View, l.Summary.Pending, l.Summary.Preparing, l.Summary.Completed, l.Summary.Paid)
	for i, o := range l.Orders {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(orderView(o).String())
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

type sessionView struct {
	Role  ir.Role `json:"role"`
	Phone string  `json:"phone,omitempty"`
	Email string  `json:"email,omitempty"`
}

func newSessionView(s ir.Session) sessionView {
	return sessionView{Role: s.Role, Phone: s.Phone, Email: s.Email}
}

func (s sessionView) String() string {
	if s.Phone != "" {
		return fmt.Sprintf("Logged in as %s (%s).", s.Role, s.Phone)
	}
	return fmt.Sprintf("Logged in as %s.", s.Role)
}

type message string

func (m message) String() string { return string(m) }

func writeItems(b *strings.Builder, items []ir.CartItem) {
	for _, it := range items {
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Qty)))
		fmt.Fprintf(b, "  %-8s %-24s x%-3d %10s\n", it.ID, it.Name, it.Qty, line.StringFixed(2))
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// parseItemSpec parses "id" or "id=qty".
func parseItemSpec(spec string) (string, int, error) {
	id, qtyText, found := strings.Cut(spec, "=")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", 0, fmt.Errorf("invalid item %q: missing id", spec)
	}
	if !found {
		return id, 1, nil
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyText))
	if err != nil || qty < 1 {
		return "", 0, fmt.Errorf("invalid item %q: quantity must be a positive integer", spec)
	}
	return id, qty, nil
}

// resolveItems turns item specs into order lines priced from the menu.
func resolveItems(menu []ir.MenuItem, specs []string) ([]ir.CartItem, error) {
	byID := make(map[string]ir.MenuItem, len(menu))
	for _, m := range menu {
		byID[m.ID] = m
	}
	items := make([]ir.CartItem, 0, len(specs))
	for _, spec := range specs {
		id, qty, err := parseItemSpec(spec)
		if err != nil {
			return nil, err
		}
		m, ok := byID[ir.NormalizeIdentifier(id)]
		if !ok {
			return nil, fmt.Errorf("item %q is not on the menu", id)
		}
		items = append(items, ir.CartItem{ID: m.ID, Name: m.Name, Price: m.Price, Qty: qty})
	}
	return items, nil
}
