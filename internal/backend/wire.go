package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/roach88/tableside/internal/ir"
)

// flexID accepts ids sent either as JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexID(n.String())
	return nil
}

// flexAmount accepts money sent as a JSON number or a decimal string ("706.00").
type flexAmount float64

func (f *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("amount %q: %w", text, err)
	}
	*f = flexAmount(d.InexactFloat64())
	return nil
}

// flexInt accepts integers sent as numbers or numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return fmt.Errorf("integer %q: %w", text, err)
	}
	*f = flexInt(d.IntPart())
	return nil
}

type wireMenuItem struct {
	ID          flexID     `json:"id"`
	Name        string     `json:"name"`
	Price       flexAmount `json:"price"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Image       string     `json:"image"`
}

func (w wireMenuItem) toIR() ir.MenuItem {
	return ir.MenuItem{
		ID:          string(w.ID),
		Name:        w.Name,
		Price:       float64(w.Price),
		Description: w.Description,
		Category:    w.Category,
		Image:       w.Image,
	}
}

type wireItem struct {
	ID    flexID     `json:"id"`
	Name  string     `json:"name"`
	Price flexAmount `json:"price"`
	Qty   flexInt    `json:"qty"`
}

type wireOrder struct {
	ID        flexID      `json:"id"`
	Items     []wireItem  `json:"items"`
	Total     flexAmount  `json:"total"`
	Status    string      `json:"status"`
	Customer  ir.Customer `json:"customer"`
	TableNo   *flexID     `json:"table_no"`
	CreatedAt flexInt     `json:"createdAt"`
}

func (w wireOrder) toIR() ir.Order {
	items := make([]ir.CartItem, 0, len(w.Items))
	for _, it := range w.Items {
		items = append(items, ir.CartItem{
			ID:    string(it.ID),
			Name:  it.Name,
			Price: float64(it.Price),
			Qty:   int(it.Qty),
		})
	}
	var table *string
	if w.TableNo != nil && *w.TableNo != "" {
		t := string(*w.TableNo)
		table = &t
	}
	return ir.Order{
		ID:        string(w.ID),
		Items:     items,
		Total:     float64(w.Total),
		Status:    ir.Status(w.Status),
		Customer:  w.Customer,
		TableNo:   table,
		CreatedAt: int64(w.CreatedAt),
	}
}

func ordersToIR(ws []wireOrder) []ir.Order {
	out := make([]ir.Order, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toIR())
	}
	return out
}

// OrderPatch is a partial order update carrying exactly one field.
type OrderPatch struct {
	field string
	value any
}

// StatusPatch sets the order status.
func StatusPatch(s ir.Status) OrderPatch {
	return OrderPatch{field: "status", value: s}
}

// TablePatch moves the order to a table, or makes it a parcel when table is nil.
func TablePatch(table *string) OrderPatch {
	return OrderPatch{field: "table_no", value: table}
}

// ItemsPatch replaces the order's items.
func ItemsPatch(items []ir.CartItem) OrderPatch {
	if items == nil {
		items = []ir.CartItem{}
	}
	return OrderPatch{field: "items", value: items}
}

// Field returns the name of the field the patch sets.
func (p OrderPatch) Field() string {
	return p.field
}

// MarshalJSON encodes the patch as a single-field object.
func (p OrderPatch) MarshalJSON() ([]byte, error) {
	if p.field == "" {
		return nil, fmt.Errorf("empty order patch")
	}
	return json.Marshal(map[string]any{p.field: p.value})
}

// errorBody is the set of shapes the backend uses for error messages.
type errorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// maxMessageLen caps non-JSON error bodies surfaced to users.
const maxMessageLen = 200

func extractMessage(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			return eb.Detail
		case eb.Error != "":
			return eb.Error
		case eb.Message != "":
			return eb.Message
		}
		return ""
	}
	if body[0] == '{' || body[0] == '[' || body[0] == '<' {
		return ""
	}
	if len(body) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return string(body)
}
