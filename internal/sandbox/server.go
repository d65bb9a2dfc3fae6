package sandbox

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/roach88/tableside/internal/ir"
)

// DefaultTokenTTL is how long issued tokens stay valid.
const DefaultTokenTTL = 12 * time.Hour

type staffAccount struct {
	password string
	role     ir.Role
}

// Server is the in-memory backend.
//
// Thread-safety: all methods are safe for concurrent use.
type Server struct {
	mu sync.Mutex

	menu      []ir.MenuItem
	orders    []ir.Order // newest first
	staff     map[string]staffAccount
	otps      map[string]string // email -> code
	customers map[string]string // email -> phone
	failures  []failure
	hits      map[string]int

	secret     []byte
	generation int64
	tokenTTL   time.Duration
	now        func() time.Time
	newID      func() string
	newOTP     func() string
}

// Option configures a Server.
type Option func(*Server)

// WithMenu sets the catalog served by GET /menu/.
func WithMenu(items ...ir.MenuItem) Option {
	return func(s *Server) {
		s.menu = append([]ir.MenuItem(nil), items...)
	}
}

// WithStaff registers a chef or admin account.
func WithStaff(username, password string, role ir.Role) Option {
	return func(s *Server) {
		s.staff[username] = staffAccount{password: password, role: role}
	}
}

// WithSecret sets the HS256 signing key. Default: random per server.
func WithSecret(secret []byte) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = d
	}
}

// WithNow sets the server's wall clock.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithIDs sets the generator for server-assigned order ids.
func WithIDs(newID func() string) Option {
	return func(s *Server) {
		s.newID = newID
	}
}

// WithOTPs sets the generator for one-time codes.
func WithOTPs(newOTP func() string) Option {
	return func(s *Server) {
		s.newOTP = newOTP
	}
}

// New creates a sandbox server.
func New(opts ...Option) *Server {
	s := &Server{
		menu:      []ir.MenuItem{},
		orders:    []ir.Order{},
		staff:     make(map[string]staffAccount),
		otps:      make(map[string]string),
		customers: make(map[string]string),
		hits:      make(map[string]int),
		tokenTTL:  DefaultTokenTTL,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		newOTP:    randomOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			panic(fmt.Sprintf("sandbox: read random secret: %v", err))
		}
	}
	return s
}

// Handler returns the HTTP handler serving the API under /api.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countHits)
	r.Use(s.injectFailures)

	r.Route("/api", func(r chi.Router) {
		r.Get("/menu/", s.handleMenu)

		r.Post("/auth/customer/register/", s.handleRegister)
		r.Post("/auth/customer/verify/", s.handleVerify)
		r.Post("/auth/staff/login/", s.handleStaffLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/orders/", s.handleListOrders)
			r.Get("/orders/current/", s.handleCurrentOrders)
			r.Post("/orders/", s.handleCreateOrder)
			r.Patch("/orders/{id}/", s.handlePatchOrder)
		})
	})
	return r
}

// OTP returns the last code issued to email.
func (s *Server) OTP(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.otps[ir.NormalizeEmail(email)]
	return code, ok
}

// Orders returns a copy of every stored order, newest first.
func (s *Server) Orders() []ir.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ir.CloneOrders(s.orders)
}

// AddOrder stores an order directly, as if another client had placed it.
func (s *Server) AddOrder(o ir.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append([]ir.Order{ir.CloneOrders([]ir.Order{o})[0]}, s.orders...)
}

// SetStatus changes an order's status directly, bypassing permission and
// transition checks, as if another staff member had acted on it.
func (s *Server) SetStatus(id string, status ir.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].Status = status
			return true
		}
	}
	return false
}

// DeleteOrder removes an order, as an external admin operation would.
func (s *Server) DeleteOrder(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return true
		}
	}
	return false
}

// ExpireSessions invalidates every token issued so far.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// Hits returns how many requests reached "METHOD /api/path" (before failure injection).
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func randomOTP() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("sandbox: read random otp: %v", err))
	}
	n := (int(b[0])<<16 | int(b[1])<<8 | int(b[2])) % 1000000
	return fmt.Sprintf("%06d", n)
}
