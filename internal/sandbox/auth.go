package sandbox

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/tableside/internal/ir"
)

// Claims are carried by sandbox tokens.
type Claims struct {
	Role       ir.Role `json:"role"`
	Phone      string  `json:"phone,omitempty"`
	Email      string  `json:"email,omitempty"`
	Generation int64   `json:"gen"`
	jwt.RegisteredClaims
}

type contextKey string

const claimsContextKey contextKey = "claims"

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsContextKey).(*Claims)
	return c
}

// IssueToken signs a token for role. Exported so tests can log in staff
// or customers without going through the auth endpoints.
func (s *Server) IssueToken(role ir.Role, phone, email string) (string, error) {
	s.mu.Lock()
	gen := s.generation
	now := s.now()
	ttl := s.tokenTTL
	s.mu.Unlock()

	claims := Claims{
		Role:       role,
		Phone:      phone,
		Email:      email,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(role) + ":" + phone + email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) verifyToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	if claims.Generation < gen {
		return nil, errors.New("token revoked")
	}
	if !ir.ValidRoles[claims.Role] || claims.Role == ir.RoleGuest {
		return nil, errors.New("token carries no usable role")
	}
	return claims, nil
}

func parseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.verifyToken(parseBearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired token.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsContextKey, claims)))
	})
}
