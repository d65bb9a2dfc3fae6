package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/roach88/tableside/internal/ir"
)

// LoginCustomer sets the customer session and refreshes the order cache.
//
// If a pending order was captured while the session was a guest, it is
// detached in the same state transition and replayed once; the replayed
// order is returned (nil if there was none or it could not be placed).
// Login itself succeeds whenever token is non-empty.
func (e *Engine) LoginCustomer(ctx context.Context, phone, email, token string) (*ir.Order, error) {
	phone = ir.NormalizePhone(phone)
	email = ir.NormalizeEmail(email)

	e.orderSeq.Next()
	prev, _, err := e.transact(ctx, func(State) ([]Action, error) {
		return []Action{LoginCustomer{Phone: phone, Email: email, Token: token}}, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("customer logged in", "phone", phone)

	var placed *ir.Order
	if prev.PendingOrder != nil {
		placed = e.replayPending(ctx, *prev.PendingOrder)
	}

	if err := e.FetchOrders(ctx); err != nil {
		slog.Debug("order refresh after login failed", "error", err)
	}
	return placed, nil
}

// LoginStaff sets a chef or admin session and refreshes the order cache.
func (e *Engine) LoginStaff(ctx context.Context, role ir.Role, token string) error {
	e.orderSeq.Next()
	if _, err := e.dispatch(ctx, LoginStaff{Role: role, Token: token}); err != nil {
		return err
	}
	slog.Info("staff logged in", "role", role)

	if err := e.FetchOrders(ctx); err != nil {
		slog.Debug("order refresh after login failed", "error", err)
	}
	return nil
}

// Logout resets the session to guest. The cart is kept; the table,
// the pending order, and the order cache are cleared. Fetches still in
// flight are discarded when they return.
func (e *Engine) Logout(ctx context.Context) error {
	e.orderSeq.Next()
	if _, err := e.dispatch(ctx, Logout{}); err != nil {
		return err
	}
	slog.Info("logged out")
	return nil
}

// RequestOTP asks the backend to send a one-time code to the customer.
func (e *Engine) RequestOTP(ctx context.Context, phone, email string) error {
	phone = ir.NormalizePhone(phone)
	email = ir.NormalizeEmail(email)
	if phone == "" || email == "" {
		return &Error{Code: ErrCodeValidation, Message: "phone and email are required"}
	}

	if err := e.client.RegisterCustomer(ctx, phone, email); err != nil {
		return e.failSignIn(ctx, "request otp", err)
	}
	slog.Info("otp requested", "phone", phone)
	return nil
}

// VerifyOTP exchanges the code for a token and logs the customer in,
// replaying any pending order exactly once. See LoginCustomer.
func (e *Engine) VerifyOTP(ctx context.Context, phone, email, otp string) (*ir.Order, error) {
	email = ir.NormalizeEmail(email)
	otp = ir.NormalizeIdentifier(otp)

	token, err := e.client.VerifyCustomer(ctx, otp, email)
	if err != nil {
		return nil, e.failSignIn(ctx, "verify otp", err)
	}
	return e.LoginCustomer(ctx, phone, email, token)
}

// StaffLogin authenticates staff credentials and logs in under role.
func (e *Engine) StaffLogin(ctx context.Context, role ir.Role, username, password string) error {
	if !role.IsStaff() {
		return newRoleError("staff login", role, "chef or admin")
	}

	token, err := e.client.StaffLogin(ctx, ir.NormalizeIdentifier(username), password)
	if err != nil {
		return e.failSignIn(ctx, "staff login", err)
	}
	return e.LoginStaff(ctx, role, token)
}

// tokenExpired reports whether token is a JWT whose exp claim is before now.
// Opaque tokens and JWTs without exp are never considered expired here;
// the backend's 401 remains the authority.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
