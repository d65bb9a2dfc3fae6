package sandbox

import (
	"net/http"
	"strings"
)

type failure struct {
	method  string
	path    string
	status  int
	message string
}

// FailNext makes the next request matching method and path (relative to
// /api, e.g. "/orders/") fail with status. An empty message sends no body.
// Calls queue: each injected failure is consumed by one matching request.
func (s *Server) FailNext(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure{method: method, path: path, status: status, message: message})
}

// takeFailure removes and returns the first failure matching the request.
func (s *Server) takeFailure(method, path string) (failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.failures {
		if f.method == method && f.path == path {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
			return f, true
		}
	}
	return failure{}, false
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if f, ok := s.takeFailure(r.Method, path); ok {
			if f.message == "" {
				w.WriteHeader(f.status)
				return
			}
			writeDetail(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}
