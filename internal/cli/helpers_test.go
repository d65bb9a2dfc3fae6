package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/harness"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/sandbox"
)

const (
	testOTP   = "424242"
	testPhone = "9998887776"
	testEmail = "guest@example.com"
)

// cliEnv runs commands against a sandbox backend with a per-test state database.
type cliEnv struct {
	t      *testing.T
	sb     *sandbox.Server
	server *httptest.Server
	dir    string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()

	sb := sandbox.New(
		sandbox.WithMenu(harness.DefaultMenu()...),
		sandbox.WithStaff("chef", "chefpw", ir.RoleChef),
		sandbox.WithStaff("admin", "adminpw", ir.RoleAdmin),
		sandbox.WithOTPs(func() string { return testOTP }),
	)
	server := httptest.NewServer(sb.Handler())
	t.Cleanup(server.Close)

	t.Setenv("TABLESIDE_STATE_KEY", strings.Repeat("ab", 32))

	return &cliEnv{t: t, sb: sb, server: server, dir: t.TempDir()}
}

// run executes the root command with JSON output and returns stdout.
func (e *cliEnv) run(args ...string) (string, error) {
	return e.runFormat("json", args...)
}

func (e *cliEnv) runFormat(format string, args ...string) (string, error) {
	e.t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{
		"--format", format,
		"--api", e.server.URL + "/api",
		"--db", filepath.Join(e.dir, "state.db"),
		"--env-file", filepath.Join(e.dir, "missing.env"),
	}, args...))

	err := cmd.Execute()
	return buf.String(), err
}

// mustRun runs a command that must succeed and decodes its response.
func (e *cliEnv) mustRun(args ...string) cliResponse {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "output: %s", out)
	resp := decodeResponse(e.t, out)
	require.Equal(e.t, "ok", resp.Status, "output: %s", out)
	return resp
}

// mustFail runs a command that must be rejected with an engine error code.
func (e *cliEnv) mustFail(code engine.ErrorCode, args ...string) cliResponse {
	e.t.Helper()
	out, err := e.run(args...)
	require.Error(e.t, err, "output: %s", out)
	require.Equal(e.t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(e.t, out)
	require.Equal(e.t, "error", resp.Status)
	require.NotNil(e.t, resp.Error)
	require.Equal(e.t, string(code), resp.Error.Code, "message: %s", resp.Error.Message)
	return resp
}

func (e *cliEnv) loginStaff(role ir.Role) {
	e.t.Helper()
	cred := harness.DefaultStaff[role]
	e.mustRun("staff", "login", "--role", string(role), "--username", cred[0], "--password", cred[1])
}

func (e *cliEnv) seedOrder(id string, status ir.Status, table string) ir.Order {
	items := []ir.CartItem{{ID: "m2", Name: "Masala Dosa", Price: 150, Qty: 2}}
	o := ir.Order{
		ID:        id,
		Items:     items,
		Total:     ir.OrderTotal(items),
		Status:    status,
		Customer:  ir.Customer{Phone: "5550001111"},
		TableNo:   ir.StringPtr(table),
		CreatedAt: time.Now().UnixMilli(),
	}
	e.sb.AddOrder(o)
	return o
}

type cliResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   *CLIError       `json:"error"`
	Notices []engine.Notice `json:"notices"`
}

func decodeResponse(t *testing.T, out string) cliResponse {
	t.Helper()
	var resp cliResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func decodeData[T any](t *testing.T, resp cliResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v), "data: %s", resp.Data)
	return v
}

func noticeKinds(notices []engine.Notice) []engine.NoticeKind {
	kinds := make([]engine.NoticeKind, len(notices))
	for i, n := range notices {
		kinds[i] = n.Kind
	}
	return kinds
}

func orderIDs(orders []ir.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}
