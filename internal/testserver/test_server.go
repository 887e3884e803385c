// Package testserver runs a complete ledger node over an in-memory
// database for tests.
package testserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/cache"
	"github.com/rpggio/focusstake/internal/domain/activity"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/domain/program"
	"github.com/rpggio/focusstake/internal/mcp"
	"github.com/rpggio/focusstake/internal/runtime"
	"github.com/rpggio/focusstake/internal/sqlite"
	"github.com/rpggio/focusstake/internal/transport"
	"github.com/stretchr/testify/require"
)

// FaucetLimit is the largest airdrop the test node allows.
const FaucetLimit = 100 * ledger.BaseUnitsPerToken

type TestServer struct {
	Server  *httptest.Server
	DB      *sqlite.DB
	Runtime *runtime.Runtime
	Queries *runtime.Queries
	MCP     *sdkmcp.Server
	Token   string
	Program address.Address
}

// Options tune the node. The zero value is an unauthenticated node with
// the faucet enabled.
type Options struct {
	Token string
	Clock func() time.Time
}

func New(t *testing.T, opts Options) *TestServer {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())

	statuses := cache.NewStatuses(cache.NewMemory(time.Minute, 1000), sqlite.NewReceiptRepository(db), nil)
	cfg := runtime.Config{
		Program: address.DefaultProgram,
		Faucet:  runtime.FaucetConfig{Enabled: true, MaxAmount: FaucetLimit},
	}
	rt, err := runtime.New(cfg, db, program.NewService(program.Config{}, nil), statuses, nil)
	require.NoError(t, err)
	if opts.Clock != nil {
		rt.SetClock(opts.Clock)
	}

	queries := runtime.NewQueries(cfg.Program, sqlite.NewAccountRepository(db),
		activity.NewService(sqlite.NewActivityRepository(db), nil), statuses)

	methods := transport.NewMethods(rt, queries, nil)
	if opts.Clock != nil {
		methods.SetClock(opts.Clock)
	}
	tokens := transport.NewStaticTokens(map[string]string{"test": opts.Token})
	var auth func(http.Handler) http.Handler
	if opts.Token != "" {
		auth = transport.AuthMiddleware(tokens)
	}
	mcpServer := mcp.NewServer(mcp.Config{
		Reader:        queries,
		Submitter:     rt,
		Resolver:      tokens,
		AuthEnabled:   opts.Token != "",
		TransportMode: "http",
	})
	router := transport.NewServer(methods, auth, nil)
	router.Handle("/mcp", sdkmcp.NewStreamableHTTPHandler(
		func(*http.Request) *sdkmcp.Server { return mcpServer }, nil))
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		_ = db.Close()
	})

	return &TestServer{
		Server:  server,
		DB:      db,
		Runtime: rt,
		Queries: queries,
		MCP:     mcpServer,
		Token:   opts.Token,
		Program: cfg.Program,
	}
}

// MCPURL returns the streamable HTTP MCP endpoint.
func (ts *TestServer) MCPURL() string {
	return ts.Server.URL + "/mcp"
}

// URL returns the JSON-RPC endpoint.
func (ts *TestServer) URL() string {
	return ts.Server.URL + "/rpc"
}
