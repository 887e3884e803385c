package functional_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/focusstake/internal/address"
	"github.com/rpggio/focusstake/internal/domain/ledger"
	"github.com/rpggio/focusstake/internal/domain/program"
	"github.com/rpggio/focusstake/internal/idl"
	"github.com/stretchr/testify/require"
)

// stdioSession wraps an MCP client session for stdio transport testing
type stdioSession struct {
	session *sdkmcp.ClientSession
	cancel  context.CancelFunc
}

func newStdioSession(t *testing.T) *stdioSession {
	t.Helper()
	return newStdioSessionWithEnv(t, nil)
}

func newStdioSessionWithEnv(t *testing.T, extraEnv []string) *stdioSession {
	t.Helper()

	// Find the binary
	binaryPath := "./bin/focusstake"
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		binaryPath = "../../bin/focusstake"
		if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
			t.Skip("Server binary not found. Run 'go build -o bin/focusstake ./cmd/server' first.")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	cmd := exec.CommandContext(ctx, binaryPath)
	cmd.Env = append(os.Environ(),
		"FOCUS_TRANSPORT=stdio",
		"FOCUS_DB_PATH=:memory:",
		"FOCUS_AUTH_ENABLED=false",
	)
	if len(extraEnv) > 0 {
		cmd.Env = append(cmd.Env, extraEnv...)
	}

	transport := &sdkmcp.CommandTransport{Command: cmd}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		cancel()
		t.Fatalf("Failed to connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
	})

	return &stdioSession{session: session, cancel: cancel}
}

func (s *stdioSession) callTool(t *testing.T, name string, args map[string]any) (json.RawMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if args == nil {
		args = map[string]any{}
	}
	result, err := s.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err, "CallTool %s failed", name)
	require.NotEmpty(t, result.Content, "Tool %s returned no content", name)

	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			return json.RawMessage(textContent.Text), result.IsError
		}
	}
	t.Fatalf("Tool %s returned no text content", name)
	return nil, false
}

func TestStdioFunctional_MCPProtocolCompliance(t *testing.T) {
	s := newStdioSession(t)

	initResult := s.session.InitializeResult()
	require.NotNil(t, initResult)
	require.NotNil(t, initResult.ServerInfo)
	require.Equal(t, "focusstake", initResult.ServerInfo.Name)
	require.NotEmpty(t, initResult.Instructions)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tools, err := s.session.ListTools(ctx, nil)
	require.NoError(t, err)

	toolMap := make(map[string]*sdkmcp.Tool)
	for _, tool := range tools.Tools {
		toolMap[tool.Name] = tool
	}
	for _, name := range []string{
		"get_global_state", "get_session", "get_balance", "derive_addresses",
		"get_recent_activity", "get_signature_status", "submit_transaction",
	} {
		require.Contains(t, toolMap, name)
		require.NotEmpty(t, toolMap[name].Description)
		require.NotNil(t, toolMap[name].InputSchema)
	}
}

func TestStdioFunctional_InitializeAndRead(t *testing.T) {
	s := newStdioSession(t)
	authority := keypair(t, 1)

	resp, isErr := s.callTool(t, "get_global_state", nil)
	require.True(t, isErr)
	require.Contains(t, string(resp), "NotInitialized")

	resp, isErr = s.callTool(t, "submit_transaction", map[string]any{
		"transaction": signed(t, authority, idl.Initialize, nil, address.Address{}),
	})
	require.False(t, isErr, string(resp))

	resp, isErr = s.callTool(t, "get_global_state", nil)
	require.False(t, isErr, string(resp))
	var state struct {
		Global struct {
			Authority      string `json:"authority"`
			CompletionMode string `json:"completion_mode"`
		} `json:"global"`
	}
	require.NoError(t, json.Unmarshal(resp, &state))
	require.Equal(t, authority.Address().String(), state.Global.Authority)
	require.Equal(t, "immediate", state.Global.CompletionMode)

	user := keypair(t, 2)
	resp, isErr = s.callTool(t, "submit_transaction", map[string]any{
		"transaction": signed(t, user, idl.StartFocusSession, program.StartArgs{
			StakeAmount:     1_000_000,
			DurationMinutes: 10,
			Tasks:           []ledger.Task{{Description: "plan"}},
		}, address.Address{}),
	})
	require.True(t, isErr)
	require.Contains(t, string(resp), "StakeTooLow")

	activity, isErr := s.callTool(t, "get_recent_activity", nil)
	require.False(t, isErr)
	require.Contains(t, string(activity), "ledger_initialized")
}

func TestStdioFunctional_DocumentationResources(t *testing.T) {
	s := newStdioSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resources, err := s.session.ListResources(ctx, nil)
	require.NoError(t, err)

	uris := make(map[string]*sdkmcp.Resource, len(resources.Resources))
	for _, r := range resources.Resources {
		uris[r.URI] = r
	}
	for _, uri := range []string{
		"focusstake://docs/index",
		"focusstake://docs/instructions",
		"focusstake://docs/errors",
	} {
		r, ok := uris[uri]
		require.True(t, ok, "missing expected doc resource: %s", uri)
		require.NotEmpty(t, r.Name)
		require.Equal(t, "text/markdown", r.MIMEType)
		require.Greater(t, r.Size, int64(0))
	}

	read, err := s.session.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "focusstake://docs/index"})
	require.NoError(t, err)
	require.NotEmpty(t, read.Contents)
	require.Equal(t, "focusstake://docs/index", read.Contents[0].URI)
	require.Contains(t, read.Contents[0].Text, "Session lifecycle")
}

func TestStdioFunctional_LogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "focusstake.log")
	s := newStdioSessionWithEnv(t, []string{"FOCUS_LOG_PATH=" + logPath, "FOCUS_LOG_LEVEL=debug"})

	_, _ = s.callTool(t, "get_global_state", nil)

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(logPath)
		return err == nil && strings.Contains(string(data), "get_global_state")
	}, 5*time.Second, 50*time.Millisecond)
}
