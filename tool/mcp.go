package tool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/habiliai/dataagent/config"
	"github.com/habiliai/dataagent/errors"
	"github.com/habiliai/dataagent/internal/mylog"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPToolSource is the part of an MCP client used to expose remote tools.
type MCPToolSource interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// MCPBridge starts the configured stdio MCP servers and registers their tools
// as internal tools.
type MCPBridge struct {
	logger *slog.Logger

	mtx     sync.Mutex
	clients map[string]*mcpclient.Client
}

func NewMCPBridge(logger *slog.Logger) *MCPBridge {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &MCPBridge{
		logger:  logger,
		clients: map[string]*mcpclient.Client{},
	}
}

// ConnectAll connects every server in name order and registers its tools.
func (m *MCPBridge) ConnectAll(ctx context.Context, r *Registry, servers map[string]config.MCPServer) error {
	names := sortedKeys(servers)

	for _, name := range names {
		if err := m.Connect(ctx, r, name, servers[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m *MCPBridge) Connect(ctx context.Context, r *Registry, serverName string, server config.MCPServer) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	c, ok := m.clients[serverName]
	if !ok {
		if server.Command == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "command is required for MCP server %s", serverName)
		}

		var envs []string
		for key, val := range server.Env {
			envs = append(envs, fmt.Sprintf("%s=%s", key, val))
		}

		var err error
		c, err = mcpclient.NewStdioMCPClient(server.Command, envs, server.Args...)
		if err != nil {
			return errors.Wrapf(err, "failed to create MCP client %s", serverName)
		}

		if stderr, ok := mcpclient.GetStderr(c); ok {
			go m.pumpStderr(serverName, stderr)
		}

		initRequest := mcp.InitializeRequest{}
		initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initRequest.Params.ClientInfo = mcp.Implementation{
			Name:    "dataagent",
			Version: "0.1.0",
		}
		if err := c.Start(ctx); err != nil {
			return errors.Wrapf(err, "failed to start MCP client %s", serverName)
		}
		if _, err := c.Initialize(ctx, initRequest); err != nil {
			return errors.Wrapf(err, "failed to initialize MCP client %s", serverName)
		}

		m.clients[serverName] = c
	}

	n, err := RegisterMCPTools(ctx, r, serverName, c, m.logger)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "MCP server connected", "serverName", serverName, "tools", n)
	return nil
}

func (m *MCPBridge) pumpStderr(serverName string, stderr io.Reader) {
	rd := bufio.NewReader(stderr)
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			if err == io.EOF || strings.Contains(err.Error(), "already closed") {
				return
			}
			m.logger.Error("failed to copy stderr", "err", err, "serverName", serverName)
			return
		}
		m.logger.Warn("[MCP] "+strings.TrimSpace(line), "serverName", serverName)
	}
}

func (m *MCPBridge) Close() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	var errs []string
	for name, c := range m.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", name, err))
		}
		delete(m.clients, name)
	}
	if len(errs) > 0 {
		return errors.Errorf("failed to close MCP clients: %s", strings.Join(errs, "; "))
	}
	return nil
}

// RegisterMCPTools adds every tool listed by src. Names already taken are
// skipped. It returns the number of tools added.
func RegisterMCPTools(ctx context.Context, r *Registry, serverName string, src MCPToolSource, logger *slog.Logger) (int, error) {
	listToolsResult, err := src.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list tools of %s", serverName)
	}

	added := 0
	for _, t := range listToolsResult.Tools {
		if _, err := r.Get(t.Name); err == nil {
			logger.InfoContext(ctx, "tool already registered", "tool", t.Name, "serverName", serverName)
			continue
		}

		params, err := mcpParameters(t)
		if err != nil {
			return added, errors.Wrapf(err, "tool %s", t.Name)
		}

		name := t.Name
		if err := r.Add(Definition{
			Name:        name,
			Description: t.Description,
			Parameters:  params,
			Kind:        KindInternal,
		}, func(ctx context.Context, args map[string]any) (*Result, error) {
			return callMCPTool(ctx, src, name, args)
		}); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func mcpParameters(t mcp.Tool) (map[string]any, error) {
	raw := []byte(t.RawInputSchema)
	if len(raw) == 0 {
		var err error
		if raw, err = json.Marshal(t.InputSchema); err != nil {
			return nil, err
		}
	}
	params := map[string]any{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if _, ok := params["type"]; !ok {
		params["type"] = "object"
	}
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	return params, nil
}

func callMCPTool(ctx context.Context, src MCPToolSource, name string, args map[string]any) (*Result, error) {
	req := mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
	}
	req.Params.Name = name
	req.Params.Arguments = args

	out, err := src.CallTool(ctx, req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call MCP tool %s", name)
	}

	var texts []string
	for _, c := range out.Content {
		if t, ok := c.(mcp.TextContent); ok {
			texts = append(texts, t.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if out.IsError {
		return &Result{Text: "ERROR: " + text, Payload: out, Failed: true}, nil
	}
	return &Result{Text: text, Payload: out}, nil
}
