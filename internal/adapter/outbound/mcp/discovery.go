// Package mcp imports tool catalogs from MCP servers so the guard's
// registry knows every tool's contract before the first action checkpoint.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/tool"
)

// clientName identifies the guard to MCP servers during initialization.
const clientName = "aegis-guard"

// CommandTransport builds a stdio transport that launches the server as a
// subprocess.
func CommandTransport(ctx context.Context, command string, args ...string) mcp.Transport {
	return &mcp.CommandTransport{Command: exec.CommandContext(ctx, command, args...)}
}

// HTTPTransport builds a streamable HTTP transport for a hosted server.
func HTTPTransport(endpoint string) mcp.Transport {
	return &mcp.StreamableClientTransport{Endpoint: endpoint}
}

// DiscoverTools connects over the transport, pages through the server's
// tool list, and returns the registrations for the guard's tool registry.
// The session is closed before returning.
func DiscoverTools(ctx context.Context, transport mcp.Transport, version string, logger *slog.Logger) ([]tool.Registration, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: version}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect: %w", err)
	}
	defer func() { _ = session.Close() }()

	var regs []tool.Registration
	cursor := ""
	for {
		res, err := session.ListTools(ctx, &mcp.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("mcp: list tools: %w", err)
		}
		for _, t := range res.Tools {
			regs = append(regs, tool.Registration{Name: t.Name, Description: t.Description})
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}

	logger.Info("discovered tools", "count", len(regs))
	return regs, nil
}
