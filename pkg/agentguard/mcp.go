package agentguard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mcpclient "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/mcp"
	"github.com/Aegis-Guard/Aegisguard/internal/service"
)

// RegisterToolsFromMCP discovers the tool catalog of an MCP server and
// registers it with the guard. The target is either a streamable HTTP URL
// or a command line to spawn over stdio. Discovery is a setup-time
// convenience; connection errors are returned to the caller.
func RegisterToolsFromMCP(ctx context.Context, guard *service.Guard, target, version string, logger *slog.Logger) error {
	transport := mcpclient.HTTPTransport(target)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		fields := strings.Fields(target)
		if len(fields) == 0 {
			return fmt.Errorf("mcp target is empty")
		}
		transport = mcpclient.CommandTransport(ctx, fields[0], fields[1:]...)
	}

	regs, err := mcpclient.DiscoverTools(ctx, transport, version, logger)
	if err != nil {
		return err
	}
	guard.RegisterTools(regs)
	return nil
}
