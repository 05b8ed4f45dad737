package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/neilberkman/docrider/cmd/docrider/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server over stdio",
	Long: `Start an MCP (Model Context Protocol) server that lets an assistant look up
cached document analyses and rename history.

Example client configuration:
  {
    "mcpServers": {
      "docrider": {
        "command": "docrider",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := mcp.StartServer(cfg.Rename.CachePath, versionInfo); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
