package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/techscore/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent validate and submit technical design scores.
Configure it with:

  {
    "mcpServers": {
      "techscore": { "command": "techscore", "args": ["mcp", "--url", "http://10.38.219.120:80"] }
    }
  }

The --url flag, TECHSCORE_URL, or the config file sets the default server
address; the techscore_submit tool may override it per call.

Available tools: techscore_validate, techscore_submit`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := mcp.NewServer(newSubmitClient(), viper.GetString("url"), buildVersion)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
