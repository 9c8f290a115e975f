// Command mcp serves the builtin file tools over MCP stdio.
//
// MCP clients (Claude Desktop, editors, other agents) can discover and call
// read_file, write_file, and list_files scoped to a workspace directory.
//
// Usage:
//
//	go run ./cmd/mcp [-dir workspace]
//
// Configuration for Claude Desktop (~/Library/Application Support/Claude/claude_desktop_config.json):
//
//	{
//	    "mcpServers": {
//	        "strand-files": {
//	            "command": "go",
//	            "args": ["run", "./cmd/mcp", "-dir", "/path/to/workspace"],
//	            "cwd": "/path/to/strand"
//	        }
//	    }
//	}
package main

import (
	"flag"
	"log"

	"github.com/strandworks/strand/mcp"
	"github.com/strandworks/strand/tool"
)

func main() {
	dir := flag.String("dir", ".", "workspace directory the file tools may touch")
	flag.Parse()

	registry := tool.NewRegistry().Add(
		tool.ReadFileTool(tool.WithBasePath(*dir)),
		tool.WriteFileTool(tool.WithBasePath(*dir)),
		tool.ListFilesTool(tool.WithBasePath(*dir)),
	)

	if err := mcp.ServeStdio(registry,
		mcp.WithName("strand-files"),
		mcp.WithVersion("1.0.0"),
	); err != nil {
		log.Fatal(err)
	}
}
