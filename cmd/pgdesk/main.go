package main

import (
	"fmt"
	"os"
)

const version = "1.0.0"

const usage = `pgdesk - ad-hoc PostgreSQL access and backup server

Usage:
  pgdesk serve      Start the MCP server
  pgdesk version    Print the version
  pgdesk help       Show this help message

Environment:
  PGDESK_CONFIG_PATH     Path to the JSON config file (default .pgdesk/config.json)
  PGDESK_PG_CONNSTRING   Connection string; when unset, credentials are prompted
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "version", "--version":
		fmt.Println("pgdesk " + version)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
