// claimdesk is the claims desk CLI and server.
//
// Usage:
//
//	claimdesk serve                       REST API, dashboard websocket, gRPC health, inbox watcher
//	claimdesk process <file|sample>       run one claim and print the decision
//	claimdesk batch <file...>             run several claims in parallel
//	claimdesk samples [show <name>]       list or print the bundled sample claims
//	claimdesk policy search <question>    retrieve policy sections
//	claimdesk mcp                         MCP server over stdio
//	claimdesk doctor                      preflight checks for a config
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
