// Package samples embeds the demo claims used by the CLI, the REST API and
// the MCP server. Each file under claims/ is one FNOL document; some use
// the legacy field names older intake systems still send.
package samples
