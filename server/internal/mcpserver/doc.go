// Package mcpserver exposes the claims pipeline as Model Context Protocol
// tools so an assistant can process claims and look up policy language.
//
// Tools:
//
//	process_claim   run a claim (inline JSON or a bundled sample name)
//	get_claim       fetch a processed claim by number
//	search_policy   retrieve policy sections for a query
//	list_samples    list the bundled sample claims
//
// Server.Run serves over stdio; tests connect with in-memory transports.
package mcpserver
