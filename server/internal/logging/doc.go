// Package logging builds the process-wide zap logger from the log section of
// claimdesk.yaml and the --verbose flag.
//
// Components never construct their own root logger: they receive a
// *zap.Logger and derive children with With(zap.String("component", ...)).
// Logs always go to stderr so that the stdio MCP transport and CLI output
// on stdout stay clean.
package logging
