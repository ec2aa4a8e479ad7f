// Package rpc runs the claimdesk gRPC server.
//
// The server exposes the standard grpc.health.v1 service so load balancers
// and orchestrators can probe the process. Besides the overall status ("")
// it reports:
//
//	claimdesk.Pipeline          SERVING while the server accepts claims
//	claimdesk.Pipeline.Agentic  SERVING when an LLM pipeline is configured,
//	                            NOT_SERVING in fallback-only mode
//
// Calls pass through the auth interceptors and a zap logging interceptor.
package rpc
