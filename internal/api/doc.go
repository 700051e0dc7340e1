// Package api provides the read-only HTTP status API and WebSocket stream.
//
// Endpoints:
//
//	GET /api/v1/health     liveness and version
//	GET /api/v1/network    current link state (a pull on the network account)
//	GET /api/v1/accounts   mediator accounts with subscriptions and counters
//	GET /api/v1/ws         WebSocket stream of published link states
//
// The server registers itself as the "api" account, subscribed to the network
// account; every published state is broadcast to WebSocket clients subscribed
// to the "network.state" channel. There are no write endpoints.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
