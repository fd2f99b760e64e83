// Package api provides the HTTP REST API and WebSocket server for the
// SwitchBot bridge.
//
// Routes:
//
//	GET  /api/v1/health                  bridge health (public)
//	POST {webhook.path}                   cloud change reports (public)
//	GET  /metrics                         Prometheus exposition (public)
//	GET  /api/v1/devices                  snapshot of every device
//	GET  /api/v1/devices/{id}             snapshot of one device
//	PUT  /api/v1/devices/{id}/state       apply hub set-commands
//	POST /api/v1/devices/{id}/refresh     force a status refresh
//	GET  /api/v1/devices/{id}/history     recorded state history
//	GET  {websocket.path}                 live state events
//
// Device routes and the WebSocket require an HS256 bearer token signed with
// security.jwt.secret. Browsers may pass it as the token query parameter
// when opening the WebSocket.
//
// WebSocket clients subscribe to device.state_changed and device.fault,
// optionally narrowed to a list of device ids, and may ask for a replay of
// current state on subscribe.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
