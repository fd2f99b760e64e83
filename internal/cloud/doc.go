// Package cloud is the client for the SwitchBot cloud API (OpenAPI v1.1).
//
// Requests are signed with the account token and secret: every request carries
// the token, a millisecond timestamp, a random nonce and an HMAC-SHA256
// signature of token+timestamp+nonce keyed by the secret.
//
// Endpoints used:
//
//	GET  /v1.1/devices               device and IR remote discovery
//	GET  /v1.1/devices/{id}/status   device status
//	POST /v1.1/devices/{id}/commands device command
//
// A response is successful only when both the HTTP status and the statusCode
// field of the JSON body are 100 or 200. Anything else is returned as a
// *StatusError carrying both codes so the caller can classify them.
//
// Timeouts are owned by the underlying http.Client.
package cloud
