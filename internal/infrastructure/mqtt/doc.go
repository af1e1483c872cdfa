// Package mqtt wraps paho.mqtt.golang with Enviro Core's connection
// management: auto-reconnect with exponential backoff, subscription
// restoration after reconnects, Last Will and Testament for offline
// detection, and panic-safe message handlers.
//
// # Topic hierarchy
//
//	envirocore/reading/{sensor}/{kind}   retained reading updates
//	envirocore/command/{verb}            inbound commands
//	envirocore/reply/{request_id}        command replies
//	envirocore/system/status             online/offline status (retained)
//
// Use the Topics builders instead of hand-assembling topic strings.
//
// # Lifecycle
//
// Connect blocks until the broker accepts the connection or the timeout
// elapses. After that the paho layer owns reconnection; subscriptions
// registered through Subscribe are replayed on every reconnect. Close
// publishes a graceful offline status (distinct from the LWT crash
// status) before disconnecting.
package mqtt
