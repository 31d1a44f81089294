// Package powermeter implements the BLE central that finds a cycling power
// trainer by its advertised name and keeps a notification subscription to its
// power measurement characteristic alive.
//
// The package is organised around a single Client driven by host stack events:
//   - Scan filtering of raw advertising data and target name matching
//   - Connection supervision with automatic rescan after every disconnection
//   - Sequential GATT discovery (service, characteristic, CCCD subscription)
//   - Notification parsing into instantaneous power values
//   - A liveness watchdog that forces a disconnect on silent link loss
//
// A Client is not safe for concurrent use. All events and watchdog polls must
// be delivered from one goroutine, normally the one running Run. IsConnected
// and Status may be called from any goroutine.
package powermeter
