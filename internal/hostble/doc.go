// Package hostble implements powermeter.HostStack on top of go-ble.
//
// go-ble exposes blocking, procedure-at-a-time calls. The Adapter turns them
// into the fire-and-forget command and event model of the powermeter client:
// every command starts a named goroutine that performs the blocking call and
// posts its outcome to the Events channel. Connection handles are allocated
// locally since go-ble does not expose HCI handles on every platform.
package hostble
