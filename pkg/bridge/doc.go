// Package bridge carries storage change notifications between processes.
//
// A Hub is an http.Handler that upgrades requests to WebSocket connections
// and relays every message it receives to all other connections. A Client
// dials a hub and wraps storage areas so that writes made through them are
// announced to the hub, and writes announced by other processes reach the
// wrapped area's watchers as native events:
//
//	hub := bridge.NewHub(bridge.HubConfig{})
//	http.Handle("/ws", hub)
//
//	client, err := bridge.Dial(ctx, "ws://localhost:7070/ws")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	host := cell.NewHost(cell.HostConfig{
//		Persistent: client.Wrap(area, storage.Persistent),
//	})
//
// The wire format is one JSON Message per WebSocket text frame.
package bridge
