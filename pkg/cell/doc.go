// Package cell binds one storage key to one reactive value.
//
// A Cell keeps a reactive.Signal and the record stored under its key equal
// and of the same kind. Three sources drive it:
//
//   - writes to the cell, through the setter or directly on its signal,
//     which persist the value and publish a synthetic notification;
//   - native notifications, fired when another context (another Host, or
//     another process through a bridge) changes the storage area;
//   - a per-frame poll that re-reads the record and adopts drift that no
//     notification reported.
//
// None of these fail towards the caller. A value of the wrong kind, a
// record that cannot be parsed or a storage error is logged and the cell
// snaps back to its initial value.
//
// Example:
//
//	host := cell.NewHost(cell.HostConfig{Persistent: area})
//	defer host.Close()
//
//	count, setCount := cell.Attach(host, "count", 0)
//	defer count.Detach()
//
//	setCount(count.Peek() + 1)
//
// Cells share storage with every other cell bound to the same key in the
// same area; the last write wins.
package cell
