// Package storage provides the key-value storage areas storage cells persist
// to, and the notification bus that tells cells about changes.
//
// # Storage Areas
//
// The Area interface is a text key-value store:
//
//	area := storage.NewMemoryArea()
//	// or
//	area := storage.NewSQLArea(db, storage.WithSQLDialect(storage.DialectSQLite))
//	// or
//	area, err := storage.NewFileArea("/var/lib/app/storage")
//	// or
//	area := storage.NewRedisArea(redisClient)
//	// or
//	area := storage.NewS3Area(s3Client, "my-bucket")
//
// Every area is addressed by a Scope: Persistent (survives restarts) or
// Session (lives as long as the process or session).
//
// # Change Notifications
//
// Areas that can tell when another context wrote to them implement
// Observable. Watchers receive an Event carrying the key and the new text.
// The writer identity travels in the context:
//
//	ctx = storage.WithOrigin(ctx, hostID)
//	area.SetItem(ctx, "theme", `"dark"`)
//
// A Bus fans events out inside one context. Synthetic events carry no
// payload; receivers re-read the area themselves.
package storage
