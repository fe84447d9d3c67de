// Package config provides configuration parsing for storesync.
//
// The configuration is stored in storesync.json, storesync.yaml or
// storesync.toml in the working directory. Environment variables prefixed
// with STORESYNC_ override file values.
//
// # Configuration File Structure
//
//	{
//	  "area": {
//	    "driver": "sqlite",
//	    "dsn": "file:storesync.db?_pragma=journal_mode(WAL)"
//	  },
//	  "session": {
//	    "driver": "memory"
//	  },
//	  "server": {
//	    "addr": ":7070"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "fps": 60,
//	  "opTimeout": "5s"
//	}
//
// # Environment
//
//	STORESYNC_AREA_DRIVER=file STORESYNC_AREA_DIR=/var/lib/storesync storesync get theme
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	area, err := config.OpenArea(ctx, cfg.Area)
package config
