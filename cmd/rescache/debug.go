package main

// debug.go renders the JSON snapshot examples/basic/main.go's
// /debug/arena-cache/snapshot endpoint inspired, generalized to rescache's
// per-database accounting.
//
// © 2025 rescache authors. MIT License.

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/sergz72/rescache/pkg/store"
)

func writeSnapshot(w http.ResponseWriter, dir *store.Directory) {
	stats := dir.Snapshot()
	databases := make(map[string]map[string]any, len(stats))
	for name, s := range stats {
		databases[name] = map[string]any{
			"entries": s.Entries,
			"bytes":   s.Bytes,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"databases": databases})
}

func argsWithoutProgName() []string {
	if len(os.Args) <= 1 {
		return nil
	}
	return os.Args[1:]
}
