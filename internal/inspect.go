// Package internal hosts operational helpers that are not part of the
// public request surface.
package internal

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type inspectRow struct {
	Key       string
	Namespace string
	Size      int
	Preview   string
}

type pageData struct {
	Prefix string
	Items  []inspectRow
}

// StartInspectServer serves a read-only view of the stream store for
// debugging. Keys are grouped by namespace (chat:, dh:, seq:); values are
// previewed raw since payloads are opaque ciphertext anyway. Never expose
// this port publicly.
func StartInspectServer(db *badger.DB, log *slog.Logger, port int) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "chat:"
		}

		data := pageData{Prefix: prefix}
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		log.Info("Inspect server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Inspect server stopped", "error", err)
		}
	}()
}

func mapRow(key string, val []byte) inspectRow {
	namespace, _, _ := strings.Cut(key, ":")
	preview := string(val)
	if len(preview) > 96 {
		preview = preview[:96] + "…"
	}
	return inspectRow{
		Key:       key,
		Namespace: namespace,
		Size:      len(val),
		Preview:   preview,
	}
}
