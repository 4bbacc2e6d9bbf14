/*
main.go - factdb diagnostics server entry point

PURPOSE:
  Opens one store and serves the read-only diagnostics HTTP surface over
  it (schema, partitions, entity lookups, registry refcount). Writing
  facts is a library operation (factdb.Connection.Transact), not
  something this binary exposes over the network.

COMMAND-LINE FLAGS:
  -port  HTTP server port (default: 8080)
  -db    Store path (default: factdb.sqlite3). Use ":memory:" for an
         ephemeral in-memory store.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

SEE ALSO:
  - httpapi/server.go:   router configuration
  - httpapi/handlers.go: HTTP handlers
  - factdb.go:           the Connection this binary wraps
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/factdb"
	"github.com/warp/factdb/httpapi"
	"github.com/warp/factdb/registry"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "factdb.sqlite3", "store path (\":memory:\" for ephemeral)")
	flag.Parse()

	reg := registry.New()
	conn, err := factdb.Open(reg, *dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer conn.Close(context.Background())

	handler := httpapi.NewHandler(conn.Schema, conn.Partitions, conn.Provider(), reg, conn.Path())
	router := httpapi.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("factdb diagnostics listening on http://localhost:%d", *port)
		log.Printf("store: %s", conn.Path())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("stopped")
}
