// Command scored serves the card-city scoring engine over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cardcity/scoring-go/internal/api"
	"github.com/cardcity/scoring-go/internal/store"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	dbPath := flag.String("db", "conditions.db", "path to the condition database")
	flag.Parse()

	logger := log.New(os.Stdout, "[scored] ", log.LstdFlags)

	st, err := store.New(*dbPath)
	if err != nil {
		logger.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		logger.Fatalf("failed to migrate store: %v", err)
	}

	// Revalidate everything on startup; persisted compiled artifacts are
	// never trusted.
	valid, rejected, err := st.LoadValidated()
	if err != nil {
		logger.Fatalf("failed to load conditions: %v", err)
	}
	logger.Printf("loaded %d conditions (%d rejected)", len(valid), len(rejected))
	for id, reason := range rejected {
		logger.Printf("condition %s rejected: %s", id, reason)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(st).Routes(),
	}

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown error: %v", err)
	}
}
