// Package main provides the registry server entry point. It serves the
// crates.io-compatible HTTP API backed by an in-memory database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cratesim/cratesim/pkg/api"
	"github.com/cratesim/cratesim/pkg/store"
)

func main() {
	var (
		listenAddr string
		seed       int64
		demoCrates int
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.Int64Var(&seed, "seed", 1, "Seed for generated token values")
	flag.IntVar(&demoCrates, "demo-crates", 0, "Number of demo crates to create at startup")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting registry server", "listen", listenAddr, "seed", seed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	st, err := store.Open(seed)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	if demoCrates > 0 {
		if err := seedDemo(st, demoCrates); err != nil {
			logger.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded demo data", "crates", demoCrates)
	}

	server := api.NewServer(st, logger)

	// The store assumes one request at a time, so requests are serialized
	// even though net/http runs handlers on separate goroutines.
	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: serialize(server.Routes()),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	logger.Info("registry server ready", "listen", listenAddr)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
}

// serialize runs requests one at a time.
func serialize(next http.Handler) http.Handler {
	var mu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// seedDemo fills the registry with generated crates so the API has
// something to serve out of the box. Every crate gets a version and the
// user created first owns all of them.
func seedDemo(st *store.Store, crates int) error {
	owner := &store.User{}
	if err := st.CreateUser(owner); err != nil {
		return err
	}
	for i := 0; i < crates; i++ {
		crate := &store.Crate{}
		if err := st.CreateCrate(crate); err != nil {
			return err
		}
		if err := st.CreateVersion(&store.Version{CrateID: crate.ID}); err != nil {
			return err
		}
		ownerID := owner.ID
		if err := st.CreateOwnership(&store.CrateOwnership{CrateID: crate.ID, UserID: &ownerID}); err != nil {
			return fmt.Errorf("owning crate %d: %w", crate.ID, err)
		}
	}
	return nil
}
