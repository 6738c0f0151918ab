package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/spf13/cobra"

	"github.com/zihandong029/firstwallet/api"
	"github.com/zihandong029/firstwallet/authz"
	"github.com/zihandong029/firstwallet/consent"
	"github.com/zihandong029/firstwallet/dispatcher"
	"github.com/zihandong029/firstwallet/history"
	"github.com/zihandong029/firstwallet/keystore"
	"github.com/zihandong029/firstwallet/rpcpool"
	"github.com/zihandong029/firstwallet/session"
	bboltstorage "github.com/zihandong029/firstwallet/storage/bbolt"
	"github.com/zihandong029/firstwallet/wallet"
)

var (
	listenAddr     string
	dataDir        string
	sessionTimeout time.Duration
	authzTTL       time.Duration
	persistSession bool
	strictAccounts bool
	unlockWait     time.Duration
	etherscanKey   string
	moralisKey     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wallet daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := bboltstorage.NewFromFile(dataDir+"/wallet.db", nil)
		if err != nil {
			return fmt.Errorf("failed to open wallet storage: %w", err)
		}
		defer store.Close()

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		clk := clock.NewDefaultClock()

		keys := keystore.New(store)
		sessions := session.NewManager(session.Config{
			Timeout: sessionTimeout,
			Persist: persistSession,
		}, clk, store)

		var w *wallet.Service
		saver := func(chainID uint64, index int) error { return w.SaveRPCIndex(chainID, index) }
		selector := rpcpool.NewSelector(rpcpool.Config{}, rpcpool.EthDial, saver, logger)
		w = wallet.New(keys, sessions, selector, logger)

		gate := authz.NewGate(authz.Config{TTL: authzTTL}, clk, store, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		gate.StartSweeper(ctx)

		notifier := api.NewNotifier(logger)
		bridge := consent.NewBridge(consent.Config{}, clk, notifier, logger)

		providers := []history.Provider{history.NewEtherscan(etherscanKey, nil)}
		if moralisKey != "" {
			providers = append(providers, history.NewMoralis(moralisKey, nil))
		}
		hist := history.NewService(logger, providers...)

		d := dispatcher.New(w, gate, bridge, notifier, hist, dispatcher.Policy{
			StrictAccounts: strictAccounts,
			UnlockWait:     unlockWait,
		}, logger)

		a := api.New(d, w, bridge, gate, api.WithLogger(logger), api.WithNotifier(notifier))

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.RealIP)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              listenAddr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("firstwallet %s listening on %s (data: %s)\n", Version, listenAddr, dataDir)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			w.Lock()
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8547", "Address to listen on; keep it loopback")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serveCmd.Flags().DurationVar(&sessionTimeout, "session-timeout", session.DefaultTimeout, "Sliding unlock session window")
	serveCmd.Flags().DurationVar(&authzTTL, "authz-ttl", authz.DefaultTTL, "Origin authorization lifetime")
	serveCmd.Flags().BoolVar(&persistSession, "persist-session", false, "Persist the unlock session across restarts (stores the passphrase in the clear)")
	serveCmd.Flags().BoolVar(&strictAccounts, "strict-accounts", false, "Fail eth_requestAccounts on unreadable state instead of returning the zero address")
	serveCmd.Flags().DurationVar(&unlockWait, "unlock-wait", dispatcher.DefaultUnlockWait, "How long eth_requestAccounts waits for an unlock")
	serveCmd.Flags().StringVar(&etherscanKey, "etherscan-key", "", "Etherscan API key for transaction history")
	serveCmd.Flags().StringVar(&moralisKey, "moralis-key", "", "Moralis API key for transaction history")
}
