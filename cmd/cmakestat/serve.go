package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/getsentry/cmakestat/internal/logutil"
	"github.com/getsentry/cmakestat/internal/reportserver"
	"github.com/getsentry/cmakestat/internal/treestore"
)

func newServeCommand() *cobra.Command {
	var addr string
	var storeFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports from a saved call tree over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.ConfigureLogger(verbose)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = cfg.ListenAddr
			}
			if !cmd.Flags().Changed("shelve-file") && cfg.StoreFile != "" {
				storeFile = cfg.StoreFile
			}
			initSentry(cfg)
			defer sentry.Flush(2 * time.Second)

			return serve(addr, storeFile)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVarP(&storeFile, "shelve-file", "f", defaultStoreFile,
		"file holding the saved call tree")

	return cmd
}

func serve(addr, storeFile string) error {
	srv := reportserver.New(treestore.New(storeFile))
	router, err := srv.NewRouter()
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	server := http.Server{
		Addr:    addr,
		Handler: sentryhttp.New(sentryhttp.Options{}).Handle(router),
	}

	waitForShutdown := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		cctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(cctx); err != nil {
			sentry.CaptureException(err)
			log.Err(err).Msg("error shutting down server")
		}

		close(waitForShutdown)
	}()

	log.Info().Str("addr", addr).Str("store", storeFile).Msg("serving reports")
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		sentry.CaptureException(err)
		return err
	}

	<-waitForShutdown
	return nil
}
