package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/findaly/findaly/internal/config"
	"github.com/findaly/findaly/internal/logging"
	"github.com/findaly/findaly/server"
)

func main() {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		os.Exit(1)
	}
	logCloser := logging.Init(c)
	defer logCloser.Close()

	if err := run(c); err != nil {
		log.Error().Err(err).Msg("Error running server")
		logCloser.Close()
		os.Exit(1)
	}
	log.Info().Msg("Server stopped")
}

func run(c config.Settings) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStores(ctx, c)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(c, st.users, st.sessions)
	if err != nil {
		return err
	}
	go srv.Sessions().RunSweeper(ctx, c.GetSweepInterval())

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() { errs <- listenAndServe(httpServer) }()

	select {
	case err := <-errs:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
