package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voicenote-app/voicenote/internal/capture"
	"github.com/voicenote-app/voicenote/internal/config"
	"github.com/voicenote-app/voicenote/internal/server"
	"github.com/voicenote-app/voicenote/internal/session"
	"github.com/voicenote-app/voicenote/internal/transcribe"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	log.Println("voicenote: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, warning := range warnings {
		log.Printf("warning: %s", warning)
	}

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	if err := portaudio.Initialize(); err != nil {
		log.Printf("warning: portaudio init failed, capture disabled: %v", err)
	} else {
		defer func() { _ = portaudio.Terminate() }()
	}

	mic := capture.NewMic(cfg.SampleRateCandidates(), cfg.FramesPerBuffer)
	gateway := transcribe.NewGateway(cfg.OpenAIAPIKey, cfg.TranscribeModel)
	hub := server.NewHub()
	manager := session.NewManager(mic, gateway, hub)

	handler, err := server.Handler(assets, hub, manager, gateway, warnings)
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		log.Printf("voicenote: web UI on http://%s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("voicenote: shutting down")

	// Stopping mid-recording still finalizes whatever was captured and
	// releases the device.
	if manager.Status().Capturing {
		if _, err := manager.StopCapture(); err != nil && !errors.Is(err, session.ErrNotCapturing) {
			log.Printf("warning: stop capture failed: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}
