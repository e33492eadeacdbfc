package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"showlog/api"
	"showlog/config"
	"showlog/handlers"
	"showlog/internal/database"
	"showlog/services/catalog"
	"showlog/services/profiles"
	"showlog/services/sessions"
	"showlog/services/tracker"
	"showlog/services/transfer"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("showlog backend starting...")

	configPath := os.Getenv("SHOWLOG_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	db, err := database.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	catalogStore := catalog.NewStore(db)
	catalogClient := catalog.NewClient(settings.Catalog.BaseURL, nil)
	refresher := catalog.NewRefresher(catalogStore, catalogClient,
		time.Duration(settings.Catalog.RefreshIntervalHours)*time.Hour,
		settings.Catalog.MaxConcurrentRefresh)

	trackerService := tracker.NewService(db, catalogStore, catalogClient)
	transferService := transfer.NewService(trackerService)

	profileService, err := profiles.NewService(settings.Cache.Directory)
	if err != nil {
		log.Fatalf("failed to initialise profiles: %v", err)
	}
	sessionService := sessions.NewService(time.Duration(settings.Sessions.TTLHours) * time.Hour)

	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewShowsHandler(trackerService, sessionService, profileService),
		handlers.NewCalendarHandler(trackerService, sessionService, profileService),
		handlers.NewTransferHandler(transferService, sessionService, profileService),
		handlers.NewProfilesHandler(profileService, sessionService),
		handlers.NewSessionHandler(sessionService, profileService),
	)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	refresher.Start(rootCtx)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	rootCancel()
	refresher.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("shutdown complete")
}
