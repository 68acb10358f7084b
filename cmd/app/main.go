package main

import (
	"GazeGate/internal/config"
	"GazeGate/pkg/log"
	"GazeGate/pkg/redis"
	websocketPkg "GazeGate/pkg/websocket"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

const waitOnShutdown = 8 * time.Second

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("Error loading .env file: %v", err)
		}
		logger.Warn("No .env file found, using process environment")
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	landmarkClient := websocketPkg.NewLandmarkClient(logger, validator)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithGazeConfig(),
		config.WithRedisServer(redisServer),
		config.WithLandmarkClient(landmarkClient),
		config.WithMiddleware(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(waitOnShutdown); err != nil {
		logger.Errorf("Error shutting down server: %v", err)
	}
}
