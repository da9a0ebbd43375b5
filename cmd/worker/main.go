package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"model-release/cmd"
	"model-release/internal/config"
	"model-release/internal/messaging"
	"model-release/internal/pipeline"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL is required for the worker")
	}

	components, err := cmd.Build(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize release components: %v", err)
	}
	defer components.Close()

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to start message consumer: %v", err)
	}

	releaser := &pipeline.Releaser{
		Registry:  components.Registry,
		Converter: components.Converter,
		Validator: components.Validator,
		Layout:    components.Layout,
		History:   components.History,
		Publisher: components.Publisher,
		Events:    publisher,
	}

	processor := pipeline.NewTaskProcessor(releaser, components.DB, receiver)
	go processor.Start(cfg.WorkerConcurrency)

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping consumer...")
	processor.Stop()

	log.Println("Worker process stopped.")
}
