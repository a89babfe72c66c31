package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/klass-lk/couchboot"
	"github.com/klass-lk/couchboot/example/internal/controller"
	"github.com/klass-lk/couchboot/example/internal/repository"
	"github.com/klass-lk/couchboot/example/internal/service"
)

func main() {
	// Connect to the Couchbase cluster
	store, err := couchboot.NewClusterConfig().
		WithConnectionString("couchbase://localhost").
		WithCredentials("Administrator", "password").
		WithBucket("events").
		Connect()
	if err != nil {
		log.Fatal(err)
	}

	factory := couchboot.NewRepositoryFactory(store)

	// Initialize repositories
	eventRepo, err := repository.NewEventRepository(factory)
	if err != nil {
		log.Fatal(err)
	}

	// Initialize services
	eventService := service.NewEventService(eventRepo)

	// Initialize and register controllers
	eventController := controller.NewEventController(eventService)

	engine := gin.Default()
	api := engine.Group("/api/v1")
	eventController.Register(api.Group("/events"))

	if err := engine.Run(":8080"); err != nil {
		log.Fatal(err)
	}
}
