package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/klass-lk/couchboot"
	"github.com/klass-lk/couchboot/example/internal/model"
	"github.com/klass-lk/couchboot/example/internal/service"
)

type EventController struct {
	eventService *service.EventService
}

func NewEventController(eventService *service.EventService) *EventController {
	return &EventController{
		eventService: eventService,
	}
}

func (c *EventController) Register(group *gin.RouterGroup) {
	group.GET("", c.GetEvents)
	group.GET("/:id", c.GetEvent)
	group.GET("/host/:host", c.GetEventsByHost)
	group.GET("/search", c.SearchEvents)
	group.GET("/popular/count", c.CountPopularEvents)
	group.POST("", c.CreateEvent)
	group.PUT("/:id", c.UpdateEvent)
	group.DELETE("/:id", c.DeleteEvent)
	group.DELETE("/host/:host", c.DeleteEventsByHost)
}

func (c *EventController) CreateEvent(ctx *gin.Context) {
	var event model.Event
	if err := ctx.ShouldBindJSON(&event); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := c.eventService.CreateEvent(event)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

func (c *EventController) GetEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	event, err := c.eventService.GetEventById(id)
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}

	ctx.JSON(http.StatusOK, event)
}

func (c *EventController) UpdateEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	var event model.Event
	if err := ctx.ShouldBindJSON(&event); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := c.eventService.UpdateEvent(id, event); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusOK)
}

func (c *EventController) DeleteEvent(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.eventService.DeleteEvent(id); err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.Status(http.StatusOK)
}

func (c *EventController) GetEvents(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(ctx.DefaultQuery("size", "10"))
	sortField := ctx.DefaultQuery("sort", "created_at")
	sortDir, _ := strconv.Atoi(ctx.DefaultQuery("direction", "-1"))

	events, err := c.eventService.GetEvents(page, size, couchboot.SortField{
		Field:     sortField,
		Direction: sortDir,
	})
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (c *EventController) GetEventsByHost(ctx *gin.Context) {
	host := ctx.Param("host")
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(ctx.DefaultQuery("size", "10"))

	events, err := c.eventService.GetEventsByHost(host, page, size)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (c *EventController) SearchEvents(ctx *gin.Context) {
	text := ctx.Query("q")
	events, err := c.eventService.SearchEvents(text)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, events)
}

func (c *EventController) CountPopularEvents(ctx *gin.Context) {
	min, _ := strconv.Atoi(ctx.DefaultQuery("min", "100"))
	count, err := c.eventService.CountPopularEvents(min)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"count": count})
}

func (c *EventController) DeleteEventsByHost(ctx *gin.Context) {
	host := ctx.Param("host")
	deleted, err := c.eventService.DeleteEventsByHost(host)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"deleted": len(deleted)})
}
