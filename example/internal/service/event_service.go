package service

import (
	"time"

	"github.com/klass-lk/couchboot"
	"github.com/klass-lk/couchboot/example/internal/model"
	"github.com/klass-lk/couchboot/example/internal/repository"
)

type EventService struct {
	eventRepo *repository.EventRepository
}

func NewEventService(eventRepo *repository.EventRepository) *EventService {
	return &EventService{
		eventRepo: eventRepo,
	}
}

func (s *EventService) CreateEvent(event model.Event) (model.Event, error) {
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()
	return s.eventRepo.Save(event)
}

func (s *EventService) GetEventById(id string) (model.Event, error) {
	return s.eventRepo.FindById(id)
}

func (s *EventService) UpdateEvent(id string, event model.Event) error {
	existing, err := s.eventRepo.FindById(id)
	if err != nil {
		return err
	}

	event.ID = existing.ID
	event.CreatedAt = existing.CreatedAt
	event.Revision = existing.Revision
	event.UpdatedAt = time.Now()

	_, err = s.eventRepo.Save(event)
	return err
}

func (s *EventService) DeleteEvent(id string) error {
	return s.eventRepo.DeleteById(id)
}

func (s *EventService) GetEvents(page, size int, sort couchboot.SortField) (couchboot.PageResponse[model.Event], error) {
	return s.eventRepo.FindAllPaginated(couchboot.PageRequest{
		Page: page,
		Size: size,
		Sort: []couchboot.SortField{sort},
	})
}

func (s *EventService) GetEventsByHost(host string, page, size int) (couchboot.PageResponse[model.Event], error) {
	return s.eventRepo.QueryPage("FindByHost", couchboot.PageRequest{Page: page, Size: size}, host)
}

func (s *EventService) SearchEvents(text string) ([]model.Event, error) {
	return s.eventRepo.Query("FindByTitleContaining", text)
}

func (s *EventService) CountPopularEvents(minAttendees int) (int64, error) {
	return s.eventRepo.QueryCount("CountByAttendeesGreaterThan", minAttendees)
}

func (s *EventService) DeleteEventsByHost(host string) ([]model.Event, error) {
	return s.eventRepo.QueryDelete("RemoveByHost", host)
}
