package repository

import (
	"github.com/klass-lk/couchboot"
	"github.com/klass-lk/couchboot/example/internal/model"
)

type EventRepository struct {
	*couchboot.Repository[model.Event]
}

func NewEventRepository(factory *couchboot.RepositoryFactory) (*EventRepository, error) {
	repo, err := couchboot.NewRepository[model.Event](factory, couchboot.RepositoryConfig{
		Paging: true,
		Indexes: []couchboot.IndexSpec{
			{Kind: couchboot.IndexPrimary, Name: "idx_events_primary"},
			{Kind: couchboot.IndexView, Name: "events", Fields: []string{"all"}},
		},
		Methods: []couchboot.QueryMethod{
			{Name: "FindByHost", Params: []string{"host"}, Pageable: true},
			{Name: "FindByTitleContaining", Params: []string{"text"}},
			{Name: "CountByAttendeesGreaterThan", Params: []string{"min"}},
			{Name: "RemoveByHost", Params: []string{"host"}},
		},
	})
	if err != nil {
		return nil, err
	}
	return &EventRepository{Repository: repo}, nil
}
