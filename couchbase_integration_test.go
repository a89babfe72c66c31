package couchboot

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/couchbase"
)

// setupCouchbaseContainer starts a single-node Couchbase cluster with the data,
// query and index services and a parties bucket carrying a primary index.
func setupCouchbaseContainer(t *testing.T) (*couchbase.CouchbaseContainer, *ClusterStore, error) {
	ctx := context.Background()

	container, err := couchbase.Run(ctx, "couchbase:community-7.1.1",
		couchbase.WithAdminCredentials("Administrator", "password"),
		couchbase.WithBuckets(couchbase.NewBucket("parties").
			WithQuota(100).
			WithPrimaryIndex(true)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get connection string: %v", err)
	}

	store, err := NewClusterConfig().
		WithConnectionString(connStr).
		WithCredentials("Administrator", "password").
		WithBucket("parties").
		Connect()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to Couchbase: %v", err)
	}

	return container, store, nil
}

func TestClusterRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Couchbase integration test in short mode")
	}

	// Check if Docker is available
	client, err := testcontainers.NewDockerClient()
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	defer client.Close()

	container, store, err := setupCouchbaseContainer(t)
	if err != nil {
		t.Fatalf("Failed to setup test container: %v", err)
	}
	defer container.Terminate(context.Background())

	repo, err := NewRepository[Party](NewRepositoryFactory(store), RepositoryConfig{
		Methods: []QueryMethod{
			{Name: "FindByName", Params: []string{"name"}},
			{Name: "CountByAttendeesGreaterThan", Params: []string{"min"}},
		},
	})
	if err != nil {
		t.Fatalf("Failed to build repository: %v", err)
	}

	t.Run("Save and FindById", func(t *testing.T) {
		saved, err := repo.Save(Party{Name: "gala", Description: "black tie", Attendees: 120})
		assert.NoError(t, err)
		assert.NotEmpty(t, saved.ID)

		found, err := repo.FindById(saved.ID)
		assert.NoError(t, err)
		assert.Equal(t, saved, found)
	})

	t.Run("Derived finder", func(t *testing.T) {
		_, err := repo.Save(Party{Name: "brunch", Attendees: 15})
		assert.NoError(t, err)

		found, err := repo.Query("FindByName", "brunch")
		assert.NoError(t, err)
		assert.Len(t, found, 1)
		assert.Equal(t, "brunch", found[0].Name)
	})

	t.Run("Derived count", func(t *testing.T) {
		count, err := repo.QueryCount("CountByAttendeesGreaterThan", 50)
		assert.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Sorted find all", func(t *testing.T) {
		found, err := repo.FindAllSorted(SortField{Field: "Name"})
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(found), 2)
		assert.Equal(t, "brunch", found[0].Name)
	})

	t.Run("Delete", func(t *testing.T) {
		saved, err := repo.Save(Party{Name: "to delete"})
		assert.NoError(t, err)

		err = repo.DeleteById(saved.ID)
		assert.NoError(t, err)

		_, err = repo.FindById(saved.ID)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})
}
