package couchboot

import (
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

type ClusterConfig struct {
	ConnectionString string
	Username         string
	Password         string
	Bucket           string
	ConnectTimeout   time.Duration
}

func NewClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		ConnectionString: "couchbase://localhost",
		ConnectTimeout:   10 * time.Second,
	}
}

func (c *ClusterConfig) WithConnectionString(connectionString string) *ClusterConfig {
	c.ConnectionString = connectionString
	return c
}

func (c *ClusterConfig) WithCredentials(username, password string) *ClusterConfig {
	c.Username = username
	c.Password = password
	return c
}

func (c *ClusterConfig) WithBucket(bucket string) *ClusterConfig {
	c.Bucket = bucket
	return c
}

func (c *ClusterConfig) WithConnectTimeout(timeout time.Duration) *ClusterConfig {
	c.ConnectTimeout = timeout
	return c
}

// Connect opens the cluster, waits for the bucket to become ready, and
// returns a store handle bound to the bucket's default collection.
func (c *ClusterConfig) Connect() (*ClusterStore, error) {
	cluster, err := gocb.Connect(c.ConnectionString, gocb.ClusterOptions{
		Authenticator: gocb.PasswordAuthenticator{
			Username: c.Username,
			Password: c.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Couchbase: %v", err)
	}

	bucket := cluster.Bucket(c.Bucket)
	if err := bucket.WaitUntilReady(c.ConnectTimeout, nil); err != nil {
		return nil, fmt.Errorf("bucket %s not ready: %v", c.Bucket, err)
	}

	return &ClusterStore{
		cluster:    cluster,
		bucket:     bucket,
		collection: bucket.DefaultCollection(),
		keyspace:   c.Bucket,
	}, nil
}
