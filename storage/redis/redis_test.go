package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/barberdesk/data"
	"github.com/pitabwire/barberdesk/internal/testdeps"
	"github.com/pitabwire/barberdesk/storage"
	"github.com/pitabwire/barberdesk/storage/redis"
	"github.com/pitabwire/barberdesk/storage/storagetest"
)

type RedisSuite struct {
	suite.Suite
	dsn data.DSN
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	s.dsn = testdeps.Valkey(s.T())
}

func (s *RedisSuite) TestRejectsBadDSN() {
	_, err := redis.New(storage.WithDSN("://bad-dsn"))
	s.Error(err)
}

func (s *RedisSuite) TestContract() {
	backend, err := redis.New(storage.WithDSN(s.dsn))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = backend.Close() })

	storagetest.Exercise(s.T(), backend)
}

func (s *RedisSuite) TestMaxAgeExpiresEntries() {
	ctx := context.Background()
	backend, err := redis.New(storage.WithDSN(s.dsn), storage.WithMaxAge(time.Second))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = backend.Close() })

	s.Require().NoError(backend.Set(ctx, "redis:expiring", "v"))
	s.Eventually(func() bool {
		_, found, getErr := backend.Get(ctx, "redis:expiring")
		return getErr == nil && !found
	}, 5*time.Second, 100*time.Millisecond)
}

func (s *RedisSuite) TestNamespacesShareDatabase() {
	ctx := context.Background()

	durable, err := redis.New(storage.WithDSN(s.dsn), storage.WithName(storage.DurableName))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = durable.Close() })

	tab, err := redis.New(storage.WithDSN(s.dsn), storage.WithName(storage.TabName))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = tab.Close() })

	s.Require().NoError(durable.Set(ctx, "redisSelectedBusinessId", "4"))
	s.Require().NoError(tab.Set(ctx, "redisSelectedBusinessId", "9"))

	value, found, err := durable.Get(ctx, "redisSelectedBusinessId")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("4", value)

	keys, err := tab.Keys(ctx, "redisSelected")
	s.Require().NoError(err)
	s.Equal([]string{"redisSelectedBusinessId"}, keys)

	s.Require().NoError(tab.Delete(ctx, "redisSelectedBusinessId"))
	_, found, err = durable.Get(ctx, "redisSelectedBusinessId")
	s.Require().NoError(err)
	s.True(found, "deleting from the tab store leaves the durable entry")
}
