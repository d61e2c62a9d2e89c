package data

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type DSNSuite struct {
	suite.Suite
}

func TestDSNSuite(t *testing.T) {
	suite.Run(t, new(DSNSuite))
}

func (s *DSNSuite) TestClassification() {
	testCases := []struct {
		name       string
		dsn        DSN
		scheme     string
		isMem      bool
		isFile     bool
		isRedis    bool
		isValkey   bool
		isPostgres bool
	}{
		{name: "memory", dsn: "mem://durable", scheme: "mem", isMem: true},
		{name: "file", dsn: "file:///tmp/desk.json", scheme: "file", isFile: true},
		{name: "redis", dsn: "redis://127.0.0.1:6379/0", scheme: "redis", isRedis: true},
		{name: "redis tls", dsn: "rediss://cache:6380", scheme: "rediss", isRedis: true},
		{name: "valkey", dsn: "valkey://127.0.0.1:6379", scheme: "valkey", isValkey: true},
		{name: "postgres", dsn: "postgres://u:p@localhost:5432/db", scheme: "postgres", isPostgres: true},
		{name: "postgresql", dsn: "postgresql://u:p@localhost:5432/db", scheme: "postgresql", isPostgres: true},
		{name: "upper case scheme", dsn: "REDIS://127.0.0.1:6379", scheme: "redis", isRedis: true},
		{name: "no scheme", dsn: "localhost:6379", scheme: ""},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.scheme, tc.dsn.Scheme())
			s.Equal(tc.isMem, tc.dsn.IsMem())
			s.Equal(tc.isFile, tc.dsn.IsFile())
			s.Equal(tc.isRedis, tc.dsn.IsRedis())
			s.Equal(tc.isValkey, tc.dsn.IsValkey())
			s.Equal(tc.isPostgres, tc.dsn.IsPostgres())
			s.Equal(tc.isRedis || tc.isValkey, tc.dsn.IsCache())
		})
	}
}

func (s *DSNSuite) TestPathAndName() {
	s.Equal("/tmp/desk.json", DSN("file:///tmp/desk.json").Path())
	s.Equal("state/desk.json", DSN("file://state/desk.json").Path())
	s.Empty(DSN("mem://x").Path())
	s.Equal("durable", DSN("mem://durable").Name())
}

func (s *DSNSuite) TestRewrites() {
	s.Equal(DSN("redis://127.0.0.1:6379"), DSN("valkey://127.0.0.1:6379").WithScheme("redis"))
	s.Equal(DSN("nope"), DSN("nope").WithScheme("redis"))

	dsn := DSN("postgres://u:p@localhost/db?sslmode=disable&table=kv")
	s.Equal("kv", dsn.GetQuery("table"))
	s.Equal("", dsn.RemoveQuery("table").GetQuery("table"))
	s.Equal("disable", dsn.RemoveQuery("table").GetQuery("sslmode"))
}
