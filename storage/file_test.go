package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/barberdesk/storage"
	"github.com/pitabwire/barberdesk/storage/storagetest"
)

type FileSuite struct {
	suite.Suite
	path string
}

func TestFileSuite(t *testing.T) {
	suite.Run(t, new(FileSuite))
}

func (s *FileSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "nested", "desk.json")
}

func (s *FileSuite) TestSurvivesReopen() {
	ctx := context.Background()

	f, err := storage.NewFile(s.path)
	s.Require().NoError(err)
	s.Require().NoError(f.Set(ctx, "accessToken", "tok"))
	s.Require().NoError(f.Set(ctx, "selectedBusinessId_a@x.com", "2"))
	s.Require().NoError(f.Close())

	reopened, err := storage.NewFile(s.path)
	s.Require().NoError(err)

	value, found, err := reopened.Get(ctx, "selectedBusinessId_a@x.com")
	s.Require().NoError(err)
	s.True(found)
	s.Equal("2", value)

	s.Require().NoError(reopened.Delete(ctx, "accessToken"))
	keys, err := reopened.Keys(ctx, "")
	s.Require().NoError(err)
	s.Equal([]string{"selectedBusinessId_a@x.com"}, keys)

	info, err := os.Stat(s.path)
	s.Require().NoError(err)
	s.Equal(os.FileMode(0o600), info.Mode().Perm())
}

func (s *FileSuite) TestRejectsCorruptDocument() {
	s.Require().NoError(os.MkdirAll(filepath.Dir(s.path), 0o700))
	s.Require().NoError(os.WriteFile(s.path, []byte("{not json"), 0o600))

	_, err := storage.NewFile(s.path)
	s.Error(err)
}

func (s *FileSuite) TestRequiresPath() {
	_, err := storage.NewFile("")
	s.Error(err)
}

func TestFileContract(t *testing.T) {
	f, err := storage.NewFile(filepath.Join(t.TempDir(), "desk.json"))
	if err != nil {
		t.Fatal(err)
	}
	storagetest.Exercise(t, f)
}

func TestInMemoryContract(t *testing.T) {
	mem := storage.NewInMemory()
	t.Cleanup(func() { _ = mem.Close() })
	storagetest.Exercise(t, mem)
}
