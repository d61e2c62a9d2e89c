package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/suite"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/apitest"
	"github.com/pitabwire/barberdesk/edition"
	"github.com/pitabwire/barberdesk/events"
	"github.com/pitabwire/barberdesk/resource"
)

type CLISuite struct {
	suite.Suite

	backend    *apitest.Server
	configPath string
	eventsURL  string
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) SetupTest() {
	s.backend = apitest.New(s.T())
	s.backend.AddUser(api.User{ID: 1, Email: "owner@shop.com", RoleID: 2, BusinessIDs: []int64{1}}, "pw")
	s.backend.AddUser(api.User{ID: 2, Email: "root@shop.com", RoleID: 1, IsSuperAdmin: true}, "pw")
	s.backend.AddBusinesses(
		api.Business{ID: 1, Name: "Fade Factory", Language: "pt"},
		api.Business{ID: 2, Name: "Clip Joint", Language: "es"},
	)
	s.backend.SetTranslations("pt", map[string]string{"Clients": "Clientes"})
	s.backend.AddSourceString("Clients", 7)
	s.backend.Seed("clients", 1, map[string]any{"name": "Ana"})

	s.eventsURL = "mem://cli-" + xid.New().String()

	dir := s.T().TempDir()
	s.configPath = filepath.Join(dir, "barberdesk.yaml")
	content := fmt.Sprintf(`api_base_url: %s
http_client_retry_attempts: 1
storage_durable_uri: file://%s
events_topic_url: %s
log_level: error
log_colored: false
`, s.backend.URL, filepath.Join(dir, "state.json"), s.eventsURL)
	s.Require().NoError(os.WriteFile(s.configPath, []byte(content), 0o600))
}

func (s *CLISuite) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	args = append([]string{"--config", s.configPath}, args...)
	err := Execute(context.Background(), args, strings.NewReader(""), &out, &errOut)
	return out.String(), err
}

func (s *CLISuite) login(email string) {
	out, err := s.run("login", "--email", email, "--password", "pw")
	s.Require().NoError(err)
	s.Contains(out, "Signed in as "+email)
}

func (s *CLISuite) TestOfflineCommands() {
	out, err := s.run("version")
	s.Require().NoError(err)
	s.NotEmpty(strings.TrimSpace(out))

	out, err = s.run("resource", "kinds")
	s.Require().NoError(err)
	for _, k := range resource.Kinds() {
		s.Contains(out, k.String())
	}
}

func (s *CLISuite) TestSessionPersistsAcrossInvocations() {
	_, err := s.run("whoami")
	s.ErrorIs(err, errNotSignedIn)

	s.login("owner@shop.com")

	out, err := s.run("whoami")
	s.Require().NoError(err)
	s.Contains(out, "owner@shop.com")

	out, err = s.run("logout")
	s.Require().NoError(err)
	s.Contains(out, "Signed out")

	_, err = s.run("whoami")
	s.ErrorIs(err, errNotSignedIn)
}

func (s *CLISuite) TestLoginPromptsForPassword() {
	var out, errOut bytes.Buffer
	args := []string{"--config", s.configPath, "login", "--email", "owner@shop.com"}
	err := Execute(context.Background(), args, strings.NewReader("pw\n"), &out, &errOut)
	s.Require().NoError(err)
	s.Contains(errOut.String(), "Password:")
	s.Contains(out.String(), "Working on Fade Factory (1)")
}

func (s *CLISuite) TestBusinessCommands() {
	s.login("root@shop.com")

	out, err := s.run("business", "list")
	s.Require().NoError(err)
	s.Contains(out, "Fade Factory")
	s.Contains(out, "Clip Joint")

	out, err = s.run("business", "select", "2")
	s.Require().NoError(err)
	s.Contains(out, "Clip Joint (2)")

	out, err = s.run("translate", "lang")
	s.Require().NoError(err)
	s.Equal("es", strings.TrimSpace(out))

	_, err = s.run("business", "select", "99")
	s.Error(err)

	_, err = s.run("business", "select", "abc")
	s.Error(err)

	out, err = s.run("business", "clear")
	s.Require().NoError(err)
	s.Contains(out, "No business selected")
}

func (s *CLISuite) TestTranslateCommands() {
	s.login("owner@shop.com")

	out, err := s.run("translate", "get", "Clients")
	s.Require().NoError(err)
	s.Equal("Clientes", strings.TrimSpace(out))

	out, err = s.run("translate", "get", "Clients", "--lang", "en")
	s.Require().NoError(err)
	s.Equal("Clients", strings.TrimSpace(out))

	out, err = s.run("translate", "lang", "en")
	s.Require().NoError(err)
	s.Equal("en", strings.TrimSpace(out))

	out, err = s.run("translate", "lang", "--reset")
	s.Require().NoError(err)
	s.Equal("pt", strings.TrimSpace(out))

	out, err = s.run("translate", "list", "pt")
	s.Require().NoError(err)
	s.Contains(out, "Clientes")

	_, err = s.run("translate", "set", "Clients", "Fregueses")
	s.ErrorIs(err, edition.ErrEditingNotAllowed)
}

func (s *CLISuite) TestSuperAdminSetsTranslation() {
	s.login("root@shop.com")

	out, err := s.run("edition", "status")
	s.Require().NoError(err)
	s.Contains(out, "edition mode off")

	out, err = s.run("edition", "on")
	s.Require().NoError(err)
	s.Contains(out, "editing allowed: true")

	out, err = s.run("translate", "set", "Clients", "Fregueses", "--lang", "pt")
	s.Require().NoError(err)
	s.Contains(out, "Clients [pt] = Fregueses")

	saved := s.backend.Saved()
	s.Require().Len(saved, 1)
	s.Equal(int64(7), saved[0].TraductionID)

	out, err = s.run("translate", "load", "pt")
	s.Require().NoError(err)
	s.Contains(out, "Loaded 1 entries for pt")
}

func (s *CLISuite) TestEventsListenPrintsPublishedEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out, errOut bytes.Buffer
	done := make(chan error, 1)
	go func() {
		args := []string{"--config", s.configPath, "events", "listen", "--count", "1"}
		done <- Execute(ctx, args, strings.NewReader(""), &out, &errOut)
	}()

	pub := events.NewPublisher(s.eventsURL)
	s.Require().NoError(pub.Init(ctx))

	selected := events.New(events.KindBusinessSelected)
	selected.Email = "owner@shop.com"
	selected.BusinessID = 2
	selected.Language = "es"

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			s.Require().NoError(err)
			line := strings.TrimSpace(out.String())
			s.Equal(1, strings.Count(line, "\n")+1, "stops after one event")
			s.Contains(line, string(events.KindBusinessSelected))
			s.Contains(line, "email=owner@shop.com")
			s.Contains(line, "business=2")
			s.Contains(line, "language=es")
			return
		case <-ticker.C:
			pub.Emit(ctx, selected)
		case <-ctx.Done():
			s.FailNow("listener never received an event")
		}
	}
}

func (s *CLISuite) TestEventsListenRejectsUnknownBroker() {
	_, err := s.run("events", "listen", "--subscription", "nosuchbroker://topic")
	s.Error(err)
}

func (s *CLISuite) TestResourceCommands() {
	s.login("owner@shop.com")

	out, err := s.run("resource", "list", "clients")
	s.Require().NoError(err)
	s.Contains(out, `"name": "Ana"`)

	_, err = s.run("resource", "list", "spaceships")
	s.Error(err)

	_, err = s.run("resource", "list", "clients", "--filter", "broken")
	s.Error(err)
}
