package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestContextHelpersAndKeyString() {
	ctx := context.Background()
	cfg := ConfigurationDefault{APIBaseURL: "http://api.local"}

	s.Equal("barberdesk/config/configurationKey", ctxKeyConfiguration.String())

	ctx = ToContext(ctx, cfg)
	fromCtx := FromContext[ConfigurationDefault](ctx)
	s.Equal("http://api.local", fromCtx.APIBaseURL)

	missing := FromContext[*ConfigurationDefault](context.Background())
	s.Nil(missing)
}

func (s *ConfigSuite) TestFromEnvDefaults() {
	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)

	s.Equal("http://localhost:8000", cfg.GetAPIBaseURL())
	s.Equal(30*time.Second, cfg.GetHTTPClientTimeout())
	s.Equal(3, cfg.GetHTTPClientRetryAttempts())
	s.Empty(cfg.GetStorageDurableURI())
	s.Equal("mem://tab", cfg.GetStorageSessionURI())
	s.Equal("en", cfg.GetDefaultLanguage())
	s.Equal(int64(1), cfg.GetSuperAdminRoleID())
	s.Equal(DefaultEventsTopicURL, cfg.GetEventsTopicURL())
	s.Equal(16, cfg.GetCapacity())
	s.Equal(time.Second, cfg.GetExpiryDuration())
}

func (s *ConfigSuite) TestFromEnvAndFillEnv() {
	s.T().Setenv("API_BASE_URL", "https://api.barber.test/")
	s.T().Setenv("SUPER_ADMIN_ROLE_ID", "7")
	s.T().Setenv("STORAGE_DURABLE_URI", "redis://localhost:6379/0")

	cfg, err := FromEnv[ConfigurationDefault]()
	s.Require().NoError(err)
	s.Equal("https://api.barber.test", cfg.GetAPIBaseURL())
	s.Equal(int64(7), cfg.GetSuperAdminRoleID())
	s.Equal("redis://localhost:6379/0", cfg.GetStorageDurableURI())

	var target ConfigurationDefault
	s.Require().NoError(FillEnv(&target))
	s.Equal(int64(7), target.GetSuperAdminRoleID())
}

func (s *ConfigSuite) TestFromFileOverlaysEnvironment() {
	s.T().Setenv("DEFAULT_LANGUAGE", "fr")
	s.T().Setenv("API_BASE_URL", "http://from-env")

	path := filepath.Join(s.T().TempDir(), "barberdesk.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(
		"api_base_url: http://from-file\nsuper_admin_role_id: 3\nworker_pool_capacity: 4\n"), 0o600))

	cfg, err := FromFile[ConfigurationDefault](path)
	s.Require().NoError(err)
	s.Equal("http://from-file", cfg.GetAPIBaseURL())
	s.Equal(int64(3), cfg.GetSuperAdminRoleID())
	s.Equal(4, cfg.GetCapacity())
	s.Equal("fr", cfg.GetDefaultLanguage())
}

func (s *ConfigSuite) TestFromFileEdgeCases() {
	cfg, err := FromFile[ConfigurationDefault](filepath.Join(s.T().TempDir(), "missing.yaml"))
	s.Require().NoError(err)
	s.Equal("en", cfg.GetDefaultLanguage())

	cfg, err = FromFile[ConfigurationDefault]("")
	s.Require().NoError(err)
	s.Equal("en", cfg.GetDefaultLanguage())

	path := filepath.Join(s.T().TempDir(), "broken.yaml")
	s.Require().NoError(os.WriteFile(path, []byte("api_base_url: [unterminated"), 0o600))
	_, err = FromFile[ConfigurationDefault](path)
	s.Error(err)
}

func (s *ConfigSuite) TestLoggingAndTracingGetters() {
	cfg := &ConfigurationDefault{
		LogLevel:             "trace",
		LogFormat:            "json",
		LogTimeFormat:        time.RFC3339,
		LogColored:           true,
		LogShowStackTrace:    true,
		TraceRequests:        true,
		TraceRequestsLogBody: true,
	}

	s.Equal("trace", cfg.LoggingLevel())
	s.Equal("json", cfg.LoggingFormat())
	s.Equal(time.RFC3339, cfg.LoggingTimeFormat())
	s.True(cfg.LoggingColored())
	s.True(cfg.LoggingShowStackTrace())
	s.True(cfg.LoggingLevelIsDebug())
	s.True(cfg.TraceReq())
	s.True(cfg.TraceReqLogBody())
}

func (s *ConfigSuite) TestFallbacksTable() {
	testCases := []struct {
		name        string
		cfg         ConfigurationDefault
		wantTimeout time.Duration
		wantRetries int
		wantExpiry  time.Duration
		wantLang    string
		wantSession string
		wantTopic   string
	}{
		{
			name: "explicit values",
			cfg: ConfigurationDefault{
				HTTPClientTimeout:        "5s",
				HTTPClientRetryAttempts:  5,
				WorkerPoolExpiryDuration: "1500ms",
				DefaultLanguageCode:      "pt",
				StorageSessionURI:        "mem://other",
				EventsTopicURL:           "mem://topic",
			},
			wantTimeout: 5 * time.Second,
			wantRetries: 5,
			wantExpiry:  1500 * time.Millisecond,
			wantLang:    "pt",
			wantSession: "mem://other",
			wantTopic:   "mem://topic",
		},
		{
			name: "invalid values fallback",
			cfg: ConfigurationDefault{
				HTTPClientTimeout:        "soon",
				HTTPClientRetryAttempts:  0,
				WorkerPoolExpiryDuration: "invalid",
			},
			wantTimeout: DefaultHTTPClientTimeout,
			wantRetries: 1,
			wantExpiry:  time.Second,
			wantLang:    DefaultLanguage,
			wantSession: "mem://tab",
			wantTopic:   DefaultEventsTopicURL,
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.wantTimeout, tc.cfg.GetHTTPClientTimeout())
			s.Equal(tc.wantRetries, tc.cfg.GetHTTPClientRetryAttempts())
			s.Equal(tc.wantExpiry, tc.cfg.GetExpiryDuration())
			s.Equal(tc.wantLang, tc.cfg.GetDefaultLanguage())
			s.Equal(tc.wantSession, tc.cfg.GetStorageSessionURI())
			s.Equal(tc.wantTopic, tc.cfg.GetEventsTopicURL())
		})
	}
}
