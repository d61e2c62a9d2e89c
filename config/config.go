package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type contextKey string

func (c contextKey) String() string {
	return "barberdesk/config/" + string(c)
}

const (
	ctxKeyConfiguration = contextKey("configurationKey")

	DefaultHTTPClientTimeout = 30 * time.Second
	DefaultLanguage          = "en"
	DefaultEventsTopicURL    = "mem://barberdesk.events"
)

// ToContext adds configuration to the current supplied context.
func ToContext(ctx context.Context, config any) context.Context {
	return context.WithValue(ctx, ctxKeyConfiguration, config)
}

// FromContext extracts configuration from the supplied context if any exist.
func FromContext[T any](ctx context.Context) T {
	if cfg, ok := ctx.Value(ctxKeyConfiguration).(T); ok {
		return cfg
	}
	var zero T
	return zero
}

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

// FillEnv convenience method to fill a config object with environment data.
func FillEnv(v any) error {
	return env.Parse(v)
}

// FromFile parses the environment and then overlays the YAML document at path.
// Values present in the file win over the environment. A missing file is not an error.
func FromFile[T any](path string) (T, error) {
	cfg, err := FromEnv[T]()
	if err != nil || strings.TrimSpace(path) == "" {
		return cfg, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}

	if err = yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %q: %w", path, err)
	}
	return cfg, nil
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"`
	LogFormat     string `envDefault:"info"                      env:"LOG_FORMAT"      yaml:"log_format"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace"`

	TraceRequests        bool `envDefault:"false" env:"TRACE_REQUESTS"          yaml:"trace_requests"`
	TraceRequestsLogBody bool `envDefault:"false" env:"TRACE_REQUESTS_LOG_BODY" yaml:"trace_requests_log_body"`

	APIBaseURL              string `envDefault:"http://localhost:8000" env:"API_BASE_URL"               yaml:"api_base_url"`
	HTTPClientTimeout       string `envDefault:"30s"                   env:"HTTP_CLIENT_TIMEOUT"        yaml:"http_client_timeout"`
	HTTPClientRetryAttempts int    `envDefault:"3"                     env:"HTTP_CLIENT_RETRY_ATTEMPTS" yaml:"http_client_retry_attempts"`

	// An empty durable URI lets the caller choose, the CLI uses a file in the user config dir.
	StorageDurableURI string `envDefault:""         env:"STORAGE_DURABLE_URI" yaml:"storage_durable_uri"`
	StorageSessionURI string `envDefault:"mem://tab" env:"STORAGE_SESSION_URI" yaml:"storage_session_uri"`
	StorageKeyPrefix  string `envDefault:""         env:"STORAGE_KEY_PREFIX"  yaml:"storage_key_prefix"`

	DefaultLanguageCode string `envDefault:"en" env:"DEFAULT_LANGUAGE"    yaml:"default_language"`
	TranslationsFolder  string `envDefault:""   env:"TRANSLATIONS_FOLDER" yaml:"translations_folder"`

	SuperAdminRoleID int64 `envDefault:"1" env:"SUPER_ADMIN_ROLE_ID" yaml:"super_admin_role_id"`

	EventsTopicURL string `envDefault:"mem://barberdesk.events" env:"EVENTS_TOPIC_URL" yaml:"events_topic_url"`

	// Worker pool settings
	WorkerPoolCapacity       int    `envDefault:"16" env:"WORKER_POOL_CAPACITY"        yaml:"worker_pool_capacity"`
	WorkerPoolCount          int    `envDefault:"1"  env:"WORKER_POOL_COUNT"           yaml:"worker_pool_count"`
	WorkerPoolExpiryDuration string `envDefault:"1s" env:"WORKER_POOL_EXPIRY_DURATION" yaml:"worker_pool_expiry_duration"`
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingFormat() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingFormat() string {
	return c.LogFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
	TraceReqLogBody() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

func (c *ConfigurationDefault) TraceReqLogBody() bool {
	return c.TraceRequestsLogBody
}

type ConfigurationAPI interface {
	GetAPIBaseURL() string
	GetHTTPClientTimeout() time.Duration
	GetHTTPClientRetryAttempts() int
}

var _ ConfigurationAPI = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetAPIBaseURL() string {
	return strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
}

func (c *ConfigurationDefault) GetHTTPClientTimeout() time.Duration {
	timeout, err := time.ParseDuration(c.HTTPClientTimeout)
	if err != nil || timeout <= 0 {
		return DefaultHTTPClientTimeout
	}
	return timeout
}

func (c *ConfigurationDefault) GetHTTPClientRetryAttempts() int {
	if c.HTTPClientRetryAttempts < 1 {
		return 1
	}
	return c.HTTPClientRetryAttempts
}

type ConfigurationStorage interface {
	GetStorageDurableURI() string
	GetStorageSessionURI() string
	GetStorageKeyPrefix() string
}

var _ ConfigurationStorage = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetStorageDurableURI() string {
	return strings.TrimSpace(c.StorageDurableURI)
}

func (c *ConfigurationDefault) GetStorageSessionURI() string {
	if strings.TrimSpace(c.StorageSessionURI) == "" {
		return "mem://tab"
	}
	return c.StorageSessionURI
}

func (c *ConfigurationDefault) GetStorageKeyPrefix() string {
	return c.StorageKeyPrefix
}

type ConfigurationLocalization interface {
	GetDefaultLanguage() string
	GetTranslationsFolder() string
}

var _ ConfigurationLocalization = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetDefaultLanguage() string {
	if strings.TrimSpace(c.DefaultLanguageCode) == "" {
		return DefaultLanguage
	}
	return c.DefaultLanguageCode
}

func (c *ConfigurationDefault) GetTranslationsFolder() string {
	return c.TranslationsFolder
}

type ConfigurationEdition interface {
	GetSuperAdminRoleID() int64
}

var _ ConfigurationEdition = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetSuperAdminRoleID() int64 {
	return c.SuperAdminRoleID
}

type ConfigurationEvents interface {
	GetEventsTopicURL() string
}

var _ ConfigurationEvents = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetEventsTopicURL() string {
	if strings.TrimSpace(c.EventsTopicURL) == "" {
		return DefaultEventsTopicURL
	}
	return c.EventsTopicURL
}

type ConfigurationWorkerPool interface {
	GetCapacity() int
	GetCount() int
	GetExpiryDuration() time.Duration
}

var _ ConfigurationWorkerPool = new(ConfigurationDefault)

func (c *ConfigurationDefault) GetCapacity() int {
	return c.WorkerPoolCapacity
}

func (c *ConfigurationDefault) GetCount() int {
	return c.WorkerPoolCount
}

func (c *ConfigurationDefault) GetExpiryDuration() time.Duration {
	if c.WorkerPoolExpiryDuration != "" {
		duration, err := time.ParseDuration(c.WorkerPoolExpiryDuration)
		if err == nil {
			return duration
		}
	}

	return time.Second
}
