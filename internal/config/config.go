// Package config loads the herald daemon configuration from a YAML file, an
// optional .env file and HERALD_* environment variables, in that order of
// increasing precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/yaml"

	"github.com/potooio/herald/internal/notifier"
	"github.com/potooio/herald/internal/render"
	"github.com/potooio/herald/internal/store"
	"github.com/potooio/herald/internal/transport"
)

// Transport kinds.
const (
	TransportLog     = "log"
	TransportSMTP    = "smtp"
	TransportWebhook = "webhook"
	TransportAMQP    = "amqp"
)

// Store kinds, used for both the preference store and the digest queue.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Duration is a time.Duration that reads and writes as a Go duration string ("30s").
type Duration struct {
	time.Duration
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		d.Duration = v
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Log       LogConfig       `json:"log"`
	Render    RenderConfig    `json:"render"`
	Store     StoreConfig     `json:"store"`
	Digest    DigestConfig    `json:"digest"`
	Transport TransportConfig `json:"transport"`
	Delivery  DeliveryConfig  `json:"delivery"`
	Queue     QueueConfig     `json:"queue"`
}

type ServerConfig struct {
	Addr            string   `json:"addr"`
	ShutdownTimeout Duration `json:"shutdownTimeout"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type RenderConfig struct {
	Product       string `json:"product"`
	SubjectPrefix string `json:"subjectPrefix,omitempty"`
}

type StoreConfig struct {
	// Kind is memory or sqlite.
	Kind string `json:"kind"`
	DSN  string `json:"dsn,omitempty"`
}

type RedisConfig struct {
	Addrs    []string `json:"addrs"`
	Password string   `json:"password,omitempty"`
	DB       int      `json:"db,omitempty"`
	Prefix   string   `json:"prefix,omitempty"`
}

type DigestConfig struct {
	// Queue is memory or redis.
	Queue       string      `json:"queue"`
	Redis       RedisConfig `json:"redis"`
	DailyHour   int         `json:"dailyHour"`
	WeeklyDay   string      `json:"weeklyDay"`
	Timezone    string      `json:"timezone"`
	Interval    Duration    `json:"interval"`
	Concurrency int         `json:"concurrency"`
}

type SMTPConfig struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	FromName string   `json:"fromName,omitempty"`
	TLSMode  string   `json:"tlsMode"`
	Timeout  Duration `json:"timeout"`
}

type WebhookConfig struct {
	URL                string   `json:"url"`
	AuthToken          string   `json:"authToken,omitempty"`
	Timeout            Duration `json:"timeout"`
	InsecureSkipVerify bool     `json:"insecureSkipVerify,omitempty"`
	MaxRetries         int      `json:"maxRetries"`
	Backoff            Duration `json:"backoff"`
}

type AMQPConfig struct {
	URL        string `json:"url"`
	Exchange   string `json:"exchange"`
	RoutingKey string `json:"routingKey"`
}

type TransportConfig struct {
	// Kind is log, smtp, webhook or amqp.
	Kind    string        `json:"kind"`
	From    string        `json:"from,omitempty"`
	SMTP    SMTPConfig    `json:"smtp"`
	Webhook WebhookConfig `json:"webhook"`
	AMQP    AMQPConfig    `json:"amqp"`
}

type DeliveryConfig struct {
	Concurrency        int `json:"concurrency"`
	RateLimitPerMinute int `json:"rateLimitPerMinute"`
}

type QueueConfig struct {
	Workers      int      `json:"workers"`
	BufferSize   int      `json:"bufferSize"`
	DrainTimeout Duration `json:"drainTimeout"`
}

// Default returns a configuration that runs entirely in memory and logs emails
// instead of sending them.
func Default() *Config {
	smtp := transport.DefaultSMTPOptions()
	webhook := transport.DefaultWebhookOptions()
	amqp := transport.DefaultAMQPOptions()
	batcher := notifier.DefaultBatcherOptions()
	delivery := notifier.DefaultDeliveryOptions()
	queue := notifier.DefaultQueueOptions()
	return &Config{
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: Duration{30 * time.Second}},
		Log:    LogConfig{Level: "info"},
		Render: RenderConfig{Product: render.DefaultOptions().Product},
		Store:  StoreConfig{Kind: StoreMemory},
		Digest: DigestConfig{
			Queue:       StoreMemory,
			Redis:       RedisConfig{Addrs: []string{"localhost:6379"}, Prefix: "herald:"},
			DailyHour:   batcher.DailyHour,
			WeeklyDay:   strings.ToLower(batcher.WeeklyDay.String()),
			Timezone:    batcher.Location.String(),
			Interval:    Duration{batcher.Interval},
			Concurrency: batcher.Concurrency,
		},
		Transport: TransportConfig{
			Kind: TransportLog,
			SMTP: SMTPConfig{
				Port:    smtp.Port,
				TLSMode: smtp.TLSMode,
				Timeout: Duration{smtp.Timeout},
			},
			Webhook: WebhookConfig{
				Timeout:    Duration{webhook.Timeout},
				MaxRetries: webhook.MaxRetries,
				Backoff:    Duration{webhook.Backoff},
			},
			AMQP: AMQPConfig{Exchange: amqp.Exchange, RoutingKey: amqp.RoutingKey},
		},
		Delivery: DeliveryConfig{
			Concurrency:        delivery.Concurrency,
			RateLimitPerMinute: delivery.RateLimitPerMinute,
		},
		Queue: QueueConfig{
			Workers:      queue.Workers,
			BufferSize:   queue.BufferSize,
			DrainTimeout: Duration{queue.DrainTimeout},
		},
	}
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing files
// are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults and applies HERALD_*
// environment overrides. An empty path skips the file. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from HERALD_* variables. Secrets are expected to
// arrive this way rather than through the config file.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HERALD_LISTEN_ADDR", &c.Server.Addr)
	str("HERALD_LOG_LEVEL", &c.Log.Level)
	str("HERALD_STORE_KIND", &c.Store.Kind)
	str("HERALD_STORE_DSN", &c.Store.DSN)
	str("HERALD_DIGEST_QUEUE", &c.Digest.Queue)
	str("HERALD_REDIS_PASSWORD", &c.Digest.Redis.Password)
	str("HERALD_TRANSPORT", &c.Transport.Kind)
	str("HERALD_MAIL_FROM", &c.Transport.From)
	str("HERALD_SMTP_HOST", &c.Transport.SMTP.Host)
	str("HERALD_SMTP_USERNAME", &c.Transport.SMTP.Username)
	str("HERALD_SMTP_PASSWORD", &c.Transport.SMTP.Password)
	str("HERALD_WEBHOOK_URL", &c.Transport.Webhook.URL)
	str("HERALD_WEBHOOK_AUTH_TOKEN", &c.Transport.Webhook.AuthToken)
	str("HERALD_AMQP_URL", &c.Transport.AMQP.URL)

	if v, ok := lookup("HERALD_REDIS_ADDRS"); ok && v != "" {
		var addrs []string
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				addrs = append(addrs, a)
			}
		}
		c.Digest.Redis.Addrs = addrs
	}
	if v, ok := lookup("HERALD_SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HERALD_SMTP_PORT: %w", err)
		}
		c.Transport.SMTP.Port = port
	}
	return nil
}

// Validate checks kinds, ports and the fields each selected backend requires.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StoreSQLite:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.kind %q", c.Store.Kind))
	}

	switch c.Digest.Queue {
	case StoreMemory:
	case StoreRedis:
		if len(c.Digest.Redis.Addrs) == 0 {
			errs = append(errs, errors.New("digest.redis.addrs is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown digest.queue %q", c.Digest.Queue))
	}
	if c.Digest.DailyHour < 0 || c.Digest.DailyHour > 23 {
		errs = append(errs, fmt.Errorf("digest.dailyHour %d out of range 0-23", c.Digest.DailyHour))
	}
	if _, err := parseWeekday(c.Digest.WeeklyDay); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Digest.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("digest.timezone: %w", err))
	}

	switch c.Transport.Kind {
	case TransportLog:
	case TransportSMTP:
		if c.Transport.SMTP.Host == "" {
			errs = append(errs, errors.New("transport.smtp.host is required"))
		}
		if p := c.Transport.SMTP.Port; p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("transport.smtp.port %d is not a valid port", p))
		}
	case TransportWebhook:
		if c.Transport.Webhook.URL == "" {
			errs = append(errs, errors.New("transport.webhook.url is required"))
		}
	case TransportAMQP:
		if c.Transport.AMQP.URL == "" {
			errs = append(errs, errors.New("transport.amqp.url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport.kind %q", c.Transport.Kind))
	}
	return errors.Join(errs...)
}

// LogLevel returns the parsed log level. Call after Validate.
func (c *Config) LogLevel() zapcore.Level {
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// RenderOptions maps the render section onto render.Options.
func (c *Config) RenderOptions() render.Options {
	return render.Options{Product: c.Render.Product, SubjectPrefix: c.Render.SubjectPrefix}
}

// RedisOptions maps the digest redis section onto store.RedisOptions.
func (c *Config) RedisOptions() store.RedisOptions {
	r := c.Digest.Redis
	return store.RedisOptions{Addrs: r.Addrs, Password: r.Password, DB: r.DB, Prefix: r.Prefix}
}

// SMTPOptions maps the smtp section onto transport.SMTPOptions.
func (c *Config) SMTPOptions() transport.SMTPOptions {
	s := c.Transport.SMTP
	return transport.SMTPOptions{
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		From:     c.Transport.From,
		FromName: s.FromName,
		TLSMode:  s.TLSMode,
		Timeout:  s.Timeout.Duration,
	}
}

// WebhookOptions maps the webhook section onto transport.WebhookOptions.
func (c *Config) WebhookOptions() transport.WebhookOptions {
	w := c.Transport.Webhook
	return transport.WebhookOptions{
		URL:                w.URL,
		From:               c.Transport.From,
		Timeout:            w.Timeout.Duration,
		InsecureSkipVerify: w.InsecureSkipVerify,
		AuthToken:          w.AuthToken,
		MaxRetries:         w.MaxRetries,
		Backoff:            w.Backoff.Duration,
	}
}

// AMQPOptions maps the amqp section onto transport.AMQPOptions.
func (c *Config) AMQPOptions() transport.AMQPOptions {
	a := c.Transport.AMQP
	return transport.AMQPOptions{
		URL:        a.URL,
		Exchange:   a.Exchange,
		RoutingKey: a.RoutingKey,
		From:       c.Transport.From,
	}
}

// EngineOptions maps the delivery and queue sections onto notifier.Options.
func (c *Config) EngineOptions() notifier.Options {
	return notifier.Options{
		Delivery: notifier.DeliveryOptions{
			Concurrency:        c.Delivery.Concurrency,
			RateLimitPerMinute: c.Delivery.RateLimitPerMinute,
		},
		Queue: notifier.QueueOptions{
			Workers:      c.Queue.Workers,
			BufferSize:   c.Queue.BufferSize,
			DrainTimeout: c.Queue.DrainTimeout.Duration,
		},
	}
}

// BatcherOptions maps the digest section onto notifier.BatcherOptions.
func (c *Config) BatcherOptions() (notifier.BatcherOptions, error) {
	day, err := parseWeekday(c.Digest.WeeklyDay)
	if err != nil {
		return notifier.BatcherOptions{}, err
	}
	loc, err := time.LoadLocation(c.Digest.Timezone)
	if err != nil {
		return notifier.BatcherOptions{}, fmt.Errorf("digest.timezone: %w", err)
	}
	return notifier.BatcherOptions{
		DailyHour:   c.Digest.DailyHour,
		WeeklyDay:   day,
		Location:    loc,
		Interval:    c.Digest.Interval.Duration,
		Concurrency: c.Digest.Concurrency,
	}, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(s, d.String()) || strings.EqualFold(s, d.String()[:3]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("digest.weeklyDay: unknown weekday %q", s)
}
