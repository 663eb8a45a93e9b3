package flowsync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds configuration for a flowsync engine.
type Config struct {
	Store     StoreConfig     `mapstructure:"store"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
	Log       LogConfig       `mapstructure:"log"`
	API       APIConfig       `mapstructure:"api"`
}

// StoreConfig selects and addresses the persistence backend.
type StoreConfig struct {
	// Driver is one of memory, redis, mongo, postgres, sqlite.
	Driver string `mapstructure:"driver" validate:"oneof=memory redis mongo postgres sqlite"`

	// DSN is the connection string for redis, mongo, and postgres, or the
	// database file path for sqlite.
	DSN string `mapstructure:"dsn" validate:"required_unless=Driver memory"`

	// Database is the MongoDB database name.
	Database string `mapstructure:"database" validate:"required_if=Driver mongo"`
}

// QueueConfig controls the durable job queue.
type QueueConfig struct {
	// Name is the queue flow jobs are pushed to and consumed from.
	Name string `mapstructure:"name" validate:"required"`

	// MaxAttempts is how many deliveries a job gets before it is
	// dead-lettered.
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`

	// VisibilityTimeout is how long a claimed delivery stays hidden before
	// it becomes visible again if it is never acknowledged. Running
	// deliveries have their lease extended every half timeout. It must
	// exceed Worker.FlowTimeout when that is set.
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout" validate:"gt=0"`

	// BackoffInitial and BackoffMax bound the retry delay.
	BackoffInitial time.Duration `mapstructure:"backoff_initial" validate:"gt=0"`
	BackoffMax     time.Duration `mapstructure:"backoff_max" validate:"gtefield=BackoffInitial"`
}

// SchedulerConfig controls the orchestrator pass.
type SchedulerConfig struct {
	// TriggerSpec is a 6-field cron spec for the pass trigger. When empty,
	// Interval is used instead.
	TriggerSpec string `mapstructure:"trigger_spec"`

	// Interval is the fixed pass interval used when TriggerSpec is empty.
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`

	// PageSize is how many tenants are read per store page.
	PageSize int `mapstructure:"page_size" validate:"min=1,max=1000"`

	// HeartbeatSpec is a 6-field cron spec for the liveness log line.
	// Empty disables it.
	HeartbeatSpec string `mapstructure:"heartbeat_spec"`
}

// WorkerConfig controls the dispatch worker pool.
type WorkerConfig struct {
	// Concurrency is the maximum number of flows run concurrently.
	Concurrency int `mapstructure:"concurrency" validate:"min=1"`

	// PollInterval is how often idle workers poll the queue.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`

	// FlowTimeout bounds a single flow run. Zero means unlimited.
	FlowTimeout time.Duration `mapstructure:"flow_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum time to wait for active flows on stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// SecretsConfig selects where tenant credentials are read from.
type SecretsConfig struct {
	// Driver is memory or store. "store" reads secrets from the same
	// backend as tenants.
	Driver string `mapstructure:"driver" validate:"oneof=memory store"`
}

// LogConfig controls the structured logger built by the CLI.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`

	// Audit adds one structured audit line per flow lifecycle event.
	Audit bool `mapstructure:"audit"`
}

// APIConfig controls the admin HTTP API.
type APIConfig struct {
	// Addr is the listen address. Empty disables the API.
	Addr string `mapstructure:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Store: StoreConfig{
			Driver: "memory",
		},
		Queue: QueueConfig{
			Name:              "flow-jobs",
			MaxAttempts:       5,
			VisibilityTimeout: 15 * time.Minute,
			BackoffInitial:    1 * time.Second,
			BackoffMax:        1 * time.Minute,
		},
		Scheduler: SchedulerConfig{
			TriggerSpec:   "0 0 * * * *",
			Interval:      1 * time.Hour,
			PageSize:      100,
			HeartbeatSpec: "0 */5 * * * *",
		},
		Worker: WorkerConfig{
			Concurrency:     16,
			PollInterval:    1 * time.Second,
			FlowTimeout:     10 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
		},
		Secrets: SecretsConfig{
			Driver: "store",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// envPrefix is the prefix for environment overrides, e.g.
// FLOWSYNC_QUEUE_MAX_ATTEMPTS=3.
const envPrefix = "FLOWSYNC"

// LoadConfig reads configuration from the YAML file at path (optional) and
// FLOWSYNC_* environment variables on top of DefaultConfig, then validates
// the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("flowsync: read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("flowsync: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("flowsync: invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("flowsync: invalid config: %w", err)
	}
	if c.Worker.FlowTimeout > 0 && c.Queue.VisibilityTimeout <= c.Worker.FlowTimeout {
		return fmt.Errorf("flowsync: invalid config: Queue.VisibilityTimeout (%s) must exceed Worker.FlowTimeout (%s)",
			c.Queue.VisibilityTimeout, c.Worker.FlowTimeout)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.database", d.Store.Database)

	v.SetDefault("queue.name", d.Queue.Name)
	v.SetDefault("queue.max_attempts", d.Queue.MaxAttempts)
	v.SetDefault("queue.visibility_timeout", d.Queue.VisibilityTimeout)
	v.SetDefault("queue.backoff_initial", d.Queue.BackoffInitial)
	v.SetDefault("queue.backoff_max", d.Queue.BackoffMax)

	v.SetDefault("scheduler.trigger_spec", d.Scheduler.TriggerSpec)
	v.SetDefault("scheduler.interval", d.Scheduler.Interval)
	v.SetDefault("scheduler.page_size", d.Scheduler.PageSize)
	v.SetDefault("scheduler.heartbeat_spec", d.Scheduler.HeartbeatSpec)

	v.SetDefault("worker.concurrency", d.Worker.Concurrency)
	v.SetDefault("worker.poll_interval", d.Worker.PollInterval)
	v.SetDefault("worker.flow_timeout", d.Worker.FlowTimeout)
	v.SetDefault("worker.shutdown_timeout", d.Worker.ShutdownTimeout)

	v.SetDefault("secrets.driver", d.Secrets.Driver)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.audit", d.Log.Audit)

	v.SetDefault("api.addr", d.API.Addr)
}
