package config

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/wippyai/synapse/channel"
	"github.com/wippyai/synapse/clv"
)

// Config is the configuration object passed as the final argument of every
// workflow call. Channel and event handlers are shared by pointer, so every
// copy of a Config reaches the same queues.
type Config struct {
	Resource    *ResourceConfig   `yaml:"resource,omitempty"`
	QuerentID   string            `yaml:"querent_id"`
	QuerentName string            `yaml:"querent_name"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
	Collectors  []CollectorConfig `yaml:"collectors,omitempty"`
	Engines     []EngineConfig    `yaml:"engines,omitempty"`
	Version     float64           `yaml:"version"`
}

// WorkflowConfig describes the workflow section.
type WorkflowConfig struct {
	Config       map[string]string     `yaml:"config,omitempty"`
	Channel      *channel.Handler      `yaml:"-"`
	EventHandler *channel.EventHandler `yaml:"-"`
	Name         string                `yaml:"name"`
	ID           string                `yaml:"id"`
}

// CollectorConfig describes one collector.
type CollectorConfig struct {
	Config  map[string]string `yaml:"config,omitempty"`
	Channel *channel.Handler  `yaml:"-"`
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Backend string            `yaml:"backend"`
}

// EngineConfig describes one engine. Optional limits are nil when unset.
type EngineConfig struct {
	NumWorkers           *uint32          `yaml:"num_workers,omitempty"`
	MaxRetries           *uint32          `yaml:"max_retries,omitempty"`
	RetryInterval        *uint32          `yaml:"retry_interval,omitempty"`
	MessageThrottleLimit *uint32          `yaml:"message_throttle_limit,omitempty"`
	MessageThrottleDelay *uint32          `yaml:"message_throttle_delay,omitempty"`
	Channel              *channel.Handler `yaml:"-"`
	ID                   string           `yaml:"id"`
	Name                 string           `yaml:"name"`
}

// ResourceConfig bounds worker counts.
type ResourceConfig struct {
	MaxWorkersAllowed      *uint32 `yaml:"max_workers_allowed,omitempty"`
	MaxWorkersPerCollector *uint32 `yaml:"max_workers_per_collector,omitempty"`
	MaxWorkersPerEngine    *uint32 `yaml:"max_workers_per_engine,omitempty"`
	MaxWorkersPerQuerent   *uint32 `yaml:"max_workers_per_querent,omitempty"`
	ID                     string  `yaml:"id"`
}

// Defaults applied by Default, Parse and Builder.
const (
	DefaultVersion      = 0.1
	DefaultQuerentID    = "querent"
	DefaultQuerentName  = "Querent"
	DefaultWorkflowName = "workflow"
	DefaultWorkflowID   = "workflow"

	// DefaultThrottleDelay is the refill interval in milliseconds used when
	// an engine sets a throttle limit without a delay.
	DefaultThrottleDelay = 1000
)

// Default returns a configuration with default identity fields and no
// handlers attached.
func Default() *Config {
	return &Config{
		Version:     DefaultVersion,
		QuerentID:   DefaultQuerentID,
		QuerentName: DefaultQuerentName,
		Workflow: WorkflowConfig{
			Name:   DefaultWorkflowName,
			ID:     DefaultWorkflowID,
			Config: map[string]string{},
		},
	}
}

// Clone returns a copy that shares channel and event handlers with c.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Workflow.Config = cloneMap(c.Workflow.Config)
	if c.Collectors != nil {
		out.Collectors = make([]CollectorConfig, len(c.Collectors))
		for i, col := range c.Collectors {
			col.Config = cloneMap(col.Config)
			out.Collectors[i] = col
		}
	}
	if c.Engines != nil {
		out.Engines = append([]EngineConfig(nil), c.Engines...)
	}
	if c.Resource != nil {
		r := *c.Resource
		out.Resource = &r
	}
	return &out
}

// Connect attaches a handler to every section that lacks one. Engine
// channels honor the engine's throttle settings.
func (c *Config) Connect() *Config {
	if c.Workflow.Channel == nil {
		c.Workflow.Channel = channel.NewHandler()
	}
	if c.Workflow.EventHandler == nil {
		c.Workflow.EventHandler = channel.NewEventHandler(channel.DefaultCapacity)
	}
	for i := range c.Collectors {
		if c.Collectors[i].Channel == nil {
			c.Collectors[i].Channel = channel.NewHandler()
		}
	}
	for i := range c.Engines {
		if c.Engines[i].Channel == nil {
			c.Engines[i].Channel = c.Engines[i].NewChannel()
		}
	}
	return c
}

// Close closes every attached handler.
func (c *Config) Close() {
	if c.Workflow.Channel != nil {
		c.Workflow.Channel.Close()
	}
	if c.Workflow.EventHandler != nil {
		c.Workflow.EventHandler.Close()
	}
	for _, col := range c.Collectors {
		if col.Channel != nil {
			col.Channel.Close()
		}
	}
	for _, e := range c.Engines {
		if e.Channel != nil {
			e.Channel.Close()
		}
	}
}

// Throttle returns the rate limiter described by the engine's throttle
// settings, or nil when no limit is set. The limit is the burst size and
// the delay is the refill interval in milliseconds.
func (e EngineConfig) Throttle() *rate.Limiter {
	if e.MessageThrottleLimit == nil || *e.MessageThrottleLimit == 0 {
		return nil
	}
	delay := uint32(DefaultThrottleDelay)
	if e.MessageThrottleDelay != nil && *e.MessageThrottleDelay > 0 {
		delay = *e.MessageThrottleDelay
	}
	every := time.Duration(delay) * time.Millisecond
	return rate.NewLimiter(rate.Every(every), int(*e.MessageThrottleLimit))
}

// NewChannel creates a handler throttled per the engine's settings.
func (e EngineConfig) NewChannel(opts ...channel.Option) *channel.Handler {
	if l := e.Throttle(); l != nil {
		opts = append([]channel.Option{channel.WithThrottle(l)}, opts...)
	}
	return channel.NewHandler(opts...)
}

// Value converts the data fields of c to a cross-language object. Handlers
// are not included; backends bind them separately.
func (c *Config) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("version", clv.Float(c.Version))
	obj.Insert("querent_id", clv.String(c.QuerentID))
	obj.Insert("querent_name", clv.String(c.QuerentName))
	obj.Insert("workflow", c.Workflow.Value())

	collectors := make([]clv.Value, len(c.Collectors))
	for i, col := range c.Collectors {
		collectors[i] = col.Value()
	}
	obj.Insert("collectors", clv.Array(collectors...))

	engines := make([]clv.Value, len(c.Engines))
	for i, e := range c.Engines {
		engines[i] = e.Value()
	}
	obj.Insert("engines", clv.Array(engines...))

	if c.Resource != nil {
		obj.Insert("resource", c.Resource.Value())
	} else {
		obj.Insert("resource", clv.Null())
	}
	return clv.ObjectOf(obj)
}

// Value converts w to a cross-language object.
func (w WorkflowConfig) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("name", clv.String(w.Name))
	obj.Insert("id", clv.String(w.ID))
	obj.Insert("config", mapValue(w.Config))
	return clv.ObjectOf(obj)
}

// Value converts c to a cross-language object.
func (c CollectorConfig) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("id", clv.String(c.ID))
	obj.Insert("name", clv.String(c.Name))
	obj.Insert("backend", clv.String(c.Backend))
	obj.Insert("config", mapValue(c.Config))
	return clv.ObjectOf(obj)
}

// Value converts e to a cross-language object.
func (e EngineConfig) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("id", clv.String(e.ID))
	obj.Insert("name", clv.String(e.Name))
	obj.Insert("num_workers", optUint(e.NumWorkers))
	obj.Insert("max_retries", optUint(e.MaxRetries))
	obj.Insert("retry_interval", optUint(e.RetryInterval))
	obj.Insert("message_throttle_limit", optUint(e.MessageThrottleLimit))
	obj.Insert("message_throttle_delay", optUint(e.MessageThrottleDelay))
	return clv.ObjectOf(obj)
}

// Value converts r to a cross-language object.
func (r ResourceConfig) Value() clv.Value {
	obj := clv.NewObject()
	obj.Insert("id", clv.String(r.ID))
	obj.Insert("max_workers_allowed", optUint(r.MaxWorkersAllowed))
	obj.Insert("max_workers_per_collector", optUint(r.MaxWorkersPerCollector))
	obj.Insert("max_workers_per_engine", optUint(r.MaxWorkersPerEngine))
	obj.Insert("max_workers_per_querent", optUint(r.MaxWorkersPerQuerent))
	return clv.ObjectOf(obj)
}

func optUint(p *uint32) clv.Value {
	if p == nil {
		return clv.Null()
	}
	return clv.Int(int64(*p))
}

func mapValue(m map[string]string) clv.Value {
	obj := clv.NewObject()
	for k, v := range m {
		obj.Insert(k, clv.String(v))
	}
	return clv.ObjectOf(obj)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Uint32 returns a pointer to v, for the optional limit fields.
func Uint32(v uint32) *uint32 {
	return &v
}
