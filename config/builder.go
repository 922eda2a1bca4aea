package config

import (
	"github.com/wippyai/synapse/channel"
)

// Builder assembles a Config. Unset fields take their defaults.
type Builder struct {
	resource     *ResourceConfig
	workflow     *WorkflowConfig
	channel      *channel.Handler
	eventHandler *channel.EventHandler
	version      *float64
	querentID    *string
	querentName  *string
	collectors   []CollectorConfig
	engines      []EngineConfig
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Version(v float64) *Builder {
	b.version = &v
	return b
}

func (b *Builder) QuerentID(id string) *Builder {
	b.querentID = &id
	return b
}

func (b *Builder) QuerentName(name string) *Builder {
	b.querentName = &name
	return b
}

func (b *Builder) Workflow(w WorkflowConfig) *Builder {
	b.workflow = &w
	return b
}

func (b *Builder) Collectors(c ...CollectorConfig) *Builder {
	b.collectors = append(b.collectors, c...)
	return b
}

func (b *Builder) Engines(e ...EngineConfig) *Builder {
	b.engines = append(b.engines, e...)
	return b
}

func (b *Builder) Resource(r *ResourceConfig) *Builder {
	b.resource = r
	return b
}

// ChannelHandler sets the workflow channel when the workflow has none.
func (b *Builder) ChannelHandler(h *channel.Handler) *Builder {
	b.channel = h
	return b
}

// EventHandler sets the workflow event handler when the workflow has none.
func (b *Builder) EventHandler(h *channel.EventHandler) *Builder {
	b.eventHandler = h
	return b
}

// Build returns the assembled configuration.
func (b *Builder) Build() *Config {
	cfg := Default()
	if b.version != nil {
		cfg.Version = *b.version
	}
	if b.querentID != nil {
		cfg.QuerentID = *b.querentID
	}
	if b.querentName != nil {
		cfg.QuerentName = *b.querentName
	}
	if b.workflow != nil {
		cfg.Workflow = *b.workflow
		cfg.Workflow.Config = cloneMap(b.workflow.Config)
	}
	if cfg.Workflow.Channel == nil {
		cfg.Workflow.Channel = b.channel
	}
	if cfg.Workflow.EventHandler == nil {
		cfg.Workflow.EventHandler = b.eventHandler
	}
	cfg.Collectors = append([]CollectorConfig(nil), b.collectors...)
	cfg.Engines = append([]EngineConfig(nil), b.engines...)
	for i := range cfg.Engines {
		if cfg.Engines[i].Channel == nil && cfg.Engines[i].Throttle() != nil {
			cfg.Engines[i].Channel = cfg.Engines[i].NewChannel()
		}
	}
	if b.resource != nil {
		r := *b.resource
		cfg.Resource = &r
	}
	return cfg
}
