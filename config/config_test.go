package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/synapse/channel"
	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/errors"
)

const sampleYAML = `
version: 0.2
querent_id: q1
querent_name: Test Querent
workflow:
  name: ingest
  id: wf1
  config:
    mode: fast
collectors:
  - id: c1
    name: files
    backend: local
engines:
  - id: e1
    name: llm
    num_workers: 4
    message_throttle_limit: 10
    message_throttle_delay: 50
resource:
  id: r1
  max_workers_allowed: 8
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 0.2, cfg.Version)
	assert.Equal(t, "q1", cfg.QuerentID)
	assert.Equal(t, "Test Querent", cfg.QuerentName)
	assert.Equal(t, "wf1", cfg.Workflow.ID)
	assert.Equal(t, map[string]string{"mode": "fast"}, cfg.Workflow.Config)
	require.Len(t, cfg.Collectors, 1)
	assert.Equal(t, "local", cfg.Collectors[0].Backend)
	require.Len(t, cfg.Engines, 1)
	require.NotNil(t, cfg.Engines[0].NumWorkers)
	assert.Equal(t, uint32(4), *cfg.Engines[0].NumWorkers)
	assert.Nil(t, cfg.Engines[0].MaxRetries)
	require.NotNil(t, cfg.Resource)
	assert.Equal(t, uint32(8), *cfg.Resource.MaxWorkersAllowed)

	assert.Nil(t, cfg.Workflow.Channel, "handlers are attached by Connect")
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("querent_name: Only Name\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultVersion, cfg.Version)
	assert.Equal(t, DefaultQuerentID, cfg.QuerentID)
	assert.Equal(t, DefaultWorkflowID, cfg.Workflow.ID)

	empty, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().QuerentName, empty.QuerentName)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "querent_idd: x\n"},
		{"bad type", "version: [1]\n"},
		{"duplicate engine", "engines:\n  - id: e\n  - id: e\n"},
		{"duplicate collector", "collectors:\n  - id: c\n  - id: c\n"},
		{"empty engine id", "engines:\n  - name: n\n"},
		{"empty querent id", "querent_id: ''\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "q1", cfg.QuerentID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	data, err := cfg.Marshal()
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, clv.Equal(cfg.Value(), again.Value()))
}

func TestConnect(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	cfg.Connect()

	require.NotNil(t, cfg.Workflow.Channel)
	require.NotNil(t, cfg.Workflow.EventHandler)
	require.NotNil(t, cfg.Collectors[0].Channel)
	require.NotNil(t, cfg.Engines[0].Channel)

	ch := cfg.Workflow.Channel
	cfg.Connect()
	assert.Same(t, ch, cfg.Workflow.Channel, "Connect keeps existing handlers")

	cfg.Close()
	assert.True(t, ch.Closed())
}

func TestEngineThrottle(t *testing.T) {
	assert.Nil(t, EngineConfig{}.Throttle())
	assert.Nil(t, EngineConfig{MessageThrottleLimit: Uint32(0)}.Throttle())

	e := EngineConfig{ID: "e", MessageThrottleLimit: Uint32(2), MessageThrottleDelay: Uint32(60_000)}
	l := e.Throttle()
	require.NotNil(t, l)
	assert.Equal(t, 2, l.Burst())

	h := e.NewChannel()
	require.NoError(t, h.SendInHost(channel.MessageStatus, channel.MessageState{}))
	require.NoError(t, h.SendInHost(channel.MessageStatus, channel.MessageState{}))
	assert.ErrorIs(t, h.SendInHost(channel.MessageStatus, channel.MessageState{}), errors.ErrChannel)
}

func TestCloneSharesHandlers(t *testing.T) {
	cfg := NewBuilder().
		ChannelHandler(channel.NewHandler()).
		EventHandler(channel.NewEventHandler(4)).
		Workflow(WorkflowConfig{Name: "w", ID: "w", Config: map[string]string{"a": "1"}}).
		Build()

	cp := cfg.Clone()
	assert.Same(t, cfg.Workflow.Channel, cp.Workflow.Channel)
	assert.Same(t, cfg.Workflow.EventHandler, cp.Workflow.EventHandler)

	cp.Workflow.Config["a"] = "2"
	assert.Equal(t, "1", cfg.Workflow.Config["a"])

	require.NoError(t, cp.Workflow.Channel.SendInHost(channel.MessageStart, channel.MessageState{Payload: "x"}))
	msg, status := cfg.Workflow.Channel.ReceiveInHost()
	require.Equal(t, channel.Received, status)
	assert.Equal(t, "x", msg.Payload)
}

func TestBuilderDefaults(t *testing.T) {
	cfg := NewBuilder().Build()
	assert.Equal(t, DefaultVersion, cfg.Version)
	assert.Equal(t, DefaultQuerentID, cfg.QuerentID)
	assert.Equal(t, DefaultQuerentName, cfg.QuerentName)
	assert.Equal(t, DefaultWorkflowName, cfg.Workflow.Name)
	assert.Empty(t, cfg.Collectors)
	assert.Empty(t, cfg.Engines)
	assert.Nil(t, cfg.Resource)

	throttled := NewBuilder().Engines(EngineConfig{ID: "e", MessageThrottleLimit: Uint32(1)}).Build()
	assert.NotNil(t, throttled.Engines[0].Channel)
}

func TestValue(t *testing.T) {
	cfg := NewBuilder().
		QuerentID("q").
		Engines(EngineConfig{ID: "e", Name: "n", NumWorkers: Uint32(3)}).
		Build()

	v := cfg.Value()
	qid, _ := v.Field("querent_id")
	assert.True(t, clv.Equal(qid, clv.String("q")))

	engines, _ := v.Field("engines")
	first, ok := engines.Index(0)
	require.True(t, ok)
	workers, _ := first.Field("num_workers")
	assert.True(t, clv.Equal(workers, clv.Int(3)))
	retries, _ := first.Field("max_retries")
	assert.True(t, retries.IsNull())

	res, _ := v.Field("resource")
	assert.True(t, res.IsNull())
}
