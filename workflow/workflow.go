package workflow

import (
	"github.com/wippyai/synapse/clv"
	"github.com/wippyai/synapse/config"
	"github.com/wippyai/synapse/engine"
	"github.com/wippyai/synapse/errors"
)

// Workflow is a registered unit of work: a callable plus the arguments and
// configuration it runs with. Exactly one of Import and Code is set.
type Workflow struct {
	Config   *config.Config
	Name     string
	ID       string
	Import   string
	Code     string
	Attr     string
	StopAttr string
	Args     []clv.Value
}

// Validate checks the identity and callable fields.
func (w Workflow) Validate() error {
	switch {
	case w.ID == "":
		return errors.InvalidInput(errors.PhaseRegistry, "workflow id is empty")
	case w.Import != "" && w.Code != "":
		return errors.InvalidInput(errors.PhaseRegistry, "workflow "+w.ID+" sets both import and code")
	case w.Import == "" && w.Code == "":
		return errors.InvalidInput(errors.PhaseRegistry, "workflow "+w.ID+" sets neither import nor code")
	case w.Attr == "":
		return errors.InvalidInput(errors.PhaseRegistry, "workflow "+w.ID+" has no attribute")
	}
	return nil
}

// Call builds the dispatcher request that runs w.
func (w Workflow) Call() engine.Call {
	return w.call(w.ID, w.Attr)
}

// StopCall builds the request that stops w. ok is false when w has no
// stop attribute.
func (w Workflow) StopCall() (engine.Call, bool) {
	if w.StopAttr == "" {
		return engine.Call{}, false
	}
	return w.call(w.ID+"/stop", w.StopAttr), true
}

func (w Workflow) call(id, attr string) engine.Call {
	c := engine.Call{
		Callable: engine.Callable{ID: id, Import: w.Import, Attr: attr},
		Args:     append([]clv.Value(nil), w.Args...),
		Config:   w.Config,
	}
	if w.Code != "" {
		c.Callable.Code = []byte(w.Code)
	}
	return c
}

// Builder assembles a Workflow.
type Builder struct {
	w Workflow
}

// NewBuilder starts a workflow with the given id. The name defaults to the
// id.
func NewBuilder(id string) *Builder {
	return &Builder{w: Workflow{ID: id, Name: id}}
}

func (b *Builder) Name(name string) *Builder {
	b.w.Name = name
	return b
}

// Import runs attr of the named module.
func (b *Builder) Import(module, attr string) *Builder {
	b.w.Import, b.w.Code, b.w.Attr = module, "", attr
	return b
}

// Code runs attr of inline source compiled for this workflow.
func (b *Builder) Code(src, attr string) *Builder {
	b.w.Import, b.w.Code, b.w.Attr = "", src, attr
	return b
}

func (b *Builder) StopAttr(attr string) *Builder {
	b.w.StopAttr = attr
	return b
}

func (b *Builder) Args(args ...clv.Value) *Builder {
	b.w.Args = append(b.w.Args, args...)
	return b
}

func (b *Builder) Config(cfg *config.Config) *Builder {
	b.w.Config = cfg
	return b
}

// Build validates and returns the workflow.
func (b *Builder) Build() (Workflow, error) {
	if err := b.w.Validate(); err != nil {
		return Workflow{}, err
	}
	w := b.w
	w.Args = append([]clv.Value(nil), b.w.Args...)
	return w, nil
}
