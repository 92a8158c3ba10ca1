package composition

import (
	"fmt"
)

// Bindable is implemented by the concrete type descriptors a context binds
// model names to. Embed Holder to satisfy it.
type Bindable interface {
	CompositionType() *Type
	attachType(*Type)
}

// Holder carries the composition type descriptor for a bound concrete type.
// Embed it in each descriptor struct.
type Holder struct {
	typ *Type
}

// CompositionType returns the descriptor assigned when the holder was bound.
func (h *Holder) CompositionType() *Type { return h.typ }

func (h *Holder) attachType(t *Type) { h.typ = t }

// Type is the runtime descriptor a context attaches to every bound concrete
// type: its declared events, applied features, deferred setup actions, and a
// back-reference to the context for sibling resolution.
type Type struct {
	name     string
	ctx      *Context
	events   *Events
	features []string
	setups   []func() error
}

// Name returns the model name the type is bound under.
func (t *Type) Name() string { return t.name }

// Context returns the owning composition context.
func (t *Type) Context() *Context { return t.ctx }

// Events returns the type's event registry.
func (t *Type) Events() *Events { return t.events }

// Features returns the names of the features applied to the type, in
// application order.
func (t *Type) Features() []string {
	out := make([]string, len(t.features))
	copy(out, t.features)
	return out
}

// HasFeature reports whether a feature was applied to the type.
func (t *Type) HasFeature(name string) bool {
	for _, f := range t.features {
		if f == name {
			return true
		}
	}
	return false
}

func (t *Type) addFeature(name string) {
	if !t.HasFeature(name) {
		t.features = append(t.features, name)
	}
}

// Structure registers a schema fragment under the type's model label.
func (t *Type) Structure(frag Fragment) {
	t.ctx.schema.Register(t.name, frag)
}

// Setup defers an action until every model and feature behavior has been
// applied. Used for wiring that needs the complete type graph, e.g. reverse
// associations onto every purchasable type.
func (t *Type) Setup(fn func() error) {
	t.setups = append(t.setups, fn)
}

// Behavior is one behavior-injection step run against a bound type. Behaviors
// receive the type descriptor for event/schema/sibling access and the bound
// descriptor itself for capability attachment via type assertion.
type Behavior func(t *Type, b Bindable) error

// Model is a named template: ordered behaviors plus schema fragments, applied
// to exactly one bound concrete type per context.
type Model struct {
	name      string
	behaviors []Behavior
	fragments []Fragment
}

// Name returns the model name.
func (m *Model) Name() string { return m.name }

// Structure appends a schema fragment to the model definition.
func (m *Model) Structure(frag Fragment) {
	m.fragments = append(m.fragments, frag)
}

// Behavior appends a behavior closure to the model definition.
func (m *Model) Behavior(fn Behavior) {
	if fn != nil {
		m.behaviors = append(m.behaviors, fn)
	}
}

// Feature is a named bundle of per-model-name behaviors, optionally selected
// per deployment. Multiple definitions may share a name; they accumulate.
type Feature struct {
	name    string
	targets []featureTarget
}

type featureTarget struct {
	model string
	fn    Behavior
}

// Name returns the feature name.
func (f *Feature) Name() string { return f.name }

// BehaviorFor pushes a behavior targeting a model name. Targets absent from a
// context's bindings are skipped silently at apply time.
func (f *Feature) BehaviorFor(model string, fn Behavior) {
	if model == "" || fn == nil {
		return
	}
	f.targets = append(f.targets, featureTarget{model: model, fn: fn})
}

// Registry holds the process-wide model and feature definitions. It is
// populated once at load time and read by contexts afterwards. Construct one
// explicitly and thread it through; there is no ambient global.
type Registry struct {
	models   map[string]*Model
	features map[string][]*Feature
	order    []string // feature registration order
}

// NewRegistry constructs an empty definition registry.
func NewRegistry() *Registry {
	return &Registry{
		models:   make(map[string]*Model),
		features: make(map[string][]*Feature),
	}
}

// DefineModel registers a model definition under a name and runs fn to
// populate it. Defining the same name twice replaces the earlier definition.
func (r *Registry) DefineModel(name string, fn func(*Model)) *Model {
	m := &Model{name: name}
	if fn != nil {
		fn(m)
	}
	r.models[name] = m
	return m
}

// DefineFeature registers a feature definition under a name and runs fn to
// populate it. Repeated definitions under one name append rather than
// replace; this is how a feature accumulates capability variants.
func (r *Registry) DefineFeature(name string, fn func(*Feature)) *Feature {
	f := &Feature{name: name}
	if fn != nil {
		fn(f)
	}
	if _, seen := r.features[name]; !seen {
		r.order = append(r.order, name)
	}
	r.features[name] = append(r.features[name], f)
	return f
}

// Model returns a registered model definition, or nil.
func (r *Registry) Model(name string) *Model {
	return r.models[name]
}

// Context binds model names to concrete type descriptors plus a selection of
// features, and applies them exactly once. Built at process startup;
// read-only afterwards.
type Context struct {
	name     string
	registry *Registry
	schema   *SchemaRegistry
	bindings map[string]Bindable
	order    []string // binding order
	selected []string // feature selection order
	applied  bool
}

// NewContext constructs an unapplied context over the registry.
func (r *Registry) NewContext(name string) *Context {
	return &Context{
		name:     name,
		registry: r,
		schema:   NewSchemaRegistry(),
		bindings: make(map[string]Bindable),
	}
}

// Name returns the context name.
func (c *Context) Name() string { return c.name }

// Schema returns the context's aggregated schema registry.
func (c *Context) Schema() *SchemaRegistry { return c.schema }

// Bind associates a model name with a concrete type descriptor. Binding is
// lazy and idempotent: the first binding for a name wins and repeat calls
// return the existing descriptor.
func (c *Context) Bind(name string, b Bindable) Bindable {
	if existing, ok := c.bindings[name]; ok {
		return existing
	}
	t := &Type{name: name, ctx: c, events: NewEvents()}
	b.attachType(t)
	c.bindings[name] = b
	c.order = append(c.order, name)
	return b
}

// Bound returns the descriptor bound under a model name, or nil. Behaviors
// use it to resolve sibling models through the context.
func (c *Context) Bound(name string) Bindable {
	return c.bindings[name]
}

// Select names a feature to activate during Apply. Selection order is
// application order; repeat selections are ignored.
func (c *Context) Select(feature string) {
	for _, f := range c.selected {
		if f == feature {
			return
		}
	}
	c.selected = append(c.selected, feature)
}

// Applied reports whether Apply has run.
func (c *Context) Applied() bool { return c.applied }

// Apply performs composition exactly once: model behaviors for every binding,
// then selected feature behaviors in selection order, then deferred setup
// actions. Any failure is a configuration error; callers should abort
// startup.
func (c *Context) Apply() error {
	if c.applied {
		return fmt.Errorf("context %q already applied", c.name)
	}

	for _, name := range c.order {
		def := c.registry.models[name]
		if def == nil {
			return fmt.Errorf("no model definition for %q", name)
		}
		b := c.bindings[name]
		t := b.CompositionType()
		for _, frag := range def.fragments {
			c.schema.Register(name, frag)
		}
		for _, fn := range def.behaviors {
			if err := fn(t, b); err != nil {
				return fmt.Errorf("model %q: %w", name, err)
			}
		}
	}

	for _, featName := range c.selected {
		for _, feat := range c.registry.features[featName] {
			for _, target := range feat.targets {
				b, ok := c.bindings[target.model]
				if !ok {
					continue // feature targets a model absent from this deployment
				}
				t := b.CompositionType()
				if err := target.fn(t, b); err != nil {
					return fmt.Errorf("feature %q on %q: %w", featName, target.model, err)
				}
				t.addFeature(featName)
			}
		}
	}

	for _, name := range c.order {
		t := c.bindings[name].CompositionType()
		for _, setup := range t.setups {
			if err := setup(); err != nil {
				return fmt.Errorf("setup for %q: %w", name, err)
			}
		}
	}

	c.applied = true
	return nil
}

// ReplayTable replays the aggregated schema fragments for a bound model
// against a table builder. Valid only after Apply.
func (c *Context) ReplayTable(model string, tb TableBuilder) error {
	if !c.applied {
		return fmt.Errorf("context %q not applied", c.name)
	}
	return c.schema.Replay(model, tb)
}

// Models returns the bound model names in binding order.
func (c *Context) Models() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
