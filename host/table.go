package host

import (
	"sort"
	"sync"

	"github.com/chazu/libeval/vm"
)

// TypeProperty is the property isType compares against.
const TypeProperty = "type"

// Record is an object reference whose properties builtins can inspect.
type Record interface {
	vm.VarRef
	Name() string
	Lookup(property string) (vm.Value, bool)
}

// ---------------------------------------------------------------------------
// Table: in-memory host
// ---------------------------------------------------------------------------

// Table is an in-memory vm.Host holding bare variables and objects with
// properties. References read the table on every access, so programs see
// updates made after they were compiled. Table is safe for concurrent use.
type Table struct {
	*Funcs

	mu      sync.RWMutex
	vars    map[string]vm.Value
	objects map[string]map[string]vm.Value
}

// NewTable creates an empty table with the builtin methods registered.
func NewTable() *Table {
	return &Table{
		Funcs:   NewFuncs(),
		vars:    make(map[string]vm.Value),
		objects: make(map[string]map[string]vm.Value),
	}
}

// SetVar sets a bare variable.
func (t *Table) SetVar(name string, v vm.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vars[name] = v
}

// Define creates or replaces an object with the given properties.
func (t *Table) Define(object string, props map[string]vm.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := make(map[string]vm.Value, len(props))
	for k, v := range props {
		m[k] = v
	}
	t.objects[object] = m
}

// Set sets one property, creating the object if needed.
func (t *Table) Set(object, property string, v vm.Value) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.objects[object]
	if !ok {
		m = make(map[string]vm.Value)
		t.objects[object] = m
	}
	m[property] = v
}

// Objects returns the object names, sorted.
func (t *Table) Objects() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.objects))
	for name := range t.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Variables returns the bare variable names, sorted.
func (t *Table) Variables() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.vars))
	for name := range t.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveVariable implements vm.Host. A bare name resolves to a variable
// first, then to an object. A property of a known object that does not
// exist resolves to a TypeParseError reference.
func (t *Table) ResolveVariable(object, property string) vm.VarRef {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if property == "" {
		if _, ok := t.vars[object]; ok {
			return &tableVar{t: t, name: object}
		}
		if _, ok := t.objects[object]; ok {
			return &tableObject{t: t, name: object}
		}
		return nil
	}

	props, ok := t.objects[object]
	if !ok {
		return nil
	}
	if _, ok := props[property]; !ok {
		return badProperty{}
	}
	return &tableProp{t: t, object: object, property: property}
}

func (t *Table) lookup(object, property string) (vm.Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.objects[object][property]
	return v, ok
}

// tableVar references a bare variable.
type tableVar struct {
	t    *Table
	name string
}

func (r *tableVar) Type() vm.Type {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()
	return r.t.vars[r.name].Type()
}

func (r *tableVar) Value(ctx *vm.Context) vm.Value {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()
	return r.t.vars[r.name]
}

// tableObject references an object; its value is the object name.
type tableObject struct {
	t    *Table
	name string
}

func (r *tableObject) Type() vm.Type                  { return vm.TypeString }
func (r *tableObject) Value(ctx *vm.Context) vm.Value { return vm.NewString(r.name) }
func (r *tableObject) Name() string                   { return r.name }

func (r *tableObject) Lookup(property string) (vm.Value, bool) {
	return r.t.lookup(r.name, property)
}

// tableProp references one property of an object.
type tableProp struct {
	t        *Table
	object   string
	property string
}

func (r *tableProp) Type() vm.Type {
	v, _ := r.t.lookup(r.object, r.property)
	return v.Type()
}

func (r *tableProp) Value(ctx *vm.Context) vm.Value {
	v, ok := r.t.lookup(r.object, r.property)
	if !ok {
		ctx.ReportError("property '" + r.property + "' of '" + r.object + "' was removed")
	}
	return v
}

// badProperty is returned for a property the object does not have.
type badProperty struct{}

func (badProperty) Type() vm.Type                  { return vm.TypeParseError }
func (badProperty) Value(ctx *vm.Context) vm.Value { return vm.Value{} }
