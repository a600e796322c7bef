// Package rules evaluates the declarative document access policy.
//
// A policy names boolean definitions (signedIn, isOwner, ...) and, per
// operation, a list of CEL clauses that must all hold. Programs are compiled
// once when the engine is built. Any evaluation error denies the request.
package rules

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/and161185/expense-keeper/internal/model"
)

//go:embed policy.yaml
var defaultPolicy []byte

// Operation is the kind of access being authorized.
type Operation string

// Operations a policy may grant.
const (
	OpGet    Operation = "get"
	OpList   Operation = "list"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

var operations = []Operation{OpGet, OpList, OpCreate, OpUpdate, OpDelete}

// Policy is the parsed policy document.
type Policy struct {
	Collection    string                 `yaml:"collection"`
	AllowedFields []string               `yaml:"allowedFields"`
	Definitions   map[string]string      `yaml:"definitions"`
	Allow         map[Operation][]string `yaml:"allow"`
	DisjointACL   string                 `yaml:"disjointACL"`
}

// ParsePolicy decodes a YAML policy.
func ParsePolicy(src []byte) (Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(src, &p); err != nil {
		return p, fmt.Errorf("parse policy: %w", err)
	}
	for op := range p.Allow {
		known := false
		for _, o := range operations {
			known = known || o == op
		}
		if !known {
			return p, fmt.Errorf("parse policy: unknown operation %q", op)
		}
	}
	return p, nil
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(err)
	}
	return p
}

// Request carries everything a decision depends on.
type Request struct {
	Op       Operation
	Caller   model.Caller
	DocID    string
	Existing model.Fields // stored document, nil on create
	Incoming model.Fields // post-write document, nil on reads and delete
	Clauses  []model.Clause
}

type definition struct {
	name string
	prg  cel.Program
}

type clause struct {
	src string
	prg cel.Program
}

// Engine is safe for concurrent use.
type Engine struct {
	policy      Policy
	definitions []definition
	allow       map[Operation][]clause
	log         *zap.Logger
}

type options struct {
	policy      *Policy
	disjointACL bool
	log         *zap.Logger
}

// Option configures an Engine.
type Option func(*options)

// WithPolicy replaces the built-in policy.
func WithPolicy(p Policy) Option { return func(o *options) { o.policy = &p } }

// WithDisjointACL toggles the rule that an email may not hold both collaborator roles.
func WithDisjointACL(on bool) Option { return func(o *options) { o.disjointACL = on } }

// WithLogger sets the logger used for denial diagnostics.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// New compiles the policy. Compile failures are returned here and never at evaluation time.
func New(opts ...Option) (*Engine, error) {
	o := options{disjointACL: true, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	p := DefaultPolicy()
	if o.policy != nil {
		p = *o.policy
	}

	base, err := cel.NewEnv(
		cel.Variable("auth", cel.DynType),
		cel.Variable("existing", cel.DynType),
		cel.Variable("incoming", cel.DynType),
		cel.Variable("docId", cel.StringType),
		cel.Variable("clauses", cel.ListType(cel.DynType)),
		cel.Variable("allowedFields", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	e := &Engine{policy: p, allow: make(map[Operation][]clause), log: o.log}

	names := make([]string, 0, len(p.Definitions))
	for name := range p.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	defVars := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		prg, err := compile(base, p.Definitions[name])
		if err != nil {
			return nil, fmt.Errorf("definition %s: %w", name, err)
		}
		e.definitions = append(e.definitions, definition{name: name, prg: prg})
		defVars = append(defVars, cel.Variable(name, cel.BoolType))
	}

	env, err := base.Extend(defVars...)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	for op, srcs := range p.Allow {
		if o.disjointACL && p.DisjointACL != "" && (op == OpCreate || op == OpUpdate) {
			srcs = append(append([]string(nil), srcs...), p.DisjointACL)
		}
		for i, src := range srcs {
			prg, err := compile(env, src)
			if err != nil {
				return nil, fmt.Errorf("allow %s[%d]: %w", op, i, err)
			}
			e.allow[op] = append(e.allow[op], clause{src: src, prg: prg})
		}
	}
	return e, nil
}

func compile(env *cel.Env, src string) (cel.Program, error) {
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	return env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(1_000_000),
	)
}

// Policy returns the compiled policy.
func (e *Engine) Policy() Policy { return e.policy }

// Allow reports whether r is permitted. An operation with no clauses is denied.
func (e *Engine) Allow(r Request) bool {
	clauses := e.allow[r.Op]
	if len(clauses) == 0 {
		return false
	}
	vars := e.activation(r)
	for _, d := range e.definitions {
		vars[d.name] = evalBool(d.prg, vars)
	}
	for _, c := range clauses {
		if !evalBool(c.prg, vars) {
			e.log.Debug("rule denied",
				zap.String("op", string(r.Op)),
				zap.String("doc_id", r.DocID),
				zap.String("uid", r.Caller.UID),
				zap.String("clause", c.src))
			return false
		}
	}
	return true
}

func (e *Engine) activation(r Request) map[string]any {
	clauses := make([]any, len(r.Clauses))
	for i, c := range r.Clauses {
		clauses[i] = c.Attributes()
	}
	return map[string]any{
		"auth":          nullable(r.Caller.Attributes()),
		"existing":      nullable(r.Existing),
		"incoming":      nullable(r.Incoming),
		"docId":         r.DocID,
		"clauses":       clauses,
		"allowedFields": e.policy.AllowedFields,
	}
}

// nullable maps a nil map to an untyped nil so CEL sees null rather than {}.
func nullable[M ~map[string]any](m M) any {
	if m == nil {
		return nil
	}
	return map[string]any(m)
}

func evalBool(prg cel.Program, vars map[string]any) bool {
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
