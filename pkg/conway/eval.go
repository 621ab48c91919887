package conway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// Evaluator walks AST nodes against an Environment. It is not safe for
// concurrent use.
type Evaluator struct {
	env     *Environment
	strict  bool
	evalCtx *EvalContext
	logger  *slog.Logger
}

type EvalOption func(*Evaluator)

// WithStrictNames makes reading or bare-assigning an undefined name a
// *NameError instead of yielding Nothing or declaring the name.
func WithStrictNames(strict bool) EvalOption {
	return func(e *Evaluator) {
		e.strict = strict
	}
}

// WithSource attaches the source being evaluated so that errors are wrapped
// in a *SourceError pointing at the failing node.
func WithSource(filename, source string) EvalOption {
	return func(e *Evaluator) {
		e.evalCtx = NewEvalContext(filename, source)
	}
}

func WithLogger(logger *slog.Logger) EvalOption {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func NewEvaluator(env *Environment, opts ...EvalOption) *Evaluator {
	e := &Evaluator{
		env:    env,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Env() *Environment { return e.env }

func (e *Evaluator) Strict() bool { return e.strict }

func (e *Evaluator) SetStrict(strict bool) { e.strict = strict }

// SetSource replaces the source used for error locations.
func (e *Evaluator) SetSource(filename, source string) {
	WithSource(filename, source)(e)
}

// Eval evaluates a single node in the current scope.
func (e *Evaluator) Eval(ctx context.Context, node Node) (Value, error) {
	val, err := e.eval(ctx, node)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "evaluated node",
		"node", fmt.Sprintf("%T", node),
		"result", val.String(),
		"depth", e.env.Depth())
	return val, nil
}

// EvalAll evaluates nodes in order. It stops at the first error and returns
// no results in that case.
func (e *Evaluator) EvalAll(ctx context.Context, nodes []Node) ([]Value, error) {
	results := make([]Value, 0, len(nodes))
	for _, node := range nodes {
		val, err := e.Eval(ctx, node)
		if err != nil {
			return nil, err
		}
		results = append(results, val)
	}
	return results, nil
}

func (e *Evaluator) eval(ctx context.Context, node Node) (Value, error) {
	if node == nil {
		return nil, errMissingExpression
	}
	val, err := e.evalNode(ctx, node)
	if err != nil {
		if e.evalCtx != nil {
			return nil, e.evalCtx.CreateSourceError(err, node)
		}
		return nil, err
	}
	if val == nil {
		return nil, errors.Errorf("evaluating %T returned no value", node)
	}
	return val, nil
}

// errMissingExpression is returned for a nil node, such as a Unary built
// without a child.
var errMissingExpression = errors.New("missing expression")

func (e *Evaluator) evalNode(ctx context.Context, node Node) (Value, error) {
	switch n := node.(type) {
	case *Literal:
		return n.Value, nil

	case *Identifier:
		val := e.env.Get(n.Name)
		if _, missing := val.(NothingValue); missing && e.strict {
			return nil, &NameError{Name: n.Name, Op: "read"}
		}
		return val, nil

	case *Variable:
		e.env.Define(n.Name, NilValue{})
		return NilValue{}, nil

	case *Assignment:
		return e.evalAssignment(ctx, n)

	case *Unary:
		child, err := e.eval(ctx, n.Child)
		if err != nil {
			return nil, err
		}
		return n.Op.Apply(child)

	case *Print:
		return e.eval(ctx, n.Expr)

	case *Block:
		return e.evalBlock(ctx, n)

	case *Null:
		return nil, errors.New("incomplete expression: placeholder was never replaced")

	default:
		return nil, errors.Errorf("evaluation not implemented for node type %T", node)
	}
}

func (e *Evaluator) evalAssignment(ctx context.Context, n *Assignment) (Value, error) {
	val, err := e.eval(ctx, n.Value)
	if err != nil {
		return nil, err
	}

	if n.Let {
		e.env.Define(n.Name, val)
		return val, nil
	}

	if _, _, found := e.env.Lookup(n.Name); found {
		if err := e.env.Assign(n.Name, val); err != nil {
			return nil, err
		}
		return val, nil
	}

	if e.strict {
		return nil, &NameError{Name: n.Name, Op: "assign"}
	}
	e.env.Define(n.Name, val)
	return val, nil
}

// evalBlock runs forms in a child scope and always restores the enclosing
// scope, whether or not a form fails.
func (e *Evaluator) evalBlock(ctx context.Context, b *Block) (result Value, err error) {
	e.env.Push()
	defer func() {
		if popErr := e.env.Pop(); popErr != nil && err == nil {
			result, err = nil, popErr
		}
	}()

	result = NilValue{}
	for _, form := range b.Forms {
		result, err = e.eval(ctx, form)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
