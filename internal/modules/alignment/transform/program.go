package transform

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	ErrTimeout     = errors.New("transform timed out")
	ErrResultShape = errors.New("transform returned a non-scalar value")
)

// Program is a compiled conversion procedure. The source is an expression
// evaluated with a single variable, input, holding the reference fields of one
// record.
type Program struct {
	source string
	prog   *vm.Program
}

func compileEnv() map[string]any {
	return map[string]any{"input": map[string]any{}}
}

func Compile(source string) (*Program, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("compile transform: empty source")
	}
	prog, err := expr.Compile(source, expr.Env(compileEnv()))
	if err != nil {
		return nil, fmt.Errorf("compile transform: %w", err)
	}
	return &Program{source: source, prog: prog}, nil
}

func (p *Program) Source() string { return p.source }

// Run evaluates the program over input. A panic, an evaluation error, a
// timeout or a result that is not a JSON scalar all return an error.
func (p *Program) Run(ctx context.Context, input map[string]any, timeout time.Duration) (any, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val any
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("transform panicked: %v", r)}
			}
		}()
		val, err := expr.Run(p.prog, map[string]any{"input": input})
		done <- result{val: val, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return scalar(r.val)
	}
}

// scalar accepts strings, booleans and finite numbers.
func scalar(v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%w: nil", ErrResultShape)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v, nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %v", ErrResultShape, f)
		}
		return v, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrResultShape, v)
}
