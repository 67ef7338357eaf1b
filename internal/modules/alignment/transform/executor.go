package transform

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/embers-fuse/internal/domain/alignment"
	"github.com/yungbote/embers-fuse/internal/platform/fault"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

const DefaultRecordTimeout = 2 * time.Second

type ExecutorOptions struct {
	// FieldPrefix names canonical fields: FieldPrefix + label.
	FieldPrefix string
	// Timeout bounds one record's conversion.
	Timeout time.Duration
	// Workers converts records concurrently when > 1.
	Workers int
}

type Executor struct {
	log  *logger.Logger
	opts ExecutorOptions
}

func NewExecutor(log *logger.Logger, opts ExecutorOptions) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRecordTimeout
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Executor{log: log.With("component", "TransformationExecutor"), opts: opts}
}

// Outcome counts what happened to each record for one (document, label).
type Outcome struct {
	Converted        int
	Unconvertible    int
	MissingReference int
	// Preserved records already held a converted value and were left alone.
	Preserved int
}

func (o Outcome) Changed() bool {
	return o.Converted+o.Unconvertible+o.MissingReference > 0
}

// Apply writes the canonical field for label into every record. Records are
// mutated in place. An infeasible spec changes nothing. Per-record failures
// are recorded on the record and counted, never returned.
func (e *Executor) Apply(ctx context.Context, documentID, label string, spec alignment.TransformationSpec, records []alignment.SampleRecord) (Outcome, error) {
	var out Outcome
	if !spec.Feasible() {
		return out, nil
	}
	log := e.log.With("document_id", documentID, "label", label)
	field := alignment.CanonicalField(e.opts.FieldPrefix, label)

	prog, compileErr := Compile(spec.Code)
	if compileErr != nil {
		log.Warn("transform does not compile, marking records unconvertible", "error", compileErr)
	}

	results := make([]*alignment.AlignedValue, len(records))
	convert := func(i int) {
		rec := records[i]
		if prev, ok := alignment.ParseAlignedValue(rec[field]); ok && prev.Status == alignment.StatusConverted {
			return
		}
		input, missing := referenceFields(rec, spec.InputKeys)
		if missing != "" {
			log.Debug("record not attempted", "record", i, "missing_key", missing)
			results[i] = &alignment.AlignedValue{Status: alignment.StatusMissingReference}
			return
		}
		if compileErr != nil {
			results[i] = &alignment.AlignedValue{Status: alignment.StatusUnconvertible}
			return
		}
		val, err := prog.Run(ctx, input, e.opts.Timeout)
		if err != nil {
			log.Debug("record conversion failed", "record", i, "error", fault.TransformInvocation(label, err))
			results[i] = &alignment.AlignedValue{Status: alignment.StatusUnconvertible}
			return
		}
		results[i] = &alignment.AlignedValue{Aligned: val, Status: alignment.StatusConverted}
	}

	if e.opts.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)
		for i := range records {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				convert(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Outcome{}, fmt.Errorf("apply %s: %w", label, err)
		}
	} else {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return Outcome{}, fmt.Errorf("apply %s: %w", label, err)
			}
			convert(i)
		}
	}
	// A record that raced a cancellation may have been marked unconvertible.
	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("apply %s: %w", label, err)
	}

	for i, r := range results {
		if r == nil {
			out.Preserved++
			continue
		}
		records[i][field] = r.Map()
		switch r.Status {
		case alignment.StatusConverted:
			out.Converted++
		case alignment.StatusUnconvertible:
			out.Unconvertible++
		case alignment.StatusMissingReference:
			out.MissingReference++
		}
	}
	log.Debug("transform applied",
		"converted", out.Converted,
		"unconvertible", out.Unconvertible,
		"missing_reference", out.MissingReference,
		"preserved", out.Preserved,
	)
	return out, nil
}

// referenceFields restricts rec to keys. It returns the first absent key.
func referenceFields(rec alignment.SampleRecord, keys []string) (map[string]any, string) {
	input := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			return nil, k
		}
		input[k] = v
	}
	return input, ""
}
