package ctxutil

import "context"

type runDataKey struct{}

// RunData identifies the pipeline run and, when set, the document being processed.
type RunData struct {
	RunID      string
	Stage      string
	DocumentID string
}

func WithRunData(ctx context.Context, rd *RunData) context.Context {
	return context.WithValue(ctx, runDataKey{}, rd)
}

func GetRunData(ctx context.Context) *RunData {
	if ctx == nil {
		return nil
	}
	val := ctx.Value(runDataKey{})
	if rd, ok := val.(*RunData); ok {
		return rd
	}
	return nil
}

// WithDocument returns a child context whose RunData carries documentID.
// The parent's RunData is copied, never mutated.
func WithDocument(ctx context.Context, documentID string) context.Context {
	next := RunData{DocumentID: documentID}
	if rd := GetRunData(ctx); rd != nil {
		next.RunID = rd.RunID
		next.Stage = rd.Stage
	}
	return WithRunData(ctx, &next)
}
