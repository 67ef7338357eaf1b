package steps

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/embers-fuse/internal/platform/ctxutil"
	"github.com/yungbote/embers-fuse/internal/platform/logger"
)

// DocumentFailure records a document whose processing failed. Other
// documents are unaffected.
type DocumentFailure struct {
	DocumentID string `json:"document_id"`
	Error      string `json:"error"`
}

// forEachDocument runs fn for every document with at most workers in flight.
// A document is only ever handled by one worker. Per-document errors are
// collected; only cancellation stops the loop.
func forEachDocument(ctx context.Context, log *logger.Logger, docs []string, workers int, fn func(ctx context.Context, documentID string) error) ([]DocumentFailure, error) {
	if workers < 1 {
		workers = 1
	}
	var (
		mu       sync.Mutex
		failures []DocumentFailure
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := fn(ctxutil.WithDocument(gctx, doc), doc)
			if err == nil {
				return nil
			}
			if errors.Is(err, context.Canceled) && gctx.Err() != nil {
				return err
			}
			log.Warn("document failed", "document_id", doc, "error", err)
			mu.Lock()
			failures = append(failures, DocumentFailure{DocumentID: doc, Error: err.Error()})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failures, err
	}
	if err := ctx.Err(); err != nil {
		return failures, err
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].DocumentID < failures[j].DocumentID })
	return failures, nil
}

// dedupeSorted drops blank and repeated entries. Kept entries are exact: raw
// keys must still match the record fields they name.
func dedupeSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
