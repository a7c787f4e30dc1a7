package engine

import (
	"context"
	"slices"
	"strings"

	"github.com/habiliai/dataagent/internal/stringutils"
	"github.com/habiliai/dataagent/tool"
	"github.com/samber/lo"
)

const maxIndexedSummary = 200

// indexAnswer stores a delivered answer in memory without blocking the
// question. The next ProcessQuestion waits for it.
func (r *run) indexAnswer(ctx context.Context, payload any) {
	if r.retriever == nil {
		return
	}

	var index func(ctx context.Context) error
	switch answer := payload.(type) {
	case *tool.ComputedAnswer:
		sql := indexedSQL(answer.Inputs)
		if sql == "" {
			return
		}
		summary := ""
		if answer.Result != nil {
			summary = stringutils.Prefix(answer.Result.String(), maxIndexedSummary)
		}
		index = func(ctx context.Context) error {
			return r.retriever.IndexSuccessfulQuery(ctx, r.question, sql, summary, r.sess.ID)
		}
	case *tool.ObservationAnswer:
		observation := answer.Observation
		index = func(ctx context.Context) error {
			return r.retriever.IndexObservation(ctx, observation, r.question, r.sess.ID)
		}
	default:
		return
	}

	ctx = context.WithoutCancel(ctx)
	r.indexing.Add(1)
	go func() {
		defer r.indexing.Done()

		ctx, cancel := withTimeout(ctx, r.memoryTimeout)
		defer cancel()

		if err := index(ctx); err != nil {
			r.logger.WarnContext(ctx, "failed to index answer", "err", err)
		}
	}()
}

// indexedSQL renders the inputs of a computed answer. A single input is stored
// as-is, several are labeled by name.
func indexedSQL(inputs map[string]string) string {
	switch len(inputs) {
	case 0:
		return ""
	case 1:
		for _, sql := range inputs {
			return sql
		}
	}

	names := lo.Keys(inputs)
	slices.Sort(names)

	parts := make([]string, 0, len(inputs))
	for _, name := range names {
		parts = append(parts, "-- "+name+"\n"+inputs[name])
	}
	return strings.Join(parts, "\n\n")
}
