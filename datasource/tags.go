package datasource

import "context"

type requestTagsKey struct{}

// WithRequestTags attaches diagnostic tags to ctx (e.g. a request id or the caller's
// identity), picked up by backfill-failure log lines so a single failed write can be
// traced back to the read that triggered it.
func WithRequestTags(ctx context.Context, tags map[string]string) context.Context {
	existing := requestTagsFromContext(ctx)
	merged := make(map[string]string, len(existing)+len(tags))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return context.WithValue(ctx, requestTagsKey{}, merged)
}

// requestTagsFromContext returns the tags attached via WithRequestTags, or nil.
func requestTagsFromContext(ctx context.Context) map[string]string {
	tags, _ := ctx.Value(requestTagsKey{}).(map[string]string)
	return tags
}
