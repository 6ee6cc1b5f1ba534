// Package remote implements a concrete remote collaborator: a REST transport over
// net/http, with by-id batching/coalescing and a set of wire-format/status-code
// conventions for talking to a JSON REST backend.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nodeware/go-datasource/datasource"
	"github.com/nodeware/go-datasource/sourcecache"
)

// defaultBatchWindow is the debounce window for by-id coalescing when Config.BatchWindow
// is left zero.
const defaultBatchWindow = 10 * time.Millisecond

// Config configures a Source.
type Config struct {
	// Client is the http.Client used for every request. Defaults to http.DefaultClient.
	Client *http.Client
	// Headers are set on every outgoing request (e.g. Authorization).
	Headers map[string]string
	// BatchWindow is the by-id coalescing debounce window. Defaults to 10ms.
	BatchWindow time.Duration
}

// Source is the network-backed collaborator: it performs REST calls via the entity's
// Bindings URLs and never persists anything itself — Clear/ClearForRequest are no-ops.
type Source[T any] struct {
	client   *http.Client
	headers  map[string]string
	bindings sourcecache.Bindings[T]
	batcher  *idBatcher[T]
}

// New builds a Source for entity T.
func New[T any](cfg Config) *Source[T] {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	window := cfg.BatchWindow
	if window <= 0 {
		window = defaultBatchWindow
	}
	s := &Source[T]{client: client, headers: cfg.Headers}
	s.batcher = newIDBatcher(window, s.fetchByIDs)
	return s
}

func (s *Source[T]) Kind() datasource.SourceKind { return datasource.KindRemote }

func (s *Source[T]) Bindings() sourcecache.Bindings[T] { return s.bindings }

func (s *Source[T]) SetBindings(b sourcecache.Bindings[T]) { s.bindings = b }

// GetByID is coalesced through the by-id batcher: successive calls within the window
// collapse into a single id__in request.
func (s *Source[T]) GetByID(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.ReadResult[T] {
	if err := details.AssertEmpty("remote.Source.GetByID"); err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](err)
	}
	item, ok, err := s.batcher.get(ctx, id)
	if err != nil {
		return sourcecache.Failed[sourcecache.Option[T]](err)
	}
	if !ok {
		return sourcecache.Ok(sourcecache.None[T]())
	}
	return sourcecache.Ok(sourcecache.Some(item))
}

// GetByIDs is an explicit bulk request — already one request, so it bypasses the
// batcher entirely.
func (s *Source[T]) GetByIDs(ctx context.Context, ids []string, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	if err := details.AssertEmpty("remote.Source.GetByIDs"); err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}
	found, err := s.fetchByIDs(ctx, ids)
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}
	items := make([]T, 0, len(found))
	missing := make([]string, 0)
	for _, id := range ids {
		if item, ok := found[id]; ok {
			items = append(items, item)
		} else {
			missing = append(missing, id)
		}
	}
	return sourcecache.Ok(sourcecache.ManyPayload[T]{Items: items, Missing: missing})
}

// fetchByIDs issues the single id__in request both GetByIDs and the batcher's flush use.
func (s *Source[T]) fetchByIDs(ctx context.Context, ids []string) (map[string]T, error) {
	if len(ids) == 0 {
		return map[string]T{}, nil
	}
	values := url.Values{}
	values.Set("id__in", joinIDs(ids))
	target := s.bindings.ListURL() + "?" + values.Encode()

	body, status, err := s.doRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(status); err != nil {
		return nil, err
	}
	raws, err := decodeListPayload(body)
	if err != nil {
		return nil, sourcecache.Wrap(sourcecache.ServerError, "decode list response", err)
	}
	out := make(map[string]T, len(raws))
	for _, raw := range raws {
		item, err := s.bindings.FromWire(raw)
		if err != nil {
			return nil, sourcecache.Wrap(sourcecache.ServerError, "decode entity", err)
		}
		if id, ok := s.bindings.IDOf(item); ok {
			out[id] = item
		}
	}
	return out, nil
}

// GetItems serializes details.Filter().ToParams() plus pagination into query
// parameters against the list URL. A RemoteIncompatibleFilter fails loudly rather than
// silently sending an empty query.
func (s *Source[T]) GetItems(ctx context.Context, details sourcecache.RequestDetails) sourcecache.ReadManyResult[T] {
	values := url.Values{}
	if f := details.Filter(); f != nil {
		if ri, ok := f.(sourcecache.RemoteIncompatibleFilter); ok && ri.RemoteIncompatible() {
			return sourcecache.Failed[sourcecache.ManyPayload[T]](
				sourcecache.NewUnexpected("remote.Source.GetItems: filter is not remote-compatible"))
		}
		for k, v := range f.ToParams() {
			values.Set(k, v)
		}
	}
	if p := details.Pagination(); p != nil {
		pageSize := p.PageSize
		if pageSize == 0 {
			pageSize = sourcecache.DefaultPageSize
		}
		values.Set("page", strconv.FormatUint(uint64(p.Page), 10))
		values.Set("page_size", strconv.FormatUint(uint64(pageSize), 10))
	}

	target := s.bindings.ListURL()
	if len(values) > 0 {
		target += "?" + values.Encode()
	}

	body, status, err := s.doRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}
	if err := classifyStatus(status); err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](err)
	}
	raws, err := decodeListPayload(body)
	if err != nil {
		return sourcecache.Failed[sourcecache.ManyPayload[T]](sourcecache.Wrap(sourcecache.ServerError, "decode list response", err))
	}
	items := make([]T, 0, len(raws))
	for _, raw := range raws {
		item, err := s.bindings.FromWire(raw)
		if err != nil {
			return sourcecache.Failed[sourcecache.ManyPayload[T]](sourcecache.Wrap(sourcecache.ServerError, "decode entity", err))
		}
		items = append(items, item)
	}
	return sourcecache.Ok(sourcecache.ManyPayload[T]{Items: items})
}

// SetItem dispatches PUT to the detail URL when id is present (update), or POST to the
// create URL when absent (create).
func (s *Source[T]) SetItem(ctx context.Context, item T, details sourcecache.RequestDetails) sourcecache.WriteResult[T] {
	id, hasID := s.bindings.IDOf(item)

	var method, target string
	if hasID {
		method, target = http.MethodPut, s.bindings.DetailURL(id)
	} else {
		createURL := s.bindings.CreateURL
		if createURL == nil {
			createURL = s.bindings.ListURL
		}
		method, target = http.MethodPost, createURL()
	}

	payload, err := s.bindings.ToWire(item)
	if err != nil {
		return sourcecache.Failed[T](sourcecache.Wrap(sourcecache.ServerError, "encode entity", err))
	}

	body, status, err := s.doRequest(ctx, method, target, payload)
	if err != nil {
		return sourcecache.Failed[T](err)
	}
	if err := classifyStatus(status); err != nil {
		return sourcecache.Failed[T](err)
	}

	result, err := s.bindings.FromWire(body)
	if err != nil {
		return sourcecache.Failed[T](sourcecache.Wrap(sourcecache.ServerError, "decode entity", err))
	}
	if !hasID {
		if _, ok := s.bindings.IDOf(result); !ok {
			return sourcecache.Failed[T](sourcecache.NewServerError("create response carries no id"))
		}
	}
	return sourcecache.Ok(result)
}

// SetItems is unsupported on a remote source: bulk creation must go one-by-one through
// SetItem so each new entity gets its own server-assigned id.
func (s *Source[T]) SetItems(ctx context.Context, items []T, details sourcecache.RequestDetails) sourcecache.WriteListResult {
	return sourcecache.FailedList(sourcecache.NewUnexpected("remote.Source.SetItems is unsupported; writes must go through SetItem"))
}

// Delete issues DELETE against the detail URL.
func (s *Source[T]) Delete(ctx context.Context, id string, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	_, status, err := s.doRequest(ctx, http.MethodDelete, s.bindings.DetailURL(id), nil)
	if err != nil {
		return sourcecache.Failed[struct{}](err)
	}
	if err := classifyStatus(status); err != nil {
		return sourcecache.Failed[struct{}](err)
	}
	return sourcecache.OkList()
}

// DeleteIDs issues one DELETE per id, aborting on the first failure.
func (s *Source[T]) DeleteIDs(ctx context.Context, ids []string) sourcecache.DeleteResult {
	for _, id := range ids {
		if res := s.Delete(ctx, id, sourcecache.RequestDetails{}); res.IsFailure() {
			return res
		}
	}
	return sourcecache.OkList()
}

// Clear and ClearForRequest are no-ops: a remote source holds no local state to purge.
func (s *Source[T]) Clear(ctx context.Context) sourcecache.DeleteResult { return sourcecache.OkList() }

func (s *Source[T]) ClearForRequest(ctx context.Context, details sourcecache.RequestDetails) sourcecache.DeleteResult {
	return sourcecache.OkList()
}

func (s *Source[T]) doRequest(ctx context.Context, method, target string, payload []byte) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, sourcecache.Wrap(sourcecache.ServerError, "build request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, sourcecache.Wrap(sourcecache.ServerError, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, sourcecache.Wrap(sourcecache.ServerError, "read response body", err)
	}
	return body, resp.StatusCode, nil
}

// classifyStatus maps an HTTP status code to the corresponding error kind.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 400 && status < 500:
		return sourcecache.NewBadRequest(fmt.Sprintf("remote responded %d", status))
	case status >= 500 && status < 600:
		return sourcecache.NewServerError(fmt.Sprintf("remote responded %d", status))
	default:
		return sourcecache.NewServerError(fmt.Sprintf("Unexpected status %d", status))
	}
}

func joinIDs(ids []string) string {
	out := ids[0]
	for _, id := range ids[1:] {
		out += "," + id
	}
	return out
}

var _ datasource.Source[any] = (*Source[any])(nil)
