package bot

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrUnknownCallback   = errors.New("unknown callback")
	ErrMalformedCallback = errors.New("malformed callback")
)

// CallbackFunc handles a callback. ids holds the numeric ids that followed the prefix.
type CallbackFunc func(ctx context.Context, ev *Event, ids []int64) error

type prefixRoute struct {
	prefix string
	arity  int
	fn     CallbackFunc
}

// Router dispatches callback payloads. Exact payloads win, then prefixes longest first.
type Router struct {
	exact    map[string]CallbackFunc
	prefixes []prefixRoute
}

func NewRouter() *Router {
	return &Router{exact: make(map[string]CallbackFunc)}
}

func (r *Router) Exact(payload string, fn CallbackFunc) {
	r.exact[payload] = fn
}

// Prefix registers a payload of the form prefix + arity "_"-joined integers
func (r *Router) Prefix(prefix string, arity int, fn CallbackFunc) {
	r.prefixes = append(r.prefixes, prefixRoute{prefix: prefix, arity: arity, fn: fn})
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
}

// Match resolves a payload to its handler and parsed ids
func (r *Router) Match(payload string) (CallbackFunc, []int64, error) {
	if fn, ok := r.exact[payload]; ok {
		return fn, nil, nil
	}
	for _, route := range r.prefixes {
		if !strings.HasPrefix(payload, route.prefix) {
			continue
		}
		ids, err := parseIDs(strings.TrimPrefix(payload, route.prefix), route.arity)
		if err != nil {
			return nil, nil, err
		}
		return route.fn, ids, nil
	}
	return nil, nil, ErrUnknownCallback
}

func parseIDs(rest string, arity int) ([]int64, error) {
	parts := strings.Split(rest, "_")
	if len(parts) != arity {
		return nil, ErrMalformedCallback
	}
	ids := make([]int64, arity)
	for i, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, ErrMalformedCallback
		}
		ids[i] = id
	}
	return ids, nil
}

// Payload builds a callback payload from a prefix and ids
func Payload(prefix string, ids ...int64) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i, id := range ids {
		if i > 0 {
			b.WriteByte('_')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
