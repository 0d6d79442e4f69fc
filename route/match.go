package route

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// predicate is a parsed "k=v", "k!=v", "k" or "!k" expression.
type predicate struct {
	key    string
	value  string
	negate bool
	hasVal bool
}

func parsePredicate(expr string) predicate {
	expr = strings.TrimSpace(expr)
	if i := strings.Index(expr, "!="); i > 0 {
		return predicate{key: strings.TrimSpace(expr[:i]), value: strings.TrimSpace(expr[i+2:]), negate: true, hasVal: true}
	}
	if i := strings.IndexByte(expr, '='); i > 0 {
		return predicate{key: strings.TrimSpace(expr[:i]), value: strings.TrimSpace(expr[i+1:]), hasVal: true}
	}
	if strings.HasPrefix(expr, "!") {
		return predicate{key: strings.TrimSpace(expr[1:]), negate: true}
	}
	return predicate{key: expr}
}

func (p predicate) test(values []string, present bool) bool {
	if !p.hasVal {
		return present != p.negate
	}
	found := false
	for _, v := range values {
		if v == p.value {
			found = true
			break
		}
	}
	return found != p.negate
}

func headerMatcher(exprs []string) mux.MatcherFunc {
	preds := make([]predicate, 0, len(exprs))
	for _, e := range exprs {
		preds = append(preds, parsePredicate(e))
	}
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		for _, p := range preds {
			vals := r.Header.Values(p.key)
			if !p.test(vals, len(vals) > 0) {
				return false
			}
		}
		return true
	}
}

func paramMatcher(exprs []string) mux.MatcherFunc {
	preds := make([]predicate, 0, len(exprs))
	for _, e := range exprs {
		preds = append(preds, parsePredicate(e))
	}
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		q := r.URL.Query()
		for _, p := range preds {
			vals, present := q[p.key]
			if !p.test(vals, present) {
				return false
			}
		}
		return true
	}
}

// mediaMatches compares media types with "*" wildcards on either side.
func mediaMatches(a, b string) bool {
	at, as, _ := strings.Cut(a, "/")
	bt, bs, _ := strings.Cut(b, "/")
	typeOK := at == "*" || bt == "*" || strings.EqualFold(at, bt)
	subOK := as == "*" || bs == "*" || strings.EqualFold(as, bs)
	return typeOK && subOK
}

func parseMedia(s string) string {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(s))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return mt
}

// consumesMatcher checks the request Content-Type. A request without one
// is treated as application/octet-stream.
func consumesMatcher(types []string) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		got := parseMedia(ct)
		for _, want := range types {
			if mediaMatches(parseMedia(want), got) {
				return true
			}
		}
		return false
	}
}

// producesMatcher checks Accept. An absent Accept header accepts anything.
func producesMatcher(types []string) mux.MatcherFunc {
	return func(r *http.Request, _ *mux.RouteMatch) bool {
		accept := r.Header.Values("Accept")
		if len(accept) == 0 {
			return true
		}
		for _, line := range accept {
			for _, a := range strings.Split(line, ",") {
				got := parseMedia(a)
				for _, want := range types {
					if mediaMatches(parseMedia(want), got) {
						return true
					}
				}
			}
		}
		return false
	}
}

// apply adds the entry's predicates to route.
func (e *Entry) apply(route *mux.Route) *mux.Route {
	if len(e.Methods) > 0 {
		route = route.Methods(e.Methods...)
	}
	if len(e.Headers) > 0 {
		route = route.MatcherFunc(headerMatcher(e.Headers))
	}
	if len(e.Params) > 0 {
		route = route.MatcherFunc(paramMatcher(e.Params))
	}
	if len(e.Consumes) > 0 {
		route = route.MatcherFunc(consumesMatcher(e.Consumes))
	}
	if len(e.Produces) > 0 {
		route = route.MatcherFunc(producesMatcher(e.Produces))
	}
	return route
}
