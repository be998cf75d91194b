package server

import "net/http"

// RouterGroup registers routes under a shared path prefix. Group middleware
// runs inside the router middleware, in the order it was added.
type RouterGroup struct {
	prefix     string
	middleware []Middleware
	router     Router
}

func (rg *RouterGroup) Use(middleware ...Middleware) {
	rg.middleware = append(rg.middleware, middleware...)
}

func (rg *RouterGroup) Handle(pattern string, handler http.Handler) {
	rg.router.Handle(rg.pattern(pattern), chain(handler, rg.middleware))
}

func (rg *RouterGroup) HandleFunc(pattern string, handlerFunc func(http.ResponseWriter, *http.Request)) {
	rg.Handle(pattern, http.HandlerFunc(handlerFunc))
}

// Group nests a prefix. The child inherits a copy of the current middleware.
func (rg *RouterGroup) Group(prefix string) *RouterGroup {
	return &RouterGroup{
		prefix:     rg.prefix + prefix,
		middleware: append([]Middleware(nil), rg.middleware...),
		router:     rg.router,
	}
}

// pattern inserts the group prefix after an optional "METHOD " part.
func (rg *RouterGroup) pattern(p string) string {
	ep := parseEndpoint(p)
	if ep.Method == "" {
		return rg.prefix + p
	}
	return ep.Method + " " + rg.prefix + ep.Path
}

// chain wraps h so that middleware[0] sees the request first.
func chain(h http.Handler, middleware []Middleware) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
