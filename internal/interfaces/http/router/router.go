// Package router assembles the gin engine of the board sync service.
package router

import (
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts a handler's routes on a group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars either under the versioned API prefix or at the
// engine root. Board callbacks and health checks live at the root because their
// URLs are handed to external systems.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	api        []RouteRegistrar
	root       []RouteRegistrar
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix, e.g. "v1"
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a Router for engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// APIPrefix returns the prefix API registrars are mounted under
func (r *Router) APIPrefix() string {
	return "/api/" + r.apiVersion
}

// Register queues a registrar for the API prefix
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.api = append(r.api, registrar)
	return r
}

// RegisterRoot queues a registrar for the engine root
func (r *Router) RegisterRoot(registrar RouteRegistrar) *Router {
	r.root = append(r.root, registrar)
	return r
}

// Setup mounts every queued registrar and returns the routes it added as
// sorted "METHOD path" strings.
func (r *Router) Setup() []string {
	existing := make(map[string]struct{})
	for _, rt := range r.engine.Routes() {
		existing[rt.Method+" "+rt.Path] = struct{}{}
	}

	rootGroup := r.engine.Group("")
	for _, registrar := range r.root {
		registrar.RegisterRoutes(rootGroup)
	}
	api := r.engine.Group(r.APIPrefix())
	for _, registrar := range r.api {
		registrar.RegisterRoutes(api)
	}

	var mounted []string
	for _, rt := range r.engine.Routes() {
		key := rt.Method + " " + rt.Path
		if _, ok := existing[key]; !ok {
			mounted = append(mounted, key)
		}
	}
	sort.Strings(mounted)
	return mounted
}

// RouteGroup is a RouteRegistrar built from inline handlers
type RouteGroup struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewRouteGroup creates a group mounted under prefix
func NewRouteGroup(prefix string) *RouteGroup {
	return &RouteGroup{prefix: prefix}
}

// Prefix returns the group prefix
func (g *RouteGroup) Prefix() string {
	return g.prefix
}

// Use adds middleware applied to every route of the group
func (g *RouteGroup) Use(middleware ...gin.HandlerFunc) *RouteGroup {
	g.middleware = append(g.middleware, middleware...)
	return g
}

// Handle adds a route. method is case-insensitive.
func (g *RouteGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *RouteGroup {
	g.routes = append(g.routes, route{method: strings.ToUpper(method), path: path, handlers: handlers})
	return g
}

// GET adds a GET route
func (g *RouteGroup) GET(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodGet, path, handlers...)
}

// POST adds a POST route
func (g *RouteGroup) POST(path string, handlers ...gin.HandlerFunc) *RouteGroup {
	return g.Handle(http.MethodPost, path, handlers...)
}

// RegisterRoutes implements RouteRegistrar
func (g *RouteGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		group.Handle(rt.method, rt.path, rt.handlers...)
	}
}

// registrarFunc adapts a function to RouteRegistrar
type registrarFunc func(rg *gin.RouterGroup)

func (f registrarFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }
