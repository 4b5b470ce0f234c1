// Package control serves a small local HTTP API for inspecting and poking
// the background mechanisms.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/sessionguard/pkg/activity"
	"github.com/Veraticus/sessionguard/pkg/delivery"
)

// Runner reports whether a recurring mechanism is armed.
type Runner interface {
	Running() bool
}

// Poller is the refresh poller as seen by the API.
type Poller interface {
	Runner
	ManualRefresh(ctx context.Context) error
}

// Queue is the delivery queue as seen by the API.
type Queue interface {
	Enqueue(item delivery.Item) error
	Stats() delivery.Stats
	Processing() bool
}

// ActivityReader exposes the last user interaction.
type ActivityReader interface {
	LastActivity() time.Time
}

// Emitter publishes activity signals.
type Emitter interface {
	Emit(kind activity.Kind)
}

// UnreadCounter reports the last observed unread inbox count.
type UnreadCounter interface {
	Unread() int
}

// Deps are the collaborators behind the endpoints. Inbox and Metrics may be
// nil.
type Deps struct {
	Monitor  Runner
	Poller   Poller
	Queue    Queue
	Activity ActivityReader
	Signals  Emitter
	Inbox    UnreadCounter
	Metrics  http.Handler
	Logger   *slog.Logger
}

// Router builds the gin handler.
//
// Endpoints:
//
//	GET  /status    mechanism state, last activity, queue counters
//	POST /refresh   manual refresh, 502 when the refresh fails
//	POST /notify    body {"title","body","icon"}, 202 once queued
//	POST /activity  body {"kind"} (optional, defaults to key-press)
//	GET  /metrics   prometheus exposition
type Router struct {
	deps Deps
}

// NewRouter creates a router over deps.
func NewRouter(deps Deps) *Router {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Router{deps: deps}
}

// Handler returns an http.Handler powered by gin.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/status", r.handleStatus)
	g.POST("/refresh", r.handleRefresh)
	g.POST("/notify", r.handleNotify)
	g.POST("/activity", r.handleActivity)
	if r.deps.Metrics != nil {
		g.GET("/metrics", gin.WrapH(r.deps.Metrics))
	}
	return g
}

// Server is a running control API.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and serves the router in the background.
func Listen(addr string, r *Router) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      45 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.deps.Logger.Error("control server stopped", "error", err)
		}
	}()
	return &Server{srv: srv, ln: ln}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type queueStatus struct {
	Processing bool `json:"processing"`
	Pending    int  `json:"pending"`
	Delivered  int  `json:"delivered"`
	Failed     int  `json:"failed"`
	Dropped    int  `json:"dropped"`
	Cycles     int  `json:"cycles"`
}

type statusResp struct {
	MonitorRunning bool        `json:"monitor_running"`
	PollerRunning  bool        `json:"poller_running"`
	LastActivity   time.Time   `json:"last_activity"`
	Unread         int         `json:"unread"`
	Queue          queueStatus `json:"queue"`
}

func (r *Router) handleStatus(c *gin.Context) {
	stats := r.deps.Queue.Stats()
	resp := statusResp{
		MonitorRunning: r.deps.Monitor.Running(),
		PollerRunning:  r.deps.Poller.Running(),
		LastActivity:   r.deps.Activity.LastActivity(),
		Queue: queueStatus{
			Processing: r.deps.Queue.Processing(),
			Pending:    stats.Pending,
			Delivered:  stats.Delivered,
			Failed:     stats.Failed,
			Dropped:    stats.Dropped,
			Cycles:     stats.Cycles,
		},
	}
	if r.deps.Inbox != nil {
		resp.Unread = r.deps.Inbox.Unread()
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleRefresh(c *gin.Context) {
	if err := r.deps.Poller.ManualRefresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, okResp{OK: true})
}

type notifyReq struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

func (r *Router) handleNotify(c *gin.Context) {
	var req notifyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.Title == "" {
		c.JSON(http.StatusBadRequest, errorResp{Error: "title required"})
		return
	}
	if err := r.deps.Queue.Enqueue(delivery.Item{Title: req.Title, Body: req.Body, Icon: req.Icon}); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, okResp{OK: true})
}

type activityReq struct {
	Kind string `json:"kind"`
}

func (r *Router) handleActivity(c *gin.Context) {
	var req activityReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
			return
		}
	}

	kind := activity.KeyPress
	if req.Kind != "" {
		k, ok := activity.ParseKind(req.Kind)
		if !ok {
			c.JSON(http.StatusBadRequest, errorResp{Error: fmt.Sprintf("unknown activity kind %q", req.Kind)})
			return
		}
		kind = k
	}
	r.deps.Signals.Emit(kind)
	c.JSON(http.StatusOK, okResp{OK: true})
}
