package ops

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-arena-server/internal/hub"
	"github.com/park285/chess-arena-server/internal/obslog"
)

// Server exposes liveness and matchmaking stats on a listener separate from
// the game traffic, so operators can poll it without touching the hub path.
type Server struct {
	srv   *fasthttp.Server
	stats func() hub.Stats
}

func NewServer(stats func() hub.Stats) *Server {
	s := &Server{stats: stats}
	s.srv = &fasthttp.Server{Handler: s.route, Name: "arena-ops"}
	return s
}

// ListenAndServe blocks; run it in its own goroutine.
func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown() error { return s.srv.Shutdown() }

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/healthz":
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	case "/stats":
		raw, err := json.Marshal(s.stats())
		if err != nil {
			obslog.L().Error("ops_stats_encode_error", zap.Error(err))
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBody(raw)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}
