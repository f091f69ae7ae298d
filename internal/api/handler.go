package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wager-core/internal/engine"
	"wager-core/internal/events"
	"wager-core/internal/monitor"
)

// Server wires HTTP endpoints around the engine facade and the event bus.
type Server struct {
	Router  *gin.Engine
	Engine  engine.Service
	Bus     *events.Bus
	Metrics *monitor.SystemMetrics
}

// Options tunes the middleware stack.
type Options struct {
	RateLimit      float64 // requests per second per IP
	RateBurst      int
	RequestTimeout time.Duration
}

// DefaultOptions mirrors the production middleware settings.
func DefaultOptions() Options {
	return Options{RateLimit: 20, RateBurst: 50, RequestTimeout: 30 * time.Second}
}

func NewServer(svc engine.Service, bus *events.Bus, metrics *monitor.SystemMetrics, opts Options) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware(opts.RateLimit, opts.RateBurst))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Engine:  svc,
		Bus:     bus,
		Metrics: metrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/balance", s.getBalance)
		api.GET("/pnl", s.getPnL)
		api.GET("/risk", s.getRisk)
		api.GET("/quote", s.getQuote)

		mkt := api.Group("/market")
		{
			mkt.PUT("/active", s.setActive)
			mkt.GET("/:symbol/price", s.getPrice)
			mkt.GET("/:symbol/ticks", s.getTicks)
			mkt.GET("/:symbol/candles", s.getCandles)
			mkt.GET("/:symbol/trend", s.getTrend)
		}

		trades := api.Group("/trades")
		{
			trades.POST("", s.placeTrade)
			trades.GET("/active", s.getActiveTrades)
			trades.GET("/history", s.getTradeHistory)
			trades.DELETE("/:id", s.cancelTrade)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
