package routers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/penggy/cors"

	"github.com/yusiwen/rtsp4k/log"
	"github.com/yusiwen/rtsp4k/metrics"
	"github.com/yusiwen/rtsp4k/models"
	"github.com/yusiwen/rtsp4k/relay"
)

// StreamRegistry is the part of *relay.Registry the API needs.
type StreamRegistry interface {
	Add(ctx context.Context, route, input string) (models.StreamSession, error)
	Remove(route string) (map[string]models.StreamSession, error)
	List() map[string]models.StreamSession
	StateCounts() map[models.SessionState]int
}

type APIHandler struct {
	Registry     StreamRegistry
	DataDir      string
	Metrics      *metrics.Metrics
	LiveInterval time.Duration
}

var (
	Router        *gin.Engine
	API           = &APIHandler{}
	BuildVersion  = "v1.0"
	BuildDateTime = ""
)

// Errors turns the last handler error into {"detail": "<ErrorKind>: <detail>"}.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		if bindErr := c.Errors.ByType(gin.ErrorTypeBind).Last(); bindErr != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": bindErr.Error()})
			return
		}
		err := c.Errors.Last().Err
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": relay.Describe(err)})
	}
}

func Init(h *APIHandler) (err error) {
	API = h
	if API.LiveInterval <= 0 {
		API.LiveInterval = 400 * time.Millisecond
	}
	gin.SetMode(gin.ReleaseMode)
	Router = gin.New()
	pprof.Register(Router)
	Router.Use(gin.LoggerWithWriter(log.StandardLogger().Writer()))
	Router.Use(gin.Recovery())
	Router.Use(Errors())
	Router.Use(cors.Default())

	Router.GET("/", API.Index)
	Router.GET("/health", API.Health)
	if API.Metrics != nil {
		Router.GET("/metrics", gin.WrapH(API.Metrics.Handler()))
	}

	{
		streams := Router.Group("/streams")
		streams.GET("", API.StreamList)
		streams.POST("", API.StreamAdd)
		streams.DELETE("", API.StreamDelete)
		streams.GET("/live", API.StreamsLive)
	}

	{
		api := Router.Group("/api/v1")
		api.GET("/sessions", API.Sessions)
	}
	return
}

func (h *APIHandler) Index(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"message": "rtsp4k relay is up, POST /streams to start relaying",
		"version": BuildVersion,
		"build":   BuildDateTime,
	})
}
