package httpserver

import (
	"context"
	"time"

	"fibreflow/internal/handler"
	"fibreflow/pkg/metrics"
	"fibreflow/pkg/mq"
	"fibreflow/pkg/trace"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(
	workflowHandler *handler.WorkflowHandler,
	taskHandler *handler.TaskHandler,
	clientHandler *handler.ClientHandler,
	logger *zap.Logger,
	db *pgxpool.Pool,
	consumer *mq.Consumer,
) *gin.Engine {
	r := gin.Default()

	// trace-id 中间件
	r.Use(func(c *gin.Context) {
		traceID := c.GetHeader(trace.HeaderName())
		if traceID == "" {
			traceID = trace.GenerateTraceID()
		}
		ctx := trace.WithContext(c.Request.Context(), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(trace.HeaderName(), traceID)
		c.Next()
	})

	// 添加请求日志中间件
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("trace_id", trace.FromContext(c.Request.Context())),
		)
		metrics.RecordHTTPRequestDuration(c.Request.Method, c.FullPath(), statusLabel(c.Writer.Status()), latency)
	})

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if consumer != nil && !consumer.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/projects/:id/overview", workflowHandler.GetOverview)
	r.POST("/projects/:id/phases/:phaseId/advance", workflowHandler.AdvancePhase)
	r.GET("/projects/:id/client-view", clientHandler.GetClientView)
	r.GET("/tasks/my-tasks", taskHandler.GetMyTasks)
	r.PATCH("/tasks/:id/progress", taskHandler.UpdateProgress)
	r.PATCH("/tasks/:id/assign", taskHandler.AssignTask)
	return r
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
