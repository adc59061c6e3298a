package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	amqpConn    *amqp.Connection
}

func NewHealthHandler(dbPool *pgxpool.Pool, redisClient *redis.Client, amqpConn *amqp.Connection) *HealthHandler {
	return &HealthHandler{dbPool: dbPool, redisClient: redisClient, amqpConn: amqpConn}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "kanjique-api"})
}

// Readyz pings each backing store; the first unavailable dependency fails
// the probe.
func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx := c.Request.Context()

	deps := gin.H{"postgres": "connected", "redis": "connected", "rabbitmq": "connected"}

	if err := h.dbPool.Ping(ctx); err != nil {
		deps["postgres"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "deps": deps})
		return
	}
	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		deps["redis"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "deps": deps})
		return
	}
	if h.amqpConn.IsClosed() {
		deps["rabbitmq"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "deps": deps})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "deps": deps})
}
