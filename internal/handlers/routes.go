package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimit rejects requests beyond the shared limiter's budget.
func RateLimit(limiter *rate.Limiter, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			log.Warnf("rate limit exceeded: %s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "error": http.StatusText(http.StatusTooManyRequests)})
			return
		}
		c.Next()
	}
}

func Register(rg *gin.Engine, h *Handler) {
	rg.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })

	rg.POST("/holdings", h.PostBuy)
	rg.GET("/holding-list", h.GetHoldings)
	rg.POST("/sell", h.PostSell)
	rg.GET("/logs", h.GetActivity)
	rg.DELETE("/logs/:id", h.DeleteActivity)

	rg.GET("/unrealized", h.GetUnrealized)
	rg.GET("/summary", h.GetSummary)

	rg.GET("/stocks", h.GetStocks)
	rg.GET("/stocks/:symbol", h.GetStock)

	rg.POST("/watchlist", h.PostWatch)
	rg.GET("/watchlist", h.GetWatchlist)
	rg.DELETE("/watchlist/:id", h.DeleteWatch)
}
