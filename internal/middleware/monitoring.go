package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fjfoyain/reservation-boss/internal/monitoring"
)

// HTTPMetrics HTTP 指标中间件
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)

		if c.Writer.Status() >= 500 {
			metrics.RecordError("http_error", "http")
		}
	}
}

// BusinessMetrics 业务指标中间件，按端点与响应状态记录预订与取消的业务计数。
func BusinessMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		switch c.FullPath() {
		case "/reserve":
			if c.Request.Method != http.MethodPost {
				return
			}
			if status == http.StatusCreated {
				metrics.RecordReservationCreated()
			} else if status >= 400 && status < 500 {
				metrics.RecordReservationRejected(strconv.Itoa(status))
			}
		case "/cancellation/request-code":
			if status == http.StatusOK {
				metrics.RecordCancellationCodeSent()
			} else if status >= 400 && status < 500 {
				metrics.RecordCancellationFailure(strconv.Itoa(status))
			}
		case "/cancellation/verify-and-cancel":
			if status == http.StatusOK {
				metrics.RecordReservationCancelled()
			} else if status >= 400 && status < 500 {
				metrics.RecordCancellationFailure(strconv.Itoa(status))
			}
		}
	}
}
