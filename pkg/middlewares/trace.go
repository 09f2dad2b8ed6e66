package middleware

import (
	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TraceID attaches a trace id to every request: taken from the X-Trace-Id
// header when the caller supplies one, minted otherwise. The id rides the
// Gin context into handlers and services and is echoed on the response so
// callers can correlate their own logs.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.Request.Header.Get(pkg.HeaderTraceId)
		if utils.IsEmpty(traceID) {
			traceID = uuid.New().String()
		}
		c.Set(pkg.TraceId, traceID)
		c.Writer.Header().Set(pkg.HeaderTraceId, traceID)
		c.Next()
	}
}
