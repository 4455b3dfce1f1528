package httpapi

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"riskgate/internal/engine"
	"riskgate/internal/risk"
)

const maxBody = 64 << 10

func (s *Server) handleHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "msg": "riskgate middleware running"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Health(s.blackouts))
}

// handleWebhook accepts a JSON alert or a bare text body such as "buy".
// Rejections are answered with 200 so the alerting platform does not retry.
func (s *Server) handleWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBody))
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"ok": false, "reason": "body_too_large"})
		return
	}
	sig := parseAlert(body, s.now())

	switch out := s.engine.OnSignal(c.Request.Context(), sig).(type) {
	case engine.Accepted:
		c.JSON(http.StatusOK, gin.H{
			"ok":           true,
			"symbol":       out.Symbol,
			"signal":       out.Signal,
			"price":        out.Price,
			"realized_pnl": out.Realized,
			"state":        out.State,
			"exec":         out.Exec,
		})
	case engine.Rejected:
		resp := gin.H{"ok": false, "reason": out.Reason}
		switch out.Reason {
		case risk.ReasonSymbolNotAllowed:
			resp["symbol"] = out.Detail
		case risk.ReasonInvalidSignal:
			resp["got"] = out.Detail
		default:
			if out.Detail != "" {
				resp["detail"] = out.Detail
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func parseAlert(body []byte, receivedAt time.Time) risk.Signal {
	raw := strings.TrimSpace(string(body))
	parsed := gjson.Parse(raw)
	if !gjson.Valid(raw) || !parsed.IsObject() {
		signal := raw
		if gjson.Valid(raw) && parsed.Type == gjson.String {
			signal = parsed.Str
		}
		return risk.NewSignal("", signal, "", "", receivedAt)
	}
	return risk.NewSignal(
		parsed.Get("symbol").String(),
		parsed.Get("signal").String(),
		priceText(parsed.Get("price")),
		parsed.Get("time").String(),
		receivedAt,
	)
}

func priceText(v gjson.Result) string {
	switch v.Type {
	case gjson.Number:
		return v.Raw
	case gjson.String:
		return v.Str
	default:
		return ""
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminToken == "" {
			c.Next()
			return
		}
		got := c.GetHeader("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid admin token"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleSwitch(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.engine.SetEnabled(enabled)
		c.JSON(http.StatusOK, gin.H{"ok": true, "enabled": enabled})
	}
}

func (s *Server) handleDecisions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit > 1000 {
		limit = 1000
	}
	rows, err := s.decisions.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": rows})
}
