package server

import (
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"

	"github.com/gin-gonic/gin"
)

// PprofConfig mounts net/http/pprof under /debug/pprof.
//
// Without a token the routes are only mounted on a loopback address.
type PprofConfig struct {
	Enabled bool
	Token   string // "Authorization: Bearer <token>" or ?token=<token>
}

const pprofPrefix = "/debug/pprof"

func (s *Server) mountPprof(r *gin.Engine) {
	cfg := s.cfg.Pprof
	if !cfg.Enabled {
		return
	}
	tok := strings.TrimSpace(cfg.Token)
	if tok == "" && !isLoopbackAddr(s.cfg.Addr) {
		s.log.Warn("pprof not mounted: non-loopback addr requires a token")
		return
	}
	g := r.Group(pprofPrefix, requireToken(tok))
	g.GET("/*name", pprofHandler)
	g.POST("/*name", pprofHandler)
	s.log.Info("pprof mounted")
}

func pprofHandler(c *gin.Context) {
	switch name := strings.Trim(c.Param("name"), "/"); name {
	case "":
		hpprof.Index(c.Writer, c.Request)
	case "cmdline":
		hpprof.Cmdline(c.Writer, c.Request)
	case "profile":
		hpprof.Profile(c.Writer, c.Request)
	case "symbol":
		hpprof.Symbol(c.Writer, c.Request)
	case "trace":
		hpprof.Trace(c.Writer, c.Request)
	default:
		hpprof.Handler(name).ServeHTTP(c.Writer, c.Request)
	}
}

func requireToken(tok string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok == "" {
			c.Next()
			return
		}
		got := c.Query("token")
		if got == "" {
			const p = "Bearer "
			if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, p) {
				got = strings.TrimSpace(strings.TrimPrefix(ah, p))
			}
		}
		if got != tok {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// isLoopbackAddr reports whether host:port binds only to loopback.
// An empty host means all interfaces.
func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
