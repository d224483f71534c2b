package api

import (
	"net/http"
	"runtime"
	"time"

	"lastmile/internal/buildinfo"
)

// DebugJSON handles GET /debug/info. Secrets and URLs are reported only as
// present or absent.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build":    buildinfo.Info(),
		"go":       runtime.Version(),
		"time":     time.Now().UTC().Format(time.RFC3339),
		"sessions": s.Sessions.Len(),
		"routines": runtime.NumGoroutine(),
		"cities":   len(s.Cities.List()),
		"config": map[string]any{
			"addr":            s.Config.Server.Addr,
			"allowOrigins":    s.Config.Server.AllowOrigins,
			"rateRps":         s.Config.RateLimit.RPS,
			"rateBurst":       s.Config.RateLimit.Burst,
			"logLevel":        s.Config.Log.Level,
			"hasRedisUrl":     s.Config.Redis.URL != "",
			"hasDatabaseUrl":  s.Config.Database.URL != "",
			"webhooksEnabled": s.Config.Webhook.URL != "",
			"webhookAttempts": s.Config.Webhook.MaxAttempts,
			"tickInterval":    s.Config.Playback.TickInterval.String(),
		},
	})
}
