package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
)

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Returns 200 OK with uptime and version while the process is running.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	refreshsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(clock service.Clock, startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, refreshsdk.HealthResponse{
			Status:  "ok",
			Uptime:  clock.Now().Sub(startTime).String(),
			Version: version,
		})
	}
}
