package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/refreshsdk"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

// SignerChecker reports whether the signing key resolves.
type SignerChecker interface {
	CheckSigner(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the token store and that the signing key resolves from the vault.
//	@Description	Returns 503 with the failing checks when the service cannot refresh tokens.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	refreshsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	refreshsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	clock service.Clock,
	startTime time.Time,
	version string,
	st Pinger,
	signer SignerChecker,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := slogx.FromContext(ctx)

		checks := &refreshsdk.HealthChecks{
			Store:  "ok",
			Signer: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(ctx); err != nil {
			log.Warn("readiness: store unreachable", "err", err)
			checks.Store = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		// Causes stay in the log; they may name vault paths.
		if err := signer.CheckSigner(ctx); err != nil {
			log.Warn("readiness: signing key unavailable", "err", err)
			checks.Signer = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, refreshsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  clock.Now().Sub(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
