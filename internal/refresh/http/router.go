package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/tokenrefresh/api/refresh" // Swagger docs
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/domain"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/pkg/httpx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/jwtx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
)

// TokenService is what the transport needs from the refresh core.
type TokenService interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.Token, error)
	Resolve(ctx context.Context, token string) (*domain.ValidationResult, error)
	RefreshContext(ctx context.Context, id string) (map[string]string, error)
	RevokeRefreshToken(ctx context.Context, refreshToken string) error
	CheckSigner(ctx context.Context) error
}

// Pinger reports whether a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

var _ TokenService = (*service.Service)(nil)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	tokens       TokenService
	store        Pinger
	clock        service.Clock
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(
	tokens TokenService,
	st Pinger,
	clock service.Clock,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	if clock == nil {
		clock = service.SystemClock{}
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		tokens:       tokens,
		store:        st,
		clock:        clock,
		buildVersion: buildVersion,
		startTime:    clock.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerToken()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Data Plane Token Refresh API
//	@version		0.1.0
//	@description	Refreshes data-plane access tokens for running transfers.
//	@description
//	@description				Access tokens are JWTs signed with the provider's key and verifiable through the issuer DID.
//	@description				Refresh tokens are opaque and single use; every refresh returns a new one.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/tokenrefresh
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Data-plane access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerToken() {
	tokenHandler := &TokenHandler{Tokens: r.tokens, Clock: r.clock}
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(tokenHandler,
			httpx.RateLimitByIP(httpx.RefreshLimit),
		),
	)

	introspectHandler := &IntrospectHandler{Tokens: r.tokens}
	r.Mux.Handle("POST /v1/token/introspect",
		httpx.Chain(introspectHandler,
			httpx.RateLimitByIP(httpx.IntrospectLimit),
		),
	)

	revokeHandler := &RevokeHandler{Tokens: r.tokens}
	r.Mux.Handle("POST /v1/token/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.RevokeLimit),
		),
	)

	claimsHandler := &ClaimsHandler{Tokens: r.tokens}
	r.Mux.Handle("GET /v1/token/claims",
		httpx.Chain(claimsHandler,
			httpx.RateLimitByIP(httpx.IntrospectLimit),
			httpx.BearerAuth(r.resolveBearer),
		),
	)
}

// resolveBearer accepts only the current token of a live lineage.
func (r *Router) resolveBearer(ctx context.Context, token string) (*jwtx.Claims, error) {
	res, err := r.tokens.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &res.Claims, nil
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.clock, r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.clock, r.startTime, r.buildVersion, r.store, r.tokens),
			httpx.RateLimitByIP(httpx.ProbeLimit),
		),
	)
}
