// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Gayashan123/ck-host-auth/internal/config"
	"github.com/Gayashan123/ck-host-auth/internal/db"
	"github.com/Gayashan123/ck-host-auth/internal/domain/identity"
	authHandler "github.com/Gayashan123/ck-host-auth/internal/handlers/auth"
	"github.com/Gayashan123/ck-host-auth/internal/middleware"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/session"
	"github.com/Gayashan123/ck-host-auth/internal/pkg/sessioncookie"
	"github.com/Gayashan123/ck-host-auth/internal/repository/postgres"
	authUsecase "github.com/Gayashan123/ck-host-auth/internal/service/auth"
	"github.com/Gayashan123/ck-host-auth/internal/service/email"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	http   *http.Server
}

func NewServer() *Server {
	cfg := config.Load()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{cfg: cfg, engine: gin.New()}
}

// Start wires the stores, the two domain engines and the router, then
// serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := newLogger(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	if s.cfg.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}

	// ----- PostgreSQL -----
	pool, err := db.ConnectPostgres(ctx, s.cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.RunMigrations(ctx, s.cfg.PostgresDSN); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("postgres connected")

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       0,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("redis connected")

	// ----- Email -----
	emailSender := email.NewSMTPSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// Shared across domains: one Redis, one signing secret, one token table.
	// Isolation comes from per-domain key namespaces, cookie names and the
	// domain column, not separate stores.
	sessionStore := session.NewStore(redisClient, s.cfg.SessionTTL)
	codec := sessioncookie.NewCodec(s.cfg.SessionSecret)
	tokenRepo := postgres.NewTokenRepository(pool)

	// Expired tokens are already unredeemable; this just keeps the table
	// from growing unbounded.
	go runTokenJanitor(ctx, tokenRepo, logger)

	// ----- Domain engines -----
	shopOwner, err := s.buildDomain(domainParams{
		domain:      identity.ShopOwner,
		displayName: "shop owner",
		cookieName:  "shopowner_session",
	}, pool, tokenRepo, sessionStore, codec, emailSender, logger)
	if err != nil {
		return err
	}

	siteUser, err := s.buildDomain(domainParams{
		domain:      identity.SiteUser,
		displayName: "site user",
		cookieName:  "siteuser_session",
	}, pool, tokenRepo, sessionStore, codec, emailSender, logger)
	if err != nil {
		return err
	}

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.AllowedOrigins),
	)

	// ----- Router -----
	SetupRouter(s.engine, shopOwner, siteUser)

	// ----- Start HTTP -----
	s.http = &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// DomainMount is one identity domain's handler plus its session middleware,
// ready to mount under a route prefix.
type DomainMount struct {
	Handler *authHandler.AuthHandler
	Session *middleware.SessionMiddleware
}

type domainParams struct {
	domain      identity.Domain
	displayName string
	cookieName  string
}

func (s *Server) buildDomain(
	p domainParams,
	pool *pgxpool.Pool,
	tokenRepo *postgres.TokenRepository,
	sessionStore *session.Store,
	codec *sessioncookie.Codec,
	sender email.Sender,
	logger *zap.Logger,
) (*DomainMount, error) {
	credRepo, err := postgres.NewCredentialRepository(pool, p.domain)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s repository: %w", p.domain, err)
	}

	mailer := authUsecase.NewMailer(sender, logger, s.cfg.AppBaseURL, resetPathFor(p.domain), s.cfg.SMTPFromName)

	svc := authUsecase.NewService(authUsecase.DomainConfig{
		Domain:              p.domain,
		DisplayName:         p.displayName,
		VerificationCodeTTL: s.cfg.VerificationCodeTTL,
		ResetTokenTTL:       s.cfg.ResetTokenTTL,
	}, credRepo, tokenRepo, sessionStore, mailer, logger)

	attrs := sessioncookie.ForEnvironment(s.cfg.Environment, p.cookieName, s.cfg.CookieDomain, s.cfg.SessionTTL)

	return &DomainMount{
		Handler: authHandler.NewAuthHandler(svc, attrs, codec, logger),
		Session: middleware.NewSessionMiddleware(svc, attrs, codec, logger),
	}, nil
}

// resetPathFor is the front-end route the emailed reset link points at.
func resetPathFor(dom identity.Domain) string {
	if dom == identity.SiteUser {
		return "/user/reset-password"
	}
	return "/reset-password"
}

func runTokenJanitor(ctx context.Context, tokens *postgres.TokenRepository, logger *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				logger.Error("token cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired tokens removed", zap.Int64("count", n))
			}
		}
	}
}

func newLogger(cfg config.AppConfig) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
