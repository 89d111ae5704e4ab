// internal/app/app.go
package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/Stratus/internal/config"
	"github.com/markdave123-py/Stratus/internal/core"
	"github.com/markdave123-py/Stratus/internal/core/auth"
	db "github.com/markdave123-py/Stratus/internal/core/database"
	objectclient "github.com/markdave123-py/Stratus/internal/core/object-client"
	"github.com/markdave123-py/Stratus/internal/core/verification_engine"
	"github.com/markdave123-py/Stratus/internal/metrics"
	"github.com/markdave123-py/Stratus/internal/services"
)

type App struct {
	Cfg          *config.Config
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Verifier     *verification_engine.DocumentVerifier
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}

	return Assemble(cfg, dbClient, objClient, metrics.NewRegistry()), nil
}

// Assemble wires services, the verifier and the HTTP server around already
// connected storage clients.
func Assemble(cfg *config.Config, dbClient core.DbClient, objClient core.ObjectClient, reg *prometheus.Registry) *App {
	verifier := verification_engine.NewDocumentVerifier(dbClient, objClient, verification_engine.DefaultVerifyConfig())
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	users := services.NewUserService(dbClient, tokens)
	docs := services.NewDocumentService(dbClient, objClient, verifier, cfg)

	return &App{
		Cfg:          cfg,
		DBClient:     dbClient,
		ObjectClient: objClient,
		Verifier:     verifier,
		Server:       NewServer(cfg, users, docs, tokens, reg),
	}
}

// Run starts the verifier and the HTTP server and blocks until ctx is done or
// the server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.Verifier.Start(gctx, a.Cfg.VerifyWorkers)

	g.Go(func() error {
		return a.Server.Start()
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Verifier.Wait()
	log.Info().Msg("all workers stopped")
	return err
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
