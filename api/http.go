package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/clips"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/handlers"
	"github.com/reframelabs/reframe-api/log"
	"github.com/reframelabs/reframe-api/middleware"
	"github.com/reframelabs/reframe-api/pipeline"
)

func ListenAndServe(ctx context.Context, cli config.Cli, engine *pipeline.Coordinator, clipPipeline *clips.Pipeline) error {
	addr := fmt.Sprintf("0.0.0.0:%d", cli.Port)
	router := NewReframeAPIRouter(cli, engine, clipPipeline)
	server := http.Server{Addr: addr, Handler: router}
	ctx, cancel := context.WithCancel(ctx)

	log.LogNoRequestID(
		"Starting Reframe API!",
		"version", config.Version,
		"host", addr,
	)

	var err error
	go func() {
		err = server.ListenAndServe()
		cancel()
	}()

	<-ctx.Done()
	if err != nil {
		return err
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func NewReframeAPIRouter(cli config.Cli, engine *pipeline.Coordinator, clipPipeline *clips.Pipeline) *httprouter.Router {
	router := httprouter.New()
	router.GlobalOPTIONS = middleware.CORSPreflight()
	withLogging := middleware.LogRequest()
	withCORS := middleware.AllowCORS()
	withAuth := middleware.IsAuthorized
	capacity := &middleware.CapacityMiddleware{}

	apiHandlers := &handlers.ReframeAPIHandlersCollection{
		Cli:          cli,
		Engine:       engine,
		ClipPipeline: clipPipeline,
	}

	// Simple endpoint for healthchecks
	router.GET("/ok", withLogging(apiHandlers.Ok()))

	// Transform API
	router.POST("/api/vertical",
		withLogging(
			withCORS(
				capacity.HasCapacity(
					middleware.ClassTransform,
					cli.TransformConcurrency,
					apiHandlers.TransformVideo(),
				),
			),
		),
	)
	router.GET("/api/status/:id", withLogging(withCORS(apiHandlers.VideoStatus())))
	router.GET("/api/download/:id", withLogging(withCORS(apiHandlers.DownloadVideo())))
	router.GET("/api/video/:id", withLogging(withCORS(apiHandlers.InlineVideo())))
	router.GET("/api/capabilities", withLogging(withCORS(apiHandlers.GetCapabilities())))
	router.GET("/api/platforms", withLogging(withCORS(apiHandlers.GetPlatforms())))

	// Clip API: synchronous and expensive, so both routes sit behind the
	// clips capacity class.
	router.POST("/api/clips/initial",
		withLogging(
			withCORS(
				capacity.HasCapacity(
					middleware.ClassClips,
					cli.ClipConcurrency,
					apiHandlers.InitialClips(),
				),
			),
		),
	)
	router.POST("/api/clips/viral",
		withLogging(
			withCORS(
				capacity.HasCapacity(
					middleware.ClassClips,
					cli.ClipConcurrency,
					apiHandlers.ViralSelection(),
				),
			),
		),
	)

	// Admin API
	router.POST("/api/admin/purge",
		withLogging(
			withAuth(
				cli.APIToken,
				apiHandlers.Purge(),
			),
		),
	)

	return router
}
