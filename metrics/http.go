package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reframelabs/reframe-api/config"
	"github.com/reframelabs/reframe-api/log"
)

func ListenAndServe(ctx context.Context, promPort int) error {
	listen := fmt.Sprintf("0.0.0.0:%d", promPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background()) //nolint:errcheck
	}()

	log.LogNoRequestID(
		"Starting Prometheus metrics",
		"version", config.Version,
		"host", listen,
	)
	return server.ListenAndServe()
}
