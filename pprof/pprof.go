package pprof

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/reframelabs/reframe-api/log"
)

// ListenAndServe runs the pprof handlers on their own port so profiling
// never shares a listener with the public API. Shuts down with ctx.
func ListenAndServe(ctx context.Context, port int) error {
	listen := fmt.Sprintf("0.0.0.0:%d", port)
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	server := &http.Server{Addr: listen, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background()) //nolint:errcheck
	}()

	log.LogNoRequestID("Starting pprof server", "host", listen)
	return server.ListenAndServe()
}
