package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streamwatch/streamwatch/log"
)

// ListenAndServe starts a dedicated /metrics server, same pattern as the
// teacher's metrics.ListenAndServe.
func ListenAndServe(promPort int) error {
	listen := fmt.Sprintf("0.0.0.0:%d", promPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.LogNoRequestID("starting Prometheus metrics server", "host", listen)
	return http.ListenAndServe(listen, mux)
}
