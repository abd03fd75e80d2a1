/*
Copyright 2023 The CokeDB Authors. All rights reserved.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	connectedClients prometheus.Gauge
	requestCounter   *prometheus.CounterVec
	errorCounter     *prometheus.CounterVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *metrics
)

// newMetrics registers the collectors once; servers share the default
// registry.
func newMetrics() *metrics {
	metricsOnce.Do(func() {
		sharedMetrics = buildMetrics()
	})
	return sharedMetrics
}

func buildMetrics() *metrics {
	return &metrics{
		connectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "cokedb",
			Name:      "connected_clients",
			Help:      "Number of currently connected clients.",
		}),
		requestCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cokedb",
			Name:      "requests_total",
			Help:      "Number of handled requests, partitioned by kind.",
		}, []string{"kind"}),
		errorCounter: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cokedb",
			Name:      "request_errors_total",
			Help:      "Number of failed requests, partitioned by error kind.",
		}, []string{"kind"}),
	}
}

// serve exposes the default Prometheus registry over HTTP.
func (m *metrics) serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go srv.ListenAndServe()
	return srv
}
