package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cartMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Cart writes by operation",
		},
		[]string{"operation"},
	)

	cartLoadFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_load_fallbacks_total",
			Help: "Loads that degraded to an empty cart, by reason",
		},
		[]string{"reason"},
	)
)
