package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_registrations_total",
			Help: "Registration attempts partitioned by result",
		},
		[]string{"result"},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_logins_total",
			Help: "Login attempts partitioned by result",
		},
		[]string{"result"},
	)

	linksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_links_created_total",
			Help: "Short links created",
		},
	)

	// Candidates rejected by the lookup or by the unique index on insert
	aliasCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortener_alias_collisions_total",
			Help: "Generated aliases that were already taken",
		},
	)

	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_resolutions_total",
			Help: "Alias resolutions partitioned by result",
		},
		[]string{"result"},
	)

	linkCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortener_link_cache_lookups_total",
			Help: "Resolution cache lookups partitioned by result",
		},
		[]string{"result"},
	)
)

const (
	resultSuccess  = "success"
	resultConflict = "conflict"
	resultRejected = "rejected"
	resultError    = "error"
	resultFound    = "found"
	resultNotFound = "not_found"
	resultHit      = "hit"
	resultMiss     = "miss"
)
