package behavior

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var suspicionFlagCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_suspicion_flags",
	Help: "Number of suspicion flags recorded, by flag type",
}, []string{"type"})
