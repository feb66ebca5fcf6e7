package enforcement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var actionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_enforcement_actions",
	Help: "Number of enforcement actions taken, by action",
}, []string{"action"})

var expiredSweepCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_enforcement_expired_suspensions",
	Help: "Number of suspensions deactivated by the expiry sweep",
})
