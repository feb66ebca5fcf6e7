package visual

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var argusAPIDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_argus_api_duration_sec",
	Help: "Duration of Argus image classification API calls",
})

var argusAPICount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_argus_api_count",
	Help: "Number of Argus image classification API calls, by HTTP status code",
}, []string{"status"})

var argusAPISkippedCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_argus_api_skipped_count",
	Help: "Number of Argus classification requests skipped by client-side rate limits",
})

var imageDownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "warden_image_download_duration_sec",
	Help: "Duration of image downloads for classification",
})

var imageDownloadCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "warden_image_download_count",
	Help: "Number of image downloads for classification, by HTTP status code",
}, []string{"status"})

var nsfwAutoFlagCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "warden_nsfw_auto_flag_count",
	Help: "Number of NSFW flags created from classifier results",
})
