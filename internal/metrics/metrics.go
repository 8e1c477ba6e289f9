// Package metrics counts frames and detections and writes them in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors of one capture session.
type Metrics struct {
	reg *prometheus.Registry

	FramesTotal        prometheus.Counter
	ReadFailuresTotal  prometheus.Counter
	DetectErrorsTotal  prometheus.Counter
	HandsDetectedTotal prometheus.Counter
	DetectDuration     prometheus.Histogram
	FPS                prometheus.Gauge
}

// New registers the session collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		FramesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "handtrack_frames_total",
			Help: "Total number of frames read from the capture source",
		}),
		ReadFailuresTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "handtrack_frame_read_failures_total",
			Help: "Total number of failed frame reads",
		}),
		DetectErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "handtrack_detect_errors_total",
			Help: "Total number of frames the detector failed on",
		}),
		HandsDetectedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "handtrack_hands_detected_total",
			Help: "Total number of hands detected across all frames",
		}),
		DetectDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "handtrack_detect_duration_seconds",
			Help:    "Duration of a single detector call",
			Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		FPS: f.NewGauge(prometheus.GaugeOpts{
			Name: "handtrack_fps",
			Help: "Smoothed frame rate of the display loop",
		}),
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// ObserveDetect records one detector call.
func (m *Metrics) ObserveDetect(d time.Duration, hands int, err error) {
	m.DetectDuration.Observe(d.Seconds())
	if err != nil {
		m.DetectErrorsTotal.Inc()
		return
	}
	m.HandsDetectedTotal.Add(float64(hands))
}

// WriteFile writes the registry to path, atomically replacing it.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
