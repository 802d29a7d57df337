// Package metrics provides Prometheus metrics for pipeline slots, sync
// connections and drift correction.
package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "camsync"

var (
	slotFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "fps",
		Help:      "Current transcode FPS",
	}, []string{"slot"})

	slotSpeed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "processing_speed",
		Help:      "Transcode speed multiplier relative to realtime",
	}, []string{"slot"})

	slotFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "frames",
		Help:      "Frames encoded by the current process",
	}, []string{"slot"})

	slotDroppedFrames = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "dropped_frames",
		Help:      "Frames dropped by the current process",
	}, []string{"slot"})

	slotRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "restarts_total",
		Help:      "Process relaunches per slot",
	}, []string{"slot"})

	slotExitCode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "last_exit_code",
		Help:      "Exit code of the most recent process",
	}, []string{"slot"})

	slotUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "slot",
		Name:      "up",
		Help:      "1 while the slot has a running process",
	}, []string{"slot"})

	// Local cache for the status API and SSE exporter.
	slotCache   = make(map[int]*SlotMetrics)
	slotCacheMu sync.RWMutex
)

// SlotMetrics holds current progress values for a slot.
type SlotMetrics struct {
	FPS     float64 `json:"fps"`
	Speed   float64 `json:"speed"`
	Frames  float64 `json:"frames"`
	Dropped float64 `json:"dropped"`
}

// Handler returns the Prometheus scrape handler for all promauto metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func label(slot int) string {
	return strconv.Itoa(slot)
}

// SetSlotProgress records one parsed progress line.
func SetSlotProgress(slot int, m SlotMetrics) {
	l := label(slot)
	slotFPS.WithLabelValues(l).Set(m.FPS)
	slotSpeed.WithLabelValues(l).Set(m.Speed)
	slotFrames.WithLabelValues(l).Set(m.Frames)
	slotDroppedFrames.WithLabelValues(l).Set(m.Dropped)

	slotCacheMu.Lock()
	dup := m
	slotCache[slot] = &dup
	slotCacheMu.Unlock()
}

// SetSlotUp marks whether the slot has a live process. Going down clears
// progress so stale FPS is never reported.
func SetSlotUp(slot int, up bool) {
	l := label(slot)
	if up {
		slotUp.WithLabelValues(l).Set(1)
		return
	}
	slotUp.WithLabelValues(l).Set(0)
	slotFPS.DeleteLabelValues(l)
	slotSpeed.DeleteLabelValues(l)
	slotFrames.DeleteLabelValues(l)
	slotDroppedFrames.DeleteLabelValues(l)

	slotCacheMu.Lock()
	delete(slotCache, slot)
	slotCacheMu.Unlock()
}

// RecordSlotExit records a process exit and whether a relaunch follows.
func RecordSlotExit(slot, exitCode int, restarting bool) {
	l := label(slot)
	slotExitCode.WithLabelValues(l).Set(float64(exitCode))
	if restarting {
		slotRestarts.WithLabelValues(l).Inc()
	}
}

// DeleteSlotMetrics removes all metrics for a slot.
func DeleteSlotMetrics(slot int) {
	l := label(slot)
	slotFPS.DeleteLabelValues(l)
	slotSpeed.DeleteLabelValues(l)
	slotFrames.DeleteLabelValues(l)
	slotDroppedFrames.DeleteLabelValues(l)
	slotRestarts.DeleteLabelValues(l)
	slotExitCode.DeleteLabelValues(l)
	slotUp.DeleteLabelValues(l)

	slotCacheMu.Lock()
	delete(slotCache, slot)
	slotCacheMu.Unlock()
}

// GetSlotMetrics returns a copy of the latest progress for a slot.
func GetSlotMetrics(slot int) *SlotMetrics {
	slotCacheMu.RLock()
	defer slotCacheMu.RUnlock()
	if m, ok := slotCache[slot]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllSlotMetrics returns progress for all slots with a live process.
func GetAllSlotMetrics() map[int]*SlotMetrics {
	slotCacheMu.RLock()
	defer slotCacheMu.RUnlock()
	result := make(map[int]*SlotMetrics, len(slotCache))
	for id, m := range slotCache {
		dup := *m
		result[id] = &dup
	}
	return result
}
