// Copyright 2026 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package processor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardflow",
			Subsystem: "processor",
			Name:      "records_total",
			Help:      "The number of records handled, by outcome.",
		}, []string{"shard", "outcome"})

	attemptFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardflow",
			Subsystem: "processor",
			Name:      "record_attempt_failures_total",
			Help:      "The number of failed record processing attempts.",
		}, []string{"shard"})

	recordDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shardflow",
			Subsystem: "processor",
			Name:      "record_duration_seconds",
			Help:      "Bucketed histogram of the time spent on one record, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 18), // 1ms ~ 131s
		}, []string{"shard"})

	checkpointCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shardflow",
			Subsystem: "processor",
			Name:      "checkpoints_total",
			Help:      "The number of checkpoint sequences, by outcome.",
		}, []string{"shard", "outcome"})

	millisBehindLatestGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "shardflow",
			Subsystem: "processor",
			Name:      "millis_behind_latest",
			Help:      "How far the last batch is behind the tip of the shard.",
		}, []string{"shard"})

	stateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "shardflow",
			Subsystem: "processor",
			Name:      "state",
			Help:      "The lifecycle state of the shard processor.",
		}, []string{"shard"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(recordCounter)
	registry.MustRegister(attemptFailureCounter)
	registry.MustRegister(recordDuration)
	registry.MustRegister(checkpointCounter)
	registry.MustRegister(millisBehindLatestGauge)
	registry.MustRegister(stateGauge)
}
