// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// chatNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	chatNamespace = "chatrelay"

	// 以下为当前使用的通用标签名。
	transportLabelName = "transport"
	typeLabelName      = "type"
	kindLabelName      = "kind"
	resultLabelName    = "result"
)

// 标签取值。
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "websocket"

	RegisterSuccess = "success"
	RegisterInvalid = "invalid"
	RegisterTaken   = "taken"

	DeliveryQueueFull = "queue_full"
	DeliveryClosed    = "closed"
	DeliveryOther     = "other"
)

var (
	// latencyBuckets 为写出耗时直方图的桶划分，单位为毫秒。
	// [0.5 1 2 4 8 16 32 64 128 256 512 1024 2048 4096]
	latencyBuckets = prometheus.ExponentialBuckets(0.5, 2, 14)

	Sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: chatNamespace,
			Name:      "sessions",
			Help:      "number of open connections per transport",
		}, []string{transportLabelName})

	RegisteredUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: chatNamespace,
			Name:      "registered_users",
			Help:      "number of names currently in the registry",
		})

	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "registrations_total",
			Help:      "nickname registration attempts by outcome",
		}, []string{resultLabelName})

	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "commands_total",
			Help:      "inbound command lines by type",
		}, []string{typeLabelName})

	DeliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: chatNamespace,
			Name:      "deliveries_failed_total",
			Help:      "outbound lines that could not be handed to a recipient",
		}, []string{kindLabelName})

	WriteLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: chatNamespace,
			Name:      "write_latency_ms",
			Help:      "time spent writing one outbound line to the connection",
			Buckets:   latencyBuckets,
		})

	metricRegisterer prometheus.Registerer
	registerOnce     sync.Once
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，只有第一次调用生效。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(Sessions)
		r.MustRegister(RegisteredUsers)
		r.MustRegister(Registrations)
		r.MustRegister(Commands)
		r.MustRegister(DeliveryFailures)
		r.MustRegister(WriteLatency)
		metricRegisterer = r
	})
}
