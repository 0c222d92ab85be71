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
	// psonNamespace 是当前项目所有 Prometheus 指标使用的命名空间。
	psonNamespace = "pson"

	codecSubsystem     = "codec"
	allocatorSubsystem = "allocator"

	// 以下为当前使用的通用标签名。
	reasonLabelName    = "reason"
	allocatorLabelName = "allocator"
	strategyLabelName  = "strategy"
)

var (
	// sizeBuckets 为文档大小的桶划分，单位为字节。
	sizeBuckets = prometheus.ExponentialBuckets(8, 4, 10)

	EncodedBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: psonNamespace,
			Subsystem: codecSubsystem,
			Name:      "encoded_bytes_total",
			Help:      "写入 sink 的编码字节总数",
		}, []string{strategyLabelName})

	DecodedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: psonNamespace,
			Subsystem: codecSubsystem,
			Name:      "decoded_bytes_total",
			Help:      "从 source 读取的字节总数",
		})

	DocumentSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: psonNamespace,
			Subsystem: codecSubsystem,
			Name:      "document_size_bytes",
			Help:      "单个文档编码后的大小分布",
			Buckets:   sizeBuckets,
		})

	DecodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: psonNamespace,
			Subsystem: codecSubsystem,
			Name:      "decode_failures_total",
			Help:      "解码失败次数，按失败原因区分",
		}, []string{reasonLabelName})

	UnknownTypeSkips = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: psonNamespace,
			Subsystem: codecSubsystem,
			Name:      "unknown_type_skips_total",
			Help:      "解码时遇到未知类型标签并跳过的次数",
		})

	AllocatorLiveBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: psonNamespace,
			Subsystem: allocatorSubsystem,
			Name:      "live_bytes",
			Help:      "分配器当前未释放的字节数（环形分配器为已占用区间）",
		}, []string{allocatorLabelName})

	AllocatorWraps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: psonNamespace,
			Subsystem: allocatorSubsystem,
			Name:      "ring_wraps_total",
			Help:      "环形分配器回绕次数，回绕可能覆盖仍在使用的数据",
		})

	AllocatorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: psonNamespace,
			Subsystem: allocatorSubsystem,
			Name:      "failures_total",
			Help:      "分配失败次数",
		}, []string{allocatorLabelName, reasonLabelName})

	registerOnce     sync.Once
	metricRegisterer prometheus.Registerer
)

// GetRegisterer 返回全局 Prometheus Registerer。
// 如果尚未通过 Register 显式设置，则返回 prometheus.DefaultRegisterer。
func GetRegisterer() prometheus.Registerer {
	if metricRegisterer == nil {
		return prometheus.DefaultRegisterer
	}
	return metricRegisterer
}

// Register 注册当前定义的所有指标，重复调用只生效一次。
func Register(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(EncodedBytes)
		r.MustRegister(DecodedBytes)
		r.MustRegister(DocumentSize)
		r.MustRegister(DecodeFailures)
		r.MustRegister(UnknownTypeSkips)
		r.MustRegister(AllocatorLiveBytes)
		r.MustRegister(AllocatorWraps)
		r.MustRegister(AllocatorFailures)
		metricRegisterer = r
	})
}
