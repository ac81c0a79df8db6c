// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 上传初始化结果
const (
	UploadCreated      = "created"
	UploadDeduplicated = "deduplicated"
)

// 变体请求结果
const (
	VariantHit       = "hit"
	VariantReused    = "reused"
	VariantGenerated = "generated"
	VariantFailed    = "failed"
)

var (
	// UploadsTotal 上传初始化次数，按是否去重区分
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_uploads_total",
		Help: "Upload inits by result",
	}, []string{"result"})

	// VariantsTotal 变体请求次数，按结果区分
	VariantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_variants_total",
		Help: "Variant requests by outcome",
	}, []string{"outcome"})

	// VariantCommitConflicts 变体提交的版本冲突次数
	VariantCommitConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_variant_commit_conflicts_total",
		Help: "Optimistic concurrency conflicts while committing variants",
	})

	// PipelineDuration 单次图片处理耗时
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asset_pipeline_duration_seconds",
		Help:    "Image pipeline resize duration",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"engine"})

	// BlobCleanupFailures 删除文件时清理对象失败次数
	BlobCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asset_blob_cleanup_failures_total",
		Help: "Blob deletions that failed during file delete",
	})

	// FileTransitions 状态迁移次数
	FileTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_file_transitions_total",
		Help: "File status transitions",
	}, []string{"to"})
)
