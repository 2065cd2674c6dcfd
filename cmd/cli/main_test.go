package main

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/artifact-engine/internal/config"
	"github.com/dvloznov/artifact-engine/internal/export"
	"github.com/dvloznov/artifact-engine/internal/pipeline"
	"github.com/dvloznov/artifact-engine/internal/record"
)

func TestSplitBucket(t *testing.T) {
	tests := []struct {
		in         string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"my-bucket", "my-bucket", "", false},
		{"gs://my-bucket", "my-bucket", "", false},
		{"gs://my-bucket/runs/2025", "my-bucket", "runs/2025", false},
		{"my-bucket/runs", "", "", true},
		{"", "", "", true},
		{"gs://", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			bucket, prefix, err := splitBucket(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitBucket(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || prefix != tt.wantPrefix {
				t.Errorf("splitBucket(%q) = (%q, %q), want (%q, %q)", tt.in, bucket, prefix, tt.wantBucket, tt.wantPrefix)
			}
		})
	}
}

func TestRenderSummary(t *testing.T) {
	cfg := config.Defaults()
	cfg.OutputDir = "out"
	cfg.Receipts = 3

	report := &pipeline.Report{
		Kind:      record.KindReceipt,
		Requested: 3,
		Items: []pipeline.ItemResult{
			{ID: "r-1", Stage: pipeline.Done},
			{ID: "r-2", Stage: pipeline.Rasterizing, Err: errors.New("pdftoppm exited 1")},
			{ID: "r-3", Stage: pipeline.Done},
		},
		Durations: map[pipeline.Stage]time.Duration{
			pipeline.Fabricating: 20 * time.Millisecond,
			pipeline.Rendering:   2 * time.Second,
		},
		Export: export.Paths{
			GroundTruth: filepath.Join("out", "receipts_ground_truth.xlsx"),
			Summary:     filepath.Join("out", "receipts_summary.xlsx"),
		},
	}

	got := renderSummary(&cfg, []*pipeline.Report{report}, map[record.Kind]int64{record.KindReceipt: 3}, 5*time.Second)

	for _, want := range []string{
		"receipts",
		"2/3",
		"dropped 1:",
		"r-2 at " + pipeline.Rasterizing.String(),
		"pdftoppm exited 1",
		filepath.Join("out", "receipts_images_degraded"),
		filepath.Join("out", "receipts_summary.xlsx"),
		"3 rows in BigQuery",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "receipts_images_clean") {
		t.Errorf("summary lists the clean image directory without -keep-clean:\n%s", got)
	}
}

func TestRenderSummary_ExportFailure(t *testing.T) {
	cfg := config.Defaults()
	report := &pipeline.Report{
		Kind:      record.KindInvoice,
		Requested: 1,
		ExportErr: errors.New("disk full"),
	}
	got := renderSummary(&cfg, []*pipeline.Report{report}, nil, time.Second)
	if !strings.Contains(got, "export failed: disk full") {
		t.Errorf("summary missing export failure:\n%s", got)
	}
}
