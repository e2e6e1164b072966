// Package vision holds the inference collaborators of the analysis pass:
// embedding computation and per-photo issue detection.
package vision

import (
	"context"

	"photosweep/internal/catalog"
)

// PhotoMeta is the metadata handed to issue detectors alongside the pixels.
type PhotoMeta struct {
	Name      string
	TakenAt   string
	Width     int
	Height    int
	ScreenLike bool // dimensions match a known device screen
}

// Inspection is one detector verdict for one photo. Nil pointers and empty
// slices mean the detector found nothing wrong on that axis.
type Inspection struct {
	BlurScore   *float64                  `json:"blur_score,omitempty"`
	Exposure    *catalog.ExposureCategory `json:"exposure,omitempty"`
	FaceIssues  []catalog.FaceIssue       `json:"face_issues,omitempty"`
	Orientation *int                      `json:"orientation,omitempty"`
	Screenshot  bool                      `json:"screenshot,omitempty"`
	Confidence  float64                   `json:"confidence,omitempty"`
}

// Flags converts an inspection into the catalog issue flags attached to
// image records.
func (i *Inspection) Flags() *catalog.IssueFlags {
	if i == nil {
		return nil
	}
	return &catalog.IssueFlags{
		BlurScore:   i.BlurScore,
		Exposure:    i.Exposure,
		FaceIssues:  i.FaceIssues,
		Orientation: i.Orientation,
		Confidence:  i.Confidence,
	}
}

// Provider inspects a single photo for quality issues.
type Provider interface {
	Name() string
	Inspect(ctx context.Context, imageData []byte, meta *PhotoMeta) (*Inspection, error)
}

// Embedder computes a semantic vector for a photo.
type Embedder interface {
	ComputeEmbedding(ctx context.Context, imageData []byte) ([]float32, error)
	Model() string
}

// parseExposure maps model output to an exposure category, tolerating
// unknown values by dropping them.
func parseExposure(s string) catalog.ExposureCategory {
	switch catalog.ExposureCategory(s) {
	case catalog.ExposureUnder, catalog.ExposureOver:
		return catalog.ExposureCategory(s)
	}
	return ""
}

// parseFaceIssue maps model output to a face issue kind.
func parseFaceIssue(s string) catalog.FaceIssue {
	switch catalog.FaceIssue(s) {
	case catalog.FaceIssueClosedEyes, catalog.FaceIssueBlurryFace, catalog.FaceIssueCutOff:
		return catalog.FaceIssue(s)
	}
	return ""
}
