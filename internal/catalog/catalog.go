// Package catalog defines the shared data model for candidate groups,
// decisions and analysis bookkeeping.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Category identifies which analysis module produced a group.
type Category string

// Analysis module categories.
const (
	CategoryDuplicates  Category = "duplicates"
	CategorySimilars    Category = "similars"
	CategoryBlurry      Category = "blurry"
	CategoryExposure    Category = "exposure"
	CategoryFaces       Category = "faces"
	CategoryOrientation Category = "orientation"
	CategoryScreenshots Category = "screenshots"
)

// AllCategories lists every category in the order groups are assembled.
var AllCategories = []Category{
	CategoryDuplicates,
	CategorySimilars,
	CategoryBlurry,
	CategoryExposure,
	CategoryFaces,
	CategoryOrientation,
	CategoryScreenshots,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Action is the user's verdict on an image.
type Action string

// Decision actions.
const (
	ActionKeep   Action = "keep"
	ActionDelete Action = "delete"
)

// ExposureCategory classifies an exposure problem.
type ExposureCategory string

// Exposure problem classes.
const (
	ExposureUnder ExposureCategory = "underexposed"
	ExposureOver  ExposureCategory = "overexposed"
)

// FaceIssue names a problem with a face in a photo.
type FaceIssue string

// Face issue kinds.
const (
	FaceIssueClosedEyes FaceIssue = "closed_eyes"
	FaceIssueBlurryFace FaceIssue = "blurry_face"
	FaceIssueCutOff     FaceIssue = "cut_off"
)

// IssueFlags holds the detection signals attached to an image. All fields
// are optional; a nil pointer or empty slice means "no signal".
type IssueFlags struct {
	BlurScore   *float64          `json:"blur_score,omitempty"`
	Exposure    *ExposureCategory `json:"exposure,omitempty"`
	FaceIssues  []FaceIssue       `json:"face_issues,omitempty"`
	Orientation *int              `json:"orientation,omitempty"` // degrees of rotation needed
	Confidence  float64           `json:"confidence,omitempty"`
}

// ImageRecord is one photo inside a candidate group. The ID is derived from
// the owning asset when an asset reference exists, so the same photo carries
// the same ID across every group that contains it. Placeholder records
// without an asset get a synthesized ID.
type ImageRecord struct {
	ID         string      `json:"id"`
	AssetID    string      `json:"asset_id,omitempty"` // empty for placeholder records
	Name       string      `json:"name,omitempty"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	FileSizeMB float64     `json:"file_size_mb,omitempty"`
	Issues     *IssueFlags `json:"issues,omitempty"`
}

// NewImageRecord builds a record whose ID is the asset's stable identifier.
func NewImageRecord(assetID string) ImageRecord {
	return ImageRecord{ID: assetID, AssetID: assetID}
}

// NewPlaceholderRecord builds a record with no asset reference and a fresh ID.
func NewPlaceholderRecord() ImageRecord {
	return ImageRecord{ID: uuid.NewString()}
}

// PhotoGroup is one candidate cluster of images. Groups form a
// multi-membership index over images, not a partition: the same image may
// appear in groups of different categories at the same time.
type PhotoGroup struct {
	ID       string        `json:"id"`
	Images   []ImageRecord `json:"images"`
	Score    float64       `json:"score"` // mean pairwise distance, 0 for exact/burst matches
	Category Category      `json:"category"`
}

// NewPhotoGroup creates a group with a fresh UUID.
func NewPhotoGroup(category Category, images []ImageRecord) PhotoGroup {
	return PhotoGroup{
		ID:       uuid.NewString(),
		Images:   images,
		Category: category,
	}
}

// Contains reports whether the group holds an image with the given ID.
func (g *PhotoGroup) Contains(imageID string) bool {
	return g.IndexOf(imageID) >= 0
}

// IndexOf returns the position of the image with the given ID, or -1.
func (g *PhotoGroup) IndexOf(imageID string) int {
	for i := range g.Images {
		if g.Images[i].ID == imageID {
			return i
		}
	}
	return -1
}

// MemberIDs returns the ordered list of image IDs in the group.
func (g *PhotoGroup) MemberIDs() []string {
	ids := make([]string, len(g.Images))
	for i := range g.Images {
		ids[i] = g.Images[i].ID
	}
	return ids
}

// DecisionRecord snapshots one group's state at the moment a decision
// removed an image from it. A single decision event creates one record per
// group that contained the image, and undo restores each group from its own
// snapshot.
type DecisionRecord struct {
	ID              string      `json:"id"`
	Action          Action      `json:"action"`
	Image           ImageRecord `json:"image"`
	GroupIndex      int         `json:"group_index"`      // index of the group in the working set before removal
	ImageIndex      int         `json:"image_index"`      // index of the image within that group before removal
	GroupMemberIDs  []string    `json:"group_member_ids"` // full membership before removal, in order
	Category        Category    `json:"category"`         // category of the group the record snapshots
	DecidedCategory Category    `json:"decided_category"` // category passed to the decision call
	CreatedAt       time.Time   `json:"created_at"`
}

// ConfirmationAction is one pending, still reversible verdict awaiting the
// final commit. The ledger keeps them newest first.
type ConfirmationAction struct {
	ID       string      `json:"id"`
	Image    ImageRecord `json:"image"`
	Action   Action      `json:"action"`
	Category Category    `json:"category"`
}

// AnalysisRecord marks one asset as evaluated for one module with no issue
// found. Assets that land in a result group are deliberately never recorded:
// they stay eligible for re-evaluation until deleted, kept or corrected.
type AnalysisRecord struct {
	AssetID   string    `json:"asset_id"`
	Module    Category  `json:"module"`
	Timestamp time.Time `json:"timestamp"`
}
