package model

import "time"

// Format identifies a raster image encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatWebP Format = "webp"
)

// NormalizeFormat maps format aliases to their canonical name.
// Unknown values are returned unchanged.
func NormalizeFormat(s string) Format {
	if s == "jpg" {
		return FormatJPEG
	}
	return Format(s)
}

// Operation identifies a transform applied to an image.
type Operation string

const (
	OpConvert   Operation = "convert"
	OpCompress  Operation = "compress"
	OpResize    Operation = "resize"
	OpCrop      Operation = "crop"
	OpRotate    Operation = "rotate"
	OpWatermark Operation = "watermark"
)

// Position anchors a watermark within the image.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
	PositionCenter      Position = "center"
)

// ResizeSpec describes target dimensions for a resize. Exactly one of
// the width/height pair, ScalePercent, or Preset must be supplied.
// When only one of Width/Height is given the other is derived from the
// original aspect ratio unless IgnoreAspectRatio is set, in which case
// missing dimensions fall back to the original ones.
type ResizeSpec struct {
	Width             int    `json:"width,omitempty"`
	Height            int    `json:"height,omitempty"`
	ScalePercent      int    `json:"scalePercent,omitempty"`
	Preset            string `json:"preset,omitempty"`
	IgnoreAspectRatio bool   `json:"ignoreAspectRatio,omitempty"`
}

// CropRect is a crop region in source-image pixel coordinates.
type CropRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WatermarkSpec describes a text overlay.
type WatermarkSpec struct {
	Text           string   `json:"text"`
	Position       Position `json:"position"`
	OpacityPercent int      `json:"opacityPercent"`
	FontSize       int      `json:"fontSize"`
}

// TransformRequest is the shared configuration applied to every file in
// a batch. Only the fields relevant to Operation are consulted.
type TransformRequest struct {
	Operation       Operation      `json:"operation"`
	OutputFormat    Format         `json:"outputFormat,omitempty"`
	Quality         int            `json:"quality,omitempty"`
	Resize          *ResizeSpec    `json:"resize,omitempty"`
	Crop            *CropRect      `json:"crop,omitempty"`
	RotationDegrees float64        `json:"rotationDegrees,omitempty"`
	Watermark       *WatermarkSpec `json:"watermark,omitempty"`
}

// UnlimitedBalance is the sentinel balance reported for admin accounts.
const UnlimitedBalance = -1

// CreditAccount is a user's credit balance. Admin accounts report
// Balance == UnlimitedBalance and are never debited.
type CreditAccount struct {
	UserID         string `json:"-"`
	Balance        int    `json:"balance"`
	TotalPurchased int    `json:"totalPurchased"`
	IsAdmin        bool   `json:"isAdmin"`
}

// CreditTransaction is an append-only ledger entry. Amount is negative
// for deductions and positive for top-ups.
type CreditTransaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"-"`
	Amount      int       `json:"amount"`
	Type        string    `json:"type"`
	ToolUsed    string    `json:"toolUsed,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Transaction types.
const (
	TxTypeUsage    = "usage"
	TxTypePurchase = "purchase"
	TxTypeGrant    = "grant"
)

// RecordStatus is the outcome stored in a processing history row.
type RecordStatus string

const (
	StatusCompleted RecordStatus = "completed"
	StatusFailed    RecordStatus = "failed"
)

// ProcessingRecord is one audit row per processed file. UserID is empty
// for anonymous usage.
type ProcessingRecord struct {
	ID           string         `json:"id"`
	UserID       string         `json:"-"`
	ToolID       string         `json:"toolId"`
	FileName     string         `json:"fileName,omitempty"`
	FileSize     int64          `json:"fileSize,omitempty"`
	OutputFormat string         `json:"outputFormat,omitempty"`
	CreditsUsed  int            `json:"creditsUsed"`
	Status       RecordStatus   `json:"status"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// User is the identity issued by the authentication collaborator. The
// core consumes only ID; Email and Metadata pass through for display.
type User struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RoleAdmin marks identities that bypass credit deduction.
const RoleAdmin = "admin"
