package batch

import (
	"fmt"
	"math"

	"github.com/rshrestha/imagetools/internal/model"
)

// FileResult is the per-file outcome exposed to callers.
type FileResult struct {
	FileName     string             `json:"fileName"`
	OutputName   string             `json:"outputName,omitempty"`
	OutputFormat model.Format       `json:"outputFormat,omitempty"`
	OriginalSize int64              `json:"originalSize"`
	OutputSize   int64              `json:"outputSize,omitempty"`
	Status       model.RecordStatus `json:"status"`
	Error        string             `json:"error,omitempty"`

	// Data holds the processed bytes for successful files. It is not
	// serialized; callers persist it and hand out download URLs.
	Data []byte `json:"-"`
}

// Summary aggregates a finished batch. Byte totals and SavedPercent
// cover successfully processed files only.
type Summary struct {
	BatchID        string       `json:"batchId"`
	ToolID         string       `json:"toolId"`
	State          State        `json:"state"`
	Succeeded      int          `json:"succeeded"`
	Failed         int          `json:"failed"`
	CreditsCharged int          `json:"creditsCharged"`
	TotalOriginal  int64        `json:"totalOriginalBytes"`
	TotalOutput    int64        `json:"totalOutputBytes"`
	SavedPercent   int          `json:"savedPercent"`
	OutputGrew     bool         `json:"outputGrew,omitempty"`
	Files          []FileResult `json:"files"`
}

func (j *Job) summarize(charged int) *Summary {
	s := &Summary{
		BatchID:        j.ID,
		ToolID:         j.ToolID,
		State:          j.state,
		CreditsCharged: charged,
		Files:          make([]FileResult, 0, len(j.files)),
	}

	for _, f := range j.files {
		res := FileResult{
			FileName:     f.name,
			OriginalSize: f.size,
		}
		if f.err == nil {
			res.Status = model.StatusCompleted
			res.OutputName = f.outputName
			res.OutputFormat = f.outputFormat
			res.OutputSize = int64(len(f.output))
			res.Data = f.output
			s.Succeeded++
			s.TotalOriginal += f.size
			s.TotalOutput += res.OutputSize
		} else {
			res.Status = model.StatusFailed
			res.Error = f.err.Error()
			s.Failed++
		}
		s.Files = append(s.Files, res)
	}

	s.SavedPercent, s.OutputGrew = savedPercent(s.TotalOriginal, s.TotalOutput)
	return s
}

// savedPercent reports the rounded percentage saved. Re-encoding an
// already-minimal input can grow the output; that case reports 0 with
// grew set rather than a negative percentage.
func savedPercent(original, output int64) (int, bool) {
	if original <= 0 {
		return 0, false
	}
	pct := int(math.Round((1 - float64(output)/float64(original)) * 100))
	if pct < 0 {
		return 0, true
	}
	return pct, false
}

// FormatFileSize renders a byte count for display (e.g. "1.5 MB").
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	units := []string{"Bytes", "KB", "MB", "GB"}
	i := 0
	v := float64(bytes)
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", bytes, units[0])
	}
	return fmt.Sprintf("%.2f %s", v, units[i])
}
