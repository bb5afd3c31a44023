package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rshrestha/imagetools/internal/api"
	"github.com/rshrestha/imagetools/internal/batch"
	"github.com/rshrestha/imagetools/internal/ledger"
	"github.com/rshrestha/imagetools/internal/model"
)

// processResponse wraps the batch summary with per-file download URLs
// and intake warnings.
type processResponse struct {
	*batch.Summary
	Warnings       []string          `json:"warnings,omitempty"`
	BillingWarning string            `json:"billingWarning,omitempty"`
	Downloads      map[string]string `json:"downloads,omitempty"`
	SavedDisplay   string            `json:"savedDisplay,omitempty"`
}

// ProcessTool handles POST /v1/process/{tool_id} -- multipart batch
// upload, the full run of the processing workflow.
func (h *Handler) ProcessTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "tool_id")
	tool, ok := model.ToolByID(toolID)
	if !ok {
		api.NotFound(w, "unknown tool: "+toolID)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.BadRequest(w, "invalid multipart form: "+err.Error())
		return
	}

	req, err := parseTransformRequest(tool, r)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	job := h.Batch.NewJob(toolID, req)
	defer job.Close()

	var warnings []string
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		fileHeaders = r.MultipartForm.File["file"]
	}
	if len(fileHeaders) == 0 {
		api.BadRequest(w, "missing required field: files")
		return
	}

	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", fh.Filename, err))
			continue
		}
		// A rejected file is a warning, not a batch failure.
		if err := job.Add(fh.Filename, data); err != nil {
			warnings = append(warnings, err.Error())
		}
	}

	if job.FileCount() == 0 {
		api.UnprocessableEntity(w, "no acceptable files in request; "+strings.Join(warnings, "; "))
		return
	}

	user := api.UserFrom(r.Context())
	summary, err := job.Process(r.Context(), user)
	billingWarning := ""
	switch {
	case err == nil:
	case errors.Is(err, batch.ErrBillingInconsistent):
		// Files were processed but the charge failed. Surface the state
		// instead of retrying the non-idempotent deduction.
		billingWarning = err.Error()
	case errors.Is(err, ledger.ErrInsufficientCredits):
		api.PaymentRequired(w, err.Error())
		return
	case errors.Is(err, ledger.ErrNotAuthenticated):
		api.Unauthorized(w)
		return
	default:
		api.Internal(w, "failed to process batch: "+err.Error())
		return
	}

	downloads := make(map[string]string)
	base := strings.TrimRight(h.Config.BaseURL, "/")
	for _, res := range summary.Files {
		if res.Status != model.StatusCompleted {
			continue
		}
		if _, err := h.Store.Store(summary.BatchID, res.OutputName, bytes.NewReader(res.Data)); err != nil {
			api.Internal(w, "failed to store output: "+err.Error())
			return
		}
		downloads[res.OutputName] = fmt.Sprintf("%s/v1/download/%s/%s", base, summary.BatchID, res.OutputName)
	}

	resp := processResponse{
		Summary:        summary,
		Warnings:       warnings,
		BillingWarning: billingWarning,
		Downloads:      downloads,
	}
	if summary.Succeeded > 0 {
		resp.SavedDisplay = fmt.Sprintf("Saved %d%% - %s reduced",
			summary.SavedPercent, batch.FormatFileSize(max64(summary.TotalOriginal-summary.TotalOutput, 0)))
	}

	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(resp))
}

// parseTransformRequest builds the shared request from form fields,
// using the tool's operation and the original UI's defaults.
func parseTransformRequest(tool model.Tool, r *http.Request) (model.TransformRequest, error) {
	req := model.TransformRequest{Operation: tool.Operation}

	if v := r.FormValue("quality"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("invalid quality: %q", v)
		}
		req.Quality = q
	}

	switch tool.Operation {
	case model.OpConvert:
		format := model.NormalizeFormat(strings.ToLower(r.FormValue("format")))
		if format == "" {
			format = model.FormatJPEG
		}
		switch format {
		case model.FormatJPEG, model.FormatPNG, model.FormatGIF, model.FormatBMP, model.FormatWebP:
		default:
			return req, fmt.Errorf("unsupported output format: %q", format)
		}
		req.OutputFormat = format
		spec, ok, err := parseResizeSpec(r)
		if err != nil {
			return req, err
		}
		if ok {
			req.Resize = &spec
		}

	case model.OpResize:
		spec, ok, err := parseResizeSpec(r)
		if err != nil {
			return req, err
		}
		if !ok {
			return req, errors.New("resize requires width/height, scale or preset")
		}
		req.Resize = &spec

	case model.OpCrop:
		rect := model.CropRect{}
		for field, dst := range map[string]*int{
			"x": &rect.X, "y": &rect.Y, "width": &rect.Width, "height": &rect.Height,
		} {
			v := r.FormValue(field)
			if v == "" {
				return req, fmt.Errorf("crop requires field %q", field)
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid crop %s: %q", field, v)
			}
			*dst = n
		}
		req.Crop = &rect

	case model.OpRotate:
		v := r.FormValue("degrees")
		if v == "" {
			return req, errors.New("rotate requires field \"degrees\"")
		}
		deg, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, fmt.Errorf("invalid degrees: %q", v)
		}
		req.RotationDegrees = deg

	case model.OpWatermark:
		text := r.FormValue("text")
		if text == "" {
			return req, errors.New("watermark requires field \"text\"")
		}
		spec := model.WatermarkSpec{
			Text:     text,
			Position: model.Position(r.FormValue("position")),
		}
		if v := r.FormValue("opacity"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid opacity: %q", v)
			}
			spec.OpacityPercent = n
		}
		if v := r.FormValue("font_size"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("invalid font_size: %q", v)
			}
			spec.FontSize = n
		}
		req.Watermark = &spec
	}

	return req, nil
}

// parseResizeSpec reads the optional resize fields. ok reports whether
// any were present.
func parseResizeSpec(r *http.Request) (model.ResizeSpec, bool, error) {
	spec := model.ResizeSpec{}
	present := false

	for field, dst := range map[string]*int{
		"width": &spec.Width, "height": &spec.Height, "scale": &spec.ScalePercent,
	} {
		v := r.FormValue(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return spec, false, fmt.Errorf("invalid %s: %q", field, v)
		}
		*dst = n
		present = true
	}
	if v := r.FormValue("preset"); v != "" {
		spec.Preset = v
		present = true
	}
	if r.FormValue("ignore_aspect_ratio") == "true" {
		spec.IgnoreAspectRatio = true
	}
	return spec, present, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
