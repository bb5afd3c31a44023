// Package batch orchestrates a set of files processed together under
// one tool configuration: intake validation, per-file transforms with
// failure isolation, a single credit deduction and one history record
// per file.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rshrestha/imagetools/internal/imaging"
	"github.com/rshrestha/imagetools/internal/ledger"
	"github.com/rshrestha/imagetools/internal/model"
)

var (
	// ErrNoFiles means processing was started on a batch with no
	// accepted files.
	ErrNoFiles = errors.New("batch has no files")

	// ErrAlreadyProcessed means the batch reached a terminal state.
	ErrAlreadyProcessed = errors.New("batch already processed")

	// ErrFileTooLarge rejects a single candidate file, not the batch.
	ErrFileTooLarge = errors.New("file too large")

	// ErrDisallowedType rejects a single candidate file, not the batch.
	ErrDisallowedType = errors.New("file type not allowed")

	// ErrBillingInconsistent means files were processed but the ledger
	// deduction failed afterwards. The deduction is deliberately not
	// retried; the state needs manual reconciliation.
	ErrBillingInconsistent = errors.New("billing inconsistency: processing succeeded but credit deduction failed")
)

// State is the batch lifecycle position.
type State string

const (
	StateEmpty           State = "empty"
	StatePopulated       State = "populated"
	StateProcessing      State = "processing"
	StateCompleted       State = "completed"
	StatePartiallyFailed State = "partially_failed"
)

// Transformer applies one transform request to one file.
type Transformer interface {
	Apply(data []byte, req model.TransformRequest) ([]byte, model.Format, error)
}

// Ledger is the credit ledger surface the orchestrator needs.
type Ledger interface {
	Balance(userID string) (*model.CreditAccount, error)
	Deduct(userID string, amount int, toolID, description string) error
}

// Recorder appends processing history rows.
type Recorder interface {
	Append(rec *model.ProcessingRecord) error
}

// Defaults applied by New when Config fields are zero.
const (
	DefaultMaxFileSize = 10 << 20
	DefaultCost        = 2
	DefaultWorkers     = 4
)

// Config tunes the orchestrator. Costs is the single toolId -> credit
// cost table; tools absent from it cost DefaultCost.
type Config struct {
	MaxFileSize int64
	Costs       map[string]int
	Workers     int
}

// Orchestrator creates and runs batch jobs against its collaborators.
type Orchestrator struct {
	transformer Transformer
	ledger      Ledger
	recorder    Recorder
	cfg         Config
	log         *slog.Logger
}

func New(t Transformer, l Ledger, r Recorder, cfg Config) *Orchestrator {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Costs == nil {
		cfg.Costs = model.ToolCosts()
	}
	return &Orchestrator{
		transformer: t,
		ledger:      l,
		recorder:    r,
		cfg:         cfg,
		log:         slog.Default(),
	}
}

type file struct {
	name         string
	data         []byte
	size         int64
	output       []byte
	outputFormat model.Format
	outputName   string
	err          error
}

// Job is one batch. It is owned by a single caller; methods are not
// safe for concurrent use.
type Job struct {
	ID      string
	ToolID  string
	Request model.TransformRequest

	o     *Orchestrator
	state State
	files []*file
}

// NewJob creates an empty job for toolID with the shared request.
func (o *Orchestrator) NewJob(toolID string, req model.TransformRequest) *Job {
	return &Job{
		ID:      uuid.New().String(),
		ToolID:  toolID,
		Request: req,
		o:       o,
		state:   StateEmpty,
	}
}

// State reports the job's lifecycle position.
func (j *Job) State() State { return j.state }

// FileCount reports the number of accepted files.
func (j *Job) FileCount() int { return len(j.files) }

// Cost is the per-file credit cost for this job's tool.
func (j *Job) Cost() int {
	if c, ok := j.o.cfg.Costs[j.ToolID]; ok {
		return c
	}
	return DefaultCost
}

// RequiredCredits is the cost of processing every accepted file.
func (j *Job) RequiredCredits() int { return j.Cost() * len(j.files) }

// Add validates one candidate file and accepts it into the batch. A
// rejection (ErrFileTooLarge, ErrDisallowedType) applies to that file
// only; the batch stays usable.
func (j *Job) Add(name string, data []byte) error {
	if j.state != StateEmpty && j.state != StatePopulated {
		return ErrAlreadyProcessed
	}
	if int64(len(data)) > j.o.cfg.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrFileTooLarge, name, len(data), j.o.cfg.MaxFileSize)
	}
	if imaging.DetectFormat(data) == "" {
		return fmt.Errorf("%w: %s", ErrDisallowedType, name)
	}
	j.files = append(j.files, &file{name: name, data: data, size: int64(len(data))})
	j.state = StatePopulated
	return nil
}

// Remove drops a file by name before processing and releases its
// buffer. It reports whether a file was removed.
func (j *Job) Remove(name string) bool {
	if j.state != StatePopulated {
		return false
	}
	for i, f := range j.files {
		if f.name == name {
			f.data = nil
			j.files = append(j.files[:i], j.files[i+1:]...)
			if len(j.files) == 0 {
				j.state = StateEmpty
			}
			return true
		}
	}
	return false
}

// Close releases all input and output buffers. The job is unusable
// afterwards.
func (j *Job) Close() {
	for _, f := range j.files {
		f.data = nil
		f.output = nil
	}
	j.files = nil
}

// Process runs the batch: credit pre-check, per-file transforms, a
// single deduction for the successful files, then one history record
// per file. user may be nil for anonymous (free, untracked) usage.
//
// A per-file transform failure degrades the terminal state to
// PartiallyFailed but never aborts sibling files. A deduction failure
// after processing is returned as ErrBillingInconsistent alongside the
// summary.
func (j *Job) Process(ctx context.Context, user *model.User) (*Summary, error) {
	switch j.state {
	case StatePopulated:
	case StateEmpty:
		return nil, ErrNoFiles
	default:
		return nil, ErrAlreadyProcessed
	}

	cost := j.Cost()
	required := j.RequiredCredits()

	isAdmin := false
	if user != nil {
		acct, err := j.o.ledger.Balance(user.ID)
		if err != nil {
			return nil, err
		}
		isAdmin = acct.IsAdmin
		if !isAdmin && acct.Balance < required {
			return nil, fmt.Errorf("%w: need %d, have %d", ledger.ErrInsufficientCredits, required, acct.Balance)
		}
	}

	j.state = StateProcessing

	// Transforms may run concurrently; the deduct call below runs once,
	// after all workers join.
	sem := make(chan struct{}, j.o.cfg.Workers)
	var wg sync.WaitGroup
	for _, f := range j.files {
		wg.Add(1)
		go func(f *file) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				f.err = err
				return
			}
			out, format, err := j.o.transformer.Apply(f.data, j.Request)
			if err != nil {
				f.err = err
				return
			}
			f.output = out
			f.outputFormat = format
			f.outputName = outputName(f.name, j.Request.Operation, format)
		}(f)
	}
	wg.Wait()

	succeeded := 0
	for _, f := range j.files {
		if f.err == nil {
			succeeded++
		}
	}

	// Charge for the successful files only, never the reserved amount.
	charged := 0
	var billingErr error
	if user != nil && !isAdmin && succeeded > 0 {
		charged = succeeded * cost
		desc := fmt.Sprintf("%s: processed %d file(s)", j.ToolID, succeeded)
		if err := j.o.ledger.Deduct(user.ID, charged, j.ToolID, desc); err != nil {
			billingErr = fmt.Errorf("%w: %v", ErrBillingInconsistent, err)
			charged = 0
		}
	}

	// One history row per file, after the deduction has definitively
	// completed or failed, so charged rows always have a matching
	// transaction.
	perFileCredits := 0
	if charged > 0 {
		perFileCredits = cost
	}
	userID := ""
	if user != nil {
		userID = user.ID
	}
	for _, f := range j.files {
		rec := &model.ProcessingRecord{
			UserID:   userID,
			ToolID:   j.ToolID,
			FileName: f.name,
			FileSize: f.size,
		}
		if f.err == nil {
			rec.Status = model.StatusCompleted
			rec.OutputFormat = string(f.outputFormat)
			rec.CreditsUsed = perFileCredits
			rec.Metadata = map[string]any{
				"originalSize":     f.size,
				"outputSize":       len(f.output),
				"compressionRatio": ratio(int64(len(f.output)), f.size),
			}
			if j.Request.Quality > 0 {
				rec.Metadata["quality"] = j.Request.Quality
			}
		} else {
			rec.Status = model.StatusFailed
			rec.Metadata = map[string]any{"error": f.err.Error()}
		}
		if err := j.o.recorder.Append(rec); err != nil {
			j.o.log.Error("failed to append history record",
				"batch", j.ID, "file", f.name, "error", err)
		}
	}

	if succeeded == len(j.files) {
		j.state = StateCompleted
	} else {
		j.state = StatePartiallyFailed
	}

	return j.summarize(charged), billingErr
}

func outputName(name string, op model.Operation, format model.Format) string {
	base := name
	if i := strings.LastIndex(name, "."); i > 0 {
		base = name[:i]
	}
	suffix := map[model.Operation]string{
		model.OpCompress:  "_compressed",
		model.OpConvert:   "_converted",
		model.OpResize:    "_resized",
		model.OpCrop:      "_cropped",
		model.OpRotate:    "_rotated",
		model.OpWatermark: "_watermarked",
	}[op]
	return base + suffix + "." + imaging.Ext(format)
}

func ratio(out, orig int64) float64 {
	if orig == 0 {
		return 0
	}
	return float64(out) / float64(orig)
}
