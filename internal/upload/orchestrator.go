package upload

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the position of an attempt in the upload state machine.
type State int32

const (
	StateIdle State = iota
	StateRequestingTarget
	StateTransferring
	StateConfirming
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequestingTarget:
		return "requesting_target"
	case StateTransferring:
		return "transferring"
	case StateConfirming:
		return "confirming"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// TargetSource issues a fresh upload target for each attempt.
type TargetSource interface {
	AcquireTarget(ctx context.Context, file FileHandle) (UploadTarget, error)
}

// Transferrer sends the file bytes to the target. onProgress may be called any
// number of times and is never nil.
type Transferrer interface {
	Transfer(ctx context.Context, target UploadTarget, file FileHandle, onProgress func(TransferProgress)) error
}

// Confirmer registers a stored object with the backend.
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (UploadRecord, error)
}

// StateHook observes transitions of every attempt.
type StateHook func(attemptID string, from, to State)

// DefaultSourceTag is sent as upload_source when none is configured.
const DefaultSourceTag = "gcs"

// Orchestrator drives attempts through target acquisition, transfer and
// confirmation. It holds no per-attempt state and is safe for concurrent use.
type Orchestrator struct {
	targets   TargetSource
	transfer  Transferrer
	confirm   Confirmer
	sourceTag string
	hook      StateHook
	logger    zerolog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSourceTag sets the upload_source value sent on confirmation.
func WithSourceTag(tag string) Option {
	return func(o *Orchestrator) {
		if tag != "" {
			o.sourceTag = tag
		}
	}
}

// WithStateHook registers a hook called on every state transition.
func WithStateHook(h StateHook) Option {
	return func(o *Orchestrator) {
		o.hook = h
	}
}

// WithLogger sets the logger used for transition and failure logs.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// NewOrchestrator wires the three collaborators of an upload.
func NewOrchestrator(targets TargetSource, transfer Transferrer, confirm Confirmer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		targets:   targets,
		transfer:  transfer,
		confirm:   confirm,
		sourceTag: DefaultSourceTag,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attempt is one run of the state machine. It is never reused.
type Attempt struct {
	id    string
	file  FileHandle
	state atomic.Int32
	done  chan struct{}

	target UploadTarget
	record UploadRecord
	err    error
}

// ID identifies the attempt in logs and progress events.
func (a *Attempt) ID() string { return a.id }

// File returns the file being uploaded.
func (a *Attempt) File() FileHandle { return a.file }

// State returns the current state.
func (a *Attempt) State() State { return State(a.state.Load()) }

// Done is closed once the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result blocks until the attempt finishes and returns its outcome.
func (a *Attempt) Result() (UploadRecord, error) {
	<-a.done
	return a.record, a.err
}

// Wait is like Result but returns early with ctx.Err() if ctx ends first.
// The attempt keeps running; only the caller's interest is dropped.
func (a *Attempt) Wait(ctx context.Context) (UploadRecord, error) {
	select {
	case <-a.done:
		return a.record, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Begin starts a new attempt in its own goroutine. The file must already have
// passed Validate.
func (o *Orchestrator) Begin(ctx context.Context, file FileHandle, listener ProgressListener) *Attempt {
	a := o.newAttempt(file)
	go o.run(ctx, a, listener)
	return a
}

// StartUpload runs a new attempt to completion. Every call requests a fresh target.
func (o *Orchestrator) StartUpload(ctx context.Context, file FileHandle, listener ProgressListener) (UploadRecord, error) {
	a := o.newAttempt(file)
	o.run(ctx, a, listener)
	return a.record, a.err
}

func (o *Orchestrator) newAttempt(file FileHandle) *Attempt {
	return &Attempt{
		id:   uuid.NewString(),
		file: file,
		done: make(chan struct{}),
	}
}

func (o *Orchestrator) run(ctx context.Context, a *Attempt, listener ProgressListener) {
	defer close(a.done)

	log := o.logger.With().Str("attempt", a.id).Str("file", a.file.Name).Logger()

	o.transition(a, StateRequestingTarget)
	target, err := o.targets.AcquireTarget(ctx, a.file)
	if err == nil {
		err = target.validate()
	}
	if err != nil {
		o.fail(a, &log, ErrTargetAcquisition, err)
		return
	}
	a.target = target
	log = log.With().Str("bucket", target.BucketID).Str("object", target.ObjectKey).Logger()

	o.transition(a, StateTransferring)
	onProgress := func(p TransferProgress) {
		if listener == nil {
			return
		}
		listener.OnProgress(ProgressEvent{AttemptID: a.id, Progress: p, Percent: Report(p)})
	}
	if err := o.transfer.Transfer(ctx, target, a.file, onProgress); err != nil {
		o.fail(a, &log, ErrTransfer, err)
		return
	}

	o.transition(a, StateConfirming)
	record, err := o.confirm.Confirm(ctx, ConfirmRequest{
		FileName:     a.file.Name,
		FilePath:     target.ObjectKey,
		FileSize:     a.file.SizeBytes,
		UploadSource: o.sourceTag,
		Bucket:       target.BucketID,
		ObjectPath:   target.ObjectKey,
	})
	if err != nil {
		o.fail(a, &log, ErrConfirmation, err)
		return
	}

	a.record = record
	o.transition(a, StateSucceeded)
	log.Info().Int64("size", a.file.SizeBytes).Msg("upload registered")
}

func (o *Orchestrator) fail(a *Attempt, log *zerolog.Logger, kind, cause error) {
	phase := a.State()
	a.err = &PhaseError{
		Kind:       kind,
		Phase:      phase,
		AttemptID:  a.id,
		Bucket:     a.target.BucketID,
		ObjectKey:  a.target.ObjectKey,
		StatusCode: statusCode(cause),
		Err:        cause,
	}
	o.transition(a, StateFailed)

	ev := log.Error()
	if kind == ErrConfirmation {
		ev = ev.Bool("orphaned", true)
	}
	ev.Err(cause).Str("phase", phase.String()).Msg("upload failed")
}

func (o *Orchestrator) transition(a *Attempt, to State) {
	from := State(a.state.Swap(int32(to)))
	o.logger.Debug().Str("attempt", a.id).Stringer("from", from).Stringer("to", to).Msg("upload state")
	if o.hook != nil {
		o.hook(a.id, from, to)
	}
}
