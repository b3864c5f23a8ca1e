package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fdg312/sugarcheck/internal/blob"
	"github.com/fdg312/sugarcheck/internal/document"
	"go.uber.org/zap"
)

// RenderEngine converts a document to PDF bytes. One engine serves one request.
type RenderEngine interface {
	RenderDocumentToBytes(ctx context.Context, doc document.Document) ([]byte, error)
	Close() error
}

// EngineFactory acquires a fresh engine.
type EngineFactory func(ctx context.Context) (RenderEngine, error)

type Stage string

const (
	StageRender Stage = "render"
	StageUpload Stage = "upload"
)

type State string

const (
	StateIdle         State = "idle"
	StateRendering    State = "rendering"
	StateRendered     State = "rendered"
	StateRenderFailed State = "render_failed"
	StateUploading    State = "uploading"
	StateUploaded     State = "uploaded"
	StateUploadFailed State = "upload_failed"
)

// Transition is one state change of a pipeline stage.
type Transition struct {
	Stage     Stage
	From      State
	To        State
	ObjectKey string
	Err       error
}

// Observer receives every transition, in order, on the request goroutine.
type Observer func(Transition)

// Artifact is an uploaded, publicly readable report file.
type Artifact struct {
	Ref  blob.ObjectRef
	URL  string
	Size int64
}

type PipelineConfig struct {
	RenderTimeout time.Duration
	UploadTimeout time.Duration
	Observer      Observer
}

// Pipeline renders documents and uploads the result.
type Pipeline struct {
	engines       EngineFactory
	store         blob.Store
	renderTimeout time.Duration
	uploadTimeout time.Duration
	observer      Observer
	logger        *zap.Logger
}

func NewPipeline(engines EngineFactory, store blob.Store, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = 30 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 60 * time.Second
	}
	return &Pipeline{
		engines:       engines,
		store:         store,
		renderTimeout: cfg.RenderTimeout,
		uploadTimeout: cfg.UploadTimeout,
		observer:      cfg.Observer,
		logger:        logger.With(zap.String("component", "reports.pipeline")),
	}
}

// ConvertAndUpload renders doc and stores it under objectKey.
func (p *Pipeline) ConvertAndUpload(ctx context.Context, doc document.Document, objectKey string) (Artifact, error) {
	data, err := p.render(ctx, doc, objectKey)
	if err != nil {
		return Artifact{}, err
	}
	return p.upload(ctx, data, objectKey)
}

func (p *Pipeline) transition(stage Stage, from, to State, key string, err error) {
	fields := []zap.Field{
		zap.String("stage", string(stage)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("object_key", key),
	}
	if err != nil {
		p.logger.Warn("pipeline transition", append(fields, zap.Error(err))...)
	} else {
		p.logger.Debug("pipeline transition", fields...)
	}
	if p.observer != nil {
		p.observer(Transition{Stage: stage, From: from, To: to, ObjectKey: key, Err: err})
	}
}

type renderResult struct {
	data []byte
	err  error
}

func (p *Pipeline) render(ctx context.Context, doc document.Document, key string) ([]byte, error) {
	p.transition(StageRender, StateIdle, StateRendering, key, nil)

	fail := func(err error) ([]byte, error) {
		p.transition(StageRender, StateRendering, StateRenderFailed, key, err)
		return nil, err
	}

	renderCtx, cancel := context.WithTimeout(ctx, p.renderTimeout)
	defer cancel()

	engine, err := p.engines(renderCtx)
	if err != nil {
		return fail(classify(renderCtx, ctx, ErrRenderFailed, fmt.Errorf("acquire engine: %w", err)))
	}

	// The engine is owned and closed by this goroutine, even when the
	// caller gives up waiting on it.
	done := make(chan renderResult, 1)
	go func() {
		var res renderResult
		defer func() {
			if r := recover(); r != nil {
				res = renderResult{err: fmt.Errorf("engine panic: %v", r)}
			}
			if cerr := engine.Close(); cerr != nil {
				p.logger.Warn("render engine close failed", zap.String("object_key", key), zap.Error(cerr))
			}
			done <- res
		}()
		data, err := engine.RenderDocumentToBytes(renderCtx, doc)
		res = renderResult{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return fail(classify(renderCtx, ctx, ErrRenderFailed, res.err))
		}
		if len(res.data) == 0 {
			return fail(fmt.Errorf("%w: empty output", ErrRenderFailed))
		}
		p.transition(StageRender, StateRendering, StateRendered, key, nil)
		return res.data, nil
	case <-renderCtx.Done():
		return fail(classify(renderCtx, ctx, ErrRenderFailed, renderCtx.Err()))
	}
}

func (p *Pipeline) upload(ctx context.Context, data []byte, key string) (Artifact, error) {
	p.transition(StageUpload, StateIdle, StateUploading, key, nil)

	fail := func(err error) (Artifact, error) {
		p.transition(StageUpload, StateUploading, StateUploadFailed, key, err)
		return Artifact{}, err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	ref, err := p.store.StreamUpload(uploadCtx, key, bytes.NewReader(data), int64(len(data)), contentTypePDF)
	if err != nil {
		return fail(classify(uploadCtx, ctx, ErrUploadFailed, err))
	}

	if err := p.store.MakePublic(uploadCtx, ref); err != nil {
		p.removeOrphan(key)
		return fail(classify(uploadCtx, ctx, ErrUploadFailed, fmt.Errorf("make public: %w", err)))
	}

	url := p.store.PublicURL(ref)
	if url == "" {
		p.removeOrphan(key)
		return fail(fmt.Errorf("%w: empty public url", ErrUploadFailed))
	}

	p.transition(StageUpload, StateUploading, StateUploaded, key, nil)
	return Artifact{Ref: ref, URL: url, Size: int64(len(data))}, nil
}

// removeOrphan deletes an object that was written but never made public.
func (p *Pipeline) removeOrphan(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.Delete(ctx, key); err != nil {
		p.logger.Warn("failed to remove orphaned object", zap.String("object_key", key), zap.Error(err))
	}
}

// classify maps a stage error onto the public sentinels. Our own deadline is
// a retryable timeout; cancellation by the caller is passed through.
func classify(stageCtx, parent context.Context, sentinel error, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
