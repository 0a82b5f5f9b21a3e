// Package analysis runs the group-comparison pipeline: load and clean an
// upload, summarize each group, dispatch the requested test and attach its
// pairwise follow-up.
package analysis

import (
	"strings"

	domainstats "labstats/domain/stats"
	apperrors "labstats/internal/errors"

	"go.uber.org/zap"
)

// Request is one analysis call
type Request struct {
	Filename string
	Payload  []byte
	Group    string
	Value    string
	Test     string

	// FormKeys lists the parameters the caller sent, reported when any are missing
	FormKeys []string
}

// Pipeline wires the loader, summarizer and dispatcher together.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	loader     *Loader
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(loader *Loader, dispatcher *Dispatcher, logger *zap.Logger) *Pipeline {
	if dispatcher == nil {
		dispatcher = NewDispatcher(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{loader: loader, dispatcher: dispatcher, logger: logger}
}

// Run executes one request. Every failure is an *errors.AppError.
func (p *Pipeline) Run(req Request) (*domainstats.Report, error) {
	group := strings.TrimSpace(req.Group)
	value := strings.TrimSpace(req.Value)
	kind, known := domainstats.ParseTestKind(req.Test)

	if len(req.Payload) == 0 {
		return nil, apperrors.MissingInput(msgNoUpload)
	}
	if group == "" || value == "" || kind == "" {
		keys := req.FormKeys
		if keys == nil {
			keys = []string{}
		}
		return nil, apperrors.MissingInput(msgMissingParams).With("params", keys)
	}

	cleaned, err := p.loader.Load(req.Filename, req.Payload, group, value)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("[pipeline] dataset cleaned",
		zap.Int("rows", cleaned.Len()),
		zap.Strings("groups", cleaned.Groups),
		zap.String("test", string(kind)))

	if !known {
		return nil, apperrors.UnknownTest(msgUnknownTest)
	}

	report := &domainstats.Report{
		Groups:        cleaned.Groups,
		NByGroup:      cleaned.Counts,
		Descriptives:  Describe(cleaned),
		RequestedTest: string(kind),
	}

	result, err := p.dispatcher.Dispatch(kind, cleaned)
	if err != nil {
		return nil, err
	}
	report.Result = result

	p.logger.Debug("[pipeline] analysis complete",
		zap.String("test", result.Name()),
		zap.Int("groups", len(cleaned.Groups)))
	return report, nil
}
