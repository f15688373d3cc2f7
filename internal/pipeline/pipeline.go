package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/retypeset/constants"
	"github.com/joseph-ayodele/retypeset/internal/cache"
	"github.com/joseph-ayodele/retypeset/internal/common"
	"github.com/joseph-ayodele/retypeset/internal/entity"
	"github.com/joseph-ayodele/retypeset/internal/fingerprint"
)

// Classifier segments a page into regions. Classification is pure with
// respect to the page image, so it runs only on cache misses. A
// classification error is recoverable: the pipeline substitutes a
// whole-page prose region and keeps going.
type Classifier interface {
	Classify(page *entity.Page) ([]entity.Region, error)
	Version() string
}

// Extractor turns classified regions into structured content.
type Extractor interface {
	ExtractPage(ctx context.Context, page *entity.Page, regions []entity.Region, fp entity.Fingerprint) (*entity.ExtractedContent, error)
}

// Pipeline drives pages through fingerprint, cache lookup, and on a miss,
// classification and extraction. Pages are independent units of work: a
// failed page never affects its siblings.
type Pipeline struct {
	classifier Classifier
	extractor  Extractor
	cache      *cache.ResultCache
	ocrVersion string
	params     fingerprint.Params
	cfg        common.PipelineConfig
	logger     *slog.Logger
}

// New builds a pipeline. It fails fast when any fingerprint input is
// missing, before any page could be keyed under a wrong identity.
func New(classifier Classifier, extractor Extractor, rc *cache.ResultCache, ocrVersion string, params fingerprint.Params, cfg common.PipelineConfig, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if ocrVersion == "" {
		return nil, fmt.Errorf("%w: ocr version", common.ErrFingerprintInput)
	}
	if classifier.Version() == "" {
		return nil, fmt.Errorf("%w: classifier version", common.ErrFingerprintInput)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Pipeline{
		classifier: classifier,
		extractor:  extractor,
		cache:      rc,
		ocrVersion: ocrVersion,
		params:     params,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// ProcessDocument runs every page of doc through the pipeline with up to
// cfg.Workers pages in flight. Cancellation is honored at page boundaries:
// in-flight pages finish, unstarted pages are reported as pending. The
// returned error is only the context's, page failures live in the report.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc *entity.Document) (*DocumentReport, error) {
	report := &DocumentReport{
		SourcePath: doc.SourcePath,
		DocHash:    doc.HashHex(),
		Pages:      make([]PageResult, len(doc.Pages)),
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)

	for i := range doc.Pages {
		page := &doc.Pages[i]
		if err := ctx.Err(); err != nil {
			report.Pages[i] = PageResult{PageIndex: page.Index, Status: constants.PageStatusPending, Err: err}
			continue
		}
		slot := i
		g.Go(func() error {
			report.Pages[slot] = p.processPage(ctx, doc, page)
			return nil
		})
	}
	_ = g.Wait()

	report.sortPages()
	cached, fresh, failed := report.Counts()
	p.logger.Info("pipeline.document.done",
		"doc", report.DocHash, "pages", len(report.Pages),
		"cached", cached, "fresh", fresh, "failed", failed)
	return report, ctx.Err()
}

func (p *Pipeline) processPage(ctx context.Context, doc *entity.Document, page *entity.Page) PageResult {
	if p.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PageTimeout)
		defer cancel()
	}
	start := time.Now()

	fp := fingerprint.Compute(doc.Hash, page.Index, p.classifier.Version(), p.ocrVersion, p.params)
	p.transition(page.Index, constants.StateFingerprinted)

	content, cached, err := p.cache.GetOrCompute(ctx, fp, func(ctx context.Context) (*entity.ExtractedContent, error) {
		p.transition(page.Index, constants.StateClassifying)
		regions, cerr := p.classifier.Classify(page)
		if cerr != nil {
			p.logger.Warn("pipeline.page.classification_fallback", "page", page.Index, "error", cerr)
			regions = []entity.Region{{Kind: entity.RegionProse, BBox: page.Bounds()}}
		}

		p.transition(page.Index, constants.StateExtracting)
		return p.extractor.ExtractPage(ctx, page, regions, fp)
	})
	if err != nil {
		p.transition(page.Index, constants.StateFailed)
		p.logger.Error("pipeline.page.failed", "page", page.Index, "fingerprint", fp.Hex(), "error", err)
		return PageResult{PageIndex: page.Index, Status: constants.PageStatusFailed, Fingerprint: fp, Err: err}
	}

	// A fresh page passes through Cached on its way to Done; a cache hit
	// skips straight to Done.
	status := constants.PageStatusDoneFresh
	if cached {
		status = constants.PageStatusDoneCached
	} else {
		p.transition(page.Index, constants.StateCached)
	}
	p.transition(page.Index, constants.StateDone)
	p.logger.Info("pipeline.page.done",
		"page", page.Index, "status", string(status),
		"fingerprint", fp.Hex(), "elapsed", time.Since(start))
	return PageResult{PageIndex: page.Index, Status: status, Fingerprint: fp, Content: content}
}

func (p *Pipeline) transition(pageIndex int, state constants.PageState) {
	p.logger.Debug("pipeline.page.state", "page", pageIndex, "state", string(state))
}
