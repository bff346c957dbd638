package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/mcp-pdf-covenants/internal/bookmarks"
	"github.com/a3tai/mcp-pdf-covenants/internal/bundle"
	"github.com/a3tai/mcp-pdf-covenants/internal/config"
	"github.com/a3tai/mcp-pdf-covenants/internal/extract"
	"github.com/a3tai/mcp-pdf-covenants/internal/intelligence"
	"github.com/a3tai/mcp-pdf-covenants/internal/layout"
	pdferrors "github.com/a3tai/mcp-pdf-covenants/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/security"
	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
	"github.com/a3tai/mcp-pdf-covenants/internal/report"
	"github.com/a3tai/mcp-pdf-covenants/internal/store"
	"github.com/a3tai/mcp-pdf-covenants/internal/structure"
)

// ErrArchiveDisabled is returned by LoadBundle when no archive is configured
var ErrArchiveDisabled = errors.New("bundle archive is not configured")

// OpenFunc opens the document at a resolved path.
type OpenFunc func(path string) (wrapper.Document, error)

// Option customizes a Service
type Option func(*Service)

// WithOpener replaces the file-backed opener. File validation is skipped
// for custom openers.
func WithOpener(open OpenFunc) Option {
	return func(s *Service) {
		s.open = open
		s.customOpener = true
	}
}

// WithArchive stores built bundles in a instead of the configured
// database.
func WithArchive(a store.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// Service runs the structuring pipeline over documents in the configured
// directory: layout, sections and definitions, bookmarks, classification,
// clause extraction and packaging.
type Service struct {
	cfg          *config.Config
	log          *slog.Logger
	defaultClass extract.Classification

	pathValidator *security.PathValidator
	validator     *Validator
	search        *Search
	open          OpenFunc
	customOpener  bool

	layout     *layout.Builder
	detector   *structure.Detector
	reconciler *bookmarks.Reconciler
	classifier *intelligence.Classifier
	dispatcher *extract.Dispatcher
	bundles    *bundle.Builder
	reports    *report.Renderer
	archive    store.Archive

	documents *documentCache
	info      *serverInfo
}

// NewService creates the service with all pipeline stages. When the
// configuration names a database the archive is opened here.
func NewService(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pathValidator, err := security.NewPathValidator(cfg.PDFDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}
	defaultClass, err := extract.ParseClassification(cfg.Classification)
	if err != nil {
		return nil, err
	}

	classifier := intelligence.NewClassifier(intelligence.DefaultConfig(), logger.With("component", "classifier"))
	if cfg.RulesFile != "" {
		if err := classifier.LoadRules(cfg.RulesFile); err != nil {
			return nil, fmt.Errorf("failed to load classification rules: %w", err)
		}
	}
	reports, err := report.NewRenderer()
	if err != nil {
		return nil, err
	}

	builderCfg := layout.DefaultBuilderConfig()
	builderCfg.Workers = cfg.Workers
	factory := wrapper.NewFactory(wrapper.FactoryConfig{MaxFileSize: cfg.MaxFileSize})
	validator := NewValidator(cfg.MaxFileSize)

	s := &Service{
		cfg:           cfg,
		log:           logger,
		defaultClass:  defaultClass,
		pathValidator: pathValidator,
		validator:     validator,
		search:        NewSearch(pathValidator, validator),
		open:          func(path string) (wrapper.Document, error) { return factory.Open(path) },
		layout:        layout.NewBuilder(builderCfg, logger.With("component", "layout")),
		detector:      structure.NewDetector(structure.DefaultDetectionConfig(), logger.With("component", "structure")),
		reconciler:    bookmarks.NewReconciler(logger.With("component", "bookmarks")),
		classifier:    classifier,
		dispatcher: extract.NewDispatcher(extract.NewPool(cfg.Workers), extract.DefaultRegistry(),
			cfg.ExtractorTimeout, logger.With("component", "extract")),
		bundles:   bundle.NewBuilder(logger.With("component", "bundle")),
		reports:   reports,
		documents: newDocumentCache(documentCacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.archive == nil && cfg.ArchiveEnabled() {
		repo, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open bundle archive: %w", err)
		}
		s.archive = repo
	}
	s.info = newServerInfo(s)
	return s, nil
}

// Close releases the archive connection
func (s *Service) Close() error {
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}

// GetConfiguredDirectory returns the root all paths are resolved against
func (s *Service) GetConfiguredDirectory() string {
	return s.pathValidator.Root()
}

// PDFValidateFile performs validation on a PDF file
func (s *Service) PDFValidateFile(req PDFValidateFileRequest) (*PDFValidateFileResult, error) {
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	res, err := s.validator.ValidateFile(PDFValidateFileRequest{Path: path})
	if err != nil {
		return nil, err
	}
	res.Path = req.Path
	return res, nil
}

// PDFSearchDirectory searches for PDF files below the configured directory
func (s *Service) PDFSearchDirectory(req PDFSearchDirectoryRequest) (*PDFSearchDirectoryResult, error) {
	return s.search.SearchDirectory(req)
}

// PDFServerInfo describes the server and lists documents in its directory
func (s *Service) PDFServerInfo(ctx context.Context) (*PDFServerInfoResult, error) {
	return s.info.get(ctx)
}

// staged is the state of a document after structuring, before
// classification.
type staged struct {
	path      string
	title     string
	props     map[string]string
	document  *structure.Document
	report    bookmarks.Report
	state     bookmarks.State
	anomalies []*pdferrors.StructureError
}

// stage returns the structured document at reqPath, from the cache when
// the file is unchanged since it was last structured.
func (s *Service) stage(ctx context.Context, reqPath string) (*staged, error) {
	path, err := s.pathValidator.Resolve(reqPath)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version, cacheable := fileVersion(path)
	if cacheable {
		if st, ok := s.documents.get(path, version); ok {
			s.log.Debug("document cache hit", "path", path)
			return st, nil
		}
	}
	st, err := s.structure(ctx, path)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.documents.put(path, version, st)
	}
	return st, nil
}

// structure opens the document and builds its layout and logical
// structure, then reconciles the outline. Unreadable pages, outline items
// and metadata become anomalies; only an unopenable document is an error.
func (s *Service) structure(ctx context.Context, path string) (*staged, error) {
	log := s.log.With("path", path)
	start := time.Now()

	if !s.customOpener {
		if err := s.validator.Check(path); err != nil {
			return nil, err
		}
	}
	doc, err := s.open(path)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidDocument, err).WithContext(path)
	}
	defer doc.Close()

	l, err := s.layout.Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build layout: %w", err)
	}
	sdoc, err := s.detector.Detect(l)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidStructure, err).WithContext(path)
	}

	st := &staged{path: path, document: sdoc}
	st.anomalies = append(st.anomalies, l.Anomalies.All()...)

	outline, err := doc.Outline()
	if err != nil {
		log.Warn("outline unreadable", "error", err)
		st.anomalies = append(st.anomalies, pdferrors.Wrap(pdferrors.ErrorTypeMalformedOutline, err))
		outline = nil
	}
	st.report = s.reconciler.Reconcile(sdoc, outline)
	st.anomalies = append(st.anomalies, st.report.Anomalies...)

	st.props, err = doc.Properties()
	if err != nil {
		log.Warn("metadata unreadable", "error", err)
		st.anomalies = append(st.anomalies, pdferrors.Wrap(pdferrors.ErrorTypeInvalidMetadata, err))
		st.props = map[string]string{}
	}
	st.state = bookmarks.LoadState(outline, st.props)
	st.title = documentTitle(path, st.props)
	st.anomalies = slices.Clip(st.anomalies)

	log.Debug("document structured",
		"pages", l.PageCount(), "sections", len(sdoc.All()), "definitions", len(sdoc.Definitions),
		"anomalies", len(st.anomalies), "elapsed", time.Since(start))
	return st, nil
}

// Analyze runs the whole pipeline. An empty or "auto" classification
// with the default set to auto classifies the document first.
func (s *Service) Analyze(ctx context.Context, req PDFAnalyzeRequest) (*Analysis, error) {
	start := time.Now()
	class := s.defaultClass
	if req.Classification != "" {
		c, err := extract.ParseClassification(req.Classification)
		if err != nil {
			return nil, err
		}
		class = c
	}

	st, err := s.stage(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	var classification intelligence.Classification
	if class == extract.ClassAuto {
		classification, err = s.classifier.Classify(ctx, st.document)
		if err != nil {
			return nil, fmt.Errorf("classification failed: %w", err)
		}
	} else {
		classification = intelligence.Classification{
			Tag:          class,
			Confidence:   1,
			Reasons:      []intelligence.Reason{{Rule: "requested", Category: "requested", Evidence: string(class), Confidence: 1, Weight: 1}},
			RulesApplied: []string{},
		}
	}

	outcome, err := s.dispatcher.Dispatch(ctx, st.document, classification.Tag)
	if err != nil {
		return nil, err
	}

	return &Analysis{
		Path:           st.path,
		Title:          st.title,
		Properties:     st.props,
		Document:       st.document,
		Bookmarks:      st.report,
		BookmarkState:  st.state,
		Classification: classification,
		Outcome:        outcome,
		Anomalies:      st.anomalies,
		Elapsed:        time.Since(start),
	}, nil
}

// PDFStructureFile returns the outline and defined terms of a document
func (s *Service) PDFStructureFile(ctx context.Context, req PDFAnalyzeRequest) (*PDFStructureResult, error) {
	st, err := s.stage(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	res := &PDFStructureResult{
		Path:          req.Path,
		Title:         st.title,
		Pages:         st.document.Layout.PageCount(),
		TOC:           st.document.TableOfContents(),
		Definitions:   make([]DefinitionInfo, 0, len(st.document.Definitions)),
		BookmarkState: st.state,
		Bookmarks:     st.report,
		Anomalies:     anomalyInfos(st.anomalies),
	}
	for _, p := range st.document.Layout.Skipped {
		res.SkippedPages = append(res.SkippedPages, p+1)
	}
	for _, d := range st.document.Definitions {
		info := DefinitionInfo{Term: strings.Trim(d.TermText(), quoteCutset), PageNumber: d.Page() + 1}
		if d.Section != nil {
			info.Section = d.Section.Heading()
		}
		res.Definitions = append(res.Definitions, info)
	}
	return res, nil
}

// PDFExtractCovenants classifies a document and extracts its clauses
func (s *Service) PDFExtractCovenants(ctx context.Context, req PDFAnalyzeRequest) (*PDFCovenantsResult, error) {
	a, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	res := &PDFCovenantsResult{
		Path:           req.Path,
		Classification: a.Classification,
		Results:        make([]CovenantInfo, 0, len(a.Outcome.Results)),
		Failures:       make([]FailureInfo, 0, len(a.Outcome.Failures)),
		PerExtractor:   a.Outcome.PerExtractor,
		Elapsed:        a.Elapsed.String(),
	}
	for _, r := range a.Outcome.Results {
		res.Results = append(res.Results, covenantInfo(r))
	}
	for _, f := range a.Outcome.Failures {
		res.Failures = append(res.Failures, FailureInfo{
			Extractor: f.Extractor,
			Type:      f.Type,
			Kind:      f.Err.Type.String(),
			Message:   f.Err.Error(),
		})
	}
	return res, nil
}

// PDFBundleFile builds the bundle of a document, archives it when an
// archive is configured and renders the review report when a report path
// is given. An archive failure is logged and leaves Archived false.
func (s *Service) PDFBundleFile(ctx context.Context, req PDFBundleRequest) (*PDFBundleResult, error) {
	var reportPath string
	if req.ReportPath != "" {
		p, err := s.pathValidator.Resolve(req.ReportPath)
		if err != nil {
			return nil, fmt.Errorf("security validation failed: %w", err)
		}
		reportPath = p
	}

	a, err := s.Analyze(ctx, PDFAnalyzeRequest{Path: req.Path, Classification: req.Classification})
	if err != nil {
		return nil, err
	}

	b, err := s.bundles.Build(bundle.Input{
		Title:            a.Title,
		Document:         a.Document,
		Results:          a.Outcome.Results,
		Failures:         a.Outcome.Failures,
		BookmarkState:    a.BookmarkState,
		Anomalies:        a.Anomalies,
		Notes:            req.Notes,
		PinnedTerms:      req.PinnedTerms,
		OmitDocumentData: req.OmitDocumentData,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build bundle: %w", err)
	}

	res := &PDFBundleResult{Path: req.Path, BundleID: b.ID().String(), Bundle: b}
	log := s.log.With("path", a.Path, "bundle_id", res.BundleID)

	if s.archive != nil {
		if err := s.archive.Save(ctx, a.Path, b); err != nil {
			log.Warn("bundle not archived", "error", err)
		} else {
			res.Archived = true
		}
	}

	if reportPath != "" {
		in := report.Input{
			Title:    a.Title,
			Version:  s.cfg.Version,
			Document: a.Document,
			Results:  a.Outcome.Results,
			Failures: a.Outcome.Failures,
			Notes:    req.Notes,
		}
		if geo, ok := a.Document.Layout.PageGeometry(0); ok {
			in.Preview = firstPagePreview(a.Path, geo)
		}
		if err := s.reports.RenderFile(reportPath, in); err != nil {
			return nil, fmt.Errorf("failed to write report: %w", err)
		}
		res.ReportPath = reportPath
	}

	log.Info("bundle built", "results", len(a.Outcome.Results), "archived", res.Archived)
	return res, nil
}

// LoadBundle returns an archived bundle
func (s *Service) LoadBundle(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.Load(ctx, id)
}

// PDFMarkBookmarked marks the document's bookmarks as processed. The
// flags are written into the document only when bookmark persistence is
// configured and the document accepts metadata writes.
func (s *Service) PDFMarkBookmarked(ctx context.Context, req PDFMarkBookmarksRequest) (*PDFMarkBookmarksResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathValidator.Resolve(req.Path)
	if err != nil {
		return nil, fmt.Errorf("security validation failed: %w", err)
	}
	if !s.customOpener {
		if err := s.validator.Check(path); err != nil {
			return nil, err
		}
	}
	doc, err := s.open(path)
	if err != nil {
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeInvalidDocument, err).WithContext(path)
	}
	defer doc.Close()

	outline, err := doc.Outline()
	if err != nil {
		outline = nil
	}
	props, err := doc.Properties()
	if err != nil {
		props = nil
	}
	state := bookmarks.LoadState(outline, props).MarkProcessed()

	res := &PDFMarkBookmarksResult{Path: req.Path, State: state}
	if s.cfg.PersistBookmarkState {
		w, ok := doc.(wrapper.PropertyWriter)
		if !ok {
			return nil, fmt.Errorf("document does not accept metadata writes: %s", req.Path)
		}
		if err := state.Persist(w); err != nil {
			return nil, fmt.Errorf("failed to persist bookmark state: %w", err)
		}
		res.Persisted = true
		s.documents.remove(path)
	}
	s.log.Info("bookmarks marked processed", "path", path, "persisted", res.Persisted)
	return res, nil
}

const quoteCutset = "\"“”'‘’"

// documentTitle prefers the Info title, then the file name.
func documentTitle(path string, props map[string]string) string {
	if t := strings.TrimSpace(props["Title"]); t != "" {
		return t
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func covenantInfo(r *extract.Result) CovenantInfo {
	info := CovenantInfo{
		Type:       r.Type,
		Key:        r.Key,
		Value:      r.Value,
		PageNumber: r.PageNo() + 1,
		Extractor:  r.Extractor,
	}
	if r.Section != nil {
		info.Section = r.Section.Heading()
	}
	parts := make([]string, 0, len(r.Sources))
	for _, src := range r.Sources {
		parts = append(parts, src.Text())
	}
	info.Text = strings.Join(parts, " ")
	return info
}

func anomalyInfos(errs []*pdferrors.StructureError) []AnomalyInfo {
	out := make([]AnomalyInfo, 0, len(errs))
	for _, e := range errs {
		out = append(out, AnomalyInfo{
			Type:       e.Type.String(),
			Message:    e.Message,
			Context:    e.Context,
			PageNumber: e.Page,
			Extractor:  e.Extractor,
		})
	}
	return out
}
