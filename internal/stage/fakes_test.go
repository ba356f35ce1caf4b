package stage

import (
	"context"
	"sync"

	"github.com/spigell/resume-tuner/internal/chart"
	"github.com/spigell/resume-tuner/internal/notify"
	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/service"
)

// events is an ordered trace shared by all fakes of one test.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) snapshot() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

func (e *events) index(s string) int {
	for i, v := range e.snapshot() {
		if v == s {
			return i
		}
	}
	return -1
}

type fakeSurface struct {
	ev *events

	mu         sync.Mutex
	skills     []string
	resumeText string
	cleared    int
	analysis   []resume.MatchResult
	preview    string
	saved      []resume.Document
	failures   map[Region]string
	saveErr    error
}

func newFakeSurface(ev *events) *fakeSurface {
	return &fakeSurface{ev: ev, failures: map[Region]string{}}
}

func (s *fakeSurface) ShowLoading(region Region) { s.ev.add("loading:" + string(region)) }

func (s *fakeSurface) ShowFailure(region Region, message string) {
	s.mu.Lock()
	s.failures[region] = message
	s.mu.Unlock()
	s.ev.add("failure:" + string(region))
}

func (s *fakeSurface) RenderSkills(skills []string) {
	s.mu.Lock()
	s.skills = skills
	s.mu.Unlock()
	s.ev.add("skills")
}

func (s *fakeSurface) SetResumeText(text string) {
	s.mu.Lock()
	s.resumeText = text
	s.mu.Unlock()
	s.ev.add("resume-text")
}

func (s *fakeSurface) ClearFileSelection() {
	s.mu.Lock()
	s.cleared++
	s.mu.Unlock()
	s.ev.add("clear-file")
}

func (s *fakeSurface) RenderAnalysis(result resume.MatchResult) {
	s.mu.Lock()
	s.analysis = append(s.analysis, result)
	s.mu.Unlock()
	s.ev.add("analysis")
}

func (s *fakeSurface) RenderPreview(markup string) {
	s.mu.Lock()
	s.preview = markup
	s.mu.Unlock()
	s.ev.add("preview")
}

func (s *fakeSurface) SaveDocument(doc resume.Document) error {
	s.ev.add("save:" + doc.Name)
	if s.saveErr != nil {
		return s.saveErr
	}
	s.mu.Lock()
	s.saved = append(s.saved, doc)
	s.mu.Unlock()
	return nil
}

type sent struct {
	Message string
	Kind    notify.Kind
}

type fakeNotifier struct {
	ev *events

	mu   sync.Mutex
	sent []sent
}

func (n *fakeNotifier) Notify(message string, kind notify.Kind) {
	n.mu.Lock()
	n.sent = append(n.sent, sent{Message: message, Kind: kind})
	n.mu.Unlock()
	n.ev.add("notify:" + string(kind))
}

func (n *fakeNotifier) all() []sent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sent(nil), n.sent...)
}

type fakeGateway struct {
	ev *events

	mu     sync.Mutex
	calls  int
	ctxErr error

	extract func(jd string) (resume.Extraction, error)
	ingest  func(file resume.FileSelection) (string, error)
	analyze func(req service.AnalyzeRequest) (resume.MatchResult, error)
	tailor  func(req service.TailorRequest) (resume.Document, error)
	preview func(req service.PreviewRequest) (string, error)
	create  func(req service.CreateRequest) (resume.Document, error)
}

func (g *fakeGateway) record(op string) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.ev.add("call:" + op)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGateway) ExtractSkills(ctx context.Context, jd string) (resume.Extraction, error) {
	g.record(service.OpExtractSkills)
	extraction, err := g.extract(jd)
	g.mu.Lock()
	g.ctxErr = ctx.Err()
	g.mu.Unlock()
	return extraction, err
}

func (g *fakeGateway) IngestResume(_ context.Context, file resume.FileSelection) (string, error) {
	g.record(service.OpUploadResume)
	return g.ingest(file)
}

func (g *fakeGateway) AnalyzeResume(_ context.Context, req service.AnalyzeRequest) (resume.MatchResult, error) {
	g.record(service.OpAnalyzeResume)
	return g.analyze(req)
}

func (g *fakeGateway) TailorResume(_ context.Context, req service.TailorRequest) (resume.Document, error) {
	g.record(service.OpTailorResume)
	return g.tailor(req)
}

func (g *fakeGateway) PreviewResume(_ context.Context, req service.PreviewRequest) (string, error) {
	g.record(service.OpPreviewResume)
	return g.preview(req)
}

func (g *fakeGateway) CreateResume(_ context.Context, req service.CreateRequest) (resume.Document, error) {
	g.record(service.OpCreateResume)
	return g.create(req)
}

type pieCanvas struct {
	mu    sync.Mutex
	alive int
	drawn [][]chart.Slice
}

type pie struct {
	canvas *pieCanvas
	once   sync.Once
}

func (p *pie) Destroy() {
	p.once.Do(func() {
		p.canvas.mu.Lock()
		p.canvas.alive--
		p.canvas.mu.Unlock()
	})
}

func (c *pieCanvas) Draw(slices []chart.Slice) chart.Chart {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alive++
	c.drawn = append(c.drawn, slices)
	return &pie{canvas: c}
}
