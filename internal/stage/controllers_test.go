package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/resume-tuner/internal/chart"
	"github.com/spigell/resume-tuner/internal/notify"
	"github.com/spigell/resume-tuner/internal/resume"
	"github.com/spigell/resume-tuner/internal/service"
	"github.com/spigell/resume-tuner/internal/workflow"
)

type fixture struct {
	ev       *events
	gw       *fakeGateway
	surface  *fakeSurface
	notifier *fakeNotifier
	canvas   *pieCanvas
	sess     *workflow.Session
	ctl      *Controllers
}

func newFixture() *fixture {
	ev := &events{}
	fx := &fixture{
		ev:       ev,
		gw:       &fakeGateway{ev: ev},
		surface:  newFakeSurface(ev),
		notifier: &fakeNotifier{ev: ev},
		canvas:   &pieCanvas{},
	}
	fx.sess = workflow.NewSession(chart.NewRenderer(fx.canvas, zap.NewNop()))
	fx.ctl = New(fx.gw, fx.surface, fx.notifier, zap.NewNop())
	return fx
}

func wait(t *testing.T, req *Request) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, req.Wait(ctx))
}

func requireRejected(t *testing.T, req *Request, kind notify.Kind, message string) {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, req.Rejection(), &verr)
	require.Equal(t, kind, verr.Kind)
	require.Equal(t, message, verr.Message)
	require.Zero(t, req.Seq)
}

func TestExtractRejectsBlankJobDescription(t *testing.T) {
	fx := newFixture()

	req := fx.ctl.Extract(context.Background(), fx.sess, "  \n\t")

	requireRejected(t, req, notify.KindError, MsgNoJobDescription)
	select {
	case <-req.Done():
	default:
		t.Fatal("rejected request should already be done")
	}
	require.Zero(t, fx.gw.callCount())
	require.Equal(t, []sent{{Message: MsgNoJobDescription, Kind: notify.KindError}}, fx.notifier.all())
	require.Equal(t, -1, fx.ev.index("loading:skills"))
}

func TestExtractThenAnalyze(t *testing.T) {
	fx := newFixture()
	fx.gw.extract = func(jd string) (resume.Extraction, error) {
		require.Equal(t, "Senior Python developer with SQL", jd)
		return resume.Extraction{Skills: []string{"Python", "SQL"}}, nil
	}
	fx.gw.analyze = func(req service.AnalyzeRequest) (resume.MatchResult, error) {
		require.Equal(t, []string{"Python", "SQL"}, req.Skills)
		require.Equal(t, "Senior Python developer with SQL", req.JobDescription)
		return resume.MatchResult{MatchPercentage: 50, MatchedSkills: []string{"Python"}, UnmatchedSkills: []string{"SQL"}}, nil
	}

	req := fx.ctl.Extract(context.Background(), fx.sess, "Senior Python developer with SQL")
	require.NoError(t, req.Rejection())
	wait(t, req)

	require.Equal(t, []string{"Python", "SQL"}, fx.sess.Skills())
	require.Equal(t, []string{"Python", "SQL"}, fx.surface.skills)
	require.Empty(t, fx.notifier.all())

	req = fx.ctl.Analyze(context.Background(), fx.sess, "Jane Doe, Python engineer", "Senior Python developer with SQL")
	wait(t, req)

	require.Len(t, fx.surface.analysis, 1)
	result := fx.surface.analysis[0]
	require.Equal(t, 50.0, result.MatchPercentage)
	require.Equal(t, []string{"Python"}, result.MatchedSkills)
	require.Equal(t, []string{"SQL"}, result.UnmatchedSkills)
	require.Equal(t, "Fair Match", result.Mood)

	require.Equal(t, 1, fx.canvas.alive)
	require.Equal(t, []chart.Slice{
		{Label: chart.LabelMatched, Value: 50},
		{Label: chart.LabelMissing, Value: 50},
	}, fx.canvas.drawn[len(fx.canvas.drawn)-1])

	require.Less(t, fx.ev.index("loading:analysis"), fx.ev.index("call:analyze_resume"))
}

func TestAnalyzeReconcilesPartition(t *testing.T) {
	fx := newFixture()
	fx.sess.SetSkills([]string{"Go", "Kubernetes", "SQL"})
	fx.gw.analyze = func(service.AnalyzeRequest) (resume.MatchResult, error) {
		return resume.MatchResult{
			MatchPercentage: 140,
			MatchedSkills:   []string{"go", "Terraform"},
			Mood:            "Strong",
		}, nil
	}

	wait(t, fx.ctl.Analyze(context.Background(), fx.sess, "resume", "jd"))

	result := fx.surface.analysis[0]
	require.Equal(t, 100.0, result.MatchPercentage)
	require.Equal(t, []string{"Go"}, result.MatchedSkills)
	require.Equal(t, []string{"Kubernetes", "SQL"}, result.UnmatchedSkills)
	require.Equal(t, "Strong", result.Mood)
}

func TestAnalyzePreconditions(t *testing.T) {
	tests := []struct {
		name    string
		resume  string
		skills  []string
		kind    notify.Kind
		message string
	}{
		{name: "no resume", resume: " ", skills: []string{"Go"}, kind: notify.KindError, message: MsgNoResume},
		{name: "resume checked first", resume: "", kind: notify.KindError, message: MsgNoResume},
		{name: "no skills", resume: "Jane Doe", kind: notify.KindWarning, message: MsgNoSkills},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()
			fx.sess.SetSkills(tt.skills)

			req := fx.ctl.Analyze(context.Background(), fx.sess, tt.resume, "jd")

			requireRejected(t, req, tt.kind, tt.message)
			require.Zero(t, fx.gw.callCount())
			require.Equal(t, []sent{{Message: tt.message, Kind: tt.kind}}, fx.notifier.all())
			require.Zero(t, fx.canvas.alive)
		})
	}
}

func TestIngestRejections(t *testing.T) {
	tests := []struct {
		name    string
		file    *resume.FileSelection
		kind    notify.Kind
		message string
		cleared int
	}{
		{
			name:    "nothing selected",
			kind:    notify.KindError,
			message: MsgNoFile,
		},
		{
			name:    "type checked before size",
			file:    &resume.FileSelection{Name: "resume.txt", MIMEType: "text/plain", Size: 10 * 1024 * 1024},
			kind:    notify.KindError,
			message: MsgInvalidFileType,
			cleared: 1,
		},
		{
			name:    "too large",
			file:    &resume.FileSelection{Name: "resume.pdf", MIMEType: resume.MIMETypePDF, Size: 6 * 1024 * 1024},
			kind:    notify.KindWarning,
			message: MsgFileTooLarge,
			cleared: 1,
		},
		{
			name:    "data larger than reported size",
			file:    &resume.FileSelection{Name: "resume.pdf", MIMEType: resume.MIMETypePDF, Data: make([]byte, resume.MaxUploadSize+1)},
			kind:    notify.KindWarning,
			message: MsgFileTooLarge,
			cleared: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture()

			req := fx.ctl.Ingest(context.Background(), fx.sess, tt.file)

			requireRejected(t, req, tt.kind, tt.message)
			require.Zero(t, fx.gw.callCount())
			require.Equal(t, tt.cleared, fx.surface.cleared)
			require.Equal(t, []sent{{Message: tt.message, Kind: tt.kind}}, fx.notifier.all())
		})
	}
}

func TestIngestAcceptsFileAtSizeLimit(t *testing.T) {
	fx := newFixture()
	fx.gw.ingest = func(file resume.FileSelection) (string, error) {
		require.Len(t, file.Data, resume.MaxUploadSize)
		return "Jane Doe", nil
	}

	file := &resume.FileSelection{
		Name:     "resume.pdf",
		MIMEType: resume.MIMETypePDF,
		Size:     5_242_880,
		Data:     make([]byte, resume.MaxUploadSize),
	}

	req := fx.ctl.Ingest(context.Background(), fx.sess, file)
	require.NoError(t, req.Rejection())
	require.NotZero(t, req.Seq)
	wait(t, req)

	require.Equal(t, 1, fx.gw.callCount())
	require.Zero(t, fx.surface.cleared)
	require.Equal(t, "Jane Doe", fx.surface.resumeText)
	require.Equal(t, []sent{{Message: MsgResumeUploaded, Kind: notify.KindSuccess}}, fx.notifier.all())
}

func TestIngestReplacesResumeText(t *testing.T) {
	fx := newFixture()
	fx.gw.ingest = func(file resume.FileSelection) (string, error) {
		require.Equal(t, "resume.docx", file.Name)
		return "Jane Doe\nGo engineer", nil
	}

	file := &resume.FileSelection{Name: "resume.docx", MIMEType: resume.MIMETypeDOCX, Size: resume.MaxUploadSize, Data: []byte("PK")}
	wait(t, fx.ctl.Ingest(context.Background(), fx.sess, file))

	require.Equal(t, "Jane Doe\nGo engineer", fx.surface.resumeText)
	require.Equal(t, []sent{{Message: MsgResumeUploaded, Kind: notify.KindSuccess}}, fx.notifier.all())
	require.Less(t, fx.ev.index("loading:resume"), fx.ev.index("call:upload_resume"))
	require.Zero(t, fx.surface.cleared)
}

func TestTailorAnnouncesFormatBeforeResolving(t *testing.T) {
	fx := newFixture()
	format := resume.FormatDOCX
	fx.sess.SetOptions(resume.OptionsPatch{OutputFormat: &format})

	release := make(chan struct{})
	fx.gw.tailor = func(req service.TailorRequest) (resume.Document, error) {
		<-release
		require.Equal(t, resume.FormatDOCX, req.OutputFormat)
		require.Equal(t, resume.TemplateProfessional, req.TemplateStyle)
		return resume.Document{Name: "server-side.bin", Payload: []byte("docx bytes")}, nil
	}

	req := fx.ctl.Tailor(context.Background(), fx.sess, "Jane Doe", "Go engineer wanted")
	require.NoError(t, req.Rejection())

	notes := fx.notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, notify.KindSuccess, notes[0].Kind)
	require.Contains(t, notes[0].Message, "docx")
	require.Equal(t, -1, fx.ev.index("save:tailored_resume.docx"))

	close(release)
	wait(t, req)

	require.Len(t, fx.surface.saved, 1)
	require.Equal(t, "tailored_resume.docx", fx.surface.saved[0].Name)
	require.Equal(t, resume.MIMETypeDOCX, fx.surface.saved[0].MIMEType)
	require.Equal(t, []byte("docx bytes"), fx.surface.saved[0].Payload)
	require.Less(t, fx.ev.index("notify:success"), fx.ev.index("loading:tailor"))
}

func TestTailorAndPreviewRequireBothInputs(t *testing.T) {
	inputs := []struct{ resume, jd string }{
		{"", "Go engineer wanted"},
		{"Jane Doe", " "},
	}

	for _, in := range inputs {
		fx := newFixture()

		tailor := fx.ctl.Tailor(context.Background(), fx.sess, in.resume, in.jd)
		preview := fx.ctl.Preview(context.Background(), fx.sess, in.resume, in.jd)

		requireRejected(t, tailor, notify.KindWarning, MsgMissingInputs)
		requireRejected(t, preview, notify.KindWarning, MsgMissingInputs)
		require.Zero(t, fx.gw.callCount())
		require.Len(t, fx.notifier.all(), 2)
	}
}

func TestPreviewRendersWithoutNotification(t *testing.T) {
	fx := newFixture()
	fx.gw.preview = func(req service.PreviewRequest) (string, error) {
		require.Equal(t, "Jane Doe", req.ResumeText)
		return "<h1>Jane Doe</h1>", nil
	}

	wait(t, fx.ctl.Preview(context.Background(), fx.sess, "Jane Doe", "Go engineer wanted"))

	require.Equal(t, "<h1>Jane Doe</h1>", fx.surface.preview)
	require.Empty(t, fx.notifier.all())
	require.Less(t, fx.ev.index("loading:preview"), fx.ev.index("preview"))
}

func TestFailureKeepsState(t *testing.T) {
	fx := newFixture()
	fx.sess.SetSkills([]string{"Go"})
	fx.gw.extract = func(string) (resume.Extraction, error) {
		return resume.Extraction{}, service.Failuref(service.OpExtractSkills, "upstream unavailable")
	}

	wait(t, fx.ctl.Extract(context.Background(), fx.sess, "Go engineer wanted"))

	require.Equal(t, []string{"Go"}, fx.sess.Skills())
	require.Contains(t, fx.surface.failures[RegionSkills], "upstream unavailable")
	notes := fx.notifier.all()
	require.Len(t, notes, 1)
	require.Equal(t, notify.KindError, notes[0].Kind)
	require.Contains(t, notes[0].Message, "upstream unavailable")
	require.Equal(t, -1, fx.ev.index("skills"))
}

func TestAnalysisFailureKeepsChart(t *testing.T) {
	fx := newFixture()
	fx.sess.SetSkills([]string{"Go"})
	fx.gw.analyze = func(service.AnalyzeRequest) (resume.MatchResult, error) {
		return resume.MatchResult{MatchPercentage: 100, MatchedSkills: []string{"Go"}}, nil
	}
	wait(t, fx.ctl.Analyze(context.Background(), fx.sess, "resume", "jd"))

	fx.gw.analyze = func(service.AnalyzeRequest) (resume.MatchResult, error) {
		return resume.MatchResult{}, errors.New("connection reset")
	}
	wait(t, fx.ctl.Analyze(context.Background(), fx.sess, "resume", "jd"))

	require.Len(t, fx.canvas.drawn, 1)
	require.Equal(t, 1, fx.canvas.alive)
	require.Contains(t, fx.surface.failures[RegionAnalysis], "connection reset")
}

func TestSaveFailureIsReported(t *testing.T) {
	fx := newFixture()
	fx.surface.saveErr = errors.New("disk full")
	fx.gw.tailor = func(service.TailorRequest) (resume.Document, error) {
		return resume.Document{Payload: []byte("%PDF")}, nil
	}

	wait(t, fx.ctl.Tailor(context.Background(), fx.sess, "Jane Doe", "Go engineer wanted"))

	require.Contains(t, fx.surface.failures[RegionTailor], "disk full")
	notes := fx.notifier.all()
	require.Len(t, notes, 2)
	require.Equal(t, notify.KindError, notes[1].Kind)
}

func TestRepeatedAnalysisKeepsOneChart(t *testing.T) {
	fx := newFixture()
	fx.sess.SetSkills([]string{"Go", "SQL"})
	fx.gw.analyze = func(service.AnalyzeRequest) (resume.MatchResult, error) {
		return resume.MatchResult{MatchPercentage: 50, MatchedSkills: []string{"Go"}}, nil
	}

	for range 3 {
		wait(t, fx.ctl.Analyze(context.Background(), fx.sess, "resume", "jd"))
	}

	require.Len(t, fx.canvas.drawn, 3)
	require.Equal(t, 1, fx.canvas.alive)
}

// racingExtractions starts two extractions whose responses arrive in reverse order.
func racingExtractions(t *testing.T, fx *fixture) {
	t.Helper()
	releaseFirst := make(chan struct{})
	fx.gw.extract = func(jd string) (resume.Extraction, error) {
		if jd == "first" {
			<-releaseFirst
			return resume.Extraction{Skills: []string{"Go"}}, nil
		}
		return resume.Extraction{Skills: []string{"Rust"}}, nil
	}

	first := fx.ctl.Extract(context.Background(), fx.sess, "first")
	second := fx.ctl.Extract(context.Background(), fx.sess, "second")
	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, uint64(2), second.Seq)

	wait(t, second)
	require.Equal(t, []string{"Rust"}, fx.sess.Skills())

	close(releaseFirst)
	wait(t, first)
}

func TestLastResponseWins(t *testing.T) {
	fx := newFixture()

	racingExtractions(t, fx)

	require.Equal(t, []string{"Go"}, fx.sess.Skills())
	require.Equal(t, []string{"Go"}, fx.surface.skills)
}

func TestLastRequestWinsDropsStaleResponse(t *testing.T) {
	fx := newFixture()
	fx.ctl.Policy = LastRequestWins

	racingExtractions(t, fx)

	require.Equal(t, []string{"Rust"}, fx.sess.Skills())
	require.Equal(t, []string{"Rust"}, fx.surface.skills)
}

func TestDispatchOutlivesCallerContext(t *testing.T) {
	fx := newFixture()
	release := make(chan struct{})
	fx.gw.extract = func(string) (resume.Extraction, error) {
		<-release
		return resume.Extraction{Skills: []string{"Go"}}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	req := fx.ctl.Extract(ctx, fx.sess, "Go engineer wanted")
	cancel()
	close(release)
	wait(t, req)

	require.NoError(t, fx.gw.ctxErr)
	require.Equal(t, []string{"Go"}, fx.sess.Skills())
}

func TestWaitHonoursContext(t *testing.T) {
	fx := newFixture()
	release := make(chan struct{})
	defer close(release)
	fx.gw.preview = func(service.PreviewRequest) (string, error) {
		<-release
		return "", nil
	}

	req := fx.ctl.Preview(context.Background(), fx.sess, "Jane Doe", "Go engineer wanted")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, req.Wait(ctx), context.DeadlineExceeded)

	select {
	case <-req.Done():
		t.Fatal("request finished before the gateway answered")
	default:
	}

	release <- struct{}{}

	select {
	case <-req.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("request did not finish after the gateway answered")
	}
	require.Equal(t, 1, fx.ev.index("call:preview_resume"))
	require.NotEqual(t, -1, fx.ev.index("preview"))
}

func TestCreateRejectsBlankResponses(t *testing.T) {
	fx := newFixture()

	req := fx.ctl.Create(context.Background(), fx.sess, " \n ")

	requireRejected(t, req, notify.KindError, MsgNoResponses)
	require.Zero(t, fx.gw.callCount())
	require.Equal(t, -1, fx.ev.index("loading:create"))
}

func TestCreateSavesNewResume(t *testing.T) {
	fx := newFixture()
	fx.gw.create = func(req service.CreateRequest) (resume.Document, error) {
		require.Equal(t, "Jane Doe, five years of Go", req.Responses)
		return resume.Document{Name: "whatever.bin", Payload: []byte("%PDF")}, nil
	}

	req := fx.ctl.Create(context.Background(), fx.sess, "Jane Doe, five years of Go")
	require.NoError(t, req.Rejection())
	wait(t, req)

	require.Len(t, fx.surface.saved, 1)
	doc := fx.surface.saved[0]
	require.Equal(t, "My_Resume.pdf", doc.Name)
	require.Equal(t, resume.MIMETypePDF, doc.MIMEType)
	require.Empty(t, fx.notifier.all())
	require.Less(t, fx.ev.index("loading:create"), fx.ev.index("call:create_resume"))
	require.Equal(t, uint64(1), fx.sess.Latest(workflow.StageCreation))
}

func TestCreateFailureIsReported(t *testing.T) {
	fx := newFixture()
	fx.sess.SetSkills([]string{"Go"})
	fx.gw.create = func(service.CreateRequest) (resume.Document, error) {
		return resume.Document{}, service.Failuref(service.OpCreateResume, "No responses provided")
	}

	wait(t, fx.ctl.Create(context.Background(), fx.sess, "Jane Doe"))

	require.Equal(t, "Error creating resume: No responses provided", fx.surface.failures[RegionCreate])
	require.Equal(t, []sent{{Message: "Error creating resume: No responses provided", Kind: notify.KindError}}, fx.notifier.all())
	require.Empty(t, fx.surface.saved)
	require.Equal(t, []string{"Go"}, fx.sess.Skills())
}
