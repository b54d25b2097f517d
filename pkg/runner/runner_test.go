package runner

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/records-classifier/pkg/catalog"
	"github.com/ilkoid/records-classifier/pkg/classifier"
	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/events"
	"github.com/ilkoid/records-classifier/pkg/export"
	"github.com/ilkoid/records-classifier/pkg/llm"
	"github.com/ilkoid/records-classifier/pkg/records"
	"github.com/ilkoid/records-classifier/pkg/s3storage"
)

var (
	testNow   = time.Now()
	yesterday = testNow.Add(-24 * time.Hour)
	longAgo   = testNow.AddDate(-7, 0, 0)
)

func writeFile(t *testing.T, dir, name, content string, mod time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
	return path
}

func runConfig(root, out string) config.RunConfig {
	return config.RunConfig{
		Root:         root,
		Output:       out,
		LinesPerFile: 100,
		Model:        "phi2",
		MaxParallel:  2,
	}
}

func byName(results []records.ResultRecord) map[string]records.ResultRecord {
	m := make(map[string]records.ResultRecord, len(results))
	for _, r := range results {
		m[r.File.Name] = r
	}
	return m
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

type countingEngine struct {
	calls atomic.Int32
	fn    func(req classifier.Request) (records.Verdict, error)
}

func (e *countingEngine) Classify(ctx context.Context, req classifier.Request) (records.Verdict, error) {
	e.calls.Add(1)
	return e.fn(req)
}

func keepEngine() *countingEngine {
	return &countingEngine{fn: func(req classifier.Request) (records.Verdict, error) {
		return records.NewVerdict(records.KindKeep, 85, "model says keep"), nil
	}}
}

// Возраст проверяется раньше расширения: старый .exe уничтожается, свежий пропускается.
func TestRun_AgeBeforeExtension(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "ancient.exe", "MZ", longAgo)
	writeFile(t, root, "memo.txt", "Quarterly budget memo", yesterday)
	writeFile(t, root, "tool.exe", "MZ", yesterday)
	out := filepath.Join(t.TempDir(), "out.csv")

	eng := keepEngine()
	sum, err := New(runConfig(root, out), Deps{Engine: eng}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Decided)
	assert.Equal(t, 1, sum.Reviewed)
	assert.NotEmpty(t, sum.RunID)

	got := byName(sum.Results)
	require.Len(t, got, 3)
	assert.Equal(t, records.KindDestroy, got["ancient.exe"].Verdict.Kind())
	assert.Equal(t, 100, got["ancient.exe"].Verdict.Confidence())
	assert.Equal(t, records.KindKeep, got["memo.txt"].Verdict.Kind())
	assert.Equal(t, records.KindSkipped, got["tool.exe"].Verdict.Kind())
	assert.Equal(t, 0, got["tool.exe"].Verdict.Confidence())
	assert.Equal(t, int32(1), eng.calls.Load())

	rows := readRows(t, out)
	require.Len(t, rows, 4)
	assert.Equal(t, export.Header, rows[0])
}

func TestRun_SkipAnalysisNoEngineCall(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data.csv", "a,b\n1,2\n", yesterday)
	out := filepath.Join(t.TempDir(), "out.csv")

	cfg := runConfig(root, out)
	cfg.SkipAnalysis = true
	eng := keepEngine()

	sum, err := New(cfg, Deps{Engine: eng}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sum.Results, 1)
	v := sum.Results[0].Verdict
	assert.Equal(t, records.KindNotAnalyzed, v.Kind())
	assert.Equal(t, 0, v.Confidence())
	assert.Equal(t, records.JustificationSkipped, v.Justification())
	assert.Zero(t, eng.calls.Load())
	assert.Zero(t, sum.Parallel)
}

// Мусорный ответ модели портит только свой файл, остальные экспортируются.
func TestRun_MalformedAnswerIsolated(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.txt", "meeting notes", yesterday)
	writeFile(t, root, "bad.txt", "garbled", yesterday)
	writeFile(t, root, "old.txt", "ancient", longAgo)
	out := filepath.Join(t.TempDir(), "out.csv")

	provider := llm.ProviderFunc(func(ctx context.Context, req llm.ChatRequest) (string, error) {
		for _, m := range req.Messages {
			if m.Role == llm.RoleUser && strings.Contains(m.Content, "garbled") {
				return "Sorry, I can't answer in JSON", nil
			}
		}
		return `{"modelDetermination":"TRANSITORY","confidenceScore":64,"contextualInsights":"routine notes"}`, nil
	})
	eng := classifier.NewLLMEngine(provider, classifier.WithRetry(0, time.Millisecond))

	sum, err := New(runConfig(root, out), Deps{Engine: eng}).Run(context.Background())
	require.NoError(t, err)

	got := byName(sum.Results)
	require.Len(t, got, 3)

	bad := got["bad.txt"].Verdict
	assert.Equal(t, records.KindError, bad.Kind())
	assert.Equal(t, 0, bad.Confidence())
	assert.Contains(t, bad.Justification(), "classification error")
	assert.Contains(t, bad.Justification(), "no JSON object")

	assert.Equal(t, records.KindTransitory, got["good.txt"].Verdict.Kind())
	assert.Equal(t, 64, got["good.txt"].Verdict.Confidence())
	assert.Equal(t, records.KindDestroy, got["old.txt"].Verdict.Kind())

	assert.Len(t, readRows(t, out), 4)
	assert.Equal(t, 1, sum.Counts[records.KindError])
}

// Таймаут модели даёт ERROR только для своего файла.
func TestRun_EngineTimeout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "slow.txt", "slow", yesterday)
	writeFile(t, root, "fast.md", "fast", yesterday)
	out := filepath.Join(t.TempDir(), "out.csv")

	provider := llm.ProviderFunc(func(ctx context.Context, req llm.ChatRequest) (string, error) {
		if strings.Contains(req.Messages[1].Content, "slow") {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return `{"modelDetermination":"KEEP","confidenceScore":70,"contextualInsights":"ok"}`, nil
	})
	eng := classifier.NewLLMEngine(provider,
		classifier.WithTimeout(30*time.Millisecond),
		classifier.WithRetry(0, time.Millisecond))

	sum, err := New(runConfig(root, out), Deps{Engine: eng}).Run(context.Background())
	require.NoError(t, err)

	got := byName(sum.Results)
	assert.Equal(t, records.KindError, got["slow.txt"].Verdict.Kind())
	assert.Contains(t, got["slow.txt"].Verdict.Justification(), "timed out")
	assert.Equal(t, records.KindKeep, got["fast.md"].Verdict.Kind())
}

func TestRun_CompletenessWithEmptyAndNested(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "empty.txt", "", yesterday)
	writeFile(t, root, "a/b/c/deep.log", "line one\nline two", yesterday)
	writeFile(t, root, "a/pic.png", "\x89PNG", yesterday)
	writeFile(t, root, ".hidden.txt", "secret", yesterday)
	out := filepath.Join(t.TempDir(), "out.csv")

	eng := keepEngine()
	sum, err := New(runConfig(root, out), Deps{Engine: eng}).Run(context.Background())
	require.NoError(t, err)

	got := byName(sum.Results)
	require.Len(t, got, 3)
	assert.Equal(t, records.KindTransitory, got["empty.txt"].Verdict.Kind())
	assert.Equal(t, 80, got["empty.txt"].Verdict.Confidence())
	assert.Equal(t, records.KindKeep, got["deep.log"].Verdict.Kind())
	assert.Equal(t, records.KindSkipped, got["pic.png"].Verdict.Kind())
	assert.Equal(t, int32(1), eng.calls.Load())

	for i := 1; i < len(sum.Results); i++ {
		assert.Less(t, sum.Results[i-1].File.Path, sum.Results[i].File.Path)
	}
}

func TestRun_DiscoveryError(t *testing.T) {
	cfg := runConfig(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "out.csv"))
	sum, err := New(cfg, Deps{Engine: keepEngine()}).Run(context.Background())
	assert.Nil(t, sum)
	assert.ErrorIs(t, err, catalog.ErrDiscovery)
	assert.NoFileExists(t, cfg.Output)
}

func TestRun_RequiresEngine(t *testing.T) {
	_, err := New(runConfig(t.TempDir(), "out.csv"), Deps{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoEngine)
}

func TestRun_ExportFailureKeepsResults(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "memo.txt", "memo", yesterday)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	r := New(runConfig(root, filepath.Join(blocker, "out.csv")), Deps{Engine: keepEngine()})
	sum, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrExport)
	require.NotNil(t, sum)
	require.Len(t, sum.Results, 1)

	retry := filepath.Join(t.TempDir(), "retry.csv")
	require.NoError(t, r.RetryExport(retry))
	assert.Len(t, readRows(t, retry), 2)
	assert.Equal(t, retry, sum.Output)
}

func TestRetryExport_NoRun(t *testing.T) {
	r := New(runConfig(t.TempDir(), "out.csv"), Deps{Engine: keepEngine()})
	assert.ErrorIs(t, r.RetryExport("x.csv"), ErrNoResults)
}

func TestRun_EmitsProgress(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a", yesterday)
	writeFile(t, root, "b.txt", "b", yesterday)
	writeFile(t, root, "c.exe", "c", yesterday)

	em := events.NewChanEmitter(16)
	sub := em.Subscribe()

	var (
		wg    sync.WaitGroup
		lines []string
		types []events.EventType
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range sub.Events() {
			types = append(types, ev.Type)
			if p, ok := ev.Data.(events.ProgressData); ok {
				lines = append(lines, p.Line())
			}
		}
	}()

	_, err := New(runConfig(root, filepath.Join(t.TempDir(), "o.csv")), Deps{Engine: keepEngine(), Emitter: em}).
		Run(context.Background())
	require.NoError(t, err)
	em.Close()
	wg.Wait()

	assert.Equal(t, events.EventStarted, types[0])
	assert.Equal(t, events.EventDone, types[len(types)-1])
	assert.ElementsMatch(t, []string{"PROGRESS: 1/3", "PROGRESS: 2/3", "PROGRESS: 3/3"}, lines)
}

type fakeMirror struct {
	key      string
	path     string
	err      error
	ctxErr   error
	deadline bool
}

func (m *fakeMirror) Key(runID, localPath string) string {
	return s3storage.ObjectKey("exports", runID, localPath)
}

func (m *fakeMirror) Upload(ctx context.Context, key, localPath string) (s3storage.UploadInfo, error) {
	m.key, m.path = key, localPath
	m.ctxErr = ctx.Err()
	_, m.deadline = ctx.Deadline()
	if m.err != nil {
		return s3storage.UploadInfo{}, m.err
	}
	return s3storage.UploadInfo{Bucket: "b", Key: key}, nil
}

func TestRun_Mirror(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.exe", "a", yesterday)
	out := filepath.Join(t.TempDir(), "out.csv")

	m := &fakeMirror{}
	sum, err := New(runConfig(root, out), Deps{Engine: keepEngine(), Mirror: m}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, out, m.path)
	assert.Equal(t, "exports/"+sum.RunID+"/out.csv", sum.MirrorKey)

	failing := &fakeMirror{err: errors.New("bucket gone")}
	sum, err = New(runConfig(root, out), Deps{Engine: keepEngine(), Mirror: failing}).Run(context.Background())
	require.NoError(t, err, "mirror failure must not fail the run")
	assert.Empty(t, sum.MirrorKey)
}

func TestRun_CancelledBeforeDispatch(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"a.txt", "b.txt", "c.txt"} {
		writeFile(t, root, n, n, yesterday)
	}
	out := filepath.Join(t.TempDir(), "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := keepEngine()
	sum, err := New(runConfig(root, out), Deps{Engine: eng}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Cancelled)
	assert.Zero(t, eng.calls.Load())
	require.Len(t, sum.Results, 3)
	for _, r := range sum.Results {
		assert.Equal(t, records.JustificationCancelled, r.Verdict.Justification())
	}
	assert.FileExists(t, out)
}

func TestRun_MirrorAfterCancel(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a", yesterday)
	out := filepath.Join(t.TempDir(), "out.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &fakeMirror{}
	sum, err := New(runConfig(root, out), Deps{Engine: keepEngine(), Mirror: m}).Run(ctx)
	require.NoError(t, err)
	assert.True(t, sum.Cancelled)
	assert.NoError(t, m.ctxErr)
	assert.True(t, m.deadline)
	assert.Equal(t, "exports/"+sum.RunID+"/out.csv", sum.MirrorKey)
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "old.pdf", "x", longAgo)
	writeFile(t, root, "new.txt", "x", yesterday)
	writeFile(t, root, "new.exe", "x", yesterday)

	st, err := New(runConfig(root, ""), Deps{}).Scan()
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Destroy)
	assert.Equal(t, 1, st.Skip)
	assert.Equal(t, 1, st.Analyze)
}

func TestSummary_String(t *testing.T) {
	s := &Summary{Total: 2, Counts: map[records.Kind]int{records.KindKeep: 1, records.KindError: 1}}
	assert.Contains(t, s.String(), "files=2 keep=1")
	assert.Contains(t, s.String(), "error=1")
}
