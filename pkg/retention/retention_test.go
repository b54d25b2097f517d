package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ilkoid/records-classifier/pkg/config"
	"github.com/ilkoid/records-classifier/pkg/records"
)

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func file(name string, age time.Duration) records.FileRecord {
	return records.NewFileRecord("/root/"+name, 10, now.Add(-age))
}

func defaultPolicy() *Policy {
	return NewPolicy(config.DefaultIncludeExt, config.DefaultExcludeExt)
}

func TestDecide(t *testing.T) {
	day := 24 * time.Hour
	seven := 7 * 365 * day

	tests := []struct {
		name     string
		file     records.FileRecord
		decided  bool
		wantKind records.Kind
		wantConf int
		wantText string
	}{
		{"old text file destroyed", file("old.txt", seven), true, records.KindDestroy, 100, "age exceeds 6-year retention policy"},
		{"old excluded file destroyed, not skipped", file("old.exe", seven), true, records.KindDestroy, 100, "age exceeds 6-year retention policy"},
		{"old unknown file destroyed", file("old.xyz", seven), true, records.KindDestroy, 100, "age exceeds 6-year retention policy"},
		{"recent excluded file skipped", file("setup.exe", day), true, records.KindSkipped, 0, "unsupported file type: .exe"},
		{"recent unknown file skipped", file("photo.heic", day), true, records.KindSkipped, 0, "unsupported file type: .heic"},
		{"recent file without extension skipped", file("README", day), true, records.KindSkipped, 0, "unsupported file type: "},
		{"recent supported file reviewable", file("notes.txt", day), false, "", 0, ""},
		{"upper-case extension reviewable", file("SCAN.PDF", day), false, "", 0, ""},
		{"exactly six years is not expired", file("edge.txt", RetentionPeriod), false, "", 0, ""},
		{"six years and a second is expired", file("edge.txt", RetentionPeriod+time.Second), true, records.KindDestroy, 100, "age exceeds 6-year retention policy"},
	}

	p := defaultPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := p.Decide(now, tt.file)
			assert.Equal(t, tt.decided, ok)
			if !tt.decided {
				return
			}
			assert.Equal(t, tt.wantKind, r.Verdict.Kind())
			assert.Equal(t, tt.wantConf, r.Verdict.Confidence())
			assert.Equal(t, tt.wantText, r.Verdict.Justification())
			assert.Equal(t, tt.file, r.File)
		})
	}
}

func TestDecide_ExcludeWinsOverInclude(t *testing.T) {
	p := NewPolicy([]string{".txt", ".log"}, []string{".log"})

	r, ok := p.Decide(now, file("app.log", time.Hour))
	assert.True(t, ok)
	assert.Equal(t, records.KindSkipped, r.Verdict.Kind())
}

func TestDecide_Idempotent(t *testing.T) {
	p := defaultPolicy()
	files := []records.FileRecord{
		file("a.txt", time.Hour),
		file("b.exe", time.Hour),
		file("c.exe", 10*365*24*time.Hour),
	}

	for _, f := range files {
		first, ok1 := p.Decide(now, f)
		for i := 0; i < 5; i++ {
			again, ok2 := p.Decide(now, f)
			assert.Equal(t, ok1, ok2)
			assert.Equal(t, first, again)
		}
	}
}

func TestSplitAndCount(t *testing.T) {
	p := defaultPolicy()
	files := []records.FileRecord{
		file("old.doc", 7*365*24*time.Hour),
		file("a.txt", time.Hour),
		file("tool.exe", time.Hour),
		file("b.md", time.Hour),
	}

	decided, reviewable := p.Split(now, files)
	assert.Len(t, decided, 2)
	assert.Equal(t, []records.FileRecord{files[1], files[3]}, reviewable)
	assert.Equal(t, records.KindDestroy, decided[0].Verdict.Kind())
	assert.Equal(t, records.KindSkipped, decided[1].Verdict.Kind())

	assert.Equal(t, Stats{Total: 4, Destroy: 1, Skip: 1, Analyze: 2}, p.Count(now, files))
}
