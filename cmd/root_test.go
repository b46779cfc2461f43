package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/convert"
	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/fetch"
	"github.com/openpatata/scrapers/internal/mirror"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/record/memory"
)

type mockApp struct {
	store   record.Store
	crawler *crawler.Crawler
	mirror  *mirror.Mirror
	closed  bool
}

func (m *mockApp) Close()                    { m.closed = true }
func (m *mockApp) Logger() *zap.Logger       { return zap.NewNop() }
func (m *mockApp) Store() record.Store       { return m.store }
func (m *mockApp) Crawler() *crawler.Crawler { return m.crawler }
func (m *mockApp) Mirror() *mirror.Mirror    { return m.mirror }

func newMockApp(t *testing.T, dataDir string) *mockApp {
	t.Helper()
	store := memory.New()
	fetcher := fetch.New(fetch.Config{MaxConcurrency: 1}, zap.NewNop())
	decoder := convert.New(zap.NewNop())
	return &mockApp{
		store:   store,
		crawler: crawler.New(fetcher, decoder, 1, zap.NewNop()),
		mirror:  mirror.New(dataDir, store, zap.NewNop()),
	}
}

func execute(t *testing.T, mock *mockApp, args ...string) (string, error) {
	t.Helper()

	orig := newApp
	newApp = func(context.Context) (App, error) { return mock, nil }
	t.Cleanup(func() { newApp = orig })

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestUnloadWritesMirrorFiles(t *testing.T) {
	dir := t.TempDir()
	mock := newMockApp(t, dir)
	doc := record.Doc{"_id": "q1", "heading": "H"}
	if err := mock.store.Upsert(context.Background(), record.CollectionQuestions, "q1", doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	out, err := execute(t, mock, "unload", record.CollectionQuestions)
	if err != nil {
		t.Fatalf("unload error = %v", err)
	}
	if !strings.Contains(out, "questions\t1\t0") {
		t.Fatalf("expected summary line in output, got %q", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "questions", "q1.yaml")); err != nil {
		t.Fatalf("expected mirror file: %v", err)
	}
	if !mock.closed {
		t.Fatal("expected app to be closed after command")
	}
}

func TestLoadRoundTripsMirrorFiles(t *testing.T) {
	dir := t.TempDir()
	seed := newMockApp(t, dir)
	doc := record.Doc{"_id": "q1", "heading": "H", "date": "2020-05-01"}
	if err := seed.store.Upsert(context.Background(), record.CollectionQuestions, "q1", doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := execute(t, seed, "unload", record.CollectionQuestions); err != nil {
		t.Fatalf("unload error = %v", err)
	}

	// A fresh store populated only from the files on disk.
	mock := newMockApp(t, dir)
	out, err := execute(t, mock, "load", record.CollectionQuestions)
	if err != nil {
		t.Fatalf("load error = %v", err)
	}
	if !strings.Contains(out, "questions\t1\t0") {
		t.Fatalf("expected summary line in output, got %q", out)
	}
	got, ok, err := mock.store.Get(context.Background(), record.CollectionQuestions, "q1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", got, ok, err)
	}
	if got["heading"] != "H" || got["date"] != "2020-05-01" {
		t.Fatalf("unexpected restored doc: %v", got)
	}
}

func TestRunReportsUnknownTaskFailure(t *testing.T) {
	mock := newMockApp(t, t.TempDir())

	out, err := execute(t, mock, "run", "no_such_task")
	if err == nil || !strings.Contains(err.Error(), "1 of 1 tasks failed") {
		t.Fatalf("expected aggregate failure, got %v", err)
	}
	if !strings.Contains(out, "no_such_task\tfailed") {
		t.Fatalf("expected failed summary line, got %q", out)
	}
}
