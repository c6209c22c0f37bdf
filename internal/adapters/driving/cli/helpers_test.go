package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/custodia-labs/ragchat/internal/core/domain"
)

// fakeSettings is an in-memory driving.SettingsService.
type fakeSettings struct {
	settings domain.Settings
	values   map[string]string
	secrets  map[string]string
	setErr   error
}

func newFakeSettings() *fakeSettings {
	s := domain.DefaultSettings()
	s.Embedding.APIKey = "sk-test-embedding-key"
	s.LLM.APIKey = "sk-test-llm-key"
	return &fakeSettings{settings: s, values: map[string]string{}, secrets: map[string]string{}}
}

func (f *fakeSettings) Get() (*domain.Settings, error) {
	s := f.settings
	return &s, nil
}

func (f *fakeSettings) Set(key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func (f *fakeSettings) SaveSecrets(values map[string]string) error {
	for k, v := range values {
		f.secrets[k] = v
	}
	return nil
}

func (f *fakeSettings) SecretNames() []string {
	return []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY"}
}

func (f *fakeSettings) Keys() []string {
	return []string{"chunking.overlap", "chunking.size", "retrieval.k"}
}

func (f *fakeSettings) ConfigPath() string {
	return "/tmp/ragchat/config.toml"
}

// fakeIndex is a driving.IndexService returning canned data.
type fakeIndex struct {
	matches    []domain.Match
	namespaces []domain.NamespaceStats
	err        error
	inits      int

	lastText      string
	lastK         int
	lastNamespace string
}

func (f *fakeIndex) Initialize(context.Context) error {
	f.inits++
	return f.err
}

func (f *fakeIndex) Upsert(_ context.Context, chunks []domain.Chunk, _ string) (int, error) {
	return len(chunks), f.err
}

func (f *fakeIndex) Query(_ context.Context, text string, k int, namespace string) ([]domain.Match, error) {
	f.lastText, f.lastK, f.lastNamespace = text, k, namespace
	return f.matches, f.err
}

func (f *fakeIndex) Describe(context.Context) (domain.IndexDescription, error) {
	return domain.IndexDescription{Name: "ragchat", Dimension: 1536, Metric: domain.MetricCosine}, f.err
}

func (f *fakeIndex) Namespaces(context.Context) ([]domain.NamespaceStats, error) {
	return f.namespaces, f.err
}

// fakeIngest records ingested paths and reports one chunk per path.
type fakeIngest struct {
	paths     []string
	namespace string
	err       error
}

func (f *fakeIngest) Load(context.Context, string) (*domain.Document, error) {
	return nil, f.err
}

func (f *fakeIngest) Ingest(_ context.Context, paths []string) (*domain.IngestReport, error) {
	report := &domain.IngestReport{}
	for _, p := range paths {
		if strings.HasSuffix(p, ".docx") {
			report.Skipped++
			report.Failures = append(report.Failures, domain.FileFailure{
				Path: p, Err: &domain.UnsupportedFormatError{Path: p, Extension: ".docx"},
			})
			continue
		}
		report.Loaded++
		report.Chunks = append(report.Chunks, domain.Chunk{SourceID: p, Text: "chunk"})
	}
	return report, nil
}

func (f *fakeIngest) IngestInto(ctx context.Context, paths []string, namespace string) (*domain.IngestReport, error) {
	f.paths = append(f.paths, paths...)
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	f.namespace = namespace
	report, _ := f.Ingest(ctx, paths)
	report.Namespace = namespace
	report.Indexed = len(report.Chunks)
	return report, f.err
}

// fakeChat answers with a fixed reply and cites one source.
type fakeChat struct {
	fail   error
	asked  []string
	spaces []string
	resets int
}

func (f *fakeChat) NewSession(namespace string) *domain.Session {
	if namespace == "" {
		namespace = domain.DefaultNamespace
	}
	return domain.NewSession("cli", namespace)
}

func (f *fakeChat) Chat(_ context.Context, session *domain.Session, query string) domain.ChatResult {
	f.asked = append(f.asked, query)
	f.spaces = append(f.spaces, session.Namespace())
	if f.fail != nil {
		return domain.ChatResult{Answer: "Sorry, I could not answer.", Err: f.fail}
	}
	return domain.ChatResult{
		Answer: "answer to " + query,
		Sources: []domain.Match{{
			Score:    0.5,
			Metadata: domain.RecordMetadata{SourceID: "notes.md", SequenceIndex: 1},
		}},
	}
}

func (f *fakeChat) Reset(session *domain.Session) {
	f.resets++
	session.Reset()
}

// testRuntime bundles the fakes installed by setupTestRuntime.
type testRuntime struct {
	settings *fakeSettings
	index    *fakeIndex
	ingest   *fakeIngest
	chat     *fakeChat
	opts     []LoadOptions
	loadErr  error
	checks   []CheckResult
	warnings []string
}

// setupTestRuntime installs a loader backed by fakes and resets global flags.
func setupTestRuntime(t *testing.T) *testRuntime {
	t.Helper()
	tr := &testRuntime{
		settings: newFakeSettings(),
		index:    &fakeIndex{},
		ingest:   &fakeIngest{},
		chat:     &fakeChat{},
	}

	SetLoader(func(_ context.Context, opts LoadOptions) (*Runtime, error) {
		tr.opts = append(tr.opts, opts)
		if tr.loadErr != nil {
			return nil, tr.loadErr
		}
		rt := &Runtime{Settings: tr.settings, Warnings: tr.warnings}
		if opts.Need >= NeedIndex {
			rt.Index = tr.index
			rt.Ingest = tr.ingest
			rt.Supports = func(path string) bool {
				switch filepath.Ext(path) {
				case ".txt", ".md", ".csv", ".pdf", ".markdown":
					return true
				}
				return false
			}
		}
		if opts.Need >= NeedChat {
			rt.Chat = tr.chat
			rt.Check = func(context.Context) []CheckResult { return tr.checks }
		}
		return rt, nil
	})

	t.Cleanup(func() {
		SetLoader(nil)
		resetFlags()
	})
	return tr
}

func resetFlags() {
	configDir, envFile, verbose = "", "", false
	ingestNamespace, ingestChunkSize, ingestOverlap = "", 0, 0
	ingestWatch, ingestJSON = false, false
	queryNamespace, queryK, queryJSON = "", 0, false
	chatNamespace, chatPlain = "", false
	indexJSON, settingsCheck = false, false
	rootCmd.SetArgs(nil)
	rootCmd.SetIn(nil)
}

// execute runs the root command with args and returns combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
