package translator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subtide/internal/config"
	"subtide/internal/queue"
	"subtide/internal/services"
	"subtide/internal/services/providers"
	"subtide/internal/subtitles"
	"subtide/internal/testsupport"
	"subtide/internal/translator"
	"subtide/internal/vault"
)

func newStageFixture(t *testing.T, providerName string) (*config.Config, *queue.Store, *vault.Vault) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithProvider(providerName))
	store := testsupport.MustOpenStore(t, cfg)
	keyVault := vault.New(cfg.Paths.CredentialsFile, vault.WithMachineIdentifier(vault.StaticMachineID("test-machine")))
	return cfg, store, keyVault
}

func translatingItem(t *testing.T, store *queue.Store, sourceDir string, texts ...string) *queue.Item {
	t.Helper()
	source := filepath.Join(sourceDir, "clip.mkv")
	if err := os.WriteFile(source, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}

	item, created, err := store.NewJob(context.Background(), source, "", "es", "")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if !created {
		t.Fatal("expected new job")
	}

	payload, err := subtitles.EncodeSegments(makeSegments(texts...))
	if err != nil {
		t.Fatalf("EncodeSegments: %v", err)
	}
	item.SegmentsJSON = payload
	item.Status = queue.StatusTranslating
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func fakeFactory(fake providers.Provider) translator.ProviderFactory {
	return func(name string, cfg config.Provider, apiKey string, timeout time.Duration) (providers.Provider, error) {
		return fake, nil
	}
}

func TestStageExecuteTranslatesAndExports(t *testing.T) {
	cfg, store, keyVault := newStageFixture(t, "gemini")
	if err := keyVault.Store("gemini", "sk-test", ""); err != nil {
		t.Fatalf("store credential: %v", err)
	}

	fake := &fakeProvider{name: "gemini", limits: providers.Limits{MaxBatchItems: 2, MaxBatchChars: 1000}}
	st := translator.NewStage(cfg, store, keyVault, translator.WithProviderFactory(fakeFactory(fake)))

	item := translatingItem(t, store, t.TempDir(), "one", "two", "three")
	if err := st.Prepare(context.Background(), item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := st.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(fake.calls))
	}
	if item.OutputFile == "" {
		t.Fatal("output file not recorded")
	}
	if filepath.Ext(item.OutputFile) != ".srt" {
		t.Fatalf("output file = %s", item.OutputFile)
	}
	content, err := os.ReadFile(item.OutputFile)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(content), "x-one") {
		t.Fatalf("subtitle file missing translation: %s", content)
	}
	if item.ProgressPercent != 100 {
		t.Fatalf("progress percent = %v", item.ProgressPercent)
	}

	// Checkpoints persisted translations to the queue as batches completed.
	persisted, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	segments, err := subtitles.DecodeSegments(persisted.SegmentsJSON)
	if err != nil {
		t.Fatalf("DecodeSegments: %v", err)
	}
	if subtitles.TranslatedCount(segments) != 3 {
		t.Fatalf("persisted translations = %d, want 3", subtitles.TranslatedCount(segments))
	}
}

func TestStageExecuteAppliesJobSettings(t *testing.T) {
	cfg, store, keyVault := newStageFixture(t, "local")
	fake := &fakeProvider{name: "local", limits: providers.Limits{MaxBatchItems: 10, MaxBatchChars: 1000}}
	st := translator.NewStage(cfg, store, keyVault, translator.WithProviderFactory(fakeFactory(fake)))

	item := translatingItem(t, store, t.TempDir(), "one")
	item.SettingsJSON = `{"model":"tuned-model","temperature":0.1}`
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := st.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(fake.params) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.params))
	}
	if fake.params[0].Model != "tuned-model" || fake.params[0].Temperature != 0.1 {
		t.Fatalf("job settings not applied: %+v", fake.params[0])
	}

	item.SettingsJSON = `{broken`
	if err := st.Execute(context.Background(), item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation for malformed settings", err)
	}
}

func TestStageExecuteHonorsStopRequest(t *testing.T) {
	cfg, store, keyVault := newStageFixture(t, "local")
	fake := &fakeProvider{name: "local", limits: providers.Limits{MaxBatchItems: 1, MaxBatchChars: 1000}}
	st := translator.NewStage(cfg, store, keyVault, translator.WithProviderFactory(fakeFactory(fake)))

	item := translatingItem(t, store, t.TempDir(), "one", "two")
	if ok, err := store.RequestStop(context.Background(), item.ID); err != nil || !ok {
		t.Fatalf("RequestStop: ok=%v err=%v", ok, err)
	}

	err := st.Execute(context.Background(), item)
	if !errors.Is(err, translator.ErrStopped) {
		t.Fatalf("error = %v, want ErrStopped", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("provider called %d times after stop request", len(fake.calls))
	}
}

func TestStagePrepareRejectsMissingSegments(t *testing.T) {
	cfg, store, keyVault := newStageFixture(t, "local")
	st := translator.NewStage(cfg, store, keyVault)

	item := &queue.Item{TargetLanguage: "es"}
	if err := st.Prepare(context.Background(), item); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestStageExecuteRequiresStoredCredential(t *testing.T) {
	cfg, store, keyVault := newStageFixture(t, "gemini")
	st := translator.NewStage(cfg, store, keyVault)

	item := translatingItem(t, store, t.TempDir(), "one")
	err := st.Execute(context.Background(), item)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if !errors.Is(err, vault.ErrNotConfigured) {
		t.Fatalf("error = %v, want vault.ErrNotConfigured in chain", err)
	}
}

func TestStageHealthCheck(t *testing.T) {
	cfg, store, keyVault := newStageFixture(t, "local")
	st := translator.NewStage(cfg, store, keyVault)
	if health := st.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("local provider should be ready, got %+v", health)
	}

	cfg, store, keyVault = newStageFixture(t, "gemini")
	st = translator.NewStage(cfg, store, keyVault)
	if health := st.HealthCheck(context.Background()); health.Ready {
		t.Fatal("gemini without a stored credential should be unhealthy")
	}

	if err := keyVault.Store("gemini", "sk-test", ""); err != nil {
		t.Fatalf("store credential: %v", err)
	}
	if health := st.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected ready after storing credential, got %+v", health)
	}
}
