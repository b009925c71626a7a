package fingerprint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint/textdigest"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/model"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
)

func testConfig(t *testing.T) *configs.FingerprintConfig {
	t.Helper()

	return &configs.FingerprintConfig{
		HashSize:         configs.DefaultHashSize,
		CanvasSize:       configs.DefaultCanvasSize,
		SampleRate:       configs.DefaultSampleRate,
		NMels:            configs.DefaultNMels,
		NChroma:          configs.DefaultNChroma,
		FMax:             configs.DefaultFMax,
		FrameSize:        configs.DefaultFrameSize,
		HopSize:          configs.DefaultHopSize,
		SamplingInterval: configs.DefaultSamplingInterval,
		MaxFrames:        configs.DefaultMaxFrames,
		FallbackFPS:      configs.DefaultFallbackFPS,
		Workers:          2,
		WorkDir:          t.TempDir(),
	}
}

// fakeStorage 将预置内容写入目标路径，可被并发调用.
type fakeStorage struct {
	content []byte
	err     error

	mu        sync.Mutex
	destPaths []string
}

func (f *fakeStorage) Download(_ context.Context, _ string, destPath string) error {
	f.mu.Lock()
	f.destPaths = append(f.destPaths, destPath)
	f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	return os.WriteFile(destPath, f.content, 0o600)
}

func (f *fakeStorage) Exists(_ context.Context, _ string) (bool, error) { return true, nil }

// fakeDB 记录所有插入，errOn 控制第 n 次插入返回错误（1 起）.
type fakeDB struct {
	errOn int
	err   error

	mu      sync.Mutex
	records []*model.Fingerprint
}

func (f *fakeDB) InsertFingerprint(_ context.Context, record *model.Fingerprint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.errOn > 0 && len(f.records)+1 == f.errOn {
		return f.err
	}
	f.records = append(f.records, record)

	return nil
}

// fakeEmbedder 可配置返回向量或错误.
type fakeEmbedder struct {
	vec *types.Embedding
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (*types.Embedding, error) {
	return f.vec, f.err
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	for y := 0; y < 512; y++ {
		for x := 0; x < 512; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return buf.Bytes()
}

func imageRequest() *types.GenerateFingerprintRequest {
	return &types.GenerateFingerprintRequest{
		AssetID:      "asset-1",
		ObjectKey:    "img/2026/sample.png",
		DeclaredType: "image",
		UserID:       "user-1",
	}
}

func TestGenerate_ImageCompleted(t *testing.T) {
	storage := &fakeStorage{content: pngBytes(t)}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	record, err := g.Generate(context.Background(), imageRequest())
	if err != nil {
		t.Fatal(err)
	}

	if record.ProcessingStatus != types.StatusCompleted {
		t.Errorf("status = %s, want completed", record.ProcessingStatus)
	}
	if record.PerceptualHashes == nil {
		t.Fatal("perceptual hashes missing")
	}
	if record.PerceptualHashes.HashSize != 16 {
		t.Errorf("hash_size = %d, want 16", record.PerceptualHashes.HashSize)
	}
	for _, h := range []string{record.PerceptualHashes.PHash, record.PerceptualHashes.AHash, record.PerceptualHashes.DHash} {
		if len(h) != 64 {
			t.Errorf("hash length = %d, want 64", len(h))
		}
	}
	if record.SpectralData != nil || record.VideoHashes != nil || record.TextHash != "" {
		t.Error("non-image payloads populated on image record")
	}
	if record.ProcessingDuration <= 0 {
		t.Error("processing duration not set")
	}
	if len(db.records) != 1 {
		t.Fatalf("persisted %d records, want exactly 1", len(db.records))
	}
	if record.ID == "" {
		t.Error("record id not generated")
	}
}

func TestGenerate_UnsupportedType(t *testing.T) {
	storage := &fakeStorage{content: pngBytes(t)}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	req := imageRequest()
	req.DeclaredType = "hologram"

	_, err := g.Generate(context.Background(), req)
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("error chain missing ErrUnsupportedType: %v", err)
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Phase != PhaseValidate {
		t.Errorf("phase = %s, want validate", genErr.Phase)
	}

	// 快速失败: 不触碰存储也不落记录.
	if len(storage.destPaths) != 0 {
		t.Error("storage touched for unsupported type")
	}
	if len(db.records) != 0 {
		t.Error("record persisted for unsupported type")
	}
}

func TestGenerate_CorruptImageFailedRecord(t *testing.T) {
	// 0 字节文件声明为图像: 分析失败、落失败记录、返回 GenerationError.
	storage := &fakeStorage{content: nil}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	_, err := g.Generate(context.Background(), imageRequest())
	if err == nil {
		t.Fatal("expected error for empty image file")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Phase != PhaseAnalyze {
		t.Errorf("phase = %s, want analyze", genErr.Phase)
	}

	var srcErr *SourceUnreadableError
	if !errors.As(err, &srcErr) {
		t.Error("error chain missing SourceUnreadableError")
	}

	if len(db.records) != 1 {
		t.Fatalf("persisted %d records, want exactly 1", len(db.records))
	}
	failed := db.records[0]
	if failed.ProcessingStatus != types.StatusFailed {
		t.Errorf("status = %s, want failed", failed.ProcessingStatus)
	}
	if failed.ErrorMessage == "" {
		t.Error("error message empty on failed record")
	}
	if failed.ProcessingDuration < 0 {
		t.Error("processing duration not set on failed record")
	}
}

func TestGenerate_DownloadFailure(t *testing.T) {
	storage := &fakeStorage{err: fmt.Errorf("object not found")}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	_, err := g.Generate(context.Background(), imageRequest())

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Phase != PhaseDownload {
		t.Errorf("phase = %s, want download", genErr.Phase)
	}
	if genErr.AssetID != "asset-1" || genErr.ObjectKey != "img/2026/sample.png" {
		t.Errorf("error context = %s/%s", genErr.AssetID, genErr.ObjectKey)
	}
	if len(db.records) != 1 || db.records[0].ProcessingStatus != types.StatusFailed {
		t.Error("download failure must persist exactly one failed record")
	}
}

func TestGenerate_TextCompleted(t *testing.T) {
	const wantHash = "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"

	storage := &fakeStorage{content: []byte("  Hello, World!  ")}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	req := imageRequest()
	req.ObjectKey = "docs/hello.txt"
	req.DeclaredType = "text"

	record, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if record.TextHash != wantHash {
		t.Errorf("text hash = %s, want %s", record.TextHash, wantHash)
	}
	if record.WordCount != 2 || record.LineCount != 1 {
		t.Errorf("stats = %d words %d lines, want 2/1", record.WordCount, record.LineCount)
	}
	if record.PerceptualHashes != nil {
		t.Error("image payload populated on text record")
	}
}

func TestGenerate_TempFileLifecycle(t *testing.T) {
	storage := &fakeStorage{content: pngBytes(t)}
	db := &fakeDB{}
	cfg := testConfig(t)
	g := New(cfg, storage, db, nil)

	if _, err := g.Generate(context.Background(), imageRequest()); err != nil {
		t.Fatal(err)
	}

	if len(storage.destPaths) != 1 {
		t.Fatalf("downloads = %d, want 1", len(storage.destPaths))
	}

	dest := storage.destPaths[0]
	if filepath.Ext(dest) != ".png" {
		t.Errorf("temp file extension = %s, want .png preserved", filepath.Ext(dest))
	}
	if filepath.Dir(dest) != cfg.WorkDir {
		t.Errorf("temp file outside work dir: %s", dest)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("temp file not removed after success: %s", dest)
	}
}

func TestGenerate_TempFileRemovedOnFailure(t *testing.T) {
	storage := &fakeStorage{content: []byte("garbage")}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	if _, err := g.Generate(context.Background(), imageRequest()); err == nil {
		t.Fatal("expected analyze error")
	}

	dest := storage.destPaths[0]
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("temp file not removed on failure path: %s", dest)
	}
}

func TestGenerate_EmbeddingFailureDegrades(t *testing.T) {
	storage := &fakeStorage{content: pngBytes(t)}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, &fakeEmbedder{err: fmt.Errorf("provider down")})

	record, err := g.Generate(context.Background(), imageRequest())
	if err != nil {
		t.Fatalf("embedding failure must not fail generation: %v", err)
	}

	if record.ProcessingStatus != types.StatusCompleted {
		t.Errorf("status = %s, want completed", record.ProcessingStatus)
	}
	if record.Embeddings != nil {
		t.Error("embeddings attached despite provider failure")
	}
}

func TestGenerate_EmbeddingAttached(t *testing.T) {
	vec := &types.Embedding{Vector: []float32{0.1, 0.2}, Model: "test-model"}
	storage := &fakeStorage{content: pngBytes(t)}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, &fakeEmbedder{vec: vec})

	record, err := g.Generate(context.Background(), imageRequest())
	if err != nil {
		t.Fatal(err)
	}

	if record.Embeddings == nil || record.Embeddings.Model != "test-model" {
		t.Errorf("embeddings = %+v, want attached vector", record.Embeddings)
	}
}

func TestGenerate_DuplicateKeyOnPersist(t *testing.T) {
	// 同一 asset_id 的并发第二次尝试在持久化时撞唯一约束.
	storage := &fakeStorage{content: pngBytes(t)}
	db := &fakeDB{errOn: 1, err: fmt.Errorf("UNIQUE constraint failed: fingerprints.asset_id")}
	g := New(testConfig(t), storage, db, nil)

	_, err := g.Generate(context.Background(), imageRequest())

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("error type = %T, want *GenerationError", err)
	}
	if genErr.Phase != PhasePersist {
		t.Errorf("phase = %s, want persist", genErr.Phase)
	}
	if !strings.Contains(err.Error(), "UNIQUE constraint") {
		t.Errorf("duplicate cause lost: %v", err)
	}
}

func TestGenerate_AnalysisSemaphoreBound(t *testing.T) {
	// workers=1 时两次并行生成的分析阶段必须串行.
	cfg := testConfig(t)
	cfg.Workers = 1

	storage := &fakeStorage{content: []byte("hello")}
	db := &fakeDB{}
	g := New(cfg, storage, db, nil)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	g.analyzeFn = func(context.Context, types.AssetType, string) (*analysisResult, error) {
		entered <- struct{}{}
		<-release

		return &analysisResult{text: textdigest.Digest("hello")}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			req := &types.GenerateFingerprintRequest{
				AssetID:      fmt.Sprintf("asset-%d", i),
				ObjectKey:    fmt.Sprintf("docs/%d.txt", i),
				DeclaredType: "text",
				UserID:       "user-1",
			}
			if _, err := g.Generate(context.Background(), req); err != nil {
				t.Error(err)
			}
		}(i)
	}

	<-entered

	select {
	case <-entered:
		t.Fatal("second analysis entered while the only slot is held")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	if len(db.records) != 2 {
		t.Fatalf("persisted %d records, want 2", len(db.records))
	}
}

func TestGenerate_KeyWithoutExtension(t *testing.T) {
	storage := &fakeStorage{content: []byte("plain text")}
	db := &fakeDB{}
	g := New(testConfig(t), storage, db, nil)

	req := imageRequest()
	req.ObjectKey = "notes/readme"
	req.DeclaredType = "text"

	if _, err := g.Generate(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if ext := filepath.Ext(storage.destPaths[0]); ext != "" {
		t.Errorf("extension = %q, want none", ext)
	}
}
