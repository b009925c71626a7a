package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/fingerprint"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/service"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/queue"
)

// fakeService 可注入错误与阻塞点的服务替身.
type fakeService struct {
	genErr error
	delErr error
	block  chan struct{}

	mu        sync.Mutex
	generated []string
	deleted   []string
}

func (f *fakeService) Generate(_ context.Context, req *types.GenerateFingerprintRequest) (*types.FingerprintResponse, error) {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	f.generated = append(f.generated, req.AssetID)
	f.mu.Unlock()

	if f.genErr != nil {
		return nil, f.genErr
	}

	return &types.FingerprintResponse{AssetID: req.AssetID}, nil
}

func (f *fakeService) DeleteByAssetID(_ context.Context, assetID string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, assetID)
	f.mu.Unlock()

	return f.delErr
}

func (f *fakeService) generatedAssets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.generated...)
}

func testAsset() queue.AssetRef {
	return queue.AssetRef{
		AssetID:   "asset-1",
		Bucket:    "assets",
		ObjectKey: "img/sample.png",
		AssetType: "image",
	}
}

func assertAcked(t *testing.T, msg *message.Message) {
	t.Helper()

	select {
	case <-msg.Acked():
	default:
		t.Fatal("message not acked")
	}
	select {
	case <-msg.Nacked():
		t.Fatal("message nacked")
	default:
	}
}

func TestGenerate_AckOnlyAfterTerminalRecord(t *testing.T) {
	svc := &fakeService{block: make(chan struct{})}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-1", nil)
	done := make(chan struct{})
	go func() {
		w.generate(context.Background(), msg, testAsset(), false)
		close(done)
	}()

	// 生成仍在进行时不得提前 Ack.
	select {
	case <-msg.Acked():
		t.Fatal("message acked before terminal record persisted")
	case <-time.After(100 * time.Millisecond):
	}

	close(svc.block)
	<-done

	assertAcked(t, msg)
}

func TestGenerate_FailureIsTerminalAck(t *testing.T) {
	// 失败记录已落库属于终态，Ack 而不重投.
	svc := &fakeService{
		genErr: fingerprint.NewGenerationError("asset-1", "img/sample.png", fingerprint.PhaseAnalyze, errors.New("corrupt source")),
	}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-2", nil)
	w.generate(context.Background(), msg, testAsset(), false)

	assertAcked(t, msg)
}

func TestGenerate_DuplicateAck(t *testing.T) {
	svc := &fakeService{genErr: fmt.Errorf("%w: asset-1", service.ErrDuplicateAsset)}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-3", nil)
	w.generate(context.Background(), msg, testAsset(), false)

	assertAcked(t, msg)
}

func TestGenerate_ForceDeletesThenRegenerates(t *testing.T) {
	svc := &fakeService{}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-4", nil)
	w.generate(context.Background(), msg, testAsset(), true)

	if len(svc.deleted) != 1 || svc.deleted[0] != "asset-1" {
		t.Errorf("deleted = %v, want [asset-1]", svc.deleted)
	}
	if got := svc.generatedAssets(); len(got) != 1 || got[0] != "asset-1" {
		t.Errorf("generated = %v, want [asset-1]", got)
	}

	assertAcked(t, msg)
}

func TestGenerate_ForceMissingRecordStillRegenerates(t *testing.T) {
	// 无旧指纹时强制重建直接走生成.
	svc := &fakeService{delErr: service.ErrFingerprintNotFound}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-5", nil)
	w.generate(context.Background(), msg, testAsset(), true)

	if got := svc.generatedAssets(); len(got) != 1 {
		t.Errorf("generated = %v, want one attempt", got)
	}

	assertAcked(t, msg)
}

func TestGenerate_ForceDeleteErrorNacks(t *testing.T) {
	// 删除旧指纹失败不是业务终态，Nack 等待重投.
	svc := &fakeService{delErr: errors.New("db down")}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-6", nil)
	w.generate(context.Background(), msg, testAsset(), true)

	select {
	case <-msg.Nacked():
	default:
		t.Fatal("delete failure must nack for redelivery")
	}
	if got := svc.generatedAssets(); len(got) != 0 {
		t.Errorf("generate attempted after failed delete: %v", got)
	}
}

func TestHandleRequested_MalformedPayloadAck(t *testing.T) {
	svc := &fakeService{}
	w := &Worker{svc: svc, workers: 1}

	msg := message.NewMessage("m-7", []byte("not json"))
	w.handleRequested(context.Background(), msg)

	select {
	case <-msg.Acked():
	default:
		t.Fatal("malformed message must be acked, not redelivered")
	}
	if got := svc.generatedAssets(); len(got) != 0 {
		t.Errorf("generate attempted for malformed message: %v", got)
	}
}
