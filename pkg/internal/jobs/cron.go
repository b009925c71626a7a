// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/configs"
	ctxPkg "github.com/Christebob/Meta-Stamp-V3-sub000/pkg/context"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/model"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/storage"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/internal/types"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/log"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/queue"
	"github.com/Christebob/Meta-Stamp-V3-sub000/pkg/scheduler"
)

// tempFileMaxAge 工作目录残留临时文件的清理阈值.
// 正常流程里临时文件随生成结束即删，留下来的只会是进程异常退出的遗骸.
const tempFileMaxAge = time.Hour

// failedRetryMinAge 失败记录重投的最小静默期，避免与在途生成打架.
const failedRetryMinAge = 30 * time.Minute

// RegisterCronJobs 配置业务定时任务：
//   - 每小时 15 分清扫工作目录中的残留临时介质文件
//   - 每天 03:20 扫描失败的指纹记录并重新投递生成请求
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	// 每小时清扫残留临时文件
	_ = sched.AddCron(JobTempSweep, CronTempSweep, func(ctx context.Context) {
		runTempSweep(ctx)
	}, baseCtx)

	// 每天凌晨重投失败指纹
	_ = sched.AddCron(JobFailedRetry, CronFailedRetry, func(ctx context.Context) {
		runFailedRetry(ctx, mgr)
	}, baseCtx)

	return nil
}

// runTempSweep 删除工作目录中超过阈值的 metastamp-* 临时文件。
func runTempSweep(_ context.Context) {
	l := log.Logger().With().Str("job", JobTempSweep).Logger()

	workDir := configs.GetConfig().Fingerprint.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		l.Error().Err(err).Str("dir", workDir).Msg("read work dir failed")
		return
	}

	cutoff := time.Now().Add(-tempFileMaxAge)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "metastamp-") {
			continue
		}

		info, e := entry.Info()
		if e != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(workDir, entry.Name())
		if e := os.Remove(path); e != nil {
			l.Warn().Err(e).Str("path", path).Msg("remove stale temp file failed")
			continue
		}

		removed++
	}

	if removed > 0 {
		l.Info().Int("removed", removed).Str("dir", workDir).Msg("swept stale temp files")
	}
}

// runFailedRetry 将静默期外的失败记录重新投递为 ms.fingerprint.requested（force 模式）。
func runFailedRetry(ctx context.Context, mgr *storage.Manager) {
	l := log.Logger().With().Str("job", JobFailedRetry).Logger()

	dbc := mgr.GetDBClient()
	mqc := mgr.GetMQClient()

	if dbc == nil || dbc.GetDB() == nil {
		l.Error().Msg("db not initialized")
		return
	}

	if mqc == nil {
		l.Debug().Msg("mq not initialized, skip retry")
		return
	}

	before := time.Now().Add(-failedRetryMinAge)

	var records []model.Fingerprint
	if err := dbc.GetDB().WithContext(ctx).
		Where("processing_status = ? AND updated_at < ?", types.StatusFailed, before).
		Limit(200).
		Find(&records).Error; err != nil {
		l.Error().Err(err).Msg("list failed fingerprints failed")
		return
	}

	requeued := 0

	for _, r := range records {
		if r.ObjectKey == "" {
			// 旧记录缺来源对象，无法重投.
			continue
		}

		payload := queue.FingerprintRequestedPayload{
			Asset: queue.AssetRef{
				AssetID:   r.AssetID,
				ObjectKey: r.ObjectKey,
				AssetType: string(r.FingerprintType),
				Tags:      map[string]string{"user_id": r.UserID},
			},
			Force: true,
		}

		if err := queue.PublishFingerprintRequested(mqc.Publisher(), payload, queue.WithProducer("metastamp.jobs")); err != nil {
			l.Error().Err(err).Str("asset_id", r.AssetID).Msg("requeue failed fingerprint failed")
			continue
		}

		requeued++
	}

	if requeued > 0 {
		l.Info().Int("requeued", requeued).Msg("requeued failed fingerprints")
	}
}
