package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobTempSweep   = "fingerprint.temp_sweep"
	JobFailedRetry = "fingerprint.failed_retry"
)

// Cron 表达式常量（可选，但推荐一并集中管理）.
const (
	CronTempSweep   = "15 * * * *"
	CronFailedRetry = "20 3 * * *"
)
