package metadata

// 以下键用于 metadata 表的 key 列。
const (
	// LastNotificationSweepKey 记录通知保留策略最近一次清理的完成时间（RFC3339）。
	LastNotificationSweepKey = "last_notification_sweep"

	// LastWatchingPurgeKey 记录最近一次清理过期“正在观看”记录的时间。
	LastWatchingPurgeKey = "last_watching_purge"
)
