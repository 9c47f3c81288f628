package config

import "github.com/spf13/viper"

// setDefaults registers every leaf key so environment overrides resolve even
// without a config file.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("server.host", def.Server.Host)
	v.SetDefault("server.port", def.Server.Port)
	v.SetDefault("server.readTimeoutMs", def.Server.ReadTimeoutMs)
	v.SetDefault("server.writeTimeoutMs", def.Server.WriteTimeoutMs)
	v.SetDefault("server.shutdownTimeoutMs", def.Server.ShutdownTimeoutMs)

	v.SetDefault("browser.headless", def.Browser.Headless)
	v.SetDefault("browser.execPath", def.Browser.ExecPath)
	v.SetDefault("browser.userAgent", def.Browser.UserAgent)
	v.SetDefault("browser.locale", def.Browser.Locale)
	v.SetDefault("browser.navTimeoutMs", def.Browser.NavTimeoutMs)
	v.SetDefault("browser.blockedUrlPatterns", def.Browser.BlockedURLPatterns)
	v.SetDefault("browser.staticFallback", def.Browser.StaticFallback)

	v.SetDefault("pool.size", def.Pool.Size)

	v.SetDefault("collector.maxSessionsPerTask", def.Collector.MaxSessionsPerTask)
	v.SetDefault("collector.paginationAttempts", def.Collector.PaginationAttempts)
	v.SetDefault("collector.resolveTimeoutMs", def.Collector.ResolveTimeoutMs)
	v.SetDefault("collector.taskTimeoutMs", def.Collector.TaskTimeoutMs)
	v.SetDefault("collector.scrollPauseMs", def.Collector.ScrollPauseMs)

	v.SetDefault("cache.path", def.Cache.Path)
	v.SetDefault("cache.freshnessWindowSeconds", def.Cache.FreshnessWindowSeconds)
	v.SetDefault("cache.prefetchWindowSeconds", def.Cache.PrefetchWindowSeconds)
	v.SetDefault("cache.ttlShortSeconds", def.Cache.TTLShortSeconds)
	v.SetDefault("cache.ttlDefaultSeconds", def.Cache.TTLDefaultSeconds)
	v.SetDefault("cache.ttlLongSeconds", def.Cache.TTLLongSeconds)
	v.SetDefault("cache.freshContentDays", def.Cache.FreshContentDays)
	v.SetDefault("cache.recentContentDays", def.Cache.RecentContentDays)
	v.SetDefault("cache.retentionHorizonSeconds", def.Cache.RetentionHorizonSeconds)
	v.SetDefault("cache.compressionThresholdBytes", def.Cache.CompressionThresholdBytes)

	v.SetDefault("prefetch.enabled", def.Prefetch.Enabled)
	v.SetDefault("prefetch.intervalSeconds", def.Prefetch.IntervalSeconds)
	v.SetDefault("prefetch.topN", def.Prefetch.TopN)
	v.SetDefault("prefetch.batchSize", def.Prefetch.BatchSize)
	v.SetDefault("prefetch.batchPauseMs", def.Prefetch.BatchPauseMs)

	v.SetDefault("optimizer.targetVolume", def.Optimizer.TargetVolume)
	v.SetDefault("optimizer.truncateThresholdMs", def.Optimizer.TruncateThresholdMs)
	v.SetDefault("optimizer.truncateKeepRatio", def.Optimizer.TruncateKeepRatio)
	v.SetDefault("optimizer.truncateMinKeep", def.Optimizer.TruncateMinKeep)
	v.SetDefault("optimizer.scoring.freshWeight", def.Optimizer.Scoring.FreshWeight)
	v.SetDefault("optimizer.scoring.recentWeight", def.Optimizer.Scoring.RecentWeight)
	v.SetDefault("optimizer.scoring.agingWeight", def.Optimizer.Scoring.AgingWeight)
	v.SetDefault("optimizer.scoring.freshDays", def.Optimizer.Scoring.FreshDays)
	v.SetDefault("optimizer.scoring.recentDays", def.Optimizer.Scoring.RecentDays)
	v.SetDefault("optimizer.scoring.agingDays", def.Optimizer.Scoring.AgingDays)
	v.SetDefault("optimizer.scoring.substantiveTextWeight", def.Optimizer.Scoring.SubstantiveTextWeight)
	v.SetDefault("optimizer.scoring.detailedTextWeight", def.Optimizer.Scoring.DetailedTextWeight)
	v.SetDefault("optimizer.scoring.substantiveTextLen", def.Optimizer.Scoring.SubstantiveTextLen)
	v.SetDefault("optimizer.scoring.detailedTextLen", def.Optimizer.Scoring.DetailedTextLen)
	v.SetDefault("optimizer.scoring.ownerResponseWeight", def.Optimizer.Scoring.OwnerResponseWeight)
	v.SetDefault("optimizer.scoring.midRatingWeight", def.Optimizer.Scoring.MidRatingWeight)

	v.SetDefault("request.deadlineMs", def.Request.DeadlineMs)
	v.SetDefault("request.collectFloorMs", def.Request.CollectFloorMs)
	v.SetDefault("request.safetyMarginMs", def.Request.SafetyMarginMs)

	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("logging.maxSize", def.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", def.Logging.MaxBackups)

	v.SetDefault("auth.enabled", def.Auth.Enabled)
	v.SetDefault("auth.tokenHash", def.Auth.TokenHash)
}
