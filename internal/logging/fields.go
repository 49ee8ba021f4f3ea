package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":      action,
		"config_path": configPath,
	}
}

// RequestFields 提供 repo/路径/请求类型/命中状态字段，供页面请求日志复用。
func RequestFields(repo, path, kind string, purge, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"repo":      repo,
		"path":      path,
		"kind":      kind,
		"purge":     purge,
		"cache_hit": cacheHit,
	}
}
