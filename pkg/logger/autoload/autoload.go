// Package autoload initializes the global logger from LOG_* variables when
// imported.
package autoload

import (
	configx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/config"
	logx "github.com/Tharun007-TK/studybuddy-ai-agent/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
