// Package log is a thin wrapper over pingcap/log. It installs the process-wide zap logger and names the fields every
// transaction log line carries, so that log lines about the same transaction or row can be grepped together.
package log

import (
	"fmt"

	"github.com/pingcap/errors"
	plog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the [log] section of the configuration file.
type Config = plog.Config

// Setup builds a logger from cfg and installs it as the global logger used by this package.
func Setup(cfg *Config) (*zap.Logger, error) {
	lg, props, err := plog.InitLogger(cfg, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return nil, errors.Trace(err)
	}
	plog.ReplaceGlobals(lg, props)
	return lg, nil
}

func Debug(msg string, fields ...zap.Field) {
	plog.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	plog.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	plog.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	plog.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	plog.Fatal(msg, fields...)
}

func TxnID(id uint64) zap.Field {
	return zap.Uint64("txn-id", id)
}

func ReadTs(ts uint64) zap.Field {
	return zap.Uint64("read-ts", ts)
}

func CommitTs(ts uint64) zap.Field {
	return zap.Uint64("commit-ts", ts)
}

func RID(rid fmt.Stringer) zap.Field {
	return zap.Stringer("rid", rid)
}

func TableID(id uint32) zap.Field {
	return zap.Uint32("table-id", id)
}

// Sync flushes buffered log entries.
func Sync() {
	_ = plog.L().Sync()
}
