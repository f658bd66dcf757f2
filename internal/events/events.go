// Package events is the reference Events sink: structured logging via
// go.uber.org/zap, the logging library the operator-controller example
// (and the rest of the pack's larger services) standardize on.
package events

import (
	"go.uber.org/zap"

	"github.com/opkgtool/opkg/internal/jobs"
	"github.com/opkgtool/opkg/internal/model"
)

// ZapSink logs every event at an appropriate level on top of a *zap.Logger.
type ZapSink struct {
	log *zap.Logger
}

// New wraps log as an Events sink.
func New(log *zap.Logger) *ZapSink {
	return &ZapSink{log: log}
}

func (z *ZapSink) AlreadyInstalled(p *model.Pkg) {
	z.log.Info("already installed", zap.String("origin", p.Origin), zap.String("version", p.Version))
}

func (z *ZapSink) NewPkgVersion() {
	z.log.Info("a new version of the package manager is available; re-run after upgrading it")
}

func (z *ZapSink) MissingDependency(origin string) {
	z.log.Error("missing dependency", zap.String("origin", origin))
}

func (z *ZapSink) Locked(p *model.Pkg) {
	z.log.Warn("package is locked", zap.String("origin", p.Origin))
}

func (z *ZapSink) UpgradeBegin(p *model.Pkg) {
	z.log.Info("upgrade begin", zap.String("origin", p.Origin), zap.String("from", p.Version), zap.String("to", p.NewVersion))
}

func (z *ZapSink) UpgradeFinished(p *model.Pkg) {
	z.log.Info("upgrade finished", zap.String("origin", p.Origin), zap.String("to", p.NewVersion))
}

func (z *ZapSink) InstallBegin(p *model.Pkg) {
	z.log.Info("install begin", zap.String("origin", p.Origin), zap.String("version", p.Version))
}

func (z *ZapSink) InstallFinished(p *model.Pkg) {
	z.log.Info("install finished", zap.String("origin", p.Origin), zap.String("version", p.Version))
}

func (z *ZapSink) IntegrityCheckBegin() {
	z.log.Info("integrity check begin")
}

func (z *ZapSink) IntegrityCheckFinished() {
	z.log.Info("integrity check finished")
}

func (z *ZapSink) CircularDependency() {
	z.log.Error("circular dependency detected in job plan")
}

func (z *ZapSink) Error(msg string) {
	z.log.Error(msg)
}

func (z *ZapSink) Errno(syscall string, arg string) {
	z.log.Error("system call failed", zap.String("syscall", syscall), zap.String("arg", arg))
}

var _ jobs.Events = (*ZapSink)(nil)
