package logsvc

import (
	"github.com/trezcool/mazoezi/core"
)

// TestLogger discards everything; Fatal does not exit.
type TestLogger struct{}

var _ core.Logger = (*TestLogger)(nil)

func NewTestLogger() *TestLogger { return &TestLogger{} }

func (TestLogger) Enable(enabled bool)                   {}
func (TestLogger) Debug(msg string, args ...interface{}) {}
func (TestLogger) Info(msg string, args ...interface{})  {}
func (TestLogger) Warn(msg string, args ...interface{})  {}
func (TestLogger) Error(msg string, args ...interface{}) {}
func (TestLogger) Fatal(msg string, args ...interface{}) {}
