package scheduler

import (
	"testing"

	cfgpkg "github.com/studypass/billing/pkg/config"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(specs cfgpkg.SchedulerConfig) *Service {
	cfg := &cfgpkg.Config{Scheduler: specs}
	return NewService(cfg, nil, zap.NewNop().Sugar(), nil, nil, nil)
}

func TestRegister_AddsAllJobs(t *testing.T) {
	s := newTestService(cfgpkg.SchedulerConfig{
		Enabled:          true,
		UsageResetSpec:   "0 2 * * *",
		ReminderSpec:     "0 * * * *",
		ExternalSyncSpec: "*/5 * * * *",
		ExpireSpec:       "30 2 * * *",
	})

	require.NoError(t, s.register())
	require.Len(t, s.cron.Entries(), 4)
}

func TestRegister_RejectsBadSpec(t *testing.T) {
	s := newTestService(cfgpkg.SchedulerConfig{
		UsageResetSpec:   "not a cron spec",
		ReminderSpec:     "0 * * * *",
		ExternalSyncSpec: "*/5 * * * *",
		ExpireSpec:       "30 2 * * *",
	})

	err := s.register()
	require.Error(t, err)
	require.Contains(t, err.Error(), "usage_reset")
}
