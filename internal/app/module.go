package app

import (
	"time"

	"github.com/studypass/billing/internal/app/api/server"
	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/internal/app/service/notifier"
	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/app/service/scheduler"
	"github.com/studypass/billing/internal/app/service/statistics"
	"github.com/studypass/billing/internal/app/service/subscription"
	"github.com/studypass/billing/internal/app/service/usage"
	"github.com/studypass/billing/internal/app/service/webhook"
	"github.com/studypass/billing/internal/app/service/webhooklog"
	"github.com/studypass/billing/internal/platform/db"
	"github.com/studypass/billing/internal/platform/flowpay"
	"github.com/studypass/billing/pkg/config"
	"github.com/studypass/billing/pkg/logger"

	"go.uber.org/fx"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	flowpay.Module,
	server.Module,
	notifier.Module,
	entitlement.Module,
	usage.Module,
	subscription.Module,
	payment.Module,
	webhooklog.Module,
	webhook.Module,
	scheduler.Module,
	statistics.Module,
)
