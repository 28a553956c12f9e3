package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/reconciler/internal/app/api/server"
	"github.com/fatflowers/reconciler/internal/app/service/events"
	"github.com/fatflowers/reconciler/internal/app/service/history"
	notificationhandler "github.com/fatflowers/reconciler/internal/app/service/notification_handler"
	notificationlog "github.com/fatflowers/reconciler/internal/app/service/notification_log"
	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	"github.com/fatflowers/reconciler/internal/app/service/receipt"
	"github.com/fatflowers/reconciler/internal/app/service/statistics"
	"github.com/fatflowers/reconciler/internal/app/service/tokenauth"
	"github.com/fatflowers/reconciler/internal/platform/broker"
	"github.com/fatflowers/reconciler/internal/platform/cache"
	"github.com/fatflowers/reconciler/internal/platform/db"
	"github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/logger"
	"github.com/fatflowers/reconciler/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// CoreModule wires the services without the HTTP servers.
var CoreModule = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	cache.Module,
	broker.Module,
	receipt.Module,
	tokenauth.Module,
	history.Module,
	events.Module,
	purchase.Module,
	notificationlog.Module,
	notificationhandler.Module,
	statistics.Module,
)

var Module = fx.Options(
	CoreModule,
	server.Module,
)
