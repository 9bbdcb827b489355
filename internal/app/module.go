package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/codoplex/paybridge/internal/app/api/server"
	"github.com/codoplex/paybridge/internal/app/service/access"
	"github.com/codoplex/paybridge/internal/app/service/checkout"
	"github.com/codoplex/paybridge/internal/app/service/ledger"
	"github.com/codoplex/paybridge/internal/app/service/mailer"
	"github.com/codoplex/paybridge/internal/app/service/notifier"
	"github.com/codoplex/paybridge/internal/app/service/webhook"
	"github.com/codoplex/paybridge/internal/platform/db"
	"github.com/codoplex/paybridge/internal/platform/stripepay"
	"github.com/codoplex/paybridge/internal/platform/weebly"
	"github.com/codoplex/paybridge/pkg/config"
	"github.com/codoplex/paybridge/pkg/crypto"
	"github.com/codoplex/paybridge/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	crypto.Module,
	db.Module,
	stripepay.Module,
	weebly.Module,
	ledger.Module,
	access.Module,
	mailer.Module,
	notifier.Module,
	webhook.Module,
	checkout.Module,
	server.Module,
)
