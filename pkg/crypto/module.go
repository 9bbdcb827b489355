package crypto

import (
	"go.uber.org/fx"

	"github.com/codoplex/paybridge/pkg/config"
)

var Module = fx.Options(
	fx.Provide(func(cfg *config.Config) (Codec, error) {
		return NewAESCodec(cfg.Crypto.Secret, cfg.Crypto.Salt)
	}),
)
