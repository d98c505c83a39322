//go:build wireinject
// +build wireinject

package di

import (
	"github.com/Kvilt1/merger-simple/internal"
	"github.com/Kvilt1/merger-simple/internal/conversation"
	"github.com/Kvilt1/merger-simple/internal/dayindex"
	"github.com/Kvilt1/merger-simple/internal/indexer"
	"github.com/Kvilt1/merger-simple/internal/mapper"
	"github.com/Kvilt1/merger-simple/internal/media"
	"github.com/Kvilt1/merger-simple/internal/overlay"
	"github.com/Kvilt1/merger-simple/internal/persistence"
	"github.com/Kvilt1/merger-simple/internal/providers"
	"github.com/Kvilt1/merger-simple/internal/structures"
	"github.com/Kvilt1/merger-simple/internal/validator"
	wire "github.com/google/wire"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewMetricsProvider,

		media.NewHasher,
		persistence.NewZstdCompressor,
		persistence.NewTraceStore,
		overlay.NewFFmpegFuser,
		overlay.NewPlanner,
		overlay.NewExecutor,
		indexer.NewIndexer,
		conversation.NewAssembler,
		mapper.NewMapper,
		dayindex.NewBuilder,
		validator.NewValidator,
		internal.NewApp,
	)

	return nil, nil
}
