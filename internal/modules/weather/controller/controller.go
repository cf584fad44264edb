package controller

import (
	"context"
	"net/http"

	"wxdata-server/internal/modules/weather/types"
)

// WeatherReader is the read side of the weather repository.
type WeatherReader interface {
	ListRecords(ctx context.Context, f types.RecordFilter) ([]types.Record, error)
	CountRecords(ctx context.Context, f types.RecordFilter) (int, error)
	ListStats(ctx context.Context, f types.StatFilter) ([]types.Stat, error)
	CountStats(ctx context.Context, f types.StatFilter) (int, error)
}

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	repository WeatherReader
}

func NewWeatherController(repository WeatherReader) WeatherController {
	return &weatherControllerImpl{repository: repository}
}

const (
	recordsPath   = "/api/weather/"
	statsPath     = "/api/weather/stats/"
	openAPIPath   = "/api/openapi/"
	swaggerUIPath = "/api/swagger-ui/"
)

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{$}", c.handleIndex)
	mux.HandleFunc("GET "+recordsPath+"{$}", c.handleRecords)
	mux.HandleFunc("GET "+statsPath+"{$}", c.handleStats)
	mux.HandleFunc("GET "+openAPIPath+"{$}", c.handleOpenAPI)
	mux.HandleFunc("GET "+swaggerUIPath+"{$}", c.handleSwaggerUI)
}
