package weather

import (
	"database/sql"
	"net/http"

	"wxdata-server/internal/modules/weather/controller"
	"wxdata-server/internal/modules/weather/repository"
)

func RegisterFeature(mux *http.ServeMux, db *sql.DB) {
	weatherRepository := repository.NewRepository(db)
	weatherController := controller.NewWeatherController(weatherRepository)
	weatherController.RegisterRoutes(mux)
}
