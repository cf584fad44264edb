package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"wxdata-server/internal/modules/weather/views"
	"wxdata-server/internal/utils"
)

func (c *weatherControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"weather-records":          utils.AbsoluteURL(r, recordsPath, nil),
		"analyzed-weather-records": utils.AbsoluteURL(r, statsPath, nil),
	})
}

func (c *weatherControllerImpl) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := parsePage(q)
	if err != nil {
		writePageError(w, err)
		return
	}
	filter, err := parseRecordFilter(q)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := c.repository.CountRecords(r.Context(), filter)
	if err != nil {
		slog.Error("failed to count weather records", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to fetch weather records")
		return
	}
	if !pageExists(p, count) {
		utils.WriteError(w, http.StatusNotFound, errInvalidPage.Error())
		return
	}

	filter.Limit, filter.Offset = p.Size, p.offset()
	records, err := c.repository.ListRecords(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list weather records", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to fetch weather records")
		return
	}

	resp := pageResponse[recordResponse]{Count: count, Results: make([]recordResponse, 0, len(records))}
	resp.Next, resp.Previous = pageLinks(r, p, count)
	for _, rec := range records {
		resp.Results = append(resp.Results, newRecordResponse(rec))
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (c *weatherControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := parsePage(q)
	if err != nil {
		writePageError(w, err)
		return
	}
	filter, err := parseStatFilter(q)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	count, err := c.repository.CountStats(r.Context(), filter)
	if err != nil {
		slog.Error("failed to count weather stats", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to fetch weather stats")
		return
	}
	if !pageExists(p, count) {
		utils.WriteError(w, http.StatusNotFound, errInvalidPage.Error())
		return
	}

	filter.Limit, filter.Offset = p.Size, p.offset()
	stats, err := c.repository.ListStats(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list weather stats", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to fetch weather stats")
		return
	}

	resp := pageResponse[statResponse]{Count: count, Results: make([]statResponse, 0, len(stats))}
	resp.Next, resp.Previous = pageLinks(r, p, count)
	for _, s := range stats {
		resp.Results = append(resp.Results, newStatResponse(s))
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (c *weatherControllerImpl) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(views.OpenAPISpec())
}

func (c *weatherControllerImpl) handleSwaggerUI(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := views.RenderSwaggerUI(&buf, views.SwaggerUIData{
		Title:     "Weather API",
		SchemaURL: utils.AbsoluteURL(r, openAPIPath, nil),
	})
	if err != nil {
		slog.Error("failed to render swagger-ui", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render documentation")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// pageExists is true for the first page of an empty result.
func pageExists(p page, count int) bool {
	return p.Number == 1 || p.offset() < count
}

func writePageError(w http.ResponseWriter, err error) {
	if errors.Is(err, errInvalidPage) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.WriteError(w, http.StatusBadRequest, err.Error())
}
