package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/hitoshi/parknote/internal/geocode"
	"github.com/hitoshi/parknote/internal/model"
)

// ReverseGeocoder は緯度経度を住所に変換する。geocode.Clientが実装する。
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) geocode.Result
}

// GeocodeHandler は逆ジオコーディングのHTTPハンドラー。
type GeocodeHandler struct {
	geocoder ReverseGeocoder
}

// NewGeocodeHandler はGeocodeHandlerを生成する。
func NewGeocodeHandler(geocoder ReverseGeocoder) *GeocodeHandler {
	return &GeocodeHandler{geocoder: geocoder}
}

// Reverse は緯度経度に対応する住所を返す。
// GET /api/geocode/reverse?lat=&lng=
func (h *GeocodeHandler) Reverse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, ok := parseCoordinate(q.Get("lat"), 90)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("lat must be a number between -90 and 90"))
		return
	}
	lng, ok := parseCoordinate(q.Get("lng"), 180)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("lng must be a number between -180 and 180"))
		return
	}

	writeJSON(w, http.StatusOK, h.geocoder.Reverse(r.Context(), lat, lng))
}

func parseCoordinate(raw string, limit float64) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return 0, false
	}
	return v, true
}
