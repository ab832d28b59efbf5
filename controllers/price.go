package controllers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/dcode-github/agrirent/backend/services"
)

func PredictPrice(prices *services.PriceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
			log.Printf("Invalid prediction payload: %v", err)
			writeMessage(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		prediction, err := prices.Predict(r.Context(), body)
		if err != nil {
			writeError(w, err, "Prediction failed")
			return
		}
		writeJSON(w, http.StatusOK, prediction)
	}
}
