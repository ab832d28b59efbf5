package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/repository"
)

// priceAliases are the field names the model has used for its answer, in
// order of preference.
var priceAliases = []string{"predicted_rental_price", "predicted_price", "price"}

type Prediction struct {
	Success          bool    `json:"success"`
	Price            float64 `json:"price"`
	DemandIndex      any     `json:"demand_index,omitempty"`
	MarketTrendScore float64 `json:"market_trend_score"`
	Note             string  `json:"note"`
}

// PriceService forwards listing attributes to the external price model,
// adding a market trend score computed from comparable listings.
type PriceService struct {
	machines repository.MachineRepository
	client   *http.Client
	url      string
	now      func() time.Time
}

func NewPriceService(store *repository.Store, url string, timeout time.Duration) *PriceService {
	return &PriceService{
		machines: store.Machines,
		client:   &http.Client{Timeout: timeout},
		url:      url,
		now:      time.Now,
	}
}

// MarketTrend compares the current and last-year hourly prices of listings
// of the same category in the same pincode. Without comparables it is 1.
func (s *PriceService) MarketTrend(ctx context.Context, category, pincode string) (float64, error) {
	c, ok := models.ParseCategory(category)
	pincode = strings.TrimSpace(pincode)
	if !ok || pincode == "" {
		return 1.0, nil
	}
	machines, err := s.machines.Find(ctx, models.MachineFilter{
		Types:    []models.Category{c},
		Pincodes: []string{pincode},
	})
	if err != nil {
		return 0, fmt.Errorf("PriceService.MarketTrend: %w", err)
	}
	current := make([]float64, 0, len(machines))
	lastYear := make([]float64, 0, len(machines))
	for _, m := range machines {
		current = append(current, m.RentPerHour)
		lastYear = append(lastYear, m.LastYearPrice)
	}
	return MarketTrend(current, lastYear), nil
}

// Predict posts payload, enriched with market_trend_score and created_at,
// to the model and relays its answer.
func (s *PriceService) Predict(ctx context.Context, payload map[string]any) (*Prediction, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	trend, err := s.MarketTrend(ctx, stringField(payload, "machine_type"), stringField(payload, "pincode"))
	if err != nil {
		return nil, err
	}

	body := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["market_trend_score"] = trend
	if stringField(payload, "created_at") == "" {
		body["created_at"] = s.now().UTC().Format(time.RFC3339)
	}

	answer, err := s.call(ctx, body)
	if err != nil {
		log.Printf("ML request failed: %v", err)
		return nil, wrapError(ErrUpstream, err, "Prediction failed")
	}

	price, ok := priceFrom(answer)
	if !ok {
		log.Printf("ML answer without price: %v", answer)
		return nil, newError(ErrUpstream, "ML did not return price")
	}
	note, _ := answer["note"].(string)
	if note == "" {
		note = "OK"
	}
	return &Prediction{
		Success:          true,
		Price:            price,
		DemandIndex:      answer["demand_index"],
		MarketTrendScore: trend,
		Note:             note,
	}, nil
}

func (s *PriceService) call(ctx context.Context, body map[string]any) (map[string]any, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model answered %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var answer map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return answer, nil
}

func priceFrom(answer map[string]any) (float64, bool) {
	for _, key := range priceAliases {
		switch v := answer[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
