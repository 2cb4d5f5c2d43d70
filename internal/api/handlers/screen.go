package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/stockhunter/internal/contracts"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/internal/screener"
	"github.com/wonny/stockhunter/pkg/logger"
)

// ScreenHandler handles screening and universe endpoints
// ⭐ SSOT: 스크리닝 API 핸들러는 이 구조체에서만
type ScreenHandler struct {
	engine *screener.Engine
	kr     *market.Provider
	us     *market.Provider
	logger *logger.Logger
}

// NewScreenHandler creates a new screening handler
func NewScreenHandler(engine *screener.Engine, kr, us *market.Provider, log *logger.Logger) *ScreenHandler {
	return &ScreenHandler{
		engine: engine,
		kr:     kr,
		us:     us,
		logger: log,
	}
}

// ScreenKR runs a screening over the domestic universe
// POST /api/v1/screen
func (h *ScreenHandler) ScreenKR(w http.ResponseWriter, r *http.Request) {
	h.screen(w, r, h.kr)
}

// ScreenUS runs a screening over the US universe
// POST /api/v1/us/screen
func (h *ScreenHandler) ScreenUS(w http.ResponseWriter, r *http.Request) {
	h.screen(w, r, h.us)
}

func (h *ScreenHandler) screen(w http.ResponseWriter, r *http.Request, provider *market.Provider) {
	var cond screener.Condition
	if err := json.NewDecoder(r.Body).Decode(&cond); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.Screen(r.Context(), provider, &cond)
	if err != nil {
		switch {
		case errors.Is(err, screener.ErrNotInitialized),
			errors.Is(err, screener.ErrInvalidCondition):
			respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.WithError(err).Error("Screening failed")
			respondError(w, http.StatusInternalServerError, "screening failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// StockCodes returns the domestic universe codes
// GET /api/v1/stock-codes
func (h *ScreenHandler) StockCodes(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.kr.Universe(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load universe")
		respondError(w, http.StatusInternalServerError, "failed to load universe")
		return
	}

	codes := make([]string, 0, len(stocks))
	for _, stock := range stocks {
		codes = append(codes, stock.Code)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(codes),
		"codes": codes,
	})
}

// 거래소 파라미터 → 마켓
var exchangeToMarket = map[string]contracts.Market{
	"NAS": contracts.MarketNASDAQ,
	"NYS": contracts.MarketNYSE,
	"AMS": contracts.MarketAMEX,
}

// USSymbols returns the US universe, optionally filtered by exchange
// GET /api/v1/us/symbols?exchange=NAS|NYS|AMS
func (h *ScreenHandler) USSymbols(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.us.Universe(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load US universe")
		respondError(w, http.StatusInternalServerError, "failed to load universe")
		return
	}

	if exchange := r.URL.Query().Get("exchange"); exchange != "" {
		wanted, ok := exchangeToMarket[exchange]
		if !ok || !h.us.Contains(wanted) {
			respondError(w, http.StatusBadRequest, "exchange must be one of NAS, NYS, AMS")
			return
		}
		var filtered []contracts.Stock
		for _, stock := range stocks {
			if stock.Market == wanted {
				filtered = append(filtered, stock)
			}
		}
		stocks = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(stocks),
		"symbols": stocks,
	})
}
