package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/stockhunter/internal/collector"
	"github.com/wonny/stockhunter/internal/market"
	"github.com/wonny/stockhunter/internal/master"
	"github.com/wonny/stockhunter/internal/store"
	"github.com/wonny/stockhunter/pkg/logger"
)

const uploadMemoryLimit = 32 << 20 // 32 MiB

// ProviderFactory builds a KR provider for request-supplied credentials.
// appKey 가 비면 서버 설정의 기본 자격으로 동작
type ProviderFactory func(appKey, appSecret string, isProduction bool) (*market.Provider, error)

// DatabaseHandler handles store maintenance endpoints
// ⭐ SSOT: 데이터베이스 API 핸들러는 이 구조체에서만
type DatabaseHandler struct {
	collector   *collector.Collector
	prices      *store.PriceStore
	masters     *store.MasterStore
	masterCache *master.Cache
	buildKR     ProviderFactory
	logger      *logger.Logger
}

// NewDatabaseHandler creates a new database handler
func NewDatabaseHandler(
	col *collector.Collector,
	prices *store.PriceStore,
	masters *store.MasterStore,
	masterCache *master.Cache,
	buildKR ProviderFactory,
	log *logger.Logger,
) *DatabaseHandler {
	return &DatabaseHandler{
		collector:   col,
		prices:      prices,
		masters:     masters,
		masterCache: masterCache,
		buildKR:     buildKR,
		logger:      log,
	}
}

// Status returns store statistics and collection metadata
// GET /api/v1/database/status
func (h *DatabaseHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	priceStats, err := h.prices.Statistics(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read store statistics")
		respondError(w, http.StatusInternalServerError, "failed to read store statistics")
		return
	}
	masterStats, err := h.masters.Stats(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read master statistics")
		respondError(w, http.StatusInternalServerError, "failed to read master statistics")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"prices": priceStats,
		"master": masterStats,
	})
}

// Masters returns the active instrument master across all markets
// GET /api/v1/database/stock-master
func (h *DatabaseHandler) Masters(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.masters.AllActive(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read instrument master")
		respondError(w, http.StatusInternalServerError, "failed to read instrument master")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(stocks),
		"stocks": stocks,
	})
}

// Progress returns the live collection progress snapshot
// GET /api/v1/database/progress
func (h *DatabaseHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress := h.collector.Progress()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"progress": progress,
		"percent":  progress.Percent(),
	})
}

type initializeRequest struct {
	AppKey       string `json:"appKey"`
	AppSecret    string `json:"appSecret"`
	IsProduction bool   `json:"isProduction"`
	ForceRebuild bool   `json:"forceRebuild"`
}

// Initialize kicks a full backfill in the background
// POST /api/v1/database/initialize
func (h *DatabaseHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	initialized, err := h.prices.Initialized(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read store state")
		return
	}
	if initialized && !req.ForceRebuild {
		stats, _ := h.prices.Statistics(r.Context())
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error": "already initialized, pass forceRebuild to rebuild",
			"stats": stats,
		})
		return
	}

	provider, err := h.buildKR(req.AppKey, req.AppSecret, req.IsProduction)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	go func() {
		// 요청 컨텍스트와 분리해서 백그라운드 실행
		err := h.collector.Backfill(context.Background(), provider, req.ForceRebuild)
		if err != nil && !errors.Is(err, collector.ErrAlreadyInitialized) {
			h.logger.WithError(err).Error("Background backfill failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "initialization started",
	})
}

// Update kicks an incremental update in the background
// POST /api/v1/database/update
func (h *DatabaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	initialized, err := h.prices.Initialized(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read store state")
		return
	}
	if !initialized {
		respondError(w, http.StatusBadRequest, "store not initialized, run initialize first")
		return
	}

	provider, err := h.buildKR(req.AppKey, req.AppSecret, req.IsProduction)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	go func() {
		if err := h.collector.Update(context.Background(), provider); err != nil {
			h.logger.WithError(err).Error("Background update failed")
		}
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "update started",
	})
}

// SyncStockNames fills missing master names via broker lookups
// POST /api/v1/database/sync-stock-names
func (h *DatabaseHandler) SyncStockNames(w http.ResponseWriter, r *http.Request) {
	provider, err := h.buildKR("", "", false)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	synced, err := h.collector.SyncStockNames(r.Context(), provider)
	if err != nil {
		h.logger.WithError(err).Error("Name sync failed")
		respondError(w, http.StatusInternalServerError, "name sync failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"synced": synced,
	})
}

// UploadMaster ingests fixed-width listing files
// POST /api/v1/database/upload-stock-master (multipart)
func (h *DatabaseHandler) UploadMaster(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	imported := map[string]int{}
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				respondError(w, http.StatusBadRequest, "cannot open "+header.Filename)
				return
			}

			count, err := h.masterCache.ImportUpload(r.Context(), header.Filename, file)
			file.Close()
			if err != nil {
				h.logger.WithError(err).WithField("file", header.Filename).Error("Master upload failed")
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			imported[header.Filename] = count
		}
	}

	if len(imported) == 0 {
		respondError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"imported": imported,
	})
}
