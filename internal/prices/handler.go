package prices

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chaintalk-ai/chaintalk/internal/api"
	"github.com/chaintalk-ai/chaintalk/internal/intent"
)

// Handler exposes market data lookups over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// AssetPrice returns the current quote for one asset id or symbol.
func (h *Handler) AssetPrice(w http.ResponseWriter, r *http.Request) {
	assetID := resolveAssetID(chi.URLParam(r, "assetID"))

	quote, err := h.svc.Quote(r.Context(), assetID)
	if err != nil {
		if err == ErrUnknownAsset {
			api.HandleError(w, api.NewNotFoundError("unknown asset"))
			return
		}
		slog.Warn("prices: quote endpoint failed", "asset", assetID, "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"asset": assetID,
		"quote": quote,
	})
}

// TrendingAssets returns the trending listing.
func (h *Handler) TrendingAssets(w http.ResponseWriter, r *http.Request) {
	listing, err := h.svc.Trending(r.Context())
	if err != nil {
		slog.Warn("prices: trending endpoint failed", "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"trending": listing})
}

// resolveAssetID accepts either a ticker symbol (btc) or a CoinGecko id
// (bitcoin) and normalizes to the id.
func resolveAssetID(param string) string {
	if id, ok := intent.AssetID(param); ok {
		return id
	}
	return param
}
