// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	metricsstore "github.com/dalemusser/campushub/internal/app/store/metrics"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		DB:  db,
		Log: logger,
	}
}

// Response is the dashboard payload. Site is only filled for admins.
type Response struct {
	Role string                   `json:"role"`
	Mine metricsstore.UserCounts  `json:"mine"`
	Site *metricsstore.SiteCounts `json:"site,omitempty"`
}

// ServeDashboard handles GET /dashboard. Counters that fail to load are
// reported as zero rather than failing the whole page.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	v := authz.ViewerFrom(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	resp := Response{
		Role: v.Role,
		Mine: metricsstore.FetchUserCounts(ctx, h.DB, v.ID, time.Now().UTC()),
	}
	if v.IsAdmin() {
		site := metricsstore.FetchSiteCounts(ctx, h.DB)
		resp.Site = &site
	}
	jsonio.OK(w, resp)
}
