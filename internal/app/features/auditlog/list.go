// internal/app/features/auditlog/list.go
package auditlog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	uierrors "github.com/dalemusser/campushub/internal/app/features/errors"
	"github.com/dalemusser/campushub/internal/app/features/shared/jsonio"
	"github.com/dalemusser/campushub/internal/app/features/shared/reqparams"
	"github.com/dalemusser/campushub/internal/app/policy/forumpolicy"
	"github.com/dalemusser/campushub/internal/app/store/audit"
	forumstore "github.com/dalemusser/campushub/internal/app/store/forums"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// ServeList handles GET /audit with optional category, event_type,
// user_id, forum_id, start_date, end_date (YYYY-MM-DD) and page filters.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	v := authz.ViewerFrom(r)
	q := r.URL.Query()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	types := eventTypesForCategory(category)
	if types == nil {
		uierrors.Invalid(w, "Catégorie inconnue.")
		return
	}
	if eventType != "" && !contains(types, eventType) {
		uierrors.Invalid(w, "Type d'événement inconnu pour cette catégorie.")
		return
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	filter := audit.QueryFilter{
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}

	var ok bool
	if filter.UserID, ok = reqparams.OptionalObjectID(w, q.Get("user_id")); !ok {
		return
	}
	if filter.ForumID, ok = reqparams.OptionalObjectID(w, q.Get("forum_id")); !ok {
		return
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, h.Loc)
		if err != nil {
			uierrors.Invalid(w, "Date de début invalide (format AAAA-MM-JJ).")
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.ParseInLocation("2006-01-02", s, h.Loc)
		if err != nil {
			uierrors.Invalid(w, "Date de fin invalide (format AAAA-MM-JJ).")
			return
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Nanosecond)
		filter.EndTime = &endOfDay
	}

	// Authorization: non-admins only see a forum they manage.
	if !v.IsAdmin() {
		if filter.ForumID == nil {
			h.ErrLog.Write(w, r, "audit: forum scope required", apperr.ErrForbidden)
			return
		}
		f, err := h.Forums.GetByID(ctx, *filter.ForumID)
		if errors.Is(err, forumstore.ErrNotFound) {
			h.ErrLog.Write(w, r, "audit: forum", apperr.ErrForumNotFound)
			return
		}
		if err != nil {
			h.ErrLog.Write(w, r, "audit: forum", err)
			return
		}
		if !forumpolicy.CanManage(v, f) {
			h.ErrLog.Write(w, r, "audit: not manager", apperr.ErrNotManager)
			return
		}
	}

	events, err := h.Audit.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "audit: query", err)
		return
	}
	total, err := h.Audit.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Write(w, r, "audit: count", err)
		return
	}

	userNames, forumNames := h.resolveNames(r, events)

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			ActorID:       e.ActorID,
			UserID:        e.UserID,
			ForumID:       e.ForumID,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.ActorID != nil {
			item.ActorName = userNames[*e.ActorID]
		}
		if e.UserID != nil {
			item.UserName = userNames[*e.UserID]
		}
		if e.ForumID != nil {
			item.ForumName = forumNames[*e.ForumID]
		}
		items = append(items, item)
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	jsonio.OK(w, listResponse{Items: items, Total: total, Page: page, TotalPages: totalPages})
}

// resolveNames batch-loads user and forum names. Lookup failures only
// cost the names, not the listing.
func (h *Handler) resolveNames(r *http.Request, events []audit.Event) (map[primitive.ObjectID]string, map[primitive.ObjectID]string) {
	userSet := make(map[primitive.ObjectID]struct{})
	forumSet := make(map[primitive.ObjectID]struct{})
	for _, e := range events {
		if e.ActorID != nil {
			userSet[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			userSet[*e.UserID] = struct{}{}
		}
		if e.ForumID != nil {
			forumSet[*e.ForumID] = struct{}{}
		}
	}

	userNames, err := h.Users.NamesByIDs(r.Context(), keys(userSet))
	if err != nil {
		h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		userNames = map[primitive.ObjectID]string{}
	}

	forumNames := make(map[primitive.ObjectID]string, len(forumSet))
	if len(forumSet) > 0 {
		forums, err := h.Forums.GetByIDs(r.Context(), keys(forumSet))
		if err != nil {
			h.Log.Warn("failed to fetch forum names for audit log", zap.Error(err))
		}
		for _, f := range forums {
			forumNames[f.ID] = f.Name
		}
	}
	return userNames, forumNames
}

func keys(set map[primitive.ObjectID]struct{}) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
