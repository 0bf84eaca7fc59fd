package content

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/campushub/internal/app/policy/forumpolicy"
	"github.com/dalemusser/campushub/internal/app/policy/visibility"
	"github.com/dalemusser/campushub/internal/app/services/notify"
	eventstore "github.com/dalemusser/campushub/internal/app/store/events"
	"github.com/dalemusser/campushub/internal/app/system/apperr"
	"github.com/dalemusser/campushub/internal/app/system/authz"
	"github.com/dalemusser/campushub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/campushub/internal/app/system/paging"
	"github.com/dalemusser/campushub/internal/app/system/timezones"
	"github.com/dalemusser/campushub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errTitleRequired    = apperr.New(apperr.Invalid, "Le titre est obligatoire.")
	errBadDate          = apperr.New(apperr.Invalid, "Date invalide (format AAAA-MM-JJ).")
	errBadTime          = apperr.New(apperr.Invalid, "Heure invalide (format HH:MM).")
	errEndBeforeStart   = apperr.New(apperr.Invalid, "La fin doit être après le début.")
	errStartsInPast     = apperr.New(apperr.Invalid, "L'événement ne peut pas commencer dans le passé.")
	errBadCapacity      = apperr.New(apperr.Invalid, "Le nombre de places ne peut pas être négatif.")
	errAlreadyJoined    = apperr.New(apperr.Conflict, "Vous participez déjà à cet événement.")
)

// EventInput is what a user submits to create or edit an event. Dates are
// YYYY-MM-DD and times HH:MM in the campus time zone.
type EventInput struct {
	ForumID         *primitive.ObjectID
	Title           string
	Description     string
	Location        string
	ImageRef        string
	StartDate       string
	StartTime       string
	EndDate         string
	EndTime         string
	MaxParticipants int
}

type schedule struct {
	startsAt, endsAt time.Time
}

func (s *Service) parseSchedule(in EventInput) (schedule, error) {
	var sc schedule
	var err error
	if sc.startsAt, err = timezones.ParseLocal(in.StartDate, in.StartTime, s.loc); err != nil {
		return sc, scheduleErr(err)
	}
	if sc.endsAt, err = timezones.ParseLocal(in.EndDate, in.EndTime, s.loc); err != nil {
		return sc, scheduleErr(err)
	}
	if sc.endsAt.Before(sc.startsAt) {
		return sc, errEndBeforeStart
	}
	return sc, nil
}

func scheduleErr(err error) error {
	if errors.Is(err, timezones.ErrBadTime) {
		return errBadTime
	}
	return errBadDate
}

func (s *Service) validateEvent(in *EventInput) (schedule, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return schedule{}, errTitleRequired
	}
	if in.MaxParticipants < 0 {
		return schedule{}, errBadCapacity
	}
	in.Description = htmlsanitize.Body(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	return s.parseSchedule(*in)
}

// CreateEvent schedules an event under the same approval rule as posts.
func (s *Service) CreateEvent(ctx context.Context, v authz.Viewer, in EventInput) (models.Event, error) {
	if v.Anonymous() {
		return models.Event{}, apperr.ErrUnauthenticated
	}
	sc, err := s.validateEvent(&in)
	if err != nil {
		return models.Event{}, err
	}
	if sc.startsAt.Before(s.now()) {
		return models.Event{}, errStartsInPast
	}
	f, err := s.forumOf(ctx, in.ForumID)
	if err != nil {
		return models.Event{}, err
	}
	if err := s.requireMember(ctx, v, f); err != nil {
		return models.Event{}, err
	}

	pending := forumpolicy.NeedsApproval(v, f)
	var out models.Event
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.events.Create(ctx, models.Event{
			AuthorID:        v.ID,
			ForumID:         in.ForumID,
			Title:           in.Title,
			Description:     in.Description,
			Location:        in.Location,
			ImageRef:        in.ImageRef,
			StartDate:       strings.TrimSpace(in.StartDate),
			StartTime:       strings.TrimSpace(in.StartTime),
			EndDate:         strings.TrimSpace(in.EndDate),
			EndTime:         strings.TrimSpace(in.EndTime),
			StartsAt:        sc.startsAt,
			MaxParticipants: in.MaxParticipants,
			Status:          initialStatus(pending),
		})
		if err != nil || !pending {
			return err
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyEventPendingApproval,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{f.AuthorID},
			Target:     models.Target{EventID: ref(out.ID), ForumID: ref(f.ID)},
			Message:    out.Title,
		}, 0)
	})
	if err != nil {
		return models.Event{}, err
	}
	return out, nil
}

func (s *Service) loadEvent(ctx context.Context, id primitive.ObjectID) (models.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if errors.Is(err, eventstore.ErrNotFound) {
		return models.Event{}, apperr.ErrEventNotFound
	}
	return e, err
}

// GetEvent returns an event the viewer may see.
func (s *Service) GetEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Event, error) {
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	sc, err := s.scope(ctx, v)
	if err != nil {
		return models.Event{}, err
	}
	if !sc.CanView(visibility.EventItem(e)) {
		return models.Event{}, apperr.ErrEventNotFound
	}
	return e, nil
}

func (s *Service) pageEvents(ctx context.Context, filter bson.M, ks paging.Keyset) (paging.Page[models.Event], error) {
	rows, hasNext, err := s.events.List(ctx, filter, ks)
	if err != nil {
		return paging.Page[models.Event]{}, err
	}
	page := paging.Page[models.Event]{Items: rows}
	if hasNext && len(rows) > 0 {
		page.NextCursor = eventstore.Cursor(rows[len(rows)-1])
	}
	return page, nil
}

// UpcomingEvents lists visible events that have not started and are not
// cancelled, soonest first.
func (s *Service) UpcomingEvents(ctx context.Context, v authz.Viewer, ks paging.Keyset) (paging.Page[models.Event], error) {
	sc, err := s.scope(ctx, v)
	if err != nil {
		return paging.Page[models.Event]{}, err
	}
	upcoming := bson.M{"starts_at": bson.M{"$gte": s.now().UTC()}, "cancelled": false}
	return s.pageEvents(ctx, paging.Merge(upcoming, sc.ListingFilter()), ks)
}

// ForumEvents lists a forum's visible events, past ones included.
func (s *Service) ForumEvents(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID, ks paging.Keyset) (paging.Page[models.Event], error) {
	f, err := s.forumOf(ctx, &forumID)
	if err != nil {
		return paging.Page[models.Event]{}, err
	}
	sc, err := s.scope(ctx, v)
	if err != nil {
		return paging.Page[models.Event]{}, err
	}
	if !sc.ForumListable(*f) {
		return paging.Page[models.Event]{}, apperr.ErrForumNotFound
	}
	return s.pageEvents(ctx, paging.Merge(bson.M{"forum_id": forumID}, sc.ListingFilter()), ks)
}

// PendingEvents is a forum's event moderation queue.
func (s *Service) PendingEvents(ctx context.Context, v authz.Viewer, forumID primitive.ObjectID, ks paging.Keyset) (paging.Page[models.Event], error) {
	f, err := s.forumOf(ctx, &forumID)
	if err != nil {
		return paging.Page[models.Event]{}, err
	}
	if !forumpolicy.CanModerate(v, f) {
		return paging.Page[models.Event]{}, apperr.ErrNotManager
	}
	return s.pageEvents(ctx, bson.M{"forum_id": forumID, "status": models.ContentPending}, ks)
}

// UpdateEvent replaces the editable fields. Only the author edits.
func (s *Service) UpdateEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID, in EventInput) (models.Event, error) {
	if v.Anonymous() {
		return models.Event{}, apperr.ErrUnauthenticated
	}
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	if !forumpolicy.CanEditContent(v, e.AuthorID) {
		return models.Event{}, apperr.ErrForbidden
	}
	if e.Cancelled {
		return models.Event{}, apperr.ErrEventCancelled
	}
	sc, err := s.validateEvent(&in)
	if err != nil {
		return models.Event{}, err
	}
	trim := func(x string) *string { x = strings.TrimSpace(x); return &x }
	out, err := s.events.Update(ctx, id, eventstore.Details{
		Title:           &in.Title,
		Description:     &in.Description,
		Location:        &in.Location,
		ImageRef:        &in.ImageRef,
		StartDate:       trim(in.StartDate),
		StartTime:       trim(in.StartTime),
		EndDate:         trim(in.EndDate),
		EndTime:         trim(in.EndTime),
		StartsAt:        &sc.startsAt,
		MaxParticipants: &in.MaxParticipants,
	})
	if errors.Is(err, eventstore.ErrNotFound) {
		return models.Event{}, apperr.ErrEventNotFound
	}
	return out, err
}

// Participate signs the viewer up for a visible event and tells the
// author. Capacity is enforced by the store's conditional update.
func (s *Service) Participate(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Event, error) {
	if v.Anonymous() {
		return models.Event{}, apperr.ErrUnauthenticated
	}
	e, err := s.GetEvent(ctx, v, id)
	if err != nil {
		return models.Event{}, err
	}
	if e.Cancelled {
		return models.Event{}, apperr.ErrEventCancelled
	}
	var out models.Event
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.events.Participate(ctx, id, v.ID)
		if err != nil {
			return participationErr(err)
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyEventParticipation,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{e.AuthorID},
			Target:     models.Target{EventID: ref(e.ID)},
			Message:    e.Title,
		}, 0)
	})
	if err != nil {
		return models.Event{}, err
	}
	return out, nil
}

// Unparticipate withdraws the viewer and the notification their sign-up
// produced. It is a no-op when the viewer had not signed up.
func (s *Service) Unparticipate(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Event, error) {
	if v.Anonymous() {
		return models.Event{}, apperr.ErrUnauthenticated
	}
	var out models.Event
	err := s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.events.Unparticipate(ctx, id, v.ID)
		if errors.Is(err, eventstore.ErrNotParticipating) {
			out, err = s.events.GetByID(ctx, id)
		}
		if err != nil {
			return participationErr(err)
		}
		return s.notify.Withdraw(ctx, models.NotifyEventParticipation, v.ID, models.Target{EventID: ref(id)})
	})
	if err != nil {
		return models.Event{}, err
	}
	return out, nil
}

// IsParticipating reports whether the viewer signed up.
func (s *Service) IsParticipating(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (bool, error) {
	if v.Anonymous() {
		return false, nil
	}
	return s.events.IsParticipating(ctx, id, v.ID)
}

func participationErr(err error) error {
	switch {
	case errors.Is(err, eventstore.ErrNotFound):
		return apperr.ErrEventNotFound
	case errors.Is(err, eventstore.ErrCancelled):
		return apperr.ErrEventCancelled
	case errors.Is(err, eventstore.ErrFull):
		return apperr.ErrEventFull
	case errors.Is(err, eventstore.ErrAlreadyParticipates):
		return errAlreadyJoined
	}
	return err
}

// CancelEvent marks the event cancelled and tells every participant. The
// author, a forum manager or an admin may cancel.
func (s *Service) CancelEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Event, error) {
	if v.Anonymous() {
		return models.Event{}, apperr.ErrUnauthenticated
	}
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	f, err := s.forumOrNil(ctx, e.ForumID)
	if err != nil {
		return models.Event{}, err
	}
	if !forumpolicy.CanDeleteContent(v, e.AuthorID, f) {
		return models.Event{}, apperr.ErrForbidden
	}
	var out models.Event
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.events.Cancel(ctx, id)
		if err != nil {
			return participationErr(err)
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       models.NotifyEventCancelled,
			Sender:     v.ID,
			Recipients: out.Participants,
			Target:     models.Target{EventID: ref(out.ID)},
			Message:    out.Title,
		}, 0)
	})
	if err != nil {
		return models.Event{}, err
	}
	return out, nil
}

// ApproveEvent publishes a pending event and tells its author.
func (s *Service) ApproveEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Event, error) {
	return s.moderateEvent(ctx, v, id, models.ContentApproved, models.NotifyEventApproved)
}

// RejectEvent refuses a pending event and tells its author.
func (s *Service) RejectEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID) (models.Event, error) {
	return s.moderateEvent(ctx, v, id, models.ContentRejected, models.NotifyEventRejected)
}

func (s *Service) moderateEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID, to, kind string) (models.Event, error) {
	if v.Anonymous() {
		return models.Event{}, apperr.ErrUnauthenticated
	}
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return models.Event{}, err
	}
	f, err := s.forumOrNil(ctx, e.ForumID)
	if err != nil {
		return models.Event{}, err
	}
	if !forumpolicy.CanModerate(v, f) {
		return models.Event{}, apperr.ErrNotManager
	}
	var out models.Event
	err = s.inTxn(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.events.SetStatus(ctx, id, models.ContentPending, to, v.ID)
		if errors.Is(err, eventstore.ErrStatusChanged) {
			return apperr.ErrNotPending
		}
		if err != nil {
			return err
		}
		target := models.Target{EventID: ref(e.ID), ForumID: e.ForumID}
		if err := s.notify.Withdraw(ctx, models.NotifyEventPendingApproval, e.AuthorID, target); err != nil {
			return err
		}
		return s.notify.Enqueue(ctx, notify.Intent{
			Kind:       kind,
			Sender:     v.ID,
			Recipients: []primitive.ObjectID{e.AuthorID},
			Target:     target,
			Message:    e.Title,
		}, 0)
	})
	if err != nil {
		return models.Event{}, err
	}
	return out, nil
}

// DeleteEvent removes an event with its favorites and notifications.
func (s *Service) DeleteEvent(ctx context.Context, v authz.Viewer, id primitive.ObjectID) error {
	if v.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	e, err := s.loadEvent(ctx, id)
	if err != nil {
		return err
	}
	f, err := s.forumOrNil(ctx, e.ForumID)
	if err != nil {
		return err
	}
	if !forumpolicy.CanDeleteContent(v, e.AuthorID, f) {
		return apperr.ErrForbidden
	}
	return s.inTxn(ctx, func(ctx context.Context) error {
		if err := s.events.Delete(ctx, id); err != nil {
			if errors.Is(err, eventstore.ErrNotFound) {
				return apperr.ErrEventNotFound
			}
			return err
		}
		return s.dropEvents(ctx, []primitive.ObjectID{id})
	})
}
