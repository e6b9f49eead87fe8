package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tappo/tappo/internal/analytics"
	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/geo"
	"github.com/tappo/tappo/internal/models"
	"github.com/tappo/tappo/internal/reviews"
	"github.com/tappo/tappo/internal/tracking"
	"go.uber.org/zap"
)

// decodeJSON reads at most maxBodyBytes of JSON into dst and answers the
// request itself when that fails.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.errorResponse(w, "request body too large", http.StatusRequestEntityTooLarge)
		return false
	}
	s.errorResponse(w, "Invalid JSON", http.StatusBadRequest)
	return false
}

// ---- Event ingestion ----

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var raw tracking.RawEvent
	if !s.decodeJSON(w, r, &raw) {
		return
	}

	if _, err := s.deps.Tracking.Ingest(r.Context(), raw, geo.ClientIP(r)); err != nil {
		s.appError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, envelope{OK: true})
}

// ---- Tag redirect ----

func (s *Server) handleTagRedirect(w http.ResponseWriter, r *http.Request) {
	target, err := s.deps.Tracking.RedirectTarget(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.appError(w, r, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// ---- Rating sync ----

type syncRequest struct {
	TagID  string `json:"tagId" validate:"required"`
	UserID string `json:"userId" validate:"required"`
}

type syncResponse struct {
	OK bool `json:"ok"`
	*reviews.Result
}

func (s *Server) handleReviewSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, "tagId/userId required", http.StatusBadRequest)
		return
	}

	s.logger.Info("rating sync triggered",
		zap.String("tag_id", req.TagID),
		zap.String("user_id", req.UserID),
	)

	res, err := s.deps.Sync.Sync(r.Context(), req.TagID, req.UserID)
	if err != nil {
		s.appError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, syncResponse{OK: true, Result: res})
}

// ---- Analytics ----

type analyticsQuery struct {
	UserID string `validate:"required"`
	Preset string `validate:"omitempty,oneof=today 7d 30d custom"`
	From   string
	To     string
	Tag    string
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	aq := analyticsQuery{
		UserID: q.Get("user_id"),
		Preset: q.Get("preset"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Tag:    q.Get("tag"),
	}
	if err := s.validate.Struct(aq); err != nil {
		s.errorResponse(w, "user_id is required and preset must be one of today, 7d, 30d, custom", http.StatusBadRequest)
		return
	}

	window, err := analytics.ResolveWindow(aq.Preset, aq.From, aq.To, s.deps.Now(), s.deps.Config.Location())
	if err != nil {
		s.appError(w, r, err)
		return
	}

	report, err := s.deps.Reports.Aggregate(r.Context(), analytics.Query{
		UserID: aq.UserID,
		From:   window.From,
		To:     window.To,
		TagID:  aq.Tag,
	})
	if err != nil {
		s.appError(w, r, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, report)
}

// ---- Review snapshots ----

type snapshotsQuery struct {
	TagID  string `validate:"required"`
	UserID string `validate:"required"`
	Limit  int    `validate:"min=1,max=100"`
}

type snapshotsResponse struct {
	OK        bool                     `json:"ok"`
	Snapshots []*models.ReviewSnapshot `json:"snapshots"`
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	sq := snapshotsQuery{
		TagID:  chi.URLParam(r, "tagID"),
		UserID: r.URL.Query().Get("user_id"),
		Limit:  defaultSnapshotLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.errorResponse(w, "limit must be an integer", http.StatusBadRequest)
			return
		}
		sq.Limit = n
	}
	if err := s.validate.Struct(sq); err != nil {
		s.errorResponse(w, "user_id is required and limit must be between 1 and 100", http.StatusBadRequest)
		return
	}

	tag, err := s.deps.Tags.GetByID(r.Context(), sq.TagID)
	if err != nil {
		s.appError(w, r, apperr.Store(err))
		return
	}
	if tag == nil {
		s.appError(w, r, apperr.ErrTagNotFound)
		return
	}
	if tag.UserID != sq.UserID {
		s.appError(w, r, apperr.ErrForbidden)
		return
	}

	snaps, err := s.deps.Snapshots.ListByTag(r.Context(), tag.ID, sq.Limit)
	if err != nil {
		s.appError(w, r, apperr.Store(err))
		return
	}

	s.jsonResponse(w, http.StatusOK, snapshotsResponse{OK: true, Snapshots: snaps})
}
