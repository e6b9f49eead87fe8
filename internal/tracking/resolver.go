package tracking

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/tappo/tappo/internal/apperr"
	"github.com/tappo/tappo/internal/models"
	"github.com/tappo/tappo/internal/storage"
)

// RawEvent is an ingestion payload before validation. The session id is an
// opaque token owned by the client: a random id it refreshes after 30 minutes
// of inactivity and sends with every event. The server never issues or
// extends it.
type RawEvent struct {
	EventType string `json:"event_type"`
	SessionID string `json:"session_id,omitempty"`
	PageSlug  string `json:"page_slug,omitempty"`
	NfcCode   string `json:"nfc_code,omitempty"`

	BlockID   string `json:"block_id,omitempty"`
	BlockText string `json:"block_text,omitempty"`
	BlockURL  string `json:"block_url,omitempty"`
	BlockType string `json:"block_type,omitempty"`
}

// Resolver validates raw events and resolves their owner, page and tag.
type Resolver struct {
	pages storage.PageRepo
	tags  storage.TagRepo
	newID func() string
}

func NewResolver(pages storage.PageRepo, tags storage.TagRepo) *Resolver {
	return &Resolver{
		pages: pages,
		tags:  tags,
		newID: uuid.NewString,
	}
}

// Resolve turns raw into an event ready for insertion. It has no side
// effects; CreatedAt is left for the store to assign.
func (r *Resolver) Resolve(ctx context.Context, raw RawEvent) (*models.InteractionEvent, error) {
	eventType := models.EventType(raw.EventType)
	if !eventType.Valid() {
		return nil, apperr.ErrInvalidEventType
	}

	slug := strings.TrimSpace(raw.PageSlug)
	code := strings.TrimSpace(raw.NfcCode)

	if eventType == models.EventNFCTouch && code == "" {
		return nil, apperr.ErrMissingTagCode
	}

	var page *models.Page
	if slug != "" {
		p, err := r.pages.GetBySlug(ctx, slug)
		if err != nil {
			return nil, apperr.Store(err)
		}
		if p == nil {
			return nil, apperr.ErrPageNotFound
		}
		page = p
	}

	var tag *models.NfcTag
	if code != "" {
		t, err := r.tags.GetByCode(ctx, code)
		if err != nil {
			return nil, apperr.Store(err)
		}
		if t == nil {
			return nil, apperr.ErrTagNotFound
		}
		tag = t
	}

	var userID string
	switch {
	case tag != nil && tag.UserID != "":
		userID = tag.UserID
	case page != nil:
		userID = page.UserID
	}
	if userID == "" {
		return nil, apperr.ErrUnresolvableOwner
	}

	if page != nil && tag != nil && tag.PageID != page.ID {
		return nil, apperr.ErrTagPageMismatch
	}

	ev := &models.InteractionEvent{
		ID:        r.newID(),
		UserID:    userID,
		EventType: eventType,
		SessionID: strings.TrimSpace(raw.SessionID),
		BlockID:   raw.BlockID,
		BlockText: raw.BlockText,
		BlockURL:  raw.BlockURL,
		BlockType: raw.BlockType,
	}
	if tag != nil {
		ev.NfcTagID = tag.ID
		ev.PageID = tag.PageID
	}
	if ev.PageID == "" && page != nil {
		ev.PageID = page.ID
	}

	return ev, nil
}
