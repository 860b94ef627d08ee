package repository

import (
	"context"
	"sync"
	"time"

	"meetdraft/internal/model"

	"github.com/google/uuid"
)

// memoryRepository keeps everything in process memory behind one mutex.
// It backs the service when DATABASE_URL is unset and is the repository
// used by the pipeline tests. Accessors return copies to avoid races.
type memoryRepository struct {
	mu          sync.Mutex
	events      map[string]*model.RawEvent // keyed by event_id
	meetings    map[uuid.UUID]*model.Meeting
	byExternal  map[string]uuid.UUID
	transcripts map[uuid.UUID]*model.Transcript // keyed by meeting id
	drafts      []*model.Draft
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		events:      make(map[string]*model.RawEvent),
		meetings:    make(map[uuid.UUID]*model.Meeting),
		byExternal:  make(map[string]uuid.UUID),
		transcripts: make(map[uuid.UUID]*model.Transcript),
	}
}

func (r *memoryRepository) InsertEvent(_ context.Context, ev *model.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[ev.EventID]; ok {
		return nil
	}
	cp := *ev
	r.events[ev.EventID] = &cp
	return nil
}

func (r *memoryRepository) GetEventByEventID(_ context.Context, eventID string) (*model.RawEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (r *memoryRepository) ClaimEvent(_ context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventID]
	if !ok {
		return false, ErrNotFound
	}
	if ev.Status != model.EventStatusReceived && ev.Status != model.EventStatusFailed {
		return false, nil
	}
	ev.Status = model.EventStatusProcessing
	return true, nil
}

func (r *memoryRepository) FinishEvent(_ context.Context, eventID, status string, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[eventID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	ev.Status = status
	ev.ErrorMessage = errMsg
	ev.ProcessedAt = &now
	return nil
}

func (r *memoryRepository) GetMeetingByID(_ context.Context, id uuid.UUID) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memoryRepository) GetMeetingByExternalID(_ context.Context, externalID string) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.meetings[id]
	return &cp, nil
}

func (r *memoryRepository) UpsertMeeting(_ context.Context, incoming *model.Meeting) (*model.Meeting, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if id, ok := r.byExternal[incoming.ExternalID]; ok {
		merged := model.MergeMeeting(*r.meetings[id], *incoming)
		merged.UpdatedAt = now
		r.meetings[id] = &merged
		cp := merged
		return &cp, false, nil
	}

	m := *incoming
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = model.MeetingStatusPending
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	r.meetings[m.ID] = &m
	r.byExternal[m.ExternalID] = m.ID
	cp := m
	return &cp, true, nil
}

func (r *memoryRepository) TryClaimProcessing(_ context.Context, meetingID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[meetingID]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status == model.MeetingStatusProcessing {
		return false, nil
	}
	m.Status = model.MeetingStatusProcessing
	m.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memoryRepository) SetMeetingStatus(_ context.Context, meetingID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[meetingID]
	if !ok {
		return ErrNotFound
	}
	if model.MeetingStatusAtLeast(m.Status, status) {
		return nil
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *memoryRepository) GetTranscriptByMeetingID(_ context.Context, meetingID uuid.UUID) (*model.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transcripts[meetingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *memoryRepository) SaveTranscript(_ context.Context, t *model.Transcript) (*model.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	if existing, ok := r.transcripts[t.MeetingID]; ok {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	} else {
		if t.ID == uuid.Nil {
			t.ID = uuid.New()
		}
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	cp := *t
	r.transcripts[t.MeetingID] = &cp
	out := cp
	return &out, nil
}

func (r *memoryRepository) CreateDraft(_ context.Context, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.drafts = append(r.drafts, &cp)
	return nil
}

func (r *memoryRepository) UpdateDraft(_ context.Context, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.drafts {
		if existing.ID == d.ID {
			cp := *d
			r.drafts[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepository) GetCurrentDraft(_ context.Context, meetingID uuid.UUID) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.drafts) - 1; i >= 0; i-- {
		d := r.drafts[i]
		if d.MeetingID == meetingID && d.Status != model.DraftStatusFailed {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
