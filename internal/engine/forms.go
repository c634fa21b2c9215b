package engine

import (
	"context"
	"sync"
	"time"

	"orbsync/internal/models"
	"orbsync/internal/store"

	"github.com/rs/zerolog"
)

// FormSaver persists in-progress form input so work survives restarts.
// Regular field edits are saved on a debounce; discrete selection changes are
// saved immediately; a confirmed submission clears the snapshot.
type FormSaver struct {
	store    store.Store
	logger   *zerolog.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]map[string]string
	timers  map[string]*time.Timer
}

func NewFormSaver(st store.Store, debounce time.Duration, logger *zerolog.Logger) *FormSaver {
	if debounce <= 0 {
		debounce = models.DefaultDebounceMs * time.Millisecond
	}
	return &FormSaver{
		store:    st,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]map[string]string),
		timers:   make(map[string]*time.Timer),
	}
}

// FieldsChanged records the form's live field set and schedules a debounced
// save. Repeated edits within the window collapse into one write.
func (f *FormSaver) FieldsChanged(formID string, fields map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pending[formID] = copyFields(fields)

	if t, ok := f.timers[formID]; ok {
		t.Reset(f.debounce)
		return
	}
	f.timers[formID] = time.AfterFunc(f.debounce, func() {
		f.flush(formID)
	})
}

// SelectionChanged persists immediately: discrete choices are deliberate and
// should not wait out the debounce window.
func (f *FormSaver) SelectionChanged(formID string, fields map[string]string) {
	f.cancel(formID)
	f.save(formID, copyFields(fields))
}

// FormSubmitted drops any scheduled save and clears the stored snapshot.
func (f *FormSaver) FormSubmitted(ctx context.Context, formID string) error {
	f.cancel(formID)
	return f.store.ClearSnapshot(ctx, formID)
}

// Restore returns the latest snapshot for the form and whether one existed.
func (f *FormSaver) Restore(ctx context.Context, formID string) (map[string]string, bool, error) {
	return f.store.GetSnapshot(ctx, formID)
}

// Close flushes any pending debounced saves.
func (f *FormSaver) Close() {
	f.mu.Lock()
	forms := make([]string, 0, len(f.pending))
	for _, t := range f.timers {
		t.Stop()
	}
	for formID := range f.pending {
		forms = append(forms, formID)
	}
	f.mu.Unlock()

	for _, formID := range forms {
		f.flush(formID)
	}
}

func (f *FormSaver) cancel(formID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.timers[formID]; ok {
		t.Stop()
		delete(f.timers, formID)
	}
	delete(f.pending, formID)
}

func (f *FormSaver) flush(formID string) {
	f.mu.Lock()
	fields, ok := f.pending[formID]
	delete(f.pending, formID)
	delete(f.timers, formID)
	f.mu.Unlock()

	if !ok {
		return
	}
	f.save(formID, fields)
}

func (f *FormSaver) save(formID string, fields map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := f.store.SaveSnapshot(ctx, formID, fields); err != nil {
		f.logger.Error().Err(err).Str("form_id", formID).Msg("failed to save form snapshot")
	}
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
