package dump

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"valuegen/internal/blob"
	"valuegen/internal/core"
	"valuegen/pkg/domain"
)

// Default document keys, relative to the blob store root.
const (
	DefaultValuesKey     = "new_values.json"
	DefaultUnresolvedKey = "unresolved_values.json"
)

// UnresolvedEntry is one line of the operator follow-up document.
type UnresolvedEntry struct {
	ID           string        `json:"id"`
	Nearest      string        `json:"nearest,omitempty"`
	NearestValue *domain.Value `json:"nearest_value,omitempty"`
}

// Keys names where the exporter writes; an empty UnresolvedKey skips that document.
type Keys struct {
	Values     string
	Unresolved string
}

// Exporter writes result documents, replacing whatever the keys held before.
type Exporter struct {
	store  blob.Store
	logger *zap.Logger
}

// NewExporter binds an exporter to store. A nil logger is replaced by a no-op.
func NewExporter(store blob.Store, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, logger: logger}
}

// Export writes the value document and, when requested, the unresolved document.
func (e *Exporter) Export(ctx context.Context, res core.Result, keys Keys) error {
	if keys.Values == "" {
		keys.Values = DefaultValuesKey
	}
	if _, err := e.WriteValues(ctx, keys.Values, res.Report.Document()); err != nil {
		return err
	}
	if keys.Unresolved == "" {
		return nil
	}
	_, err := e.WriteUnresolved(ctx, keys.Unresolved, UnresolvedEntries(res.Report.Unresolved, res.Hints))
	return err
}

// WriteValues writes doc as a pretty-printed JSON object with sorted keys.
func (e *Exporter) WriteValues(ctx context.Context, key string, doc map[string]domain.Value) (blob.Info, error) {
	if doc == nil {
		doc = map[string]domain.Value{}
	}
	info, replaced, err := e.writeJSON(ctx, key, doc)
	if err != nil {
		return blob.Info{}, err
	}
	e.logger.Info("values written",
		zap.String("key", key),
		zap.Int("values", len(doc)),
		zap.Int64("bytes", info.Size),
		zap.Bool("replaced", replaced),
	)
	return info, nil
}

// WriteUnresolved writes entries as a pretty-printed JSON array.
func (e *Exporter) WriteUnresolved(ctx context.Context, key string, entries []UnresolvedEntry) (blob.Info, error) {
	if entries == nil {
		entries = []UnresolvedEntry{}
	}
	info, replaced, err := e.writeJSON(ctx, key, entries)
	if err != nil {
		return blob.Info{}, err
	}
	e.logger.Info("unresolved items written", zap.String("key", key), zap.Int("items", len(entries)), zap.Bool("replaced", replaced))
	return info, nil
}

// writeJSON reports whether key already held a document before the write.
func (e *Exporter) writeJSON(ctx context.Context, key string, v any) (blob.Info, bool, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return blob.Info{}, false, fmt.Errorf("encode %s: %w", key, err)
	}
	data = append(data, '\n')
	replaced := false
	prev, err := e.store.Head(ctx, key)
	switch {
	case err == nil:
		replaced = true
		e.logger.Debug("replacing document", zap.String("key", key), zap.String("previous_etag", prev.ETag))
	case !errors.Is(err, blob.ErrNotFound):
		return blob.Info{}, false, fmt.Errorf("stat %s: %w", key, err)
	}
	info, err := e.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{ContentType: "application/json", Overwrite: true})
	if err != nil {
		return blob.Info{}, false, fmt.Errorf("write %s: %w", key, err)
	}
	return info, replaced, nil
}

// UnresolvedEntries pairs unresolved ids with their hints, when any were computed.
func UnresolvedEntries(unresolved []domain.Identifier, hints []core.Hint) []UnresolvedEntry {
	byID := make(map[domain.Identifier]core.Hint, len(hints))
	for _, h := range hints {
		byID[h.ID] = h
	}
	out := make([]UnresolvedEntry, 0, len(unresolved))
	for _, id := range unresolved {
		entry := UnresolvedEntry{ID: id.String()}
		if h, ok := byID[id]; ok && h.Found {
			v := h.NearestValue
			entry.Nearest = h.Nearest.String()
			entry.NearestValue = &v
		}
		out = append(out, entry)
	}
	return out
}
