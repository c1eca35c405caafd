package airtable

import (
	"context"

	"github.com/clickonetwo/airtable-tsml-feed/internal/model"
)

// Source reads one table view as model rows.
type Source struct {
	Registry *Registry
	BaseID   string
	TableID  string
	Select   SelectOptions
}

// FetchRows fetches every row of the configured view.
func (s *Source) FetchRows(ctx context.Context) ([]model.Row, error) {
	records, err := s.Registry.Base(s.BaseID).Table(s.TableID).Select(ctx, s.Select)
	if err != nil {
		return nil, err
	}
	rows := make([]model.Row, len(records))
	for i, rec := range records {
		rows[i] = model.Row{ID: rec.ID, Fields: rec.Fields}
	}
	return rows, nil
}
