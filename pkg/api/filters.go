package api

import (
	"context"
	"net/http"
	"path"

	"github.com/mender-qa/mgmtctl/pkg/model"
)

// filterListPageSize matches the single page the backend serves for saved filters.
const filterListPageSize = 100

// FilterService wraps the saved inventory filters API (inventory v2).
type FilterService struct {
	c *Client
}

type filterListOptions struct {
	PerPage int `url:"per_page"`
}

// List returns the saved filters.
func (s *FilterService) List(ctx context.Context) ([]model.Filter, error) {
	var filters []model.Filter
	if err := s.c.getJSON(ctx, inventoryV2+"/filters", filterListOptions{PerPage: filterListPageSize}, &filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// Create saves a filter and returns its id when the backend reports one
// in the Location header.
func (s *FilterService) Create(ctx context.Context, f model.Filter) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	f.ID = ""
	header, err := s.c.sendJSON(ctx, http.MethodPost, inventoryV2+"/filters", http.StatusCreated, f, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(header), nil
}

// Get returns one saved filter.
func (s *FilterService) Get(ctx context.Context, filterID string) (*model.Filter, error) {
	if err := requireID("filter id", filterID); err != nil {
		return nil, err
	}
	var f model.Filter
	if err := s.c.getJSON(ctx, pathJoin(inventoryV2, "filters", filterID), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Delete removes a saved filter.
func (s *FilterService) Delete(ctx context.Context, filterID string) error {
	if err := requireID("filter id", filterID); err != nil {
		return err
	}
	_, err := s.c.sendJSON(ctx, http.MethodDelete, pathJoin(inventoryV2, "filters", filterID), http.StatusNoContent, nil, nil)
	return err
}

func idFromLocation(h http.Header) string {
	loc := h.Get("Location")
	if loc == "" {
		return ""
	}
	return path.Base(loc)
}
