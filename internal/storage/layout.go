package storage

import (
	"context"
	"errors"
)

// LayoutKey is where the client layout is stored.
var LayoutKey = []string{"layout"}

// Layout is the client's pane arrangement. The server stores it verbatim.
type Layout struct {
	GridCols            int          `json:"gridCols"`
	GridRows            int          `json:"gridRows"`
	Sessions            []LayoutItem `json:"sessions"`
	HistorySidebarOpen  bool         `json:"historySidebarOpen"`
	HistorySidebarWidth int          `json:"historySidebarWidth"`
	OverseerPanelOpen   bool         `json:"overseerPanelOpen"`
	OverseerPanelHeight int          `json:"overseerPanelHeight"`
}

// LayoutItem places one session pane on the grid.
type LayoutItem struct {
	ID      string `json:"id"`
	Col     int    `json:"col"`
	Row     int    `json:"row"`
	ColSpan int    `json:"colSpan"`
	RowSpan int    `json:"rowSpan"`
}

// DefaultLayout returns the layout used before anything was saved.
func DefaultLayout() Layout {
	return Layout{
		GridCols:            2,
		GridRows:            2,
		Sessions:            []LayoutItem{},
		HistorySidebarOpen:  true,
		HistorySidebarWidth: 300,
		OverseerPanelOpen:   true,
		OverseerPanelHeight: 200,
	}
}

// SaveLayout stores layout.
func (s *Storage) SaveLayout(ctx context.Context, layout Layout) error {
	if layout.Sessions == nil {
		layout.Sessions = []LayoutItem{}
	}
	return s.Put(ctx, LayoutKey, layout)
}

// LoadLayout returns the saved layout. ok is false when none was saved.
func (s *Storage) LoadLayout(ctx context.Context) (layout Layout, ok bool, err error) {
	err = s.Get(ctx, LayoutKey, &layout)
	if errors.Is(err, ErrNotFound) {
		return Layout{}, false, nil
	}
	if err != nil {
		return Layout{}, false, err
	}
	return layout, true, nil
}
