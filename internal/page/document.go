// Package page models the management page's form controls and rendered list.
package page

import (
	"context"
	"errors"

	"linkboard/internal/domain"
)

// Element ids on the link-management page.
const (
	PlatformFilter     = "platformFilter"
	UserFilter         = "userFilter"
	LikeFilter         = "likeFilter"
	GuaranteeFilter    = "guaranteeFilter"
	DateFilter         = "dateFilter"
	LinkURL            = "linkUrl"
	LinkMemo           = "linkMemo"
	GuaranteeInsurance = "guaranteeInsurance"
	LinksList          = "linksList"
)

// LinkItemsSelector matches the rendered rows of the link list.
const LinkItemsSelector = "#" + LinksList + " .link-item"

var (
	ErrElementNotFound     = errors.New("element not found")
	ErrUnsupportedSelector = errors.New("unsupported selector")
)

// Document is the subset of the page the link operations read and write.
type Document interface {
	Value(ctx context.Context, id string) (string, error)
	SetValue(ctx context.Context, id, value string) error
	Checked(ctx context.Context, id string) (bool, error)
	SetChecked(ctx context.Context, id string, checked bool) error
	// Count returns how many elements match selector.
	Count(ctx context.Context, selector string) (int, error)
}

// FilterSyncer is implemented by documents that keep their own copy of the
// active filters (the live page's currentFilters).
type FilterSyncer interface {
	SyncFilters(ctx context.Context, filters domain.FilterState) error
}
