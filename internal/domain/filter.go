package domain

import "fmt"

// FilterAll is the neutral value of every list filter.
const FilterAll = "all"

// Like and guarantee filter values understood by GET /api/links.
const (
	LikeLiked            = "liked"
	LikeDisliked         = "disliked"
	GuaranteeAvailable   = "available"
	GuaranteeUnavailable = "unavailable"
)

// FilterState is the set of active list-filter selections.
type FilterState struct {
	Platform  string `json:"platform"`
	User      string `json:"user"`
	Like      string `json:"like"`
	Guarantee string `json:"guarantee"`
}

// AllFilters returns a FilterState with every field set to FilterAll.
func AllFilters() FilterState {
	return FilterState{
		Platform:  FilterAll,
		User:      FilterAll,
		Like:      FilterAll,
		Guarantee: FilterAll,
	}
}

// IsNeutral reports whether no filter is narrowing the list.
func (f FilterState) IsNeutral() bool {
	return f == AllFilters()
}

// Validate rejects like and guarantee values the list endpoint does not
// understand. Empty values count as FilterAll.
func (f FilterState) Validate() error {
	switch f.Like {
	case "", FilterAll, LikeLiked, LikeDisliked:
	default:
		return fmt.Errorf("invalid like filter %q", f.Like)
	}
	switch f.Guarantee {
	case "", FilterAll, GuaranteeAvailable, GuaranteeUnavailable:
	default:
		return fmt.Errorf("invalid guarantee filter %q", f.Guarantee)
	}
	return nil
}
