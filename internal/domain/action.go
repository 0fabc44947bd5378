package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionKind names an update understood by PUT /api/links/{id}.
type ActionKind string

const (
	ActionRating    ActionKind = "rating"
	ActionLike      ActionKind = "like"
	ActionDislike   ActionKind = "dislike"
	ActionMemo      ActionKind = "memo"
	ActionGuarantee ActionKind = "guarantee"
)

// LinkAction is the body of PUT /api/links/{id}. Only the field matching
// Action is serialized.
type LinkAction struct {
	Action             ActionKind `json:"action"`
	Rating             *int       `json:"rating,omitempty"`
	Liked              *bool      `json:"liked,omitempty"`
	Disliked           *bool      `json:"disliked,omitempty"`
	Memo               *string    `json:"memo,omitempty"`
	GuaranteeInsurance *bool      `json:"guarantee_insurance,omitempty"`
}

func RatingAction(rating int) LinkAction {
	return LinkAction{Action: ActionRating, Rating: &rating}
}

func LikeAction(liked bool) LinkAction {
	return LinkAction{Action: ActionLike, Liked: &liked}
}

func DislikeAction(disliked bool) LinkAction {
	return LinkAction{Action: ActionDislike, Disliked: &disliked}
}

func MemoAction(memo string) LinkAction {
	return LinkAction{Action: ActionMemo, Memo: &memo}
}

func GuaranteeAction(insured bool) LinkAction {
	return LinkAction{Action: ActionGuarantee, GuaranteeInsurance: &insured}
}

// Validate checks that the payload field for Action is present.
func (a LinkAction) Validate() error {
	var ok bool
	switch a.Action {
	case ActionRating:
		ok = a.Rating != nil
	case ActionLike:
		ok = a.Liked != nil
	case ActionDislike:
		ok = a.Disliked != nil
	case ActionMemo:
		ok = a.Memo != nil
	case ActionGuarantee:
		ok = a.GuaranteeInsurance != nil
	default:
		return fmt.Errorf("unknown link action %q", a.Action)
	}
	if !ok {
		return fmt.Errorf("link action %q has no value", a.Action)
	}
	return nil
}

// ParseLinkAction builds an action from its name and a textual value, as typed
// on a command line.
func ParseLinkAction(kind, value string) (LinkAction, error) {
	switch ActionKind(strings.ToLower(kind)) {
	case ActionRating:
		n, err := strconv.Atoi(value)
		if err != nil {
			return LinkAction{}, fmt.Errorf("invalid rating %q: %w", value, err)
		}
		return RatingAction(n), nil
	case ActionMemo:
		return MemoAction(value), nil
	case ActionLike, ActionDislike, ActionGuarantee:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return LinkAction{}, fmt.Errorf("invalid %s value %q: %w", kind, value, err)
		}
		switch ActionKind(strings.ToLower(kind)) {
		case ActionLike:
			return LikeAction(b), nil
		case ActionDislike:
			return DislikeAction(b), nil
		default:
			return GuaranteeAction(b), nil
		}
	default:
		return LinkAction{}, fmt.Errorf("unknown link action %q", kind)
	}
}
