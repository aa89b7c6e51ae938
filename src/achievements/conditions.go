package achievements

import (
	"encoding/json"
	"fmt"
)

// ConditionKind is the closed set of unlock predicates. Unknown kinds are
// rejected outright rather than silently evaluating to false.
type ConditionKind string

const (
	SharedPromptsCount ConditionKind = "shared_prompts_count"
	TotalLikes         ConditionKind = "total_likes"
	TopPromptLikes     ConditionKind = "top_prompt_likes"
	DistinctCategories ConditionKind = "distinct_categories"
)

// Condition is the deserialized unlock predicate of one achievement.
type Condition struct {
	Type  ConditionKind `json:"type"`
	Count int64         `json:"count"`
}

// Stats are the aggregate user numbers conditions are evaluated against.
type Stats struct {
	SharedCount        int64
	TotalLikes         int64
	TopPromptLikes     int64
	DistinctCategories int64
}

// ParseCondition deserializes and validates a stored condition.
func ParseCondition(raw string) (Condition, error) {
	var c Condition
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Condition{}, fmt.Errorf("condition: %w", err)
	}
	switch c.Type {
	case SharedPromptsCount, TotalLikes, TopPromptLikes, DistinctCategories:
	default:
		return Condition{}, fmt.Errorf("condition: unknown kind %q", c.Type)
	}
	if c.Count <= 0 {
		return Condition{}, fmt.Errorf("condition: count must be positive, got %d", c.Count)
	}
	return c, nil
}

// Met reports whether the stats satisfy the condition.
func (c Condition) Met(s Stats) bool {
	switch c.Type {
	case SharedPromptsCount:
		return s.SharedCount >= c.Count
	case TotalLikes:
		return s.TotalLikes >= c.Count
	case TopPromptLikes:
		return s.TopPromptLikes >= c.Count
	case DistinctCategories:
		return s.DistinctCategories >= c.Count
	default:
		return false
	}
}
