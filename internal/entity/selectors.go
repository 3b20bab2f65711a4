package entity

import "time"

// SelectorSet is the DOM-query heuristic inferred for one site: where the
// article lives and which nested elements to throw away.
type SelectorSet struct {
	Container string   `json:"container"`
	Content   string   `json:"content_selector,omitempty"`
	Exclude   []string `json:"exclude_list,omitempty"`
	Title     string   `json:"title,omitempty"`
	Author    string   `json:"author,omitempty"`
	Subtitle  string   `json:"subtitle,omitempty"`
	HeroImage string   `json:"hero_image,omitempty"`
}

// Empty reports whether the set carries no usable container selector.
func (s SelectorSet) Empty() bool {
	return s.Container == ""
}

// SelectorEntry is a cached SelectorSet keyed by normalized site identity.
// Entries live until an extraction failure invalidates them; there is no TTL.
type SelectorEntry struct {
	Key          string      `json:"key"`
	Selectors    SelectorSet `json:"selectors"`
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	CreatedAt    time.Time   `json:"created_at"`
	LastUsed     time.Time   `json:"last_used"`
}
