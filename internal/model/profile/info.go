// Package profile holds the free-form facts about the user that every persona can see.
package profile

import "github.com/zhouzirui/z-tavern/local/internal/model/stamp"

// Info is one personal-info snippet.
type Info struct {
	InfoID    string     `json:"info_id" validate:"required"`
	Content   string     `json:"content" validate:"required"`
	Timestamp stamp.Time `json:"timestamp"`
}
