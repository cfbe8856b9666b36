package history

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/zhouzirui/z-tavern/local/internal/model/chat"
	"github.com/zhouzirui/z-tavern/local/internal/model/stamp"
)

// LegacyReport describes how far a chats file is from canonical form.
type LegacyReport struct {
	Chats       int
	Messages    int
	LegacyRoles int
	NaiveStamps int
}

// Inspect reads the raw chats file and counts records that Normalize would rewrite.
func (s *ChatStore) Inspect() (LegacyReport, error) {
	data, err := os.ReadFile(s.file.Path())
	if err != nil {
		return LegacyReport{}, fmt.Errorf("read %s: %w", s.file.Path(), err)
	}

	var raw []struct {
		Timestamp string `json:"timestamp"`
		Messages  []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return LegacyReport{}, fmt.Errorf("decode %s: %w", s.file.Path(), err)
	}

	var report LegacyReport
	for _, c := range raw {
		report.Chats++
		if !stamp.IsCanonical(c.Timestamp) {
			report.NaiveStamps++
		}
		for _, m := range c.Messages {
			report.Messages++
			if m.Role != string(chat.NormalizeRole(m.Role)) {
				report.LegacyRoles++
			}
		}
	}
	return report, nil
}
