// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"encoding/json"
	"strings"
)

// nameList decodes provider arrays shaped [{"name": "..."}] into plain names.
type nameList []string

func (n *nameList) UnmarshalJSON(data []byte) error {
	var objs []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, o := range objs {
			if s := strings.TrimSpace(o.Name); s != "" {
				out = append(out, s)
			}
		}
		*n = out
		return nil
	}

	// Some providers flatten to plain strings.
	var plain []string
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	out := make([]string, 0, len(plain))
	for _, s := range plain {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*n = out
	return nil
}

// genreList decodes both ["fantasy"] and [{"name"|"label"|"title": "fantasy"}].
type genreList []string

func (g *genreList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}

		var obj struct {
			Name  string `json:"name"`
			Label string `json:"label"`
			Title string `json:"title"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			continue
		}
		for _, candidate := range []string{obj.Name, obj.Label, obj.Title} {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				out = append(out, candidate)
				break
			}
		}
	}
	*g = out
	return nil
}

// seriesEntry is one provider series membership.
type seriesEntry struct {
	Name     string          `json:"name"`
	Position json.RawMessage `json:"position"`
}

// positionString renders the position as audible shows it ("1", "1.5"), empty
// when absent. Providers send numbers or strings interchangeably.
func (s seriesEntry) positionString() string {
	if len(s.Position) == 0 {
		return ""
	}

	var str string
	if err := json.Unmarshal(s.Position, &str); err == nil {
		return strings.TrimSpace(str)
	}

	var num json.Number
	if err := json.Unmarshal(s.Position, &num); err == nil {
		return num.String()
	}
	return ""
}
