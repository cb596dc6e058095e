package bingo_api_client

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Grid is the 5x5 content of a bingo card, row major. The free centre cell
// may arrive as a string ("FREE") and is stored as 0.
type Grid [5][5]int

func (g *Grid) UnmarshalJSON(data []byte) error {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("card grid: %w", err)
	}

	var out Grid
	for i := 0; i < len(rows) && i < 5; i++ {
		for j := 0; j < len(rows[i]) && j < 5; j++ {
			v, err := parseCell(rows[i][j])
			if err != nil {
				return fmt.Errorf("card grid cell [%d][%d]: %w", i, j, err)
			}
			out[i][j] = v
		}
	}
	*g = out
	return nil
}

func parseCell(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v, nil
	}
	// "FREE", "", null-ish markers
	return 0, nil
}
