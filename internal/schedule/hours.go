package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Block is a business-hour interval [Start, End).
type Block struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// ParseBlock parses "HH:MM-HH:MM".
func ParseBlock(s string) (Block, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Block{}, fmt.Errorf("invalid block %q, expected HH:MM-HH:MM", s)
	}
	start, err := ParseClock(parts[0])
	if err != nil {
		return Block{}, err
	}
	end, err := ParseClock(parts[1])
	if err != nil {
		return Block{}, err
	}
	if end <= start {
		return Block{}, fmt.Errorf("block %q ends before it starts", s)
	}
	return Block{Start: start, End: end}, nil
}

// ParseBlocks parses a list of "HH:MM-HH:MM" strings.
func ParseBlocks(specs []string) ([]Block, error) {
	blocks := make([]Block, 0, len(specs))
	for _, s := range specs {
		b, err := ParseBlock(s)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func (b Block) String() string {
	return b.Start.String() + "-" + b.End.String()
}

// Hours holds the business-hour blocks for Monday to Friday and for
// Saturday. Sunday is always closed.
type Hours struct {
	Weekday  []Block
	Saturday []Block
}

// DefaultHours are the clinic's standing opening hours.
func DefaultHours() Hours {
	return Hours{
		Weekday: []Block{
			{Start: NewClock(10, 0), End: NewClock(12, 0)},
			{Start: NewClock(14, 0), End: NewClock(16, 30)},
			{Start: NewClock(18, 30), End: NewClock(19, 0)},
		},
		Saturday: []Block{
			{Start: NewClock(8, 0), End: NewClock(14, 0)},
		},
	}
}

// For returns the blocks that apply on the given weekday.
func (h Hours) For(wd time.Weekday) []Block {
	switch wd {
	case time.Saturday:
		return h.Saturday
	case time.Sunday:
		return nil
	default:
		return h.Weekday
	}
}
