package journal

// RatingValue maps a rating onto +1, 0 or -1. Unset counts as 0.
func RatingValue(r Rating) int {
	switch r {
	case RatingBetter:
		return 1
	case RatingWorse:
		return -1
	}
	return 0
}

// Point is one step of a cumulative series.
type Point struct {
	Date  string `json:"date"`
	Score int    `json:"score"`
}

// CumulativeSeries sums rating values over entries in order. With an empty
// itemID each day contributes the sum of all its ratings; otherwise only
// days that rated itemID appear.
func CumulativeSeries(entries []Entry, itemID string) []Point {
	out := make([]Point, 0, len(entries))
	total := 0
	for _, e := range entries {
		if itemID == "" {
			for _, t := range e.Trackings {
				total += RatingValue(t.Rating)
			}
		} else {
			r, ok := e.Tracking(itemID)
			if !ok {
				continue
			}
			total += RatingValue(r)
		}
		out = append(out, Point{Date: e.Date, Score: total})
	}
	return out
}

// Summary counts ratings.
type Summary struct {
	Better int `json:"better"`
	Same   int `json:"same"`
	Worse  int `json:"worse"`
}

// Total is the number of set ratings.
func (s Summary) Total() int { return s.Better + s.Same + s.Worse }

// Net is better minus worse.
func (s Summary) Net() int { return s.Better - s.Worse }

func (s *Summary) add(r Rating) {
	switch r {
	case RatingBetter:
		s.Better++
	case RatingSame:
		s.Same++
	case RatingWorse:
		s.Worse++
	}
}

// Trend counts the ratings of itemID across entries, or of every item when
// itemID is empty.
func Trend(entries []Entry, itemID string) Summary {
	var s Summary
	for _, e := range entries {
		for _, t := range e.Trackings {
			if itemID == "" || t.ItemID == itemID {
				s.add(t.Rating)
			}
		}
	}
	return s
}

// ItemTrend is a per-item summary.
type ItemTrend struct {
	Item TrackableItem `json:"item"`
	Summary
}

// ItemTrends summarizes each of items over entries, in the order given.
func ItemTrends(entries []Entry, items []TrackableItem) []ItemTrend {
	out := make([]ItemTrend, len(items))
	for i, it := range items {
		out[i] = ItemTrend{Item: it, Summary: Trend(entries, it.ID)}
	}
	return out
}
