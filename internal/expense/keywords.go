package expense

import "strings"

// keyword maps a phrase to a category. Phrases are matched on whole tokens;
// priority only breaks ties between equally distant, equally long phrases.
type keyword struct {
	phrase   string
	category Category
	priority int
	words    []string
}

var keywordTable = compileKeywords([]keyword{
	{phrase: "ăn", category: Meals, priority: 5},
	{phrase: "ăn sáng", category: Meals, priority: 5},
	{phrase: "ăn trưa", category: Meals, priority: 5},
	{phrase: "ăn tối", category: Meals, priority: 5},
	{phrase: "uống", category: Meals, priority: 4},
	{phrase: "cơm", category: Meals, priority: 5},
	{phrase: "nước", category: Meals, priority: 2},
	{phrase: "cafe", category: Meals, priority: 4},
	{phrase: "cà phê", category: Meals, priority: 4},
	{phrase: "nhà hàng", category: Meals, priority: 4},
	{phrase: "meal", category: Meals, priority: 5},
	{phrase: "food", category: Meals, priority: 5},
	{phrase: "restaurant", category: Meals, priority: 4},
	{phrase: "breakfast", category: Meals, priority: 5},
	{phrase: "lunch", category: Meals, priority: 5},
	{phrase: "dinner", category: Meals, priority: 5},

	{phrase: "taxi", category: Transportation, priority: 5},
	{phrase: "grab", category: Transportation, priority: 5},
	{phrase: "uber", category: Transportation, priority: 5},
	{phrase: "xe", category: Transportation, priority: 3},
	{phrase: "xăng", category: Transportation, priority: 4},
	{phrase: "bus", category: Transportation, priority: 4},
	{phrase: "tàu", category: Transportation, priority: 4},
	{phrase: "máy bay", category: Transportation, priority: 5},
	{phrase: "vé máy bay", category: Transportation, priority: 5},
	{phrase: "đi lại", category: Transportation, priority: 4},
	{phrase: "di chuyển", category: Transportation, priority: 4},
	{phrase: "flight", category: Transportation, priority: 5},
	{phrase: "travel", category: Transportation, priority: 3},

	{phrase: "khách sạn", category: Accommodation, priority: 5},
	{phrase: "hotel", category: Accommodation, priority: 5},
	{phrase: "lưu trú", category: Accommodation, priority: 4},
	{phrase: "phòng", category: Accommodation, priority: 2},
	{phrase: "homestay", category: Accommodation, priority: 5},
	{phrase: "motel", category: Accommodation, priority: 5},

	{phrase: "văn phòng", category: Office, priority: 4},
	{phrase: "văn phòng phẩm", category: Office, priority: 5},
	{phrase: "office", category: Office, priority: 4},
	{phrase: "giấy", category: Office, priority: 3},
	{phrase: "bút", category: Office, priority: 3},
	{phrase: "thiết bị", category: Office, priority: 3},
	{phrase: "stationery", category: Office, priority: 5},
	{phrase: "supplies", category: Office, priority: 4},

	{phrase: "tiếp khách", category: Entertainment, priority: 5},
	{phrase: "karaoke", category: Entertainment, priority: 5},
	{phrase: "giải trí", category: Entertainment, priority: 4},
	{phrase: "entertainment", category: Entertainment, priority: 4},

	{phrase: "mua sắm", category: Shopping, priority: 4},
	{phrase: "mua", category: Shopping, priority: 1},
	{phrase: "shopping", category: Shopping, priority: 4},
})

func compileKeywords(table []keyword) []keyword {
	for i := range table {
		table[i].words = strings.Fields(table[i].phrase)
	}
	return table
}

const (
	lookbackTokens  = 6
	lookaheadTokens = 3
)

type categoryCandidate struct {
	category Category
	distance int
	before   bool
	length   int
	priority int
}

func (c categoryCandidate) beats(o categoryCandidate) bool {
	if c.distance != o.distance {
		return c.distance < o.distance
	}
	if c.before != o.before {
		return c.before
	}
	if c.length != o.length {
		return c.length > o.length
	}
	return c.priority > o.priority
}

// inferCategory picks the keyword closest to the amount occupying tokens
// [amountFirst, amountLast].
func inferCategory(tokens []token, amountFirst, amountLast int) Category {
	var best categoryCandidate
	found := false

	for _, kw := range keywordTable {
		n := len(kw.words)
		for i := 0; i+n <= len(tokens); i++ {
			if !wordsAt(tokens, i, kw.words) {
				continue
			}
			first, last := i, i+n-1

			c := categoryCandidate{category: kw.category, length: n, priority: kw.priority}
			switch {
			case last < amountFirst:
				c.distance = amountFirst - last
				c.before = true
				if c.distance > lookbackTokens {
					continue
				}
			case first > amountLast:
				c.distance = first - amountLast
				if c.distance > lookaheadTokens {
					continue
				}
			default:
				continue
			}

			if !found || c.beats(best) {
				best = c
				found = true
			}
		}
	}

	if !found {
		return Other
	}
	return best.category
}

func wordsAt(tokens []token, i int, words []string) bool {
	for j, w := range words {
		if tokens[i+j].text != w {
			return false
		}
	}
	return true
}
