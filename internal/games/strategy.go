package games

// Action is a blackjack decision.
type Action string

const (
	ActionHit    Action = "hit"
	ActionStand  Action = "stand"
	ActionDouble Action = "double"
)

// Basic strategy for a dealer-hits-soft-17 table, no splitting. Each row is
// a player total; the ten columns are dealer upcards 2 through 11 (ace).
// H = hit, S = stand, D = double (hit when doubling is unavailable).

var hardStrategy = map[int]string{
	//   dealer:  234567891A
	5:  "HHHHHHHHHH",
	6:  "HHHHHHHHHH",
	7:  "HHHHHHHHHH",
	8:  "HHHHHHHHHH",
	9:  "HHDDDHHHHH",
	10: "DDDDDDDDHH",
	11: "DDDDDDDDDD",
	12: "HHSSSHHHHH",
	13: "SSSSSHHHHH",
	14: "SSSSSHHHHH",
	15: "SSSSSHHHHH",
	16: "SSSSSHHHHH",
}

var softStrategy = map[int]string{
	//   dealer:  234567891A
	13: "HHHDDHHHHH",
	14: "HHHDDHHHHH",
	15: "HHDDDHHHHH",
	16: "HHDDDHHHHH",
	17: "HDDDDHHHHH",
	18: "DDDDDSSHHH",
	19: "SSSSDSSSSS",
	20: "SSSSSSSSSS",
}

// BasicStrategy returns the action for a player total against a dealer
// upcard (2-11, where 11 is an ace). Soft totals outside the soft table
// fall through to the hard table.
func BasicStrategy(playerTotal, dealerUpcard int, soft bool) Action {
	if dealerUpcard < 2 {
		dealerUpcard = 2
	}
	if dealerUpcard > 11 {
		dealerUpcard = 11
	}

	if soft {
		if playerTotal >= 21 {
			return ActionStand
		}
		if row, ok := softStrategy[playerTotal]; ok {
			return decodeAction(row[dealerUpcard-2])
		}
	}

	if playerTotal <= 4 {
		return ActionHit
	}
	if playerTotal >= 17 {
		return ActionStand
	}

	row, ok := hardStrategy[playerTotal]
	if !ok {
		return ActionHit
	}
	return decodeAction(row[dealerUpcard-2])
}

func decodeAction(code byte) Action {
	switch code {
	case 'S':
		return ActionStand
	case 'D':
		return ActionDouble
	default:
		return ActionHit
	}
}
