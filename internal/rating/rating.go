// internal/rating/rating.go
package rating

import (
	"sort"
	"time"
)

// Standing is one participant's finishing position. Lower Placement is better;
// equal placements are draws.
type Standing struct {
	UserID    string
	Rating    Rating
	Placement int
}

// FinalizeRatings treats a finished game as one rating period in which every player
// played every other player once, scored by placement. The result is keyed by user id.
func FinalizeRatings(standings []Standing) map[string]Rating {
	out := make(map[string]Rating, len(standings))
	for i, me := range standings {
		results := make([]outcome, 0, len(standings)-1)
		for j, them := range standings {
			if i == j {
				continue
			}
			score := 0.5
			switch {
			case me.Placement < them.Placement:
				score = 1
			case me.Placement > them.Placement:
				score = 0
			}
			results = append(results, outcome{opp: them.Rating, score: score})
		}
		out[me.UserID] = update(me.Rating, results)
	}
	return out
}

// Update1v1 is the two-player special case.
func Update1v1(winner, loser Rating) (Rating, Rating) {
	res := FinalizeRatings([]Standing{
		{UserID: "w", Rating: winner, Placement: 0},
		{UserID: "l", Rating: loser, Placement: 1},
	})
	return res["w"], res["l"]
}

// PlacementInput is what Placements needs to rank a player.
type PlacementInput struct {
	UserID   string
	IsWinner bool
	Lines    int
}

// Placements ranks the winner first and everyone else by completed lines, ties sharing a place.
func Placements(players []PlacementInput) map[string]int {
	sorted := make([]PlacementInput, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsWinner != sorted[j].IsWinner {
			return sorted[i].IsWinner
		}
		return sorted[i].Lines > sorted[j].Lines
	})

	out := make(map[string]int, len(sorted))
	place := 0
	for i, p := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			if prev.IsWinner != p.IsWinner || prev.Lines != p.Lines {
				place = i
			}
		}
		out[p.UserID] = place
	}
	return out
}

// Points computes the leaderboard score for one player's game: 100 for a win, 10 per
// completed line, 25 for a multiplayer game. Once a game runs past 30 minutes it loses
// 5 for every full 10 minutes played, counted from the start. Never negative.
func Points(isWinner bool, lines int, multiplayer bool, played time.Duration) int {
	score := 0
	if isWinner {
		score += 100
	}
	score += lines * 10
	if multiplayer {
		score += 25
	}
	if minutes := int(played.Minutes()); minutes > 30 {
		score -= (minutes / 10) * 5
	}
	return max(0, score)
}
