package merge

import "strings"

// ratings maps catalog age rating strings to the canonical set.
var ratings = map[string]string{
	"ec":                   "EC",
	"ec - early childhood": "EC",
	"early childhood":      "EC",
	"e":                    "E",
	"e - everyone":         "E",
	"everyone":             "E",
	"k-a":                  "E",
	"k-a - kids to adults": "E",
	"e10+":                 "E10+",
	"e10+ - everyone 10+":  "E10+",
	"everyone 10+":         "E10+",
	"t":                    "T",
	"t - teen":             "T",
	"teen":                 "T",
	"m":                    "M",
	"m - mature":           "M",
	"mature":               "M",
	"mature 17+":           "M",
	"ao":                   "AO",
	"ao - adult only":      "AO",
	"ao - adults only":     "AO",
	"adults only":          "AO",
	"adults only 18+":      "AO",
}

// genres maps catalog genre names to canonical genres.
var genres = map[string]string{
	"action":                                 "Action",
	"hack and slash/beat 'em up":             "Action",
	"beat 'em up":                            "Action",
	"adventure":                              "Adventure",
	"point-and-click":                        "Adventure",
	"arcade":                                 "Arcade",
	"board game":                             "Board Game",
	"card & board game":                      "Board Game",
	"fighting":                               "Fighting",
	"horror":                                 "Horror",
	"mmo":                                    "MMO",
	"music":                                  "Music",
	"platform":                               "Platformer",
	"platformer":                             "Platformer",
	"pinball":                                "Pinball",
	"puzzle":                                 "Puzzle",
	"quiz/trivia":                            "Puzzle",
	"racing":                                 "Racing",
	"role-playing":                           "RPG",
	"role-playing (rpg)":                     "RPG",
	"rpg":                                    "RPG",
	"sandbox":                                "Sandbox",
	"shooter":                                "Shooter",
	"construction and management simulation": "Simulation",
	"flight simulator":                       "Simulation",
	"life simulation":                        "Simulation",
	"simulator":                              "Simulation",
	"simulation":                             "Simulation",
	"sport":                                  "Sports",
	"sports":                                 "Sports",
	"stealth":                                "Stealth",
	"strategy":                               "Strategy",
	"real time strategy (rts)":               "Strategy",
	"turn-based strategy (tbs)":              "Strategy",
	"tactical":                               "Strategy",
	"visual novel":                           "Visual Novel",
}

// Rating returns the canonical rating for a catalog rating string.
func Rating(raw string) (string, bool) {
	r, ok := ratings[strings.ToLower(strings.TrimSpace(raw))]
	return r, ok
}

// Genre returns the canonical genre for a catalog genre name.
func Genre(raw string) (string, bool) {
	g, ok := genres[strings.ToLower(strings.TrimSpace(raw))]
	return g, ok
}
