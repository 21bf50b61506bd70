// Package hiscores holds the canonical catalogs for the OSRS hiscores
// feed. The upstream index_lite payload carries skills and activities as
// bare positional arrays; position is the only join key, so the order of
// these tables must match the upstream order exactly.
package hiscores

import "fmt"

// Skills in index_lite order. Position 0 is the Overall pseudo-skill.
var Skills = []string{
	"Overall",
	"Attack",
	"Defence",
	"Strength",
	"Hitpoints",
	"Ranged",
	"Prayer",
	"Magic",
	"Cooking",
	"Woodcutting",
	"Fletching",
	"Fishing",
	"Firemaking",
	"Crafting",
	"Smithing",
	"Mining",
	"Herblore",
	"Agility",
	"Thieving",
	"Slayer",
	"Farming",
	"Runecrafting",
	"Hunter",
	"Construction",
}

// Activities in index_lite order: minigames and clue tiers first, then
// bosses alphabetically as the feed lists them.
var Activities = []string{
	"League Points",
	"Deadman Points",
	"Bounty Hunter - Hunter",
	"Bounty Hunter - Rogue",
	"Bounty Hunter (Legacy) - Hunter",
	"Bounty Hunter (Legacy) - Rogue",
	"Clue Scrolls (all)",
	"Clue Scrolls (beginner)",
	"Clue Scrolls (easy)",
	"Clue Scrolls (medium)",
	"Clue Scrolls (hard)",
	"Clue Scrolls (elite)",
	"Clue Scrolls (master)",
	"LMS - Rank",
	"PvP Arena - Rank",
	"Soul Wars Zeal",
	"Rifts closed",
	"Colosseum Glory",
	"Collections Logged",
	"Abyssal Sire",
	"Alchemical Hydra",
	"Amoxliatl",
	"Araxxor",
	"Artio",
	"Barrows Chests",
	"Bryophyta",
	"Callisto",
	"Calvar'ion",
	"Cerberus",
	"Chambers of Xeric",
	"Chambers of Xeric: Challenge Mode",
	"Chaos Elemental",
	"Chaos Fanatic",
	"Commander Zilyana",
	"Corporeal Beast",
	"Crazy Archaeologist",
	"Dagannoth Prime",
	"Dagannoth Rex",
	"Dagannoth Supreme",
	"Deranged Archaeologist",
	"Duke Sucellus",
	"General Graardor",
	"Giant Mole",
	"Grotesque Guardians",
	"Hespori",
	"Kalphite Queen",
	"King Black Dragon",
	"Kraken",
	"Kree'Arra",
	"K'ril Tsutsaroth",
	"Lunar Chests",
	"Mimic",
	"Nex",
	"Nightmare",
	"Phosani's Nightmare",
	"Obor",
	"Phantom Muspah",
	"Sarachnis",
	"Scorpia",
	"Scurrius",
	"Skotizo",
	"Sol Heredit",
	"Spindel",
	"Tempoross",
	"The Gauntlet",
	"The Corrupted Gauntlet",
	"The Hueycoatl",
	"The Leviathan",
	"The Royal Titans",
	"The Whisperer",
	"Theatre of Blood",
	"Theatre of Blood: Hard Mode",
	"Thermonuclear Smoke Devil",
	"TzKal-Zuk",
	"TzTok-Jad",
	"Vardorvis",
	"Venenatis",
	"Vet'ion",
	"Vorkath",
	"Wintertodt",
	"Zalcano",
	"Zulrah",
}

// SkillName returns the canonical name for a skill position. Positions
// past the end of the catalog get a synthetic name so newly-added
// upstream rows are labeled rather than dropped.
func SkillName(i int) string {
	if i >= 0 && i < len(Skills) {
		return Skills[i]
	}
	return fmt.Sprintf("Unknown_Skill_%d", i)
}

// ActivityName returns the canonical name for an activity position,
// with the same synthetic fallback as SkillName.
func ActivityName(i int) string {
	if i >= 0 && i < len(Activities) {
		return Activities[i]
	}
	return fmt.Sprintf("Unknown_Activity_%d", i)
}
