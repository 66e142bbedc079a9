// Package game holds the static game data used for build validation and
// class name computation.
package game

import "strings"

// MinLevel and MaxLevel bound the valid character level range.
const (
	MinLevel = 1
	MaxLevel = 50
)

// Archetypes enumerates the eight base archetypes.
var Archetypes = []string{
	"fighter",
	"tank",
	"rogue",
	"ranger",
	"mage",
	"summoner",
	"cleric",
	"bard",
}

type archetypePair struct {
	primary   string
	secondary string
}

// classMatrix maps every (primary, secondary) archetype combination to its
// class name. 8x8 = 64 combinations; an absent pair is a validation error.
var classMatrix = map[archetypePair]string{
	{"fighter", "fighter"}:  "Weapon Master",
	{"fighter", "tank"}:     "Dreadnought",
	{"fighter", "rogue"}:    "Shadowblade",
	{"fighter", "ranger"}:   "Hunter",
	{"fighter", "mage"}:     "Spellsword",
	{"fighter", "summoner"}: "Bladecaller",
	{"fighter", "cleric"}:   "Highsword",
	{"fighter", "bard"}:     "Bladedancer",

	{"tank", "fighter"}:  "Knight",
	{"tank", "tank"}:     "Guardian",
	{"tank", "rogue"}:    "Nightshield",
	{"tank", "ranger"}:   "Warden",
	{"tank", "mage"}:     "Spellshield",
	{"tank", "summoner"}: "Keeper",
	{"tank", "cleric"}:   "Paladin",
	{"tank", "bard"}:     "Argent",

	{"rogue", "fighter"}:  "Duelist",
	{"rogue", "tank"}:     "Shadow Guardian",
	{"rogue", "rogue"}:    "Assassin",
	{"rogue", "ranger"}:   "Predator",
	{"rogue", "mage"}:     "Nightspell",
	{"rogue", "summoner"}: "Shadow Lord",
	{"rogue", "cleric"}:   "Cultist",
	{"rogue", "bard"}:     "Charlatan",

	{"ranger", "fighter"}:  "Strider",
	{"ranger", "tank"}:     "Sentinel",
	{"ranger", "rogue"}:    "Scout",
	{"ranger", "ranger"}:   "Hawkeye",
	{"ranger", "mage"}:     "Scion",
	{"ranger", "summoner"}: "Falconer",
	{"ranger", "cleric"}:   "Soulbow",
	{"ranger", "bard"}:     "Bowsinger",

	{"mage", "fighter"}:  "Battle Mage",
	{"mage", "tank"}:     "Spellstone",
	{"mage", "rogue"}:    "Shadow Caster",
	{"mage", "ranger"}:   "Spell Hunter",
	{"mage", "mage"}:     "Archwizard",
	{"mage", "summoner"}: "Warlock",
	{"mage", "cleric"}:   "Acolyte",
	{"mage", "bard"}:     "Sorcerer",

	{"summoner", "fighter"}:  "Wild Blade",
	{"summoner", "tank"}:     "Brood Warden",
	{"summoner", "rogue"}:    "Shadowmancer",
	{"summoner", "ranger"}:   "Beast Master",
	{"summoner", "mage"}:     "Spellmancer",
	{"summoner", "summoner"}: "Conjurer",
	{"summoner", "cleric"}:   "Necromancer",
	{"summoner", "bard"}:     "Enchanter",

	{"cleric", "fighter"}:  "Templar",
	{"cleric", "tank"}:     "Apostle",
	{"cleric", "rogue"}:    "Shadow Disciple",
	{"cleric", "ranger"}:   "Protector",
	{"cleric", "mage"}:     "Oracle",
	{"cleric", "summoner"}: "Shaman",
	{"cleric", "cleric"}:   "High Priest",
	{"cleric", "bard"}:     "Scryer",

	{"bard", "fighter"}:  "Tellsword",
	{"bard", "tank"}:     "Siren",
	{"bard", "rogue"}:    "Trickster",
	{"bard", "ranger"}:   "Song Warden",
	{"bard", "mage"}:     "Magician",
	{"bard", "summoner"}: "Song Caller",
	{"bard", "cleric"}:   "Soul Weaver",
	{"bard", "bard"}:     "Minstrel",
}

// races maps the race key to its display name.
var races = map[string]string{
	"kaelar":   "Kaelar",
	"vaelune":  "Vaelune",
	"dunir":    "Dunir",
	"nikua":    "Nikua",
	"empyrean": "Empyrean",
	"pyrai":    "Py'rai",
	"renkai":   "Ren'kai",
	"vek":      "Vek",
	"tulnar":   "Tulnar",
}

var archetypeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(Archetypes))
	for _, archetype := range Archetypes {
		set[archetype] = struct{}{}
	}
	return set
}()

// Normalize lowercases and trims an archetype or race value for lookup.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// ValidArchetype reports whether the value names one of the eight archetypes.
func ValidArchetype(value string) bool {
	_, ok := archetypeSet[Normalize(value)]
	return ok
}

// ValidRace reports whether the value names a playable race.
func ValidRace(value string) bool {
	_, ok := races[Normalize(value)]
	return ok
}

// ValidLevel reports whether the level falls within the playable range.
func ValidLevel(level int) bool {
	return level >= MinLevel && level <= MaxLevel
}

// ClassName resolves the class for a (primary, secondary) archetype pair.
// The second return value is false when the combination is not in the matrix.
func ClassName(primary, secondary string) (string, bool) {
	name, ok := classMatrix[archetypePair{Normalize(primary), Normalize(secondary)}]
	return name, ok
}
