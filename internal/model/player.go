package model

import "unicode/utf8"

// MaxNameLength is the display name limit shown on the host screen
const MaxNameLength = 12

// Player represents a participant in a room
type Player struct {
	ID     string `json:"id" bson:"id"`
	Name   string `json:"name" bson:"name"`
	Avatar string `json:"avatar" bson:"avatar"` // One of the Avatars ids
	Score  int    `json:"score" bson:"score"`
}

// Team groups players for scoring. In individual mode every player gets a team of one.
type Team struct {
	ID      string   `json:"id" bson:"id"`
	Name    string   `json:"name" bson:"name"`
	Players []Player `json:"players" bson:"players"`
	Score   int      `json:"score" bson:"score"`
}

// Avatar is an entry of the fixed icon set
type Avatar struct {
	ID   string `json:"id"`
	Icon string `json:"icon"`
	Name string `json:"name"`
}

// Avatars is the icon set players pick from when joining
var Avatars = []Avatar{
	{ID: "broccoli", Icon: "🥦", Name: "Meneer Broccoli"},
	{ID: "violin", Icon: "🎻", Name: "Victor Viool"},
	{ID: "dog", Icon: "🐶", Name: "Davy de Hond"},
	{ID: "cat", Icon: "🐱", Name: "Kato de Kat"},
	{ID: "mario", Icon: "🍄", Name: "Mario Bro"},
	{ID: "alien", Icon: "👽", Name: "Zorg de Alien"},
	{ID: "princess", Icon: "👑", Name: "Prinses Parel"},
	{ID: "taco", Icon: "🌮", Name: "Timo Taco"},
	{ID: "robot", Icon: "🤖", Name: "Robo-Bob"},
	{ID: "unicorn", Icon: "🦄", Name: "Uli de Eenhoorn"},
}

// FindAvatar looks up an avatar by id
func FindAvatar(id string) (Avatar, bool) {
	for _, a := range Avatars {
		if a.ID == id {
			return a, true
		}
	}
	return Avatar{}, false
}

// NewPlayer builds a player with a clamped name and a known avatar.
// Unknown avatar ids fall back to the first avatar.
func NewPlayer(id, name, avatar string) Player {
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = string([]rune(name)[:MaxNameLength])
	}
	if _, ok := FindAvatar(avatar); !ok {
		avatar = Avatars[0].ID
	}
	return Player{ID: id, Name: name, Avatar: avatar}
}

// HasPlayer reports whether a player with the given id is in the list
func HasPlayer(players []Player, id string) bool {
	for _, p := range players {
		if p.ID == id {
			return true
		}
	}
	return false
}
