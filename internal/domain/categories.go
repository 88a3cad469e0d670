package domain

// DefaultCategory is applied when the go-live form leaves category empty.
const DefaultCategory = "Just Chatting"

// Categories lists the categories offered by the go-live form.
// Other values are stored as given.
var Categories = []string{
	"Gaming",
	"Development",
	"NFTs",
	"Trading",
	"Music",
	"Art",
	"Education",
	"Entertainment",
	"Community",
	"Just Chatting",
}
