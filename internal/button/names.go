package button

import (
	"fmt"
	"math/rand/v2"
)

// NameFunc produces candidate public UUIDs. The registry retries until it
// finds one that is not in use.
type NameFunc func() string

var adjectives = []string{
	"amber", "brave", "bright", "calm", "clever", "cosmic", "crisp", "dapper",
	"eager", "fancy", "gentle", "golden", "happy", "jolly", "keen", "lively",
	"lucky", "mellow", "misty", "noble", "polite", "proud", "quick", "quiet",
	"rapid", "royal", "shiny", "silent", "sleepy", "smooth", "snowy", "solar",
	"spicy", "steady", "sunny", "swift", "tidy", "vivid", "witty", "zesty",
}

var nouns = []string{
	"badger", "beaver", "bison", "comet", "coyote", "falcon", "ferret", "finch",
	"gecko", "heron", "ibis", "jackal", "koala", "lemur", "lynx", "magpie",
	"marten", "meteor", "moose", "nebula", "newt", "ocelot", "orca", "osprey",
	"otter", "panda", "pelican", "puffin", "quasar", "raven", "robin", "salmon",
	"sparrow", "stoat", "tapir", "toucan", "walrus", "weasel", "wombat", "yak",
}

// RandomName returns a human-readable identifier such as "brave-otter-07".
func RandomName() string {
	return fmt.Sprintf("%s-%s-%02d",
		adjectives[rand.IntN(len(adjectives))],
		nouns[rand.IntN(len(nouns))],
		rand.IntN(100),
	)
}
