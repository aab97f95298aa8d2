package mqtt

import (
	"strings"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "streamdeck"

// Topics builds the server's topic names under a common prefix:
//
//	{prefix}/event/{uuid}     classified button events
//	{prefix}/icon/set/{uuid}  inbound icon commands (SVG payload)
//	{prefix}/discovery        retained presence and connection details
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Surrounding slashes are dropped.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Event returns the topic for events of the button with uuid.
func (t Topics) Event(uuid string) string {
	return t.prefix + "/event/" + uuid
}

// AllEvents matches every button event topic.
func (t Topics) AllEvents() string {
	return t.prefix + "/event/+"
}

// IconSet returns the command topic that replaces uuid's icon.
func (t Topics) IconSet(uuid string) string {
	return t.prefix + "/icon/set/" + uuid
}

// AllIconSets matches every icon command topic.
func (t Topics) AllIconSets() string {
	return t.prefix + "/icon/set/+"
}

// Discovery returns the retained presence topic.
func (t Topics) Discovery() string {
	return t.prefix + "/discovery"
}

// IconSetUUID extracts the button UUID from an icon command topic.
func (t Topics) IconSetUUID(topic string) (string, bool) {
	return lastLevel(topic, t.prefix+"/icon/set/")
}

// EventUUID extracts the button UUID from an event topic.
func (t Topics) EventUUID(topic string) (string, bool) {
	return lastLevel(topic, t.prefix+"/event/")
}

func lastLevel(topic, base string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, base)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
