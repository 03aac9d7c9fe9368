package mqtt

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"meters-poller/internal/config"
)

// asciiFold decomposes accented letters and drops everything outside ASCII
var asciiFold = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Slugify lower-cases name and joins its ASCII letters and digits with single dashes
func Slugify(name string) string {
	if name == "" {
		return ""
	}
	folded, _, err := transform.String(asciiFold, name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(folded)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// TopicKey is the slug of the device name, or the numeric id when the slug is empty
func TopicKey(name string, id int) string {
	if slug := Slugify(name); slug != "" {
		return slug
	}
	return strconv.Itoa(id)
}

// Topics builds every topic the poller publishes to
type Topics struct {
	BaseTopic       string
	Style           string
	DiscoveryPrefix string
}

// NewTopics creates a topic builder
func NewTopics(baseTopic, style, discoveryPrefix string) Topics {
	return Topics{
		BaseTopic:       strings.Trim(baseTopic, "/"),
		Style:           style,
		DiscoveryPrefix: strings.Trim(discoveryPrefix, "/"),
	}
}

// State returns the measurement topic for a device key
func (t Topics) State(key string) string {
	switch t.Style {
	case config.TopicStyleFlat:
		return t.BaseTopic + "/" + key
	case config.TopicStyleMeasurements:
		return t.BaseTopic + "/" + key + "/measurements"
	default:
		return t.BaseTopic + "/" + key + "/state"
	}
}

// Status returns the retained availability topic
func (t Topics) Status() string {
	return t.BaseTopic + "/status"
}

// Diagnostic returns the diagnostic topic
func (t Topics) Diagnostic() string {
	return t.BaseTopic + "/diagnostic"
}

// UniqueID returns "<type>_<id>_<field>"
func (t Topics) UniqueID(deviceType string, id int, field string) string {
	return deviceType + "_" + strconv.Itoa(id) + "_" + field
}

// Discovery returns the Home Assistant config topic of one sensor
func (t Topics) Discovery(deviceType string, id int, field string) string {
	return t.DiscoveryPrefix + "/sensor/" + t.UniqueID(deviceType, id, field) + "/config"
}
