package messages

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ContentPart is a fragment of multi-part user content.
type ContentPart interface {
	part()
}

// AssistantContentPart is a fragment of multi-part assistant content.
type AssistantContentPart interface {
	assistantPart()
}

// ContentOrParts holds user content as either a plain string or a list
// of typed parts. Exactly one of the two fields is populated.
type ContentOrParts struct {
	Content string
	Parts   []ContentPart
	_       struct{}
}

func (c ContentOrParts) MarshalJSON() ([]byte, error) {
	if c.Content != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return []byte("null"), nil
}

func (c *ContentOrParts) UnmarshalJSON(data []byte) error {
	return c.decode(gjson.ParseBytes(data))
}

func (c *ContentOrParts) decode(parsed gjson.Result) error {
	if parsed.Type == gjson.String {
		c.Content = parsed.String()
		return nil
	}
	if !parsed.IsArray() {
		return fmt.Errorf("'content' must be a string or an array of parts")
	}
	for _, el := range parsed.Array() {
		part, err := contentPartFromJSON(el)
		if err != nil {
			return err
		}
		c.Parts = append(c.Parts, part)
	}
	return nil
}

// AssistantContentOrParts holds assistant content as either a plain
// string or a list of typed parts.
type AssistantContentOrParts struct {
	Content string
	Parts   []AssistantContentPart
	_       struct{}
}

func (c AssistantContentOrParts) MarshalJSON() ([]byte, error) {
	if c.Content != "" {
		return json.Marshal(c.Content)
	}
	if c.Parts != nil {
		return json.Marshal(c.Parts)
	}
	return []byte("null"), nil
}

func (c *AssistantContentOrParts) UnmarshalJSON(data []byte) error {
	return c.decode(gjson.ParseBytes(data))
}

func (c *AssistantContentOrParts) decode(parsed gjson.Result) error {
	if parsed.Type == gjson.String {
		c.Content = parsed.String()
		return nil
	}
	if !parsed.IsArray() {
		return fmt.Errorf("'content' must be a string or an array of parts")
	}
	for _, el := range parsed.Array() {
		part, err := assistantContentPartFromJSON(el)
		if err != nil {
			return err
		}
		c.Parts = append(c.Parts, part)
	}
	return nil
}

func contentPartFromJSON(el gjson.Result) (ContentPart, error) {
	switch typ := el.Get("type").String(); typ {
	case "text":
		return TextContentPart{Text: el.Get("text").String()}, nil
	case "image":
		return ImageContentPart{URL: el.Get("image_url").String()}, nil
	case "audio":
		return AudioContentPart{
			InputAudio: InputAudio{
				Data:   el.Get("input_audio.data").String(),
				Format: el.Get("input_audio.format").String(),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown content part type: %s", typ)
	}
}

func assistantContentPartFromJSON(el gjson.Result) (AssistantContentPart, error) {
	switch typ := el.Get("type").String(); typ {
	case "text":
		return TextContentPart{Text: el.Get("text").String()}, nil
	case "refusal":
		return RefusalContentPart{Refusal: el.Get("refusal").String()}, nil
	default:
		return nil, fmt.Errorf("unknown assistant content part type: %s", typ)
	}
}

// TextContentPart is a plain text fragment. It is valid in both user
// and assistant content.
type TextContentPart struct {
	Text string `json:"text"`
	_    struct{}
}

func (TextContentPart) part()          {}
func (TextContentPart) assistantPart() {}

func (t TextContentPart) MarshalJSON() ([]byte, error) {
	out, err := sjson.Set(`{"type":"text"}`, "text", t.Text)
	return []byte(out), err
}

// Text builds a text content part.
func Text(text string) TextContentPart {
	return TextContentPart{Text: text}
}

// ImageContentPart references an image by URL.
type ImageContentPart struct {
	URL string `json:"image_url"`
	_   struct{}
}

func (ImageContentPart) part() {}

func (i ImageContentPart) MarshalJSON() ([]byte, error) {
	out, err := sjson.Set(`{"type":"image"}`, "image_url", i.URL)
	return []byte(out), err
}

// Image builds an image content part from a URL.
func Image(url string) ImageContentPart {
	return ImageContentPart{URL: url}
}

// InputAudio is base64 encoded audio data with its container format.
type InputAudio struct {
	Data   string `json:"data"`
	Format string `json:"format"`
	_      struct{}
}

// AudioContentPart carries inline audio input.
type AudioContentPart struct {
	InputAudio InputAudio `json:"input_audio"`
	_          struct{}
}

func (AudioContentPart) part() {}

func (a AudioContentPart) MarshalJSON() ([]byte, error) {
	audio, err := json.Marshal(a.InputAudio)
	if err != nil {
		return nil, err
	}
	out, err := sjson.SetRaw(`{"type":"audio"}`, "input_audio", string(audio))
	return []byte(out), err
}

// Audio builds an audio content part from encoded data and a format
// such as "wav" or "mp3".
func Audio(data, format string) AudioContentPart {
	return AudioContentPart{InputAudio: InputAudio{Data: data, Format: format}}
}

// RefusalContentPart carries a model refusal inside multi-part
// assistant content.
type RefusalContentPart struct {
	Refusal string `json:"refusal"`
	_       struct{}
}

func (RefusalContentPart) assistantPart() {}

func (r RefusalContentPart) MarshalJSON() ([]byte, error) {
	out, err := sjson.Set(`{"type":"refusal"}`, "refusal", r.Refusal)
	return []byte(out), err
}

// Refusal builds a refusal content part.
func Refusal(refusal string) RefusalContentPart {
	return RefusalContentPart{Refusal: refusal}
}
