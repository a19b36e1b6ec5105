package core

import (
	"encoding/json"
	"fmt"
)

// ExtractImageURL returns the image URL from a decoded generation response,
// taken from the first item of output.choices[0].message.content that has an
// "image" key.
//
// A response that does not follow that shape yields ErrMalformedResponse. A
// well-formed response with no image item yields ErrNoImageFound.
func ExtractImageURL(body map[string]any) (string, error) {
	output, ok := body["output"].(map[string]any)
	if !ok {
		return "", malformed("missing output object")
	}

	choices, ok := output["choices"].([]any)
	if !ok {
		return "", malformed("output.choices is not a list")
	}
	if len(choices) == 0 {
		return "", malformed("output.choices is empty")
	}

	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", malformed("output.choices[0] is not an object")
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", malformed("output.choices[0].message is not an object")
	}

	rawContent, present := message["content"]
	if !present {
		return "", &ResponseError{Kind: ErrNoImageFound}
	}
	content, ok := rawContent.([]any)
	if !ok {
		return "", malformed("message.content is not a list")
	}

	for i, entry := range content {
		item, ok := entry.(map[string]any)
		if !ok {
			return "", malformed(fmt.Sprintf("message.content[%d] is not an object", i))
		}
		value, has := item["image"]
		if !has {
			continue
		}
		imageURL, ok := value.(string)
		if !ok {
			return "", malformed(fmt.Sprintf("message.content[%d].image is not a string", i))
		}
		return imageURL, nil
	}

	return "", &ResponseError{Kind: ErrNoImageFound}
}

// ExtractImageURLFromJSON decodes raw and calls ExtractImageURL.
func ExtractImageURLFromJSON(raw []byte) (string, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", malformed(err.Error())
	}
	return ExtractImageURL(body)
}

func malformed(reason string) error {
	return &ResponseError{Kind: ErrMalformedResponse, Reason: reason}
}
