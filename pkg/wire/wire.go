// Package wire decodes the JSON documents returned by the service.
//
// Key casing in service responses is not stable across versions, so all
// decoding goes through mapstructure, which matches struct fields
// case-insensitively. Hypermedia links and the service's "/Date(ms)/"
// timestamp encoding are handled here as well.
package wire

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Link is a single hypermedia link of a resource.
type Link struct {
	Rel  string `mapstructure:"rel"`
	Href string `mapstructure:"href"`
}

// Links is the link list every resource carries.
type Links []Link

// Href returns the target of rel, matched case-insensitively.
func (l Links) Href(rel string) (string, bool) {
	for _, link := range l {
		if strings.EqualFold(link.Rel, rel) {
			return link.Href, true
		}
	}
	return "", false
}

// Has reports whether rel is present.
func (l Links) Has(rel string) bool {
	_, ok := l.Href(rel)
	return ok
}

// Decode unmarshals a JSON body into out.
func Decode(body []byte, out interface{}) error {
	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return DecodeValue(raw, out)
}

// DecodeValue decodes an already unmarshaled JSON value into out.
func DecodeValue(raw interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: dateHook,
		Result:     out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// dateHook turns "/Date(ms)/" strings into time.Time. Malformed values
// decode to the zero time so one corrupt document does not fail a page.
func dateHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	t, err := ParseDate(data.(string))
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}
