package types

import (
	"github.com/valyala/fastjson"
)

var formParserPool fastjson.ParserPool

// ParseForm extracts top-level string and number fields from a JSON body
// into a flat form-data map. Nested objects and arrays are ignored; honeypot
// fields are always flat inputs. Returns nil when the body is not a JSON
// object.
func ParseForm(body []byte) map[string]string {
	if len(body) == 0 {
		return nil
	}
	parser := formParserPool.Get()
	defer formParserPool.Put(parser)

	v, err := parser.ParseBytes(body)
	if err != nil {
		return nil
	}
	obj, err := v.Object()
	if err != nil {
		return nil
	}

	form := make(map[string]string, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		switch val.Type() {
		case fastjson.TypeString:
			b, _ := val.StringBytes()
			form[string(key)] = string(b)
		case fastjson.TypeNumber, fastjson.TypeTrue, fastjson.TypeFalse:
			form[string(key)] = val.String()
		}
	})
	return form
}
