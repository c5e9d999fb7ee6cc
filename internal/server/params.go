package server

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

// apiRequest accepts each parameter as a JSON number or a numeric string.
type apiRequest struct {
	Paragraphs intParam `json:"paragraphs"`
	Sentences  intParam `json:"sentences"`
	Lorem      intParam `json:"lorem"`
	Wyrd       intParam `json:"wyrd"`
}

func (r apiRequest) params() ipsum.Params {
	return ipsum.Params{
		Paragraphs: int(r.Paragraphs),
		Sentences:  int(r.Sentences),
		Lorem:      int(r.Lorem),
		Wyrd:       int(r.Wyrd),
	}
}

type intParam int

func (p *intParam) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return &ipsum.ParamError{Msg: "Parameters must be integers"}
		}
		*p = intParam(v)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			*p = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return &ipsum.ParamError{Msg: "Parameters must be integers"}
		}
		*p = intParam(n)
	default:
		return &ipsum.ParamError{Msg: "Parameters must be integers"}
	}
	return nil
}
