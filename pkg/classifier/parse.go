package classifier

import (
	"strings"

	"github.com/go-faster/jx"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// RawResponse is the parsed shape of one LLM classification response:
// label, confidence, and rationale all present and valid, or a ParseError.
type RawResponse struct {
	Label      domain.Severity
	Confidence float64
	Rationale  string
}

// ParseResponse locates the first top-level JSON object in text and
// decodes it into a RawResponse. Any missing or invalid field yields a
// ParseError, which the caller's retry policy treats as retryable.
func ParseResponse(text string) (RawResponse, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return RawResponse{}, apperrors.New(apperrors.ErrorTypeParseError, "no JSON object found in LLM response")
	}

	var resp RawResponse
	var haveLabel, haveConfidence, haveRationale bool

	d := jx.DecodeStr(text[start : end+1])
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "label":
			s, err := d.Str()
			if err != nil {
				return err
			}
			resp.Label = domain.Severity(strings.ToUpper(strings.TrimSpace(s)))
			haveLabel = true
		case "confidence":
			f, err := d.Float64()
			if err != nil {
				return err
			}
			resp.Confidence = f
			haveConfidence = true
		case "rationale":
			s, err := d.Str()
			if err != nil {
				return err
			}
			resp.Rationale = s
			haveRationale = true
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return RawResponse{}, apperrors.Wrap(err, apperrors.ErrorTypeParseError, "failed to decode LLM response JSON")
	}

	if !haveLabel || !resp.Label.Valid() {
		return RawResponse{}, apperrors.New(apperrors.ErrorTypeParseError, "LLM response missing or invalid label field")
	}
	if !haveConfidence || resp.Confidence < 0 || resp.Confidence > 1 {
		return RawResponse{}, apperrors.New(apperrors.ErrorTypeParseError, "LLM response missing or out-of-range confidence field")
	}
	if !haveRationale || strings.TrimSpace(resp.Rationale) == "" {
		return RawResponse{}, apperrors.New(apperrors.ErrorTypeParseError, "LLM response missing rationale field")
	}

	return resp, nil
}
