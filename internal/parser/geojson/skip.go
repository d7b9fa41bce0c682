package geojson

import (
	"encoding/json"
	"fmt"
)

// skipNextValue skips the next JSON value from the decoder, without materializing it.
func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("skip value token: %w", err)
	}
	return skipValueFromFirstToken(dec, tok)
}

func skipValueFromFirstToken(dec *json.Decoder, tok any) error {
	d, ok := tok.(json.Delim)
	if !ok {
		return nil
	}

	var want json.Delim
	switch d {
	case '{':
		want = '}'
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return fmt.Errorf("skip object key: %w", err)
			}
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
	case '[':
		want = ']'
		for dec.More() {
			if err := skipNextValue(dec); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unexpected delimiter %q", d)
	}

	end, err := dec.Token()
	if err != nil {
		return fmt.Errorf("skip %q end: %w", want, err)
	}
	if end != want {
		return fmt.Errorf("expected %q, got %v", want, end)
	}
	return nil
}
