package runtime

import (
	"github.com/mitchellh/mapstructure"
)

// Settings are the per-run options sent with a start request.
type Settings struct {
	// Debug is reserved; it does not change control flow.
	Debug bool `mapstructure:"debug"`

	// Delay is the number of seconds to pause after every non-top-level call.
	Delay int `mapstructure:"delay"`
}

// ParseSettings decodes run options. Unknown keys are ignored and a malformed value
// falls back to the default for that field only.
func ParseSettings(opts map[string]any) Settings {
	var s Settings
	if err := decodeSettings(opts, &s); err != nil {
		s = Settings{}
		for key, value := range opts {
			field := s
			if err := decodeSettings(map[string]any{key: value}, &field); err == nil {
				s = field
			}
		}
	}
	if s.Delay < 0 {
		s.Delay = 0
	}
	return s
}

func decodeSettings(input map[string]any, out *Settings) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
