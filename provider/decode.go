package provider

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeConfig converts a raw configuration section into a typed struct
// using its mapstructure tags. Durations may be given as strings ("30s").
// Unknown keys are rejected so typos in config.yml surface at startup.
func DecodeConfig[C any](raw map[string]any, out *C) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("provider config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("provider config: %w", err)
	}
	return nil
}
