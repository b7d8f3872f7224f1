package models

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseSignalSpecs parses ad-hoc signal definitions from a query parameter
// Format: "name:start_bit:length:order:factor:offset,name2:..."
// order is "le" or "be"; factor and offset may be omitted (1 and 0).
// Example: "speed:0:16:le:0.01:0,gear:16:4:le"
func ParseSignalSpecs(queryValue string) ([]SignalDescriptor, error) {
	if strings.TrimSpace(queryValue) == "" {
		return nil, nil
	}

	signals := []SignalDescriptor{}
	seen := map[string]bool{}

	for _, def := range strings.Split(queryValue, ",") {
		parts := strings.Split(strings.TrimSpace(def), ":")
		if len(parts) != 4 && len(parts) != 6 {
			return nil, errors.Newf("invalid signal definition '%s', expected format: name:start:length:order[:factor:offset]", def)
		}
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		name := parts[0]
		if name == "" {
			return nil, errors.Newf("invalid signal definition '%s': empty name", def)
		}
		if seen[name] {
			return nil, errors.Newf("duplicate signal name '%s'", name)
		}
		seen[name] = true

		start, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid start bit '%s' for signal '%s'", parts[1], name)
		}
		length, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid length '%s' for signal '%s'", parts[2], name)
		}

		var order ByteOrder
		switch strings.ToLower(parts[3]) {
		case "le", "little", "intel":
			order = LittleEndian
		case "be", "big", "motorola":
			order = BigEndian
		default:
			return nil, errors.Newf("invalid byte order '%s' for signal '%s', must be le or be", parts[3], name)
		}

		factor, offset := 1.0, 0.0
		if len(parts) == 6 {
			if factor, err = strconv.ParseFloat(parts[4], 64); err != nil {
				return nil, errors.Wrapf(err, "invalid factor '%s' for signal '%s'", parts[4], name)
			}
			if offset, err = strconv.ParseFloat(parts[5], 64); err != nil {
				return nil, errors.Wrapf(err, "invalid offset '%s' for signal '%s'", parts[5], name)
			}
		}

		sig := SignalDescriptor{
			Name:      name,
			StartBit:  uint8(start),
			Length:    uint8(length),
			ByteOrder: order,
			Factor:    factor,
			Offset:    offset,
		}
		if err := sig.Validate(); err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}

	return signals, nil
}
