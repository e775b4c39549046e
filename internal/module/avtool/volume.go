package avtool

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/genmedia/server/internal/shared/errors"
)

// Volume is a parsed audio level adjustment: either a linear multiplier or
// a decibel offset.
type Volume struct {
	multiplier float64
	decibels   float64
	isDB       bool
}

// ParseVolume parses a volume string. Accepts a non-negative numeric
// multiplier ("0.5", "2.0") or a dB suffix form ("-3dB", "+6dB").
func ParseVolume(s string) (Volume, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Volume{}, apperrors.InvalidInput("volume cannot be empty")
	}

	if strings.HasSuffix(strings.ToLower(trimmed), "db") {
		numPart := trimmed[:len(trimmed)-2]
		db, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			return Volume{}, apperrors.InvalidInput(fmt.Sprintf(
				"invalid dB value %q, expected format like '-3dB' or '+6dB'", s))
		}
		return Volume{decibels: db, isDB: true}, nil
	}

	mult, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return Volume{}, apperrors.InvalidInput(fmt.Sprintf(
			"invalid volume %q, expected a numeric multiplier like '0.5' or a dB string like '-3dB'", s))
	}
	if mult < 0 {
		return Volume{}, apperrors.InvalidInput(fmt.Sprintf(
			"volume multiplier cannot be negative: %v, use dB notation for attenuation", mult))
	}
	return Volume{multiplier: mult}, nil
}

// FilterValue renders the volume for the ffmpeg volume filter.
func (v Volume) FilterValue() string {
	if v.isDB {
		return strconv.FormatFloat(v.decibels, 'f', -1, 64) + "dB"
	}
	return strconv.FormatFloat(v.multiplier, 'f', -1, 64)
}
