package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"

	"github.com/hurttlocker/holdings/internal/source"
	"github.com/hurttlocker/holdings/internal/timeseries"
)

// Settings is the typed, validated form of a ResolvedConfig.
type Settings struct {
	TitlesPath    string `validate:"required"`
	HardCopyPath  string `validate:"required"`
	MicrofilmPath string `validate:"required"`
	DBPath        string `validate:"required"`
	Addr          string `validate:"required,hostname_port"`
	Earliest      int    `validate:"required_with=Latest,gte=0"`
	Latest        int    `validate:"required_with=Earliest,gtefield=Earliest"`
	Watch         bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings converts resolved string values and validates the result. Parse
// failures name the source of the bad value.
func (r ResolvedConfig) Settings() (Settings, error) {
	s := Settings{
		TitlesPath:    r.TitlesPath.Value,
		HardCopyPath:  r.HardCopyPath.Value,
		MicrofilmPath: r.MicrofilmPath.Value,
		DBPath:        r.DBPath.Value,
		Addr:          r.Addr.Value,
	}

	var err error
	if s.Earliest, err = intValue("earliest", r.Earliest); err != nil {
		return s, err
	}
	if s.Latest, err = intValue("latest", r.Latest); err != nil {
		return s, err
	}
	if v := strings.TrimSpace(r.Watch.Value); v != "" {
		if s.Watch, err = cast.ToBoolE(v); err != nil {
			return s, fmt.Errorf("watch %q (from %s): %w", v, describe(r.Watch), err)
		}
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Validate checks field constraints.
func (s Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s fails %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid settings: %s", strings.Join(msgs, "; "))
}

// Range returns the configured global year range, or nil when the range is
// derived from the data.
func (s Settings) Range() *timeseries.Range {
	if s.Earliest == 0 && s.Latest == 0 {
		return nil
	}
	return &timeseries.Range{Earliest: s.Earliest, Latest: s.Latest}
}

// FileLoader returns a loader over the configured dataset files.
func (s Settings) FileLoader() *source.FileLoader {
	return &source.FileLoader{
		TitlesPath:    s.TitlesPath,
		HardCopyPath:  s.HardCopyPath,
		MicrofilmPath: s.MicrofilmPath,
	}
}

func intValue(name string, v ResolvedValue) (int, error) {
	raw := strings.TrimSpace(v.Value)
	if raw == "" {
		return 0, nil
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q (from %s): %w", name, raw, describe(v), err)
	}
	return n, nil
}

func describe(v ResolvedValue) string {
	if v.From != "" {
		return v.From
	}
	return string(v.Source)
}
